package poller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-omnik/internal/config"
	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/resident-x/go-omnik/internal/fields"
)

type fakeReader struct {
	inverter domain.Inverter
	device   domain.Device
	err      error
	closed   bool
}

func (f *fakeReader) Inverter(_ context.Context) (domain.Inverter, error) {
	return f.inverter, f.err
}

func (f *fakeReader) Device(_ context.Context) (domain.Device, error) {
	return f.device, f.err
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Connect(_ context.Context) error { return nil }

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type recordingStore struct {
	mu       sync.Mutex
	readings []domain.Reading
}

func (s *recordingStore) SaveReading(_ context.Context, reading *domain.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, *reading)
	return nil
}

func (s *recordingStore) History(_ context.Context, _ string, _ int) ([]domain.Reading, error) {
	return nil, nil
}

func (s *recordingStore) Close() error { return nil }

func pollerConfig(names ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	for _, name := range names {
		cfg.Inverters = append(cfg.Inverters, config.InverterConfig{
			Name:       name,
			Host:       "192.168.0.106",
			SourceType: "json",
		})
	}
	return cfg
}

func TestPollOnceUpdatesRegistry(t *testing.T) {
	reader := &fakeReader{
		inverter: domain.Inverter{SolarCurrentPower: fields.IntPtr(1225)},
		device:   domain.Device{IPAddress: fields.StringPtr("192.168.0.106")},
	}
	registry := domain.NewStatusRegistry()

	p, err := New(pollerConfig("garden"), registry, nil, nil,
		func(_ config.InverterConfig) (domain.StatusReader, error) { return reader, nil })
	require.NoError(t, err)
	defer p.Close()

	p.PollOnce(context.Background())

	status, found := registry.Get("garden")
	require.True(t, found)
	assert.False(t, status.LastContact.IsZero())
	assert.Empty(t, status.LastError)
	require.NotNil(t, status.Inverter)
	require.NotNil(t, status.Inverter.SolarCurrentPower)
	assert.Equal(t, 1225, *status.Inverter.SolarCurrentPower)
	require.NotNil(t, status.Device)
	require.NotNil(t, status.Device.IPAddress)
	assert.Equal(t, "192.168.0.106", *status.Device.IPAddress)
}

func TestPollOnceRecordsError(t *testing.T) {
	reader := &fakeReader{err: domain.NewConnectionError("192.168.0.106", fmt.Errorf("connection refused"))}
	registry := domain.NewStatusRegistry()

	p, err := New(pollerConfig("garden"), registry, nil, nil,
		func(_ config.InverterConfig) (domain.StatusReader, error) { return reader, nil })
	require.NoError(t, err)
	defer p.Close()

	p.PollOnce(context.Background())

	status, found := registry.Get("garden")
	require.True(t, found)
	assert.Contains(t, status.LastError, "connection refused")
	assert.Nil(t, status.Inverter, "no reading was ever collected")
}

func TestPollOnceFansOut(t *testing.T) {
	reader := &fakeReader{inverter: domain.Inverter{SolarCurrentPower: fields.IntPtr(500)}}
	publisher := &recordingPublisher{}
	store := &recordingStore{}
	registry := domain.NewStatusRegistry()

	cfg := pollerConfig("garden", "roof")
	p, err := New(cfg, registry, publisher, store,
		func(_ config.InverterConfig) (domain.StatusReader, error) { return reader, nil })
	require.NoError(t, err)
	defer p.Close()

	p.PollOnce(context.Background())

	store.mu.Lock()
	assert.Len(t, store.readings, 2)
	store.mu.Unlock()

	publisher.mu.Lock()
	require.Len(t, publisher.topics, 2)
	assert.Contains(t, publisher.topics, "energy/omnik/garden")
	assert.Contains(t, publisher.topics, "energy/omnik/roof")
	publisher.mu.Unlock()
}

func TestPollerSkipsDownstreamOnError(t *testing.T) {
	reader := &fakeReader{err: fmt.Errorf("boom")}
	publisher := &recordingPublisher{}
	store := &recordingStore{}
	registry := domain.NewStatusRegistry()

	p, err := New(pollerConfig("garden"), registry, publisher, store,
		func(_ config.InverterConfig) (domain.StatusReader, error) { return reader, nil })
	require.NoError(t, err)
	defer p.Close()

	p.PollOnce(context.Background())

	store.mu.Lock()
	assert.Empty(t, store.readings, "failed polls must not be persisted")
	store.mu.Unlock()

	publisher.mu.Lock()
	assert.Empty(t, publisher.topics, "failed polls must not be published")
	publisher.mu.Unlock()
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reader := &fakeReader{}
	registry := domain.NewStatusRegistry()

	p, err := New(pollerConfig("garden"), registry, nil, nil,
		func(_ config.InverterConfig) (domain.StatusReader, error) { return reader, nil })
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}
}

func TestNewFailsWhenReaderCannotBeBuilt(t *testing.T) {
	registry := domain.NewStatusRegistry()

	_, err := New(pollerConfig("garden"), registry, nil, nil,
		func(_ config.InverterConfig) (domain.StatusReader, error) {
			return nil, fmt.Errorf("bad options")
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "garden")
}

func TestCloseReleasesReaders(t *testing.T) {
	reader := &fakeReader{}
	registry := domain.NewStatusRegistry()

	p, err := New(pollerConfig("garden"), registry, nil, nil,
		func(_ config.InverterConfig) (domain.StatusReader, error) { return reader, nil })
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.True(t, reader.closed)
}

func TestDefaultReaderFactoryValidates(t *testing.T) {
	_, err := DefaultReaderFactory(config.InverterConfig{Name: "garden", SourceType: "tcp", Host: "192.168.0.51"})
	assert.Error(t, err, "tcp without a serial number must be rejected")

	reader, err := DefaultReaderFactory(config.InverterConfig{Name: "garden", Host: "192.168.0.106", SourceType: "json"})
	require.NoError(t, err)
	_ = reader.Close()
}
