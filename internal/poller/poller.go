// Package poller drives the periodic collection loop over all configured
// inverters.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-omnik/internal/client"
	"github.com/resident-x/go-omnik/internal/config"
	"github.com/resident-x/go-omnik/internal/domain"
)

// ReaderFactory builds a status reader for one configured inverter. Tests
// replace it to inject fakes.
type ReaderFactory func(cfg config.InverterConfig) (domain.StatusReader, error)

// DefaultReaderFactory builds a real client from the inverter configuration.
func DefaultReaderFactory(cfg config.InverterConfig) (domain.StatusReader, error) {
	return client.New(client.Options{
		Host:         cfg.Host,
		SourceType:   domain.SourceType(cfg.SourceType),
		Username:     cfg.Username,
		Password:     cfg.Password,
		UseSSL:       cfg.UseSSL,
		Timeout:      cfg.Timeout(),
		TCPPort:      cfg.TCPPort,
		SerialNumber: cfg.SerialNumber,
	})
}

// Poller polls every configured inverter on a fixed interval and fans the
// results out to the registry, the message publisher and the reading store.
type Poller struct {
	config    *config.Config
	registry  *domain.StatusRegistry
	publisher domain.MessagePublisher
	store     domain.ReadingStore
	factory   ReaderFactory
	readers   map[string]domain.StatusReader
	logger    zerolog.Logger
}

// New creates a poller. The publisher and store may be nil when the matching
// feature is disabled.
func New(cfg *config.Config, registry *domain.StatusRegistry, publisher domain.MessagePublisher, store domain.ReadingStore, factory ReaderFactory) (*Poller, error) {
	if factory == nil {
		factory = DefaultReaderFactory
	}

	p := &Poller{
		config:    cfg,
		registry:  registry,
		publisher: publisher,
		store:     store,
		factory:   factory,
		readers:   make(map[string]domain.StatusReader),
		logger:    log.With().Str("component", "poller").Logger(),
	}

	for _, inv := range cfg.Inverters {
		reader, err := factory(inv)
		if err != nil {
			p.closeReaders()
			return nil, fmt.Errorf("failed to create reader for %q: %w", inv.Name, err)
		}
		p.readers[inv.Name] = reader
		registry.Register(inv.Name, inv.Host, domain.SourceType(inv.SourceType))
	}

	return p, nil
}

// Run polls immediately and then on every tick until the context is
// canceled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.config.PollInterval).
		Int("inverters", len(p.readers)).
		Msg("Starting poller")

	p.pollAll(ctx)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poller stopped")
			return nil
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

// PollOnce polls every inverter a single time. Used by tests and the initial
// run.
func (p *Poller) PollOnce(ctx context.Context) {
	p.pollAll(ctx)
}

func (p *Poller) pollAll(ctx context.Context) {
	var wg sync.WaitGroup

	for _, inv := range p.config.Inverters {
		reader, ok := p.readers[inv.Name]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(cfg config.InverterConfig, reader domain.StatusReader) {
			defer wg.Done()
			p.pollOne(ctx, cfg, reader)
		}(inv, reader)
	}

	wg.Wait()
}

func (p *Poller) pollOne(ctx context.Context, cfg config.InverterConfig, reader domain.StatusReader) {
	pollCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	inverter, err := reader.Inverter(pollCtx)
	if err != nil {
		p.registry.UpdateError(cfg.Name, err)
		p.logger.Warn().Err(err).Str("inverter", cfg.Name).Msg("Poll failed")
		return
	}

	device, err := reader.Device(pollCtx)
	if err != nil {
		p.registry.UpdateError(cfg.Name, err)
		p.logger.Warn().Err(err).Str("inverter", cfg.Name).Msg("Device poll failed")
		return
	}

	p.registry.UpdateReading(cfg.Name, device, inverter)

	reading := &domain.Reading{
		Name:      cfg.Name,
		Timestamp: time.Now(),
		Device:    device,
		Inverter:  inverter,
	}

	if p.store != nil {
		if err := p.store.SaveReading(ctx, reading); err != nil {
			p.logger.Error().Err(err).Str("inverter", cfg.Name).Msg("Failed to save reading")
		}
	}

	if p.publisher != nil {
		topic := fmt.Sprintf("%s/%s", p.config.MQTT.Topic, cfg.Name)
		if err := p.publisher.Publish(ctx, topic, reading); err != nil {
			p.logger.Error().Err(err).Str("inverter", cfg.Name).Msg("Failed to publish reading")
		}
	}

	p.logger.Debug().
		Str("inverter", cfg.Name).
		Msg("Poll completed")
}

// Close releases every reader.
func (p *Poller) Close() error {
	p.closeReaders()
	return nil
}

func (p *Poller) closeReaders() {
	for name, reader := range p.readers {
		if err := reader.Close(); err != nil {
			p.logger.Warn().Err(err).Str("inverter", name).Msg("Failed to close reader")
		}
	}
}
