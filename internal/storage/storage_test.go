package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/resident-x/go-omnik/internal/fields"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "readings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleReading(name string, ts time.Time) *domain.Reading {
	return &domain.Reading{
		Name:      name,
		Timestamp: ts,
		Device: domain.Device{
			SignalQuality: fields.IntPtr(39),
			IPAddress:     fields.StringPtr("192.168.0.106"),
		},
		Inverter: domain.Inverter{
			SerialNumber:      fields.StringPtr("NLDN012345CS4321"),
			SolarCurrentPower: fields.IntPtr(1225),
			SolarEnergyToday:  fields.FloatPtr(8.16),
			SolarEnergyTotal:  fields.FloatPtr(5957.4),
			InverterActive:    fields.BoolPtr(true),
			DCInputVoltage:    []float64{187.5, 188.1},
			ACOutputPower:     []int{1198},
		},
	}
}

func TestSaveAndHistory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 3; i++ {
		reading := sampleReading("garden", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, db.SaveReading(ctx, reading))
	}
	require.NoError(t, db.SaveReading(ctx, sampleReading("roof", base)))

	history, err := db.History(ctx, "garden", 10)
	require.NoError(t, err)
	require.Len(t, history, 3, "history must only contain the requested inverter")

	// Newest first.
	assert.True(t, history[0].Timestamp.After(history[1].Timestamp))
	assert.True(t, history[1].Timestamp.After(history[2].Timestamp))

	first := history[0]
	assert.Equal(t, "garden", first.Name)
	require.NotNil(t, first.Inverter.SerialNumber)
	assert.Equal(t, "NLDN012345CS4321", *first.Inverter.SerialNumber)
	require.NotNil(t, first.Inverter.SolarCurrentPower)
	assert.Equal(t, 1225, *first.Inverter.SolarCurrentPower)
	require.NotNil(t, first.Device.SignalQuality)
	assert.Equal(t, 39, *first.Device.SignalQuality)

	// Sequence fields survive the round trip through per-phase columns.
	assert.Equal(t, []float64{187.5, 188.1}, first.Inverter.DCInputVoltage)
	assert.Equal(t, []int{1198}, first.Inverter.ACOutputPower)
	assert.Empty(t, first.Inverter.ACOutputVoltage, "absent phases stay absent")

	// Absent optional fields stay nil.
	assert.Nil(t, first.Inverter.Temperature)
	assert.Nil(t, first.Inverter.Model)
}

func TestHistoryLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.SaveReading(ctx, sampleReading("garden", base.Add(time.Duration(i)*time.Minute))))
	}

	history, err := db.History(ctx, "garden", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestHistoryUnknownInverter(t *testing.T) {
	db := openTestDB(t)

	history, err := db.History(context.Background(), "ghost", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCleanOldReadings(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	old := sampleReading("garden", time.Now().Add(-48*time.Hour))
	recent := sampleReading("garden", time.Now().Add(-time.Minute))
	require.NoError(t, db.SaveReading(ctx, old))
	require.NoError(t, db.SaveReading(ctx, recent))

	require.NoError(t, db.CleanOldReadings(ctx, 24*time.Hour))

	history, err := db.History(ctx, "garden", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.WithinDuration(t, recent.Timestamp, history[0].Timestamp, time.Second)
}
