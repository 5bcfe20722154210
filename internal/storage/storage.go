// Package storage persists collected readings to a local SQLite database.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Reading is the persisted form of one poll result. Optional record fields
// map to nullable columns; sequences are stored as their per-phase columns
// since at most three entries exist.
type Reading struct {
	gorm.Model
	Name      string    `gorm:"index"`
	Timestamp time.Time `gorm:"index"`

	// Device
	SignalQuality  *int
	DeviceFirmware *string
	IPAddress      *string

	// Inverter identity
	SerialNumber  *string
	InverterModel *string
	Firmware      *string
	FirmwareSlave *string
	AlarmCode     *string

	// Production
	SolarRatedPower   *int
	SolarCurrentPower *int
	SolarEnergyToday  *float64
	SolarEnergyTotal  *float64

	InverterActive  *bool
	SolarHoursTotal *int
	Temperature     *float64

	DCVoltage1 *float64
	DCVoltage2 *float64
	DCVoltage3 *float64
	DCCurrent1 *float64
	DCCurrent2 *float64
	DCCurrent3 *float64

	ACVoltage1   *float64
	ACVoltage2   *float64
	ACVoltage3   *float64
	ACCurrent1   *float64
	ACCurrent2   *float64
	ACCurrent3   *float64
	ACFrequency1 *float64
	ACFrequency2 *float64
	ACFrequency3 *float64
	ACPower1     *int
	ACPower2     *int
	ACPower3     *int
}

// Database wraps the SQLite connection.
type Database struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// Open opens the SQLite database and runs migrations.
func Open(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Reading{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{
		db:     db,
		logger: log.With().Str("component", "storage").Logger(),
	}, nil
}

// SaveReading persists one poll result.
func (d *Database) SaveReading(ctx context.Context, reading *domain.Reading) error {
	row := toRow(reading)
	if err := d.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to save reading: %w", err)
	}
	return nil
}

// History returns the most recent readings for an inverter, newest first.
func (d *Database) History(ctx context.Context, name string, limit int) ([]domain.Reading, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []Reading
	err := d.db.WithContext(ctx).
		Where("name = ?", name).
		Order("timestamp desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	out := make([]domain.Reading, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}

// CleanOldReadings deletes readings older than the retention window.
func (d *Database) CleanOldReadings(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	result := d.db.WithContext(ctx).Unscoped().
		Where("timestamp < ?", cutoff).
		Delete(&Reading{})
	if result.Error != nil {
		return fmt.Errorf("failed to clean old readings: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		d.logger.Info().Int64("rows", result.RowsAffected).Msg("Cleaned old readings")
	}
	return nil
}

// Close closes the underlying SQL connection.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(r *domain.Reading) *Reading {
	row := &Reading{
		Name:      r.Name,
		Timestamp: r.Timestamp,

		SignalQuality:  r.Device.SignalQuality,
		DeviceFirmware: r.Device.Firmware,
		IPAddress:      r.Device.IPAddress,

		SerialNumber:  r.Inverter.SerialNumber,
		InverterModel: r.Inverter.Model,
		Firmware:      r.Inverter.Firmware,
		FirmwareSlave: r.Inverter.FirmwareSlave,
		AlarmCode:     r.Inverter.AlarmCode,

		SolarRatedPower:   r.Inverter.SolarRatedPower,
		SolarCurrentPower: r.Inverter.SolarCurrentPower,
		SolarEnergyToday:  r.Inverter.SolarEnergyToday,
		SolarEnergyTotal:  r.Inverter.SolarEnergyTotal,

		InverterActive:  r.Inverter.InverterActive,
		SolarHoursTotal: r.Inverter.SolarHoursTotal,
		Temperature:     r.Inverter.Temperature,
	}

	assignFloats(r.Inverter.DCInputVoltage, &row.DCVoltage1, &row.DCVoltage2, &row.DCVoltage3)
	assignFloats(r.Inverter.DCInputCurrent, &row.DCCurrent1, &row.DCCurrent2, &row.DCCurrent3)
	assignFloats(r.Inverter.ACOutputVoltage, &row.ACVoltage1, &row.ACVoltage2, &row.ACVoltage3)
	assignFloats(r.Inverter.ACOutputCurrent, &row.ACCurrent1, &row.ACCurrent2, &row.ACCurrent3)
	assignFloats(r.Inverter.ACOutputFrequency, &row.ACFrequency1, &row.ACFrequency2, &row.ACFrequency3)
	assignInts(r.Inverter.ACOutputPower, &row.ACPower1, &row.ACPower2, &row.ACPower3)

	return row
}

func fromRow(row *Reading) domain.Reading {
	r := domain.Reading{
		Name:      row.Name,
		Timestamp: row.Timestamp,
		Device: domain.Device{
			SignalQuality: row.SignalQuality,
			Firmware:      row.DeviceFirmware,
			IPAddress:     row.IPAddress,
		},
		Inverter: domain.Inverter{
			SerialNumber:      row.SerialNumber,
			Model:             row.InverterModel,
			Firmware:          row.Firmware,
			FirmwareSlave:     row.FirmwareSlave,
			AlarmCode:         row.AlarmCode,
			SolarRatedPower:   row.SolarRatedPower,
			SolarCurrentPower: row.SolarCurrentPower,
			SolarEnergyToday:  row.SolarEnergyToday,
			SolarEnergyTotal:  row.SolarEnergyTotal,
			InverterActive:    row.InverterActive,
			SolarHoursTotal:   row.SolarHoursTotal,
			Temperature:       row.Temperature,
		},
	}

	r.Inverter.DCInputVoltage = collectFloats(row.DCVoltage1, row.DCVoltage2, row.DCVoltage3)
	r.Inverter.DCInputCurrent = collectFloats(row.DCCurrent1, row.DCCurrent2, row.DCCurrent3)
	r.Inverter.ACOutputVoltage = collectFloats(row.ACVoltage1, row.ACVoltage2, row.ACVoltage3)
	r.Inverter.ACOutputCurrent = collectFloats(row.ACCurrent1, row.ACCurrent2, row.ACCurrent3)
	r.Inverter.ACOutputFrequency = collectFloats(row.ACFrequency1, row.ACFrequency2, row.ACFrequency3)
	r.Inverter.ACOutputPower = collectInts(row.ACPower1, row.ACPower2, row.ACPower3)

	return r
}

func assignFloats(values []float64, dst ...**float64) {
	for i := range values {
		if i >= len(dst) {
			break
		}
		v := values[i]
		*dst[i] = &v
	}
}

func assignInts(values []int, dst ...**int) {
	for i := range values {
		if i >= len(dst) {
			break
		}
		v := values[i]
		*dst[i] = &v
	}
}

func collectFloats(values ...*float64) []float64 {
	var out []float64
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func collectInts(values ...*int) []int {
	var out []int
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}
