// Package domain provides core domain models and interfaces for the go-omnik application.
package domain

import (
	"context"
	"time"
)

// SourceType identifies the wire format/transport family a given inverter
// firmware exposes.
type SourceType string

const (
	SourceJavaScript SourceType = "javascript"
	SourceJSON       SourceType = "json"
	SourceHTML       SourceType = "html"
	SourceTCP        SourceType = "tcp"
)

// Valid reports whether the source type is one of the supported families.
func (s SourceType) Valid() bool {
	switch s {
	case SourceJavaScript, SourceJSON, SourceHTML, SourceTCP:
		return true
	}
	return false
}

// Device represents the status of the inverter's network/communication
// module, as opposed to the power-conversion unit itself.
type Device struct {
	// SignalQuality is the WiFi signal in percent. Only JS-sourced payloads
	// report it.
	SignalQuality *int `json:"signal_quality,omitempty"`
	// Firmware is the communication module firmware version.
	Firmware *string `json:"firmware,omitempty"`
	// IPAddress is the module's dotted IPv4 address. Not reported by the
	// JS webdata variants.
	IPAddress *string `json:"ip_address,omitempty"`
}

// Inverter represents solar production telemetry. Every field is
// independently optional: absence in the source payload maps to nil, never
// to a fabricated zero.
type Inverter struct {
	SerialNumber  *string `json:"serial_number,omitempty"`
	Model         *string `json:"model,omitempty"`
	Firmware      *string `json:"firmware,omitempty"`
	FirmwareSlave *string `json:"firmware_slave,omitempty"`
	AlarmCode     *string `json:"alarm_code,omitempty"`

	SolarRatedPower   *int     `json:"solar_rated_power,omitempty"`
	SolarCurrentPower *int     `json:"solar_current_power,omitempty"`
	SolarEnergyToday  *float64 `json:"solar_energy_today,omitempty"`
	SolarEnergyTotal  *float64 `json:"solar_energy_total,omitempty"`

	// TCP source only.
	InverterActive  *bool    `json:"inverter_active,omitempty"`
	SolarHoursTotal *int     `json:"solar_hours_total,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`

	// Per DC string / AC phase measurements, TCP source only. A sequence
	// holds one entry per present string/phase (0-3); sentinel values in the
	// frame are not appended.
	DCInputVoltage    []float64 `json:"dc_input_voltage,omitempty"`
	DCInputCurrent    []float64 `json:"dc_input_current,omitempty"`
	ACOutputVoltage   []float64 `json:"ac_output_voltage,omitempty"`
	ACOutputCurrent   []float64 `json:"ac_output_current,omitempty"`
	ACOutputFrequency []float64 `json:"ac_output_frequency,omitempty"`
	ACOutputPower     []int     `json:"ac_output_power,omitempty"`
}

// Reading pairs the two records fetched from one inverter at one instant.
type Reading struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Device    Device    `json:"device"`
	Inverter  Inverter  `json:"inverter"`
}

// StatusReader fetches the two canonical records from an inverter. The two
// calls are independent and safe to issue concurrently.
type StatusReader interface {
	// Inverter fetches production telemetry.
	Inverter(ctx context.Context) (Inverter, error)

	// Device fetches communication module status.
	Device(ctx context.Context) (Device, error)

	// Close releases any transport resources held by the reader.
	Close() error
}

// MessagePublisher defines the interface for publishing collected readings.
type MessagePublisher interface {
	// Connect establishes a connection to the messaging system
	Connect(ctx context.Context) error

	// Publish sends data to the specified topic
	Publish(ctx context.Context, topic string, data interface{}) error

	// Close terminates the connection to the messaging system
	Close() error
}

// ReadingStore persists collected readings.
type ReadingStore interface {
	SaveReading(ctx context.Context, reading *Reading) error
	History(ctx context.Context, name string, limit int) ([]Reading, error)
	Close() error
}
