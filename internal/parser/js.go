// Package parser turns raw inverter payloads into the canonical Device and
// Inverter records. One pure function per wire format; parsers keep no state
// and are safe to call from concurrent goroutines.
package parser

import (
	"regexp"
	"strings"

	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/resident-x/go-omnik/internal/fields"
)

// The JS payload is JavaScript source defining globals. It is scanned
// lexically; no evaluation takes place. Two historical shapes exist: the
// single webData blob and the myDeviceArray form. Which global occurs decides
// the shape.
var (
	webDataRe     = regexp.MustCompile(`webData\s*=\s*"(.*?)";`)
	deviceArrayRe = regexp.MustCompile(`myDeviceArray\[0\]\s*=\s*"(.*?)";`)
	rssiRe        = regexp.MustCompile(`m2mRssi\s*=\s*"(\d+)%?";`)
	versionRe     = regexp.MustCompile(`version\s*=\s*"(.*?)";`)
)

// Positional mapping shared by both row shapes. Firmware variants with fewer
// columns simply leave the trailing fields absent.
const (
	jsColSerial   = 0
	jsColFirmware = 2
	jsColModel    = 3
	jsColRatedP   = 4
	jsColNowP     = 5
	jsColTodayE   = 6 // hundredths of a kWh
	jsColTotalE   = 7 // hundredths of a kWh
)

// Sofar-style firmware packs serial number, model and an alternate ID
// concatenated in the first column at fixed character offsets.
const (
	packedSerialEnd = 16
	packedModelEnd  = 26
)

// jsRow extracts the value row from either payload shape. A payload
// containing neither global is not JS status output at all and yields a
// DecodeError.
func jsRow(payload string) ([]string, error) {
	if m := webDataRe.FindStringSubmatch(payload); m != nil {
		return fields.Row(m[1]), nil
	}
	if m := deviceArrayRe.FindStringSubmatch(payload); m != nil {
		return fields.Row(m[1]), nil
	}
	return nil, domain.NewDecodeError("payload defines neither webData nor myDeviceArray")
}

// JSInverter parses production telemetry from a js/status.js payload.
func JSInverter(payload string) (domain.Inverter, error) {
	row, err := jsRow(payload)
	if err != nil {
		return domain.Inverter{}, err
	}

	serial := fields.At(row, jsColSerial)
	model := fields.At(row, jsColModel)

	var inv domain.Inverter
	if model == "" && len(serial) > packedSerialEnd {
		// Packed first column: split by fixed substring slicing.
		inv.SerialNumber = fields.String(serial[:packedSerialEnd])
		if len(serial) >= packedModelEnd {
			inv.Model = fields.String(serial[packedSerialEnd:packedModelEnd])
		} else {
			inv.Model = fields.String(serial[packedSerialEnd:])
		}
	} else {
		inv.SerialNumber = fields.String(serial)
		inv.Model = fields.String(model)
	}

	inv.Firmware = fields.String(fields.At(row, jsColFirmware))
	inv.SolarRatedPower = fields.Int(fields.At(row, jsColRatedP))
	inv.SolarCurrentPower = fields.Int(fields.At(row, jsColNowP))
	inv.SolarEnergyToday = fields.ScaledFloat(fields.At(row, jsColTodayE), 100)
	inv.SolarEnergyTotal = fields.ScaledFloat(fields.At(row, jsColTotalE), 100)

	return inv, nil
}

// JSDevice parses communication module status from a js/status.js payload.
// The JS variants report WiFi signal and module firmware but no IP address.
func JSDevice(payload string) (domain.Device, error) {
	if _, err := jsRow(payload); err != nil {
		return domain.Device{}, err
	}

	var dev domain.Device
	if m := rssiRe.FindStringSubmatch(payload); m != nil {
		dev.SignalQuality = fields.Int(m[1])
	}
	if m := versionRe.FindStringSubmatch(payload); m != nil {
		dev.Firmware = fields.String(m[1])
	}
	return dev, nil
}

// scriptVar extracts a `var name = "value";` assignment from a document.
// Used by the HTML parsers for the firmware families that embed their status
// as script globals. Returns the empty string when the variable is absent.
func scriptVar(doc, name string) string {
	if name == "" {
		return ""
	}
	re := regexp.MustCompile(`var\s+` + regexp.QuoteMeta(name) + `\s*=\s*"(.*?)";`)
	if m := re.FindStringSubmatch(doc); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
