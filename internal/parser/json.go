package parser

import (
	"encoding/json"
	"strconv"

	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/resident-x/go-omnik/internal/fields"
)

// JSON status documents are flat objects with short firmware-specific keys.
// Each key maps to exactly one field; a missing or empty key leaves the
// field absent.
const (
	jsonKeySerial        = "sn"
	jsonKeyModel         = "tp"
	jsonKeyFirmware      = "f1"
	jsonKeyFirmwareSlave = "f2"
	jsonKeyAlarm         = "al"
	jsonKeyRatedPower    = "g1"
	jsonKeyNowPower      = "h1"
	jsonKeyEnergyToday   = "e1"
	jsonKeyEnergyTotal   = "e2"

	jsonKeyModuleFirmware = "mv"
	jsonKeyIPAddress      = "ip"
)

// jsonLookup returns the value for key rendered as a string. Firmware is
// inconsistent about quoting numbers, so both "2000" and 2000 are accepted.
func jsonLookup(data map[string]interface{}, key string) string {
	raw, ok := data[key]
	if !ok {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func decodeJSON(payload string) (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, &domain.DecodeError{Reason: "payload is not a JSON object", Err: err}
	}
	return data, nil
}

// JSONInverter parses production telemetry from a status.json payload.
func JSONInverter(payload string) (domain.Inverter, error) {
	data, err := decodeJSON(payload)
	if err != nil {
		return domain.Inverter{}, err
	}

	return domain.Inverter{
		SerialNumber:      fields.String(jsonLookup(data, jsonKeySerial)),
		Model:             fields.String(jsonLookup(data, jsonKeyModel)),
		Firmware:          fields.String(jsonLookup(data, jsonKeyFirmware)),
		FirmwareSlave:     fields.String(jsonLookup(data, jsonKeyFirmwareSlave)),
		AlarmCode:         fields.String(jsonLookup(data, jsonKeyAlarm)),
		SolarRatedPower:   fields.Int(jsonLookup(data, jsonKeyRatedPower)),
		SolarCurrentPower: fields.Int(jsonLookup(data, jsonKeyNowPower)),
		SolarEnergyToday:  fields.Float(jsonLookup(data, jsonKeyEnergyToday)),
		SolarEnergyTotal:  fields.Float(jsonLookup(data, jsonKeyEnergyTotal)),
	}, nil
}

// JSONDevice parses communication module status from a status.json payload.
// JSON sources report firmware and IP address but no WiFi signal.
func JSONDevice(payload string) (domain.Device, error) {
	data, err := decodeJSON(payload)
	if err != nil {
		return domain.Device{}, err
	}

	return domain.Device{
		Firmware:  fields.String(jsonLookup(data, jsonKeyModuleFirmware)),
		IPAddress: fields.String(jsonLookup(data, jsonKeyIPAddress)),
	}, nil
}
