package protocol

import (
	"encoding/binary"
	"strings"

	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/resident-x/go-omnik/internal/fields"
	"github.com/rs/zerolog"
)

// ParseReply decodes a raw status-port response into an Inverter record.
// The response may contain several frames; exactly one information reply is
// required. String frames are logged and skipped.
func ParseReply(logger zerolog.Logger, serialNumber uint32, data []byte) (domain.Inverter, error) {
	messages, err := splitMessages(data)
	if err != nil {
		return domain.Inverter{}, err
	}

	var reply []byte
	for _, msg := range messages {
		if msg.serialNumber != serialNumber {
			// Replies arrive even when the request serial does not match;
			// note it and keep going.
			logger.Debug().
				Uint32("reply_serial", msg.serialNumber).
				Uint32("request_serial", serialNumber).
				Msg("Reply serial number differs from request")
		}

		switch msg.messageType {
		case TypeInformationReply:
			if reply != nil {
				logger.Warn().Msg("Inverter sent multiple information replies")
			}
			reply = msg.payload
		case TypeString:
			logger.Warn().Str("text", strings.TrimSpace(string(msg.payload))).Msg("Inverter sent text message")
		default:
			return domain.Inverter{}, domain.NewDecodeErrorf("unknown message type 0x%02x", msg.messageType)
		}
	}

	if reply == nil {
		return domain.Inverter{}, domain.NewDecodeError("no frame contained an information reply")
	}

	return decodeInformationReply(reply)
}

// decodeInformationReply decodes the fixed-layout reply payload. Every field
// is read at a fixed offset after a single up-front length check, so an
// undersized payload fails cleanly instead of reading out of bounds.
func decodeInformationReply(data []byte) (domain.Inverter, error) {
	if len(data) < replyDataSize {
		return domain.Inverter{}, domain.NewDecodeErrorf("information reply too short: %d bytes, need %d", len(data), replyDataSize)
	}

	var inv domain.Inverter

	inv.SerialNumber = asciiField(data[offSerial : offSerial+serialLen])

	if raw := binary.BigEndian.Uint16(data[offTemperature:]); raw != temperatureOffline {
		inv.Temperature = fields.FloatPtr(float64(raw) * 0.1)
	}

	inv.DCInputVoltage = scaledSeries(data, offDCVoltage, 0.1)
	inv.DCInputCurrent = scaledSeries(data, offDCCurrent, 0.1)
	inv.ACOutputCurrent = scaledSeries(data, offACCurrent, 0.1)
	inv.ACOutputVoltage = scaledSeries(data, offACVoltage, 0.1)

	// AC output is three interleaved (frequency, power) pairs.
	for phase := 0; phase < phaseCount; phase++ {
		off := offACOutput + phase*4
		if freq := binary.BigEndian.Uint16(data[off:]); freq != uint16Max {
			inv.ACOutputFrequency = append(inv.ACOutputFrequency, float64(freq)*0.01)
		}
		if power := binary.BigEndian.Uint16(data[off+2:]); power != uint16Max {
			inv.ACOutputPower = append(inv.ACOutputPower, int(power))
		}
	}

	inv.SolarEnergyToday = fields.FloatPtr(float64(binary.BigEndian.Uint16(data[offEnergyToday:])) * 0.01)
	inv.SolarEnergyTotal = fields.FloatPtr(float64(binary.BigEndian.Uint32(data[offEnergyTotal:])) * 0.1)
	inv.SolarHoursTotal = fields.IntPtr(int(binary.BigEndian.Uint32(data[offHoursTotal:])))

	switch binary.BigEndian.Uint16(data[offActive:]) {
	case 0:
		inv.InverterActive = fields.BoolPtr(false)
	case 1:
		inv.InverterActive = fields.BoolPtr(true)
	}

	// Firmware strings only appear on newer firmware.
	if len(data) >= firmwareSize {
		inv.Firmware = asciiField(data[offFirmware : offFirmware+firmwareLen])
		inv.FirmwareSlave = asciiField(data[offFirmwareSlave : offFirmwareSlave+firmwareLen])
	}

	return inv, nil
}

// scaledSeries decodes three consecutive big-endian u16 values, scaling each
// and dropping the 0xFFFF "not present" sentinel so the sequence length
// reflects only present strings/phases.
func scaledSeries(data []byte, offset int, scale float64) []float64 {
	var out []float64
	for i := 0; i < phaseCount; i++ {
		raw := binary.BigEndian.Uint16(data[offset+i*2:])
		if raw == uint16Max {
			continue
		}
		out = append(out, float64(raw)*scale)
	}
	return out
}

// asciiField trims padding from a fixed-width ASCII run and returns it as an
// optional string.
func asciiField(raw []byte) *string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return -1
	}, string(raw))
	return fields.String(strings.TrimRight(cleaned, "\x00 "))
}
