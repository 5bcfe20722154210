package protocol

import (
	"encoding/binary"
	"math"
)

// ReplyTelemetry holds the values an information reply carries. Sequence
// fields take up to three entries; shorter sequences encode the absence
// sentinel for the remaining slots. Used by the inverter simulator and by
// tests to produce wire-accurate frames.
type ReplyTelemetry struct {
	SerialNumber string
	Temperature  *float64

	DCInputVoltage    []float64
	DCInputCurrent    []float64
	ACOutputCurrent   []float64
	ACOutputVoltage   []float64
	ACOutputFrequency []float64
	ACOutputPower     []int

	EnergyToday float64
	EnergyTotal float64
	HoursTotal  int
	Active      *bool

	// Firmware strings extend the payload; both must be set.
	Firmware      string
	FirmwareSlave string
}

// EncodeInformationReply builds a complete reply frame as the inverter
// would emit it, including framing, the twice-repeated logger serial and
// the checksum.
func EncodeInformationReply(loggerSerial uint32, t ReplyTelemetry) []byte {
	size := replyDataSize
	if t.Firmware != "" && t.FirmwareSlave != "" {
		size = firmwareSize
	}
	payload := make([]byte, size)

	copy(payload[offSerial:offSerial+serialLen], t.SerialNumber)

	temperature := uint16(temperatureOffline)
	if t.Temperature != nil {
		temperature = scaledU16(*t.Temperature, 10)
	}
	binary.BigEndian.PutUint16(payload[offTemperature:], temperature)

	putSeries(payload, offDCVoltage, t.DCInputVoltage, 10)
	putSeries(payload, offDCCurrent, t.DCInputCurrent, 10)
	putSeries(payload, offACCurrent, t.ACOutputCurrent, 10)
	putSeries(payload, offACVoltage, t.ACOutputVoltage, 10)

	for phase := 0; phase < phaseCount; phase++ {
		off := offACOutput + phase*4
		frequency := uint16(uint16Max)
		if phase < len(t.ACOutputFrequency) {
			frequency = scaledU16(t.ACOutputFrequency[phase], 100)
		}
		power := uint16(uint16Max)
		if phase < len(t.ACOutputPower) {
			power = uint16(t.ACOutputPower[phase])
		}
		binary.BigEndian.PutUint16(payload[off:], frequency)
		binary.BigEndian.PutUint16(payload[off+2:], power)
	}

	binary.BigEndian.PutUint16(payload[offEnergyToday:], scaledU16(t.EnergyToday, 100))
	binary.BigEndian.PutUint32(payload[offEnergyTotal:], uint32(math.Round(t.EnergyTotal*10)))
	binary.BigEndian.PutUint32(payload[offHoursTotal:], uint32(t.HoursTotal))

	active := uint16(2)
	if t.Active != nil {
		active = 0
		if *t.Active {
			active = 1
		}
	}
	binary.BigEndian.PutUint16(payload[offActive:], active)

	if size == firmwareSize {
		copy(payload[offFirmware:offFirmware+firmwareLen], t.Firmware)
		copy(payload[offFirmwareSlave:offFirmwareSlave+firmwareLen], t.FirmwareSlave)
	}

	body := make([]byte, 0, messageHeaderSize+len(payload))
	body = append(body, byte(len(payload)), RecvSeparator, TypeInformationReply)
	body = binary.LittleEndian.AppendUint32(body, loggerSerial)
	body = binary.LittleEndian.AppendUint32(body, loggerSerial)
	body = append(body, payload...)

	frame := make([]byte, 0, len(body)+3)
	frame = append(frame, MessageStart)
	frame = append(frame, body...)
	frame = append(frame, Checksum(body), MessageEnd)
	return frame
}

func putSeries(payload []byte, offset int, values []float64, scale float64) {
	for i := 0; i < phaseCount; i++ {
		raw := uint16(uint16Max)
		if i < len(values) {
			raw = scaledU16(values[i], scale)
		}
		binary.BigEndian.PutUint16(payload[offset+i*2:], raw)
	}
}

func scaledU16(value, scale float64) uint16 {
	return uint16(math.Round(value * scale))
}
