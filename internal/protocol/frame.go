// Package protocol implements the raw status-port framing used by the one
// inverter model that exposes no web server. The byte layout is inferred
// from captured frames, not a formal vendor document; the decoder therefore
// bounds-checks every read and rejects anything it does not recognize.
package protocol

import (
	"encoding/binary"

	"github.com/resident-x/go-omnik/internal/domain"
)

const (
	// MessageStart marks the first byte of every frame.
	MessageStart = 0x68
	// MessageEnd marks the last byte of every frame.
	MessageEnd = 0x16

	// Separator bytes distinguish request and reply frames.
	SendSeparator = 0x40
	RecvSeparator = 0x41

	// Message types observed on the wire.
	TypeInformationRequest = 0x30
	TypeInformationReply   = 0xB0
	// TypeString frames carry free-form text the inverter occasionally
	// emits alongside a reply.
	TypeString = 0xF0

	// The length field excludes the length byte itself, the separator, the
	// message type, the twice-repeated serial number and the checksum.
	messageHeaderSize = 3 + 2*4 + 1

	uint16Max = 0xFFFF
	// Reported in the temperature field while the inverter is offline.
	temperatureOffline = 65326
)

// Information reply payload offsets, big-endian. Three DC strings and three
// AC phases are always present in the frame; absent ones carry the 0xFFFF
// sentinel.
const (
	offSerial      = 3 // 3 pad bytes precede the 16-byte ASCII serial
	offTemperature = 19
	offDCVoltage   = 21
	offDCCurrent   = 27
	offACCurrent   = 33
	offACVoltage   = 39
	offACOutput    = 45 // 3 x (u16 frequency, u16 power)
	offEnergyToday = 57
	offEnergyTotal = 59
	offHoursTotal  = 63
	offActive      = 67

	// replyDataSize is the minimum information reply payload; newer firmware
	// appends two 16-byte firmware strings with 4 pad bytes each.
	replyDataSize    = 85
	offFirmware      = replyDataSize
	offFirmwareSlave = replyDataSize + 16 + 4
	firmwareSize     = replyDataSize + 2*(16+4)

	serialLen   = 16
	firmwareLen = 16
	phaseCount  = 3
)

// InformationRequest builds the magic request frame the inverter answers
// with raw statistics. The logger serial number is repeated twice,
// little-endian, as on the wire.
func InformationRequest(serialNumber uint32) []byte {
	payload := []byte{0x01, 0x00}

	body := make([]byte, 0, 3+8+len(payload))
	body = append(body, byte(len(payload)), SendSeparator, TypeInformationRequest)
	body = binary.LittleEndian.AppendUint32(body, serialNumber)
	body = binary.LittleEndian.AppendUint32(body, serialNumber)
	body = append(body, payload...)

	frame := make([]byte, 0, len(body)+3)
	frame = append(frame, MessageStart)
	frame = append(frame, body...)
	frame = append(frame, Checksum(body), MessageEnd)
	return frame
}

// Checksum computes the additive 8-bit checksum over the frame body (between
// the start marker and the checksum byte).
func Checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return sum
}

// message is one unwrapped frame.
type message struct {
	messageType  byte
	serialNumber uint32
	payload      []byte
}

// splitMessages validates framing and checksums and returns the unwrapped
// messages. Trailing 0xFF garbage after the last frame is tolerated; any
// other structural problem is a DecodeError.
func splitMessages(data []byte) ([]message, error) {
	var messages []message

	for len(data) > 0 {
		if data[0] == 0xFF {
			for _, b := range data {
				if b != 0xFF {
					return nil, domain.NewDecodeError("trailing bytes after 0xFF filler are not 0xFF")
				}
			}
			break
		}

		if data[0] != MessageStart {
			return nil, domain.NewDecodeErrorf("invalid start byte 0x%02x", data[0])
		}
		if len(data) < 2 {
			return nil, domain.NewDecodeError("frame truncated before length byte")
		}

		bodyLen := int(data[1]) + messageHeaderSize
		// start byte + body + end byte
		if len(data) < 1+bodyLen+1 {
			return nil, domain.NewDecodeErrorf("could only read %d of %d expected frame bytes", len(data)-1, bodyLen)
		}

		body := data[1 : 1+bodyLen]
		checksum := body[len(body)-1]
		body = body[:len(body)-1]
		if calculated := Checksum(body); calculated != checksum {
			return nil, domain.NewDecodeErrorf("checksum mismatch: calculated 0x%02x, frame holds 0x%02x", calculated, checksum)
		}

		if body[1] != RecvSeparator {
			return nil, domain.NewDecodeErrorf("invalid receive separator 0x%02x", body[1])
		}

		serial0 := binary.LittleEndian.Uint32(body[3:7])
		serial1 := binary.LittleEndian.Uint32(body[7:11])
		if serial0 != serial1 {
			return nil, domain.NewDecodeErrorf("serial number mismatch in frame: %d != %d", serial0, serial1)
		}

		messages = append(messages, message{
			messageType:  body[2],
			serialNumber: serial0,
			payload:      body[11:],
		})

		data = data[1+bodyLen:]
		if data[0] != MessageEnd {
			return nil, domain.NewDecodeErrorf("invalid end byte 0x%02x", data[0])
		}
		data = data[1:]
	}

	return messages, nil
}
