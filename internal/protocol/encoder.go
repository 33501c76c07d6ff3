package protocol

import (
	"fmt"

	"kettlebridge/internal/device"
)

// Control frames are the command header followed by a 4-byte body. The power
// and init sequences are fixed constants captured from the vendor app; only
// set-temperature is computed.
var (
	commandHeader = []byte{0xEF, 0xDD, 0x0A}
	initFrame     = mustDecodeHex("efdd0b3031323334353637383930313233349a6d")
	powerOnFrame  = mustDecodeHex("efdd0a0000010100")
	powerOffFrame = mustDecodeHex("efdd0a0000000000")
)

// setTemperatureSequence is the body sequence number. The kettle accepts a
// constant zero, which keeps the checksum equal to the temperature byte.
const setTemperatureSequence = 0

// Temperature bounds the kettle accepts, inclusive, per scale.
const (
	minCelsius    = 40
	maxCelsius    = 100
	minFahrenheit = 104
	maxFahrenheit = 212
)

// EncodingError reports a set-temperature command that was rejected before
// any frame was built.
type EncodingError struct {
	Degrees int
	Scale   device.Scale
	Min     int
	Max     int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("temperature %d out of range %d-%d (%s)", e.Degrees, e.Min, e.Max, e.Scale)
}

// EncodeInit returns the fixed handshake frame written once after the
// transport connects, before the kettle starts notifying.
func EncodeInit() []byte {
	return append([]byte(nil), initFrame...)
}

func EncodePowerOn() []byte {
	return append([]byte(nil), powerOnFrame...)
}

func EncodePowerOff() []byte {
	return append([]byte(nil), powerOffFrame...)
}

// EncodeSetTemperature builds a set-temperature control frame. The value is
// validated against the bounds for the given scale; out-of-range values fail
// with an *EncodingError and produce no frame. An unknown scale is bounded as
// Celsius, matching the interpreter's permissive scale default.
func EncodeSetTemperature(degrees int, scale device.Scale) ([]byte, error) {
	minDegrees, maxDegrees := TemperatureBounds(scale)
	if degrees < minDegrees || degrees > maxDegrees {
		return nil, &EncodingError{Degrees: degrees, Scale: scale, Min: minDegrees, Max: maxDegrees}
	}

	body := [PayloadLength]byte{
		setTemperatureSequence,
		byte(degrees),
		byte((setTemperatureSequence + degrees) % 256),
		0x01,
	}

	frame := make([]byte, 0, len(commandHeader)+PayloadLength)
	frame = append(frame, commandHeader...)
	frame = append(frame, body[:]...)

	return frame, nil
}

// TemperatureBounds returns the inclusive range of set-temperature values the
// kettle accepts in the given scale.
func TemperatureBounds(scale device.Scale) (int, int) {
	if scale == device.ScaleFahrenheit {
		return minFahrenheit, maxFahrenheit
	}

	return minCelsius, maxCelsius
}
