package protocol

import (
	"log/slog"

	"kettlebridge/internal/device"
)

// minMeasurableTemp is the lowest current-temperature reading the kettle can
// produce while actually measuring. Below it the kettle is idling (it reports
// 32 when off), so the reading is published as unavailable.
const minMeasurableTemp = 40

// Interpreter maps reassembled messages to sparse state updates. It mutates
// nothing and publishes nothing; messages that decode to no update (unknown
// opcodes, unknown field values) are logged and reported with ok=false.
type Interpreter struct {
	logger *slog.Logger
}

func NewInterpreter(logger *slog.Logger) *Interpreter {
	return &Interpreter{logger: logger}
}

func (i *Interpreter) Interpret(msg Message) (device.Update, bool) {
	switch msg.Type {
	case MessageTypePower:
		return i.interpretPower(msg)
	case MessageTypeTargetTemp:
		target := device.KnownTemp(int(msg.Payload[0]))
		scale := decodeScale(msg.Payload[1])

		return device.Update{TargetTemp: &target, TargetScale: &scale}, true
	case MessageTypeCurrentTemp:
		temp := decodeCurrentTemp(msg.Payload[0])
		scale := decodeScale(msg.Payload[1])

		return device.Update{CurrentTemp: &temp, CurrentScale: &scale}, true
	default:
		// Hold, countdown, holding, kettle-lifted and the unidentified
		// opcodes are observed on the wire but not mirrored: discard.
		i.logger.Debug("ignoring message type", "type", msg.Type.String())

		return device.Update{}, false
	}
}

func (i *Interpreter) interpretPower(msg Message) (device.Update, bool) {
	var power device.Power
	switch msg.Payload[0] {
	case 0:
		power = device.PowerOff
	case 1:
		power = device.PowerOn
	default:
		i.logger.Warn("unknown power value, leaving state unchanged", "value", msg.Payload[0])

		return device.Update{}, false
	}

	return device.Update{Power: &power}, true
}

func decodeCurrentTemp(raw byte) device.Temp {
	if int(raw) < minMeasurableTemp {
		return device.UnavailableTemp()
	}

	return device.KnownTemp(int(raw))
}

// decodeScale maps the wire scale byte to a unit. Only 1 means Fahrenheit;
// every other value is read as Celsius.
func decodeScale(b byte) device.Scale {
	if b == 1 {
		return device.ScaleFahrenheit
	}

	return device.ScaleCelsius
}
