// Package protocol implements the framed binary protocol the Fellow Stagg
// EKG+ kettle speaks over its BLE serial characteristic: reassembling
// notification chunks into typed messages, interpreting message payloads as
// state updates, and encoding checksummed control frames.
package protocol

import (
	"encoding/hex"
	"fmt"
)

// Every frame the kettle sends or accepts starts with these two magic bytes.
var headerMagic = [2]byte{0xEF, 0xDD}

const (
	// headerLength is the size of a header frame: two magic bytes plus the
	// message type byte announcing the payload that follows.
	headerLength = 3
	// PayloadLength is the fixed size of a payload frame. Message types that
	// carry fewer meaningful bytes pad the remainder.
	PayloadLength = 4
)

// MessageType tags a payload frame with the state field it describes.
type MessageType byte

const (
	MessageTypePower        MessageType = 0
	MessageTypeHold         MessageType = 1
	MessageTypeTargetTemp   MessageType = 2
	MessageTypeCurrentTemp  MessageType = 3
	MessageTypeCountdown    MessageType = 4
	MessageTypeUnknown5     MessageType = 5
	MessageTypeHolding      MessageType = 6
	MessageTypeUnknown7     MessageType = 7
	MessageTypeKettleLifted MessageType = 8
)

func (t MessageType) String() string {
	switch t {
	case MessageTypePower:
		return "power"
	case MessageTypeHold:
		return "hold"
	case MessageTypeTargetTemp:
		return "target_temp"
	case MessageTypeCurrentTemp:
		return "current_temp"
	case MessageTypeCountdown:
		return "countdown"
	case MessageTypeHolding:
		return "holding"
	case MessageTypeKettleLifted:
		return "kettle_lifted"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// Message is one reassembled notification: a payload frame paired with the
// message type its preceding header announced.
type Message struct {
	Type    MessageType
	Payload [PayloadLength]byte
}

func mustDecodeHex(raw string) []byte {
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		panic(fmt.Sprintf("invalid wire constant %q: %v", raw, err))
	}

	return decoded
}
