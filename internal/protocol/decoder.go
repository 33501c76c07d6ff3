package protocol

import "log/slog"

type decoderState int

const (
	stateAwaitingHeader decoderState = iota + 1
	stateAwaitingPayload
)

// FrameDecoder reassembles the kettle's notification chunks into messages.
// The kettle announces every payload with a separate header frame, so the
// decoder runs a two-state machine: it waits for a header naming a message
// type, then treats the next chunk as that type's payload. At most one
// message type is ever pending.
//
// The decoder performs no I/O and never fails: chunks that fit neither state
// are dropped, and a malformed chunk while a payload is pending resets the
// machine to the header state so a single corrupted frame can never wedge the
// stream.
type FrameDecoder struct {
	logger  *slog.Logger
	state   decoderState
	pending MessageType
}

func NewFrameDecoder(logger *slog.Logger) *FrameDecoder {
	return &FrameDecoder{
		logger: logger,
		state:  stateAwaitingHeader,
	}
}

// Push feeds one notification chunk to the state machine and returns the
// completed message, if this chunk completed one.
func (d *FrameDecoder) Push(chunk []byte) (Message, bool) {
	if d.state == stateAwaitingPayload {
		if len(chunk) == PayloadLength {
			msg := Message{Type: d.pending}
			copy(msg.Payload[:], chunk)
			d.state = stateAwaitingHeader

			return msg, true
		}

		// Wrong payload shape: drop the pending type and fall through to
		// header matching so a well-formed header in this chunk is not eaten
		// by the resync.
		d.logger.Debug("payload shape mismatch, resyncing to header",
			"pending_type", d.pending.String(), "chunk_len", len(chunk))
		d.state = stateAwaitingHeader
	}

	if isHeader(chunk) {
		d.pending = MessageType(chunk[2])
		d.state = stateAwaitingPayload

		return Message{}, false
	}

	d.logger.Debug("discarding noise chunk", "chunk_len", len(chunk))

	return Message{}, false
}

func isHeader(chunk []byte) bool {
	return len(chunk) == headerLength && chunk[0] == headerMagic[0] && chunk[1] == headerMagic[1]
}
