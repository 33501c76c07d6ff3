package protocol

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPushDecodesHeaderThenPayload(t *testing.T) {
	dec := NewFrameDecoder(testLogger())

	if _, ok := dec.Push([]byte{0xEF, 0xDD, 0x00}); ok {
		t.Fatalf("header alone must not complete a message")
	}

	msg, ok := dec.Push([]byte{0x01, 0x00, 0x00, 0x00})
	if !ok {
		t.Fatalf("expected payload to complete a message")
	}
	if msg.Type != MessageTypePower {
		t.Fatalf("unexpected message type: %s", msg.Type)
	}
	if msg.Payload != [4]byte{0x01, 0x00, 0x00, 0x00} {
		t.Fatalf("unexpected payload: %x", msg.Payload)
	}
}

func TestPushDiscardsNoiseWhileAwaitingHeader(t *testing.T) {
	dec := NewFrameDecoder(testLogger())

	noise := [][]byte{
		{0x12, 0x34, 0x56},                   // right length, wrong magic
		{0xEF, 0xDD},                         // magic, wrong length
		{0xEF, 0xDD, 0x02, 0x00},             // header with trailing byte
		{0x01, 0x00, 0x00, 0x00},             // bare payload, nothing pending
		make([]byte, 20),                     // long garbage
		{},                                   // empty chunk
	}
	for _, chunk := range noise {
		if _, ok := dec.Push(chunk); ok {
			t.Fatalf("noise chunk %x must not complete a message", chunk)
		}
	}

	// A well-formed pair still decodes after arbitrary garbage.
	dec.Push([]byte{0xEF, 0xDD, 0x03})
	msg, ok := dec.Push([]byte{0x28, 0x00, 0x00, 0x00})
	if !ok {
		t.Fatalf("expected decode to recover after noise")
	}
	if msg.Type != MessageTypeCurrentTemp {
		t.Fatalf("unexpected message type: %s", msg.Type)
	}
}

func TestPushResyncsAfterShortPayload(t *testing.T) {
	dec := NewFrameDecoder(testLogger())

	dec.Push([]byte{0xEF, 0xDD, 0x00})
	// The kettle's setup exchange answers with a two-byte chunk; any payload
	// of the wrong length drops the pending type.
	if _, ok := dec.Push([]byte{0x01, 0x00}); ok {
		t.Fatalf("short chunk must not complete a message")
	}

	// The machine is back in the header state: a 4-byte chunk is now noise.
	if _, ok := dec.Push([]byte{0x01, 0x00, 0x00, 0x00}); ok {
		t.Fatalf("payload without a pending header must be discarded")
	}

	dec.Push([]byte{0xEF, 0xDD, 0x00})
	if _, ok := dec.Push([]byte{0x01, 0x00, 0x00, 0x00}); !ok {
		t.Fatalf("expected decode to recover after resync")
	}
}

func TestPushReexaminesHeaderArrivingInPayloadState(t *testing.T) {
	dec := NewFrameDecoder(testLogger())

	dec.Push([]byte{0xEF, 0xDD, 0x02})
	// A second header while a payload is pending replaces the pending type
	// instead of being swallowed by the resync.
	if _, ok := dec.Push([]byte{0xEF, 0xDD, 0x03}); ok {
		t.Fatalf("replacement header must not complete a message")
	}

	msg, ok := dec.Push([]byte{0x20, 0x01, 0x00, 0x00})
	if !ok {
		t.Fatalf("expected payload after replacement header to decode")
	}
	if msg.Type != MessageTypeCurrentTemp {
		t.Fatalf("payload must belong to the latest header, got %s", msg.Type)
	}
}

func TestPushTreatsAnyFourByteChunkAsPendingPayload(t *testing.T) {
	dec := NewFrameDecoder(testLogger())

	dec.Push([]byte{0xEF, 0xDD, 0x00})
	// Payload bytes are opaque in the payload state, even when they start
	// with the header magic.
	msg, ok := dec.Push([]byte{0xEF, 0xDD, 0x01, 0x00})
	if !ok {
		t.Fatalf("expected 4-byte chunk to be consumed as payload")
	}
	if msg.Type != MessageTypePower {
		t.Fatalf("unexpected message type: %s", msg.Type)
	}
	if msg.Payload != [4]byte{0xEF, 0xDD, 0x01, 0x00} {
		t.Fatalf("unexpected payload: %x", msg.Payload)
	}
}

func TestPushNeverHoldsMoreThanOnePendingType(t *testing.T) {
	dec := NewFrameDecoder(testLogger())

	// Two headers, then one payload: exactly one message may come out, and it
	// must carry the latest announced type.
	dec.Push([]byte{0xEF, 0xDD, 0x00})
	dec.Push([]byte{0xEF, 0xDD, 0x02})

	first, ok := dec.Push([]byte{0x5F, 0x00, 0x00, 0x00})
	if !ok {
		t.Fatalf("expected payload to complete a message")
	}
	if first.Type != MessageTypeTargetTemp {
		t.Fatalf("unexpected message type: %s", first.Type)
	}

	// Nothing else is pending afterwards.
	if _, ok := dec.Push([]byte{0x5F, 0x00, 0x00, 0x00}); ok {
		t.Fatalf("second payload must not complete a message")
	}
}
