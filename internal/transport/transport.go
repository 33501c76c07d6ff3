package transport

import "context"

// Transport moves raw protocol bytes between the daemon and the kettle.
// ReadChunk returns one inbound unit exactly as the link delivered it: one
// BLE notification, or one read burst on stream connectors. The framing
// layer depends on those boundaries being preserved.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadChunk(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
}

type StatusTargetResolver interface {
	StatusTarget() string
}
