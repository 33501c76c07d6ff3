package connectors

import "time"

// ConnectionState describes where the transport link currently is in its
// lifecycle.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
)

// ConnStatus is a bus event snapshot of the current link status.
type ConnStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Target        string
	Timestamp     time.Time
}

// CommandResult reports the outcome of a control command write.
type CommandResult struct {
	Command string
	Err     string
	At      time.Time
}

// RawFrame carries frame diagnostics for debug tooling.
type RawFrame struct {
	Hex string
	Len int
}
