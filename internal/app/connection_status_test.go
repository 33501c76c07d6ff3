package app

import (
	"testing"

	"kettlebridge/internal/config"
	"kettlebridge/internal/connectors"
)

func TestTransportNameFromConnector(t *testing.T) {
	tests := []struct {
		name      string
		connector config.ConnectorType
		want      string
	}{
		{name: "bluetooth", connector: config.ConnectorBluetooth, want: "bluetooth"},
		{name: "tcp", connector: config.ConnectorTCP, want: "tcp"},
		{name: "serial", connector: config.ConnectorSerial, want: "serial"},
		{name: "unknown", connector: "custom", want: "custom"},
		{name: "empty", connector: "", want: "unknown"},
	}

	for _, tc := range tests {
		if got := TransportNameFromConnector(tc.connector); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestConnectionTarget(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ConnectionConfig
		want string
	}{
		{name: "bluetooth", cfg: config.ConnectionConfig{Connector: config.ConnectorBluetooth, BluetoothAddress: "AA:BB:CC:DD:EE:FF"}, want: "AA:BB:CC:DD:EE:FF"},
		{name: "tcp", cfg: config.ConnectionConfig{Connector: config.ConnectorTCP, Host: "192.168.1.10"}, want: "192.168.1.10"},
		{name: "serial", cfg: config.ConnectionConfig{Connector: config.ConnectorSerial, SerialPort: "/dev/ttyUSB0", SerialBaud: 115200}, want: "/dev/ttyUSB0"},
		{name: "unknown", cfg: config.ConnectionConfig{Connector: "custom"}, want: ""},
	}

	for _, tc := range tests {
		if got := ConnectionTarget(tc.cfg); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestConnectionStatusFromConfig(t *testing.T) {
	status := ConnectionStatusFromConfig(config.ConnectionConfig{
		Connector:        config.ConnectorBluetooth,
		BluetoothAddress: "AA:BB:CC:DD:EE:FF",
	})

	if status.State != connectors.ConnectionStateConnecting {
		t.Fatalf("expected connecting state, got %q", status.State)
	}
	if status.TransportName != "bluetooth" {
		t.Fatalf("expected bluetooth transport name, got %q", status.TransportName)
	}
	if status.Target != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("expected bluetooth target, got %q", status.Target)
	}
	if status.Timestamp.IsZero() {
		t.Fatalf("expected status timestamp to be set")
	}

	unconfigured := ConnectionStatusFromConfig(config.ConnectionConfig{Connector: config.ConnectorTCP})
	if unconfigured.State != connectors.ConnectionStateDisconnected {
		t.Fatalf("expected disconnected state without a target, got %q", unconfigured.State)
	}
}
