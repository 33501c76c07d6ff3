package app

import (
	"testing"

	"kettlebridge/internal/config"
	"kettlebridge/internal/transport"
)

func TestNewTransportForConnection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ConnectionConfig
		want    string
		wantErr bool
	}{
		{
			name: "bluetooth",
			cfg: config.ConnectionConfig{
				Connector:        config.ConnectorBluetooth,
				BluetoothAddress: "AA:BB:CC:DD:EE:FF",
			},
			want: "bluetooth",
		},
		{
			name: "tcp",
			cfg: config.ConnectionConfig{
				Connector: config.ConnectorTCP,
				Host:      "127.0.0.1",
			},
			want: "tcp",
		},
		{
			name: "serial",
			cfg: config.ConnectionConfig{
				Connector:  config.ConnectorSerial,
				SerialPort: "/dev/ttyUSB0",
				SerialBaud: 115200,
			},
			want: "serial",
		},
		{
			name: "unknown connector",
			cfg: config.ConnectionConfig{
				Connector: config.ConnectorType("usb"),
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tr, err := NewTransportForConnection(tc.cfg)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got nil", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if tr.Name() != tc.want {
			t.Fatalf("%s: expected transport %q, got %q", tc.name, tc.want, tr.Name())
		}
	}
}

func TestTCPTransportResolvesDefaultPortTarget(t *testing.T) {
	tr, err := NewTransportForConnection(config.ConnectionConfig{
		Connector: config.ConnectorTCP,
		Host:      "gateway.local",
	})
	if err != nil {
		t.Fatalf("new tcp transport: %v", err)
	}

	resolver, ok := tr.(transport.StatusTargetResolver)
	if !ok {
		t.Fatalf("expected tcp transport to expose a status target")
	}
	if got := resolver.StatusTarget(); got != "gateway.local:8899" {
		t.Fatalf("expected default gateway port in target, got %q", got)
	}
}
