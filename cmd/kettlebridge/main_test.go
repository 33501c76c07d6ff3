package main

import (
	"testing"

	"kettlebridge/internal/config"
)

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.AppConfig
		address    string
		broker     string
		wantTarget string
		wantBroker string
	}{
		{
			name: "bluetooth address",
			cfg: config.AppConfig{
				Connection: config.ConnectionConfig{Connector: config.ConnectorBluetooth},
			},
			address:    "AA:BB:CC:DD:EE:FF",
			wantTarget: "AA:BB:CC:DD:EE:FF",
		},
		{
			name: "tcp host",
			cfg: config.AppConfig{
				Connection: config.ConnectionConfig{Connector: config.ConnectorTCP},
			},
			address:    "gateway.local",
			wantTarget: "gateway.local",
		},
		{
			name: "serial port",
			cfg: config.AppConfig{
				Connection: config.ConnectionConfig{Connector: config.ConnectorSerial},
			},
			address:    "/dev/ttyUSB0",
			wantTarget: "/dev/ttyUSB0",
		},
		{
			name: "broker normalized",
			cfg: config.AppConfig{
				Connection: config.ConnectionConfig{Connector: config.ConnectorBluetooth, BluetoothAddress: "AA:BB:CC:DD:EE:FF"},
			},
			broker:     "broker.local:1883",
			wantTarget: "AA:BB:CC:DD:EE:FF",
			wantBroker: "tcp://broker.local:1883",
		},
		{
			name: "broker with scheme kept",
			cfg: config.AppConfig{
				Connection: config.ConnectionConfig{Connector: config.ConnectorBluetooth, BluetoothAddress: "AA:BB:CC:DD:EE:FF"},
				MQTT:       config.MQTTConfig{Broker: "tcp://old.local:1883"},
			},
			broker:     "ssl://new.local:8883",
			wantTarget: "AA:BB:CC:DD:EE:FF",
			wantBroker: "ssl://new.local:8883",
		},
	}

	for _, tc := range tests {
		cfg := tc.cfg
		applyOverrides(&cfg, tc.address, tc.broker)

		var gotTarget string
		switch cfg.Connection.Connector {
		case config.ConnectorTCP:
			gotTarget = cfg.Connection.Host
		case config.ConnectorSerial:
			gotTarget = cfg.Connection.SerialPort
		default:
			gotTarget = cfg.Connection.BluetoothAddress
		}
		if gotTarget != tc.wantTarget {
			t.Fatalf("%s: expected target %q, got %q", tc.name, tc.wantTarget, gotTarget)
		}
		if tc.wantBroker != "" && cfg.MQTT.Broker != tc.wantBroker {
			t.Fatalf("%s: expected broker %q, got %q", tc.name, tc.wantBroker, cfg.MQTT.Broker)
		}
	}
}
