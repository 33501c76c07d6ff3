package app

import (
	"fmt"

	"kettlebridge/internal/config"
	"kettlebridge/internal/transport"
)

func NewTransportForConnection(cfg config.ConnectionConfig) (transport.Transport, error) {
	switch cfg.Connector {
	case config.ConnectorBluetooth:
		return transport.NewBluetoothTransport(cfg.BluetoothAddress, cfg.BluetoothAdapter), nil
	case config.ConnectorTCP:
		return transport.NewTCPTransport(cfg.Host, DefaultTCPPort), nil
	case config.ConnectorSerial:
		return transport.NewSerialTransport(cfg.SerialPort, cfg.SerialBaud), nil
	default:
		return nil, fmt.Errorf("unknown connector: %q", cfg.Connector)
	}
}
