package app

import (
	"strings"
	"time"

	"kettlebridge/internal/config"
	"kettlebridge/internal/connectors"
)

func TransportNameFromConnector(connector config.ConnectorType) string {
	switch connector {
	case config.ConnectorBluetooth:
		return "bluetooth"
	case config.ConnectorTCP:
		return "tcp"
	case config.ConnectorSerial:
		return "serial"
	default:
		if value := strings.TrimSpace(string(connector)); value != "" {
			return value
		}
		return "unknown"
	}
}

func ConnectionTarget(cfg config.ConnectionConfig) string {
	switch cfg.Connector {
	case config.ConnectorBluetooth:
		return strings.TrimSpace(cfg.BluetoothAddress)
	case config.ConnectorTCP:
		return strings.TrimSpace(cfg.Host)
	case config.ConnectorSerial:
		return strings.TrimSpace(cfg.SerialPort)
	default:
		return ""
	}
}

// ConnectionStatusFromConfig builds the status shown before the service has
// published its first real one.
func ConnectionStatusFromConfig(cfg config.ConnectionConfig) connectors.ConnStatus {
	status := connectors.ConnStatus{
		State:         connectors.ConnectionStateDisconnected,
		TransportName: TransportNameFromConnector(cfg.Connector),
		Target:        ConnectionTarget(cfg),
		Timestamp:     time.Now(),
	}
	if status.Target != "" {
		status.State = connectors.ConnectionStateConnecting
	}

	return status
}
