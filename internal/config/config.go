package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConnectorType identifies which transport backend should be used.
type ConnectorType string

const (
	ConnectorBluetooth ConnectorType = "bluetooth"
	ConnectorTCP       ConnectorType = "tcp"
	ConnectorSerial    ConnectorType = "serial"
	DefaultSerialBaud                = 115200
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig contains connector-specific connection parameters.
// Bluetooth talks to the kettle directly; tcp and serial go through a
// BLE gateway that relays the same frames.
type ConnectionConfig struct {
	Connector        ConnectorType `json:"connector"`
	BluetoothAddress string        `json:"bluetooth_address"`
	BluetoothAdapter string        `json:"bluetooth_adapter"`
	Host             string        `json:"host"`
	SerialPort       string        `json:"serial_port"`
	SerialBaud       int           `json:"serial_baud"`
}

// MQTTConfig holds broker connection parameters. The broker is required by
// the daemon but the debug tool runs without one.
type MQTTConfig struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// JournalConfig controls the sqlite change journal.
type JournalConfig struct {
	Enabled bool `json:"enabled"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection ConnectionConfig `json:"connection"`
	MQTT       MQTTConfig       `json:"mqtt"`
	Journal    JournalConfig    `json:"journal"`
	Logging    LoggingConfig    `json:"logging"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:        ConnectorBluetooth,
			BluetoothAddress: "",
			BluetoothAdapter: "",
			Host:             "",
			SerialPort:       "",
			SerialBaud:       DefaultSerialBaud,
		},
		MQTT: MQTTConfig{
			Broker:   "",
			ClientID: "kettlebridge",
			Username: "",
			Password: "",
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Connection.Connector == "" {
		c.Connection.Connector = ConnectorBluetooth
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "kettlebridge"
	}
	c.MQTT.Broker = normalizeBrokerURL(c.MQTT.Broker)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// normalizeBrokerURL prepends the tcp scheme the paho client expects when the
// config only names host and port.
func normalizeBrokerURL(broker string) string {
	broker = strings.TrimSpace(broker)
	if broker == "" {
		return ""
	}
	if strings.Contains(broker, "://") {
		return broker
	}

	return "tcp://" + broker
}

func (c AppConfig) Validate() error {
	switch c.Connection.Connector {
	case ConnectorBluetooth:
		if strings.TrimSpace(c.Connection.BluetoothAddress) == "" {
			return errors.New("bluetooth address is required")
		}
	case ConnectorTCP:
		if strings.TrimSpace(c.Connection.Host) == "" {
			return errors.New("tcp host is required")
		}
	case ConnectorSerial:
		if strings.TrimSpace(c.Connection.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Connection.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Connection.Connector)
	}

	return nil
}

func (c MQTTConfig) Validate() error {
	if strings.TrimSpace(c.Broker) == "" {
		return errors.New("mqtt broker is required")
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
