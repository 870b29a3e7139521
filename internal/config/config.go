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
	ConnectorTCP    ConnectorType = "tcp"
	ConnectorSerial ConnectorType = "serial"
	ConnectorHID    ConnectorType = "hid"

	DefaultSerialBaud = 115200
	DefaultTCPPort    = 23
	DefaultTimeoutMs  = 2000
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig contains connector-specific connection parameters.
type ConnectionConfig struct {
	Connector       ConnectorType `json:"connector"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	SerialPort      string        `json:"serial_port"`
	SerialBaud      int           `json:"serial_baud"`
	USBVendorID     uint16        `json:"usb_vendor_id"`
	USBProductID    uint16        `json:"usb_product_id"`
	DialectOverride string        `json:"dialect_override"`
	TimeoutMs       int           `json:"timeout_ms"`
}

// StorageConfig locates the local readings database.
type StorageConfig struct {
	DatabasePath string `json:"database_path"`
}

// InfluxConfig points at an optional InfluxDB sink for readings.
type InfluxConfig struct {
	URL      string `json:"url"`
	Database string `json:"database"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection ConnectionConfig `json:"connection"`
	Logging    LoggingConfig    `json:"logging"`
	Storage    StorageConfig    `json:"storage"`
	Influx     InfluxConfig     `json:"influx"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:  ConnectorTCP,
			Port:       DefaultTCPPort,
			SerialBaud: DefaultSerialBaud,
			TimeoutMs:  DefaultTimeoutMs,
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
	// #nosec G304 -- path comes from the user's own flags or config dir.
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
		c.Connection.Connector = ConnectorTCP
	}
	if c.Connection.Port <= 0 {
		c.Connection.Port = DefaultTCPPort
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}
	if c.Connection.TimeoutMs <= 0 {
		c.Connection.TimeoutMs = DefaultTimeoutMs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c AppConfig) Validate() error {
	switch c.Connection.Connector {
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
	case ConnectorHID:
		if c.Connection.USBVendorID == 0 {
			return errors.New("usb vendor id is required")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Connection.Connector)
	}

	if c.Influx.URL != "" && strings.TrimSpace(c.Influx.Database) == "" {
		return errors.New("influx database is required when influx url is set")
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
