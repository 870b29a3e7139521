package app

import (
	"fmt"
	"time"

	"github.com/benchhw/benchlink/internal/capability"
	"github.com/benchhw/benchlink/internal/config"
	"github.com/benchhw/benchlink/internal/transport"
)

// BuildTransport constructs the transport the connection config names.
func BuildTransport(cfg config.ConnectionConfig) (transport.Transport, error) {
	switch cfg.Connector {
	case config.ConnectorTCP:
		return transport.NewTCPTransport(cfg.Host, cfg.Port), nil
	case config.ConnectorSerial:
		return transport.NewSerialTransport(cfg.SerialPort, cfg.SerialBaud), nil
	case config.ConnectorHID:
		return transport.NewHIDTransport(cfg.USBVendorID, cfg.USBProductID), nil
	}

	return nil, fmt.Errorf("unknown connector: %s", cfg.Connector)
}

// ParseDialectOverride maps the config's dialect override string to a
// device family. ok is false when no override is configured.
func ParseDialectOverride(raw string) (capability.Family, bool, error) {
	switch fam := capability.Family(raw); fam {
	case "":
		return "", false, nil
	case capability.FamilyLegacy, capability.FamilyRC, capability.FamilyUSB:
		return fam, true, nil
	}

	return "", false, fmt.Errorf("unknown dialect override: %q", raw)
}

// Timeout converts the config's millisecond timeout field.
func Timeout(cfg config.ConnectionConfig) time.Duration {
	return time.Duration(cfg.TimeoutMs) * time.Millisecond
}
