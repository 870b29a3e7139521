// Package thermal controls Watlow F4 chamber controllers over Modbus RTU.
// The controller exposes temperature as holding registers in tenths of a
// degree Celsius, two's complement for sub-zero values.
package thermal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goburrow/modbus"
)

const (
	regCurrentTemp uint16 = 100
	regSetpoint    uint16 = 300
)

var ErrShortRead = errors.New("modbus read returned a short register block")

// Client is the subset of the Modbus API the chamber needs. The concrete
// RTU client from goburrow/modbus satisfies it.
type Client interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Config locates the controller on its RS-485 bus. The F4 ships at
// 9600 8N2, unit 1.
type Config struct {
	Port     string
	BaudRate int
	SlaveID  uint8
	Timeout  time.Duration
}

func DefaultConfig(port string) Config {
	return Config{
		Port:     port,
		BaudRate: 9600,
		SlaveID:  1,
		Timeout:  2 * time.Second,
	}
}

type Chamber struct {
	logger  *slog.Logger
	client  Client
	handler *modbus.RTUClientHandler
}

// Open connects to the controller on its serial bus.
func Open(logger *slog.Logger, cfg Config) (*Chamber, error) {
	handler := modbus.NewRTUClientHandler(cfg.Port)
	handler.BaudRate = cfg.BaudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 2
	handler.SlaveId = cfg.SlaveID
	handler.Timeout = cfg.Timeout

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Port, err)
	}

	return &Chamber{
		logger:  logger.With("component", "thermal"),
		client:  modbus.NewClient(handler),
		handler: handler,
	}, nil
}

// NewWithClient wraps an already connected Modbus client.
func NewWithClient(logger *slog.Logger, client Client) *Chamber {
	return &Chamber{
		logger: logger.With("component", "thermal"),
		client: client,
	}
}

func (c *Chamber) Close() error {
	if c.handler == nil {
		return nil
	}

	return c.handler.Close()
}

// Temperature reads the chamber air temperature in degrees Celsius.
func (c *Chamber) Temperature() (float64, error) {
	return c.readTempRegister(regCurrentTemp)
}

// Setpoint reads the active temperature setpoint in degrees Celsius.
func (c *Chamber) Setpoint() (float64, error) {
	return c.readTempRegister(regSetpoint)
}

// SetSetpoint programs the temperature setpoint in degrees Celsius.
// Resolution is a tenth of a degree; finer values are truncated.
func (c *Chamber) SetSetpoint(tempC float64) error {
	value := tempCToRegister(tempC)
	if _, err := c.client.WriteSingleRegister(regSetpoint, value); err != nil {
		return fmt.Errorf("write setpoint register: %w", err)
	}
	c.logger.Info("setpoint programmed", "temp_c", tempC)

	return nil
}

func (c *Chamber) readTempRegister(address uint16) (float64, error) {
	raw, err := c.client.ReadHoldingRegisters(address, 1)
	if err != nil {
		return 0, fmt.Errorf("read register %d: %w", address, err)
	}
	if len(raw) < 2 {
		return 0, fmt.Errorf("%w: register %d gave %d bytes", ErrShortRead, address, len(raw))
	}

	return registerToTempC(uint16(raw[0])<<8 | uint16(raw[1])), nil
}

// tempCToRegister encodes degrees Celsius as tenths in a two's complement
// 16-bit register.
func tempCToRegister(tempC float64) uint16 {
	return uint16(int(tempC*10) & 0xFFFF)
}

// registerToTempC decodes a two's complement tenths register.
func registerToTempC(value uint16) float64 {
	signed := int16(value)

	return float64(signed) / 10
}
