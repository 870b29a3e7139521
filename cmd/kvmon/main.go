// Command kvmon tails free-running key:value telemetry from a serial
// instrument, applies a field mapping, and fans readings out to the local
// readings database and an optional InfluxDB endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benchhw/benchlink/internal/app"
	"github.com/benchhw/benchlink/internal/config"
	"github.com/benchhw/benchlink/internal/device/serialkv"
	"github.com/benchhw/benchlink/internal/influx"
	"github.com/benchhw/benchlink/internal/logging"
	"github.com/benchhw/benchlink/internal/persistence"
	"github.com/benchhw/benchlink/internal/protocol"
	"github.com/benchhw/benchlink/internal/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run kvmon", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path (default: user config dir)")
	mappingPath := flag.String("mapping", "", "telemetry mapping yaml (required)")
	serialPort := flag.String("serial-port", "", "serial port override")
	flag.Parse()

	if *mappingPath == "" {
		return fmt.Errorf("missing -mapping")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	if *configPath == "" {
		*configPath = paths.ConfigFile
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *serialPort != "" {
		cfg.Connection.Connector = config.ConnectorSerial
		cfg.Connection.SerialPort = *serialPort
	}
	if cfg.Connection.Connector != config.ConnectorSerial {
		return fmt.Errorf("kvmon requires a serial connection")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	mapping, err := config.LoadMapping(*mappingPath)
	if err != nil {
		return err
	}

	logMgr := logging.NewManager()
	logPath := ""
	if cfg.Logging.LogToFile {
		logPath = paths.LogFile
	}
	if err := logMgr.Configure(cfg.Logging.Level, logPath); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logMgr.Close() }()
	logger := logMgr.Logger("kvmon")
	logger.Info("starting kvmon", "version", app.BuildVersionWithDate(), "measurement", mapping.Measurement)

	dbPath := cfg.Storage.DatabasePath
	if dbPath == "" {
		dbPath = paths.DBFile
	}
	db, err := persistence.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open readings db: %w", err)
	}
	defer func() { _ = db.Close() }()

	recorder := persistence.NewRecorder(logger, persistence.NewReadingRepo(db), 256)
	recorder.Start(ctx)

	var sender *influx.Sender
	if cfg.Influx.URL != "" {
		sender = influx.NewSender(logger, cfg.Influx.URL, cfg.Influx.Database)
	}

	tr := transport.NewSerialTransport(cfg.Connection.SerialPort, cfg.Connection.SerialBaud)
	rdr := serialkv.New(logger, tr)
	if err := rdr.Open(ctx); err != nil {
		return fmt.Errorf("open serial stream: %w", err)
	}
	defer func() { _ = rdr.Close() }()

	return monitor(ctx, logger, rdr, mapping, recorder, sender)
}

func monitor(ctx context.Context, logger *slog.Logger, rdr *serialkv.Reader, mapping config.Mapping, recorder *persistence.Recorder, sender *influx.Sender) error {
	for {
		rec, err := rdr.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, transport.ErrTimeout) || errors.Is(err, serialkv.ErrMalformed) {
				logger.Warn("record skipped", "error", err)

				continue
			}

			return fmt.Errorf("read telemetry: %w", err)
		}

		now := time.Now().UTC()
		fields := make(map[string]any, len(rec))
		for raw, value := range rec {
			name, keep := mapping.FieldName(raw)
			if !keep {
				continue
			}
			fields[name] = value

			if value.Kind == protocol.FieldInt {
				recorder.Record(persistence.Reading{
					Source: mapping.Measurement, Name: name, Value: float64(value.Int), RecordedAt: now,
				})
			} else if value.Kind == protocol.FieldFloat {
				recorder.Record(persistence.Reading{
					Source: mapping.Measurement, Name: name, Value: value.Float, RecordedAt: now,
				})
			}
		}

		if sender != nil && len(fields) > 0 {
			point := influx.Point{
				Measurement: mapping.Measurement,
				Tags:        mapping.Tags,
				Fields:      fields,
				Time:        now,
			}
			if err := sender.Write(ctx, point); err != nil {
				logger.Warn("influx write failed", "error", err)
			}
		}
	}
}
