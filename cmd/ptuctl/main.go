// Command ptuctl points FLIR E-series pan-tilt units.
//
// Usage:
//
//	ptuctl [flags] info
//	ptuctl [flags] position
//	ptuctl [flags] move <pan-deg> <tilt-deg>
//	ptuctl [flags] move-native <pan> <tilt>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benchhw/benchlink/internal/app"
	"github.com/benchhw/benchlink/internal/device/ptu"
	"github.com/benchhw/benchlink/internal/logging"
	"github.com/benchhw/benchlink/internal/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run ptuctl", "error", err)
		os.Exit(1)
	}
}

func run() error {
	serialPort := flag.String("serial-port", "", "serial port, e.g. /dev/ttyUSB0")
	baud := flag.Int("baud", 9600, "serial baud rate")
	timeout := flag.Duration("timeout", 2*time.Second, "per-transaction timeout")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand: info, position, move, or move-native")
	}
	if *serialPort == "" {
		return fmt.Errorf("missing -serial-port")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logMgr := logging.NewManager()
	if err := logMgr.Configure(*level, ""); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logMgr.Close() }()
	logger := logMgr.Logger("ptuctl")
	logger.Debug("starting ptuctl", "version", app.BuildVersion(), "build_date", app.BuildDateYMD())

	tr := transport.NewSerialTransport(*serialPort, *baud)
	drv := ptu.New(logger, tr, ptu.WithTimeout(*timeout))
	if err := drv.Open(ctx); err != nil {
		return fmt.Errorf("open ptu: %w", err)
	}
	defer func() {
		if closeErr := drv.Close(); closeErr != nil {
			logger.Warn("close ptu", "error", closeErr)
		}
	}()

	switch args[0] {
	case "info":
		axes := drv.Axes()
		fmt.Printf("model:   %s\n", drv.Model())
		fmt.Printf("serial:  %s\n", drv.Serial())
		fmt.Printf("version: %s\n", drv.Version())
		fmt.Printf("pan:  [%d, %d] steps, %.6f deg/step\n",
			axes.PanMin, axes.PanMax, axes.PanResolution*180/math.Pi)
		fmt.Printf("tilt: [%d, %d] steps, %.6f deg/step\n",
			axes.TiltMin, axes.TiltMax, axes.TiltResolution*180/math.Pi)

		return nil
	case "position":
		pan, tilt, err := drv.PositionNative(ctx)
		if err != nil {
			return err
		}
		axes := drv.Axes()
		fmt.Printf("pan %d steps (%.3f deg), tilt %d steps (%.3f deg)\n",
			pan, float64(pan)*axes.PanResolution*180/math.Pi,
			tilt, float64(tilt)*axes.TiltResolution*180/math.Pi)

		return nil
	case "move":
		pan, tilt, err := parsePair(args, "move <pan-deg> <tilt-deg>")
		if err != nil {
			return err
		}

		return drv.SetPositionDegrees(ctx, pan, tilt)
	case "move-native":
		pan, tilt, err := parsePair(args, "move-native <pan> <tilt>")
		if err != nil {
			return err
		}

		return drv.SetPositionNative(ctx, int(pan), int(tilt))
	}

	return fmt.Errorf("unknown subcommand: %s", args[0])
}

func parsePair(args []string, usage string) (float64, float64, error) {
	if len(args) != 3 {
		return 0, 0, fmt.Errorf("usage: %s", usage)
	}
	a, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad value %q: %w", args[1], err)
	}
	b, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad value %q: %w", args[2], err)
	}

	return a, b, nil
}
