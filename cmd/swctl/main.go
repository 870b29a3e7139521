// Command swctl drives RF switch matrices: identify the unit, read switch
// states, and route channels.
//
// Usage:
//
//	swctl [flags] info
//	swctl [flags] get <channel>
//	swctl [flags] set <channel> <state>
//	swctl [flags] raw <command> [args...]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/benchhw/benchlink/internal/app"
	"github.com/benchhw/benchlink/internal/config"
	"github.com/benchhw/benchlink/internal/device/rfswitch"
	"github.com/benchhw/benchlink/internal/logging"
	"github.com/benchhw/benchlink/internal/persistence"
	"github.com/benchhw/benchlink/internal/protocol"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run swctl", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path (default: user config dir)")
	host := flag.String("host", "", "tcp host override")
	record := flag.Bool("record", false, "record query results to the readings database")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand: info, get, set, or raw")
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
	if strings.TrimSpace(*host) != "" {
		cfg.Connection.Connector = config.ConnectorTCP
		cfg.Connection.Host = strings.TrimSpace(*host)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging.Level, ""); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("swctl")
	logger.Debug("starting swctl", "version", app.BuildVersion(), "build_date", app.BuildDateYMD())

	tr, err := app.BuildTransport(cfg.Connection)
	if err != nil {
		return err
	}

	opts := []rfswitch.Option{rfswitch.WithTimeout(app.Timeout(cfg.Connection))}
	if fam, ok, err := app.ParseDialectOverride(cfg.Connection.DialectOverride); err != nil {
		return err
	} else if ok {
		opts = append(opts, rfswitch.WithDialectOverride(fam))
	}

	drv := rfswitch.New(logger, tr, opts...)
	if err := drv.Open(ctx); err != nil {
		return fmt.Errorf("open switch: %w", err)
	}
	defer func() {
		if closeErr := drv.Close(); closeErr != nil {
			logger.Warn("close switch", "error", closeErr)
		}
	}()

	var recorder func(channel rune, state int)
	if *record {
		db, err := persistence.Open(ctx, paths.DBFile)
		if err != nil {
			return fmt.Errorf("open readings db: %w", err)
		}
		defer func() { _ = db.Close() }()
		repo := persistence.NewReadingRepo(db)
		recorder = func(channel rune, state int) {
			rd := persistence.Reading{
				Source: drv.Model(),
				Name:   "switch_" + string(channel),
				Value:  float64(state),
			}
			if err := repo.Insert(ctx, rd); err != nil {
				logger.Warn("record reading", "error", err)
			}
		}
	}

	return dispatch(ctx, drv, args, recorder)
}

func dispatch(ctx context.Context, drv *rfswitch.Driver, args []string, record func(rune, int)) error {
	switch args[0] {
	case "info":
		return printInfo(drv)
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <channel>")
		}
		ch, err := parseChannel(args[1])
		if err != nil {
			return err
		}
		state, err := drv.Get(ctx, protocol.ChannelLetter(ch))
		if err != nil {
			return err
		}
		if record != nil {
			record(ch, state)
		}
		fmt.Printf("channel %c state %d\n", ch, state)

		return nil
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: set <channel> <state>")
		}
		ch, err := parseChannel(args[1])
		if err != nil {
			return err
		}
		state, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("bad state %q: %w", args[2], err)
		}

		return drv.Set(ctx, protocol.ChannelLetter(ch), state)
	case "raw":
		if len(args) < 2 {
			return fmt.Errorf("usage: raw <command> [args...]")
		}
		intArgs := make([]int, 0, len(args)-2)
		for _, raw := range args[2:] {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("bad argument %q: %w", raw, err)
			}
			intArgs = append(intArgs, v)
		}
		ok, err := drv.Command(ctx, args[1], intArgs...)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("device rejected %q", args[1])
		}

		return nil
	}

	return fmt.Errorf("unknown subcommand: %s", args[0])
}

func printInfo(drv *rfswitch.Driver) error {
	caps := drv.Capabilities()
	fmt.Printf("model:  %s\n", caps.Model)
	fmt.Printf("serial: %s\n", caps.Serial)
	fmt.Printf("family: %s\n", caps.Family)
	if sw := caps.Switch; sw != nil {
		fmt.Printf("switches: %d, poles: %c, states: %d, revision: %s\n",
			sw.Switches, sw.Poles, sw.States, sw.Revision)
	}

	return nil
}

func parseChannel(raw string) (rune, error) {
	if len(raw) != 1 || raw[0] < 'A' || raw[0] > 'Z' {
		return 0, fmt.Errorf("channel must be a letter A-Z, got %q", raw)
	}

	return rune(raw[0]), nil
}
