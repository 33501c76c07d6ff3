package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"kettlebridge/internal/app"
	"kettlebridge/internal/bus"
	"kettlebridge/internal/config"
	"kettlebridge/internal/device"
	"kettlebridge/internal/journal"
	"kettlebridge/internal/kettle"
	"kettlebridge/internal/logging"
	"kettlebridge/internal/mqtt"
	"kettlebridge/internal/platform"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run kettlebridge", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path (default: user config dir)")
	address := flag.String("address", "", "device target override: bluetooth address, gateway host, or serial port")
	broker := flag.String("broker", "", "mqtt broker url override, e.g. tcp://broker.local:1883")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	configFile := paths.ConfigFile
	if strings.TrimSpace(*configPath) != "" {
		configFile = strings.TrimSpace(*configPath)
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, *address, *broker)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("daemon")
	logger.Info("starting kettlebridge", "version", app.BuildVersion(), "build_date", app.BuildDateYMD())

	target := app.ConnectionTarget(cfg.Connection)
	lock, err := platform.AcquireInstanceLock(app.Name, target)
	switch {
	case errors.Is(err, platform.ErrInstanceAlreadyRunning):
		return fmt.Errorf("another instance already bridges %s", target)
	case errors.Is(err, platform.ErrInstanceLockUnsupported):
		logger.Warn("instance lock unsupported on this platform", "error", err)
	case err != nil:
		return fmt.Errorf("acquire instance lock: %w", err)
	default:
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				logger.Warn("release instance lock", "error", releaseErr)
			}
		}()
	}

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	if cfg.Journal.Enabled {
		db, err := journal.Open(ctx, paths.JournalFile)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				logger.Warn("close journal", "error", closeErr)
			}
		}()

		journalLogger := logMgr.Logger("journal")
		writer := journal.NewWriterQueue(journalLogger, 256)
		writer.Start(ctx)
		journal.StartSync(ctx, journalLogger, b, writer, journal.NewRepo(db))
	}

	tr, err := app.NewTransportForConnection(cfg.Connection)
	if err != nil {
		return fmt.Errorf("initialize transport: %w", err)
	}

	state := device.NewState()
	svc := kettle.NewService(logMgr.Logger("kettle"), b, tr, state)

	sink := mqtt.NewPahoSink(logMgr.Logger("mqtt"), cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password)
	bridge := mqtt.NewBridge(logMgr.Logger("bridge"), b, sink, svc, state)
	sink.SetOnConnect(bridge.OnBrokerConnect)

	svc.Start(ctx)
	bridge.Start(ctx)

	go func() {
		// The client retries until the broker appears, so the token only
		// errors on unusable options.
		if connectErr := sink.Connect(); connectErr != nil {
			logger.Error("mqtt connect", "error", connectErr)
		}
	}()

	status := app.ConnectionStatusFromConfig(cfg.Connection)
	logger.Info("bridging", "transport", status.TransportName, "target", status.Target, "broker", cfg.MQTT.Broker)

	<-ctx.Done()
	logger.Info("shutting down")

	bridge.PublishOffline()
	sink.Close()

	return nil
}

func applyOverrides(cfg *config.AppConfig, address, broker string) {
	address = strings.TrimSpace(address)
	if address != "" {
		switch cfg.Connection.Connector {
		case config.ConnectorTCP:
			cfg.Connection.Host = address
		case config.ConnectorSerial:
			cfg.Connection.SerialPort = address
		default:
			cfg.Connection.BluetoothAddress = address
		}
	}

	broker = strings.TrimSpace(broker)
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	cfg.FillMissingDefaults()
}
