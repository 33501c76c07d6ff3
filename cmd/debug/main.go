package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kettlebridge/internal/app"
	"kettlebridge/internal/bus"
	"kettlebridge/internal/config"
	"kettlebridge/internal/connectors"
	"kettlebridge/internal/device"
	"kettlebridge/internal/journal"
	"kettlebridge/internal/kettle"
	"kettlebridge/internal/logging"
)

const maxHexPreviewLen = 64

func main() {
	if err := run(); err != nil {
		slog.Error("run debug tool", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path (default: user config dir)")
	address := flag.String("address", "", "device target override: bluetooth address, gateway host, or serial port")
	listenFor := flag.Duration("listen-for", 0, "listen duration, e.g. 30s")
	journalTail := flag.Int("journal-tail", 0, "print the newest N journal rows and exit")
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
	applyAddressOverride(&cfg, *address)

	logMgr := logging.NewManager()
	cfg.Logging.LogToFile = false
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("cli")
	logger.Info("starting kettlebridge debug", "version", app.BuildVersion(), "build_date", app.BuildDateYMD())

	if *journalTail > 0 {
		return tailJournal(ctx, logger, paths.JournalFile, *journalTail)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	tr, err := app.NewTransportForConnection(cfg.Connection)
	if err != nil {
		return fmt.Errorf("initialize transport: %w", err)
	}

	state := device.NewState()
	svc := kettle.NewService(logMgr.Logger("kettle"), b, tr, state)

	watch(ctx, b, logger)
	svc.Start(ctx)

	status := app.ConnectionStatusFromConfig(cfg.Connection)
	logger.Info("watching", "transport", status.TransportName, "target", status.Target)

	if *listenFor > 0 {
		logger.Info("listen mode", "duration", *listenFor)
		select {
		case <-ctx.Done():
		case <-time.After(*listenFor):
		}
		logSnapshot(logger, state)

		return nil
	}

	logger.Info("listening until interrupt")
	<-ctx.Done()
	logSnapshot(logger, state)

	return nil
}

func applyAddressOverride(cfg *config.AppConfig, address string) {
	address = strings.TrimSpace(address)
	if address == "" {
		return
	}
	switch cfg.Connection.Connector {
	case config.ConnectorTCP:
		cfg.Connection.Host = address
	case config.ConnectorSerial:
		cfg.Connection.SerialPort = address
	default:
		cfg.Connection.BluetoothAddress = address
	}
}

func watch(ctx context.Context, b bus.MessageBus, logger *slog.Logger) {
	connSub := b.Subscribe(connectors.TopicConnStatus)
	changeSub := b.Subscribe(connectors.TopicStateChange)
	commandSub := b.Subscribe(connectors.TopicCommandResult)
	rawInSub := b.Subscribe(connectors.TopicRawFrameIn)
	rawOutSub := b.Subscribe(connectors.TopicRawFrameOut)

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.Unsubscribe(connSub, connectors.TopicConnStatus)
				b.Unsubscribe(changeSub, connectors.TopicStateChange)
				b.Unsubscribe(commandSub, connectors.TopicCommandResult)
				b.Unsubscribe(rawInSub, connectors.TopicRawFrameIn)
				b.Unsubscribe(rawOutSub, connectors.TopicRawFrameOut)
				return
			case raw := <-connSub:
				if status, ok := raw.(connectors.ConnStatus); ok {
					logger.Info("conn", "state", status.State, "transport", status.TransportName, "target", status.Target, "error", status.Err)
				}
			case raw := <-changeSub:
				if change, ok := raw.(device.Change); ok {
					logger.Info("change", "field", change.Field, "old", change.Old, "new", change.New)
				}
			case raw := <-commandSub:
				if res, ok := raw.(connectors.CommandResult); ok {
					logger.Info("command", "command", res.Command, "error", res.Err)
				}
			case raw := <-rawOutSub:
				if frame, ok := raw.(connectors.RawFrame); ok {
					logger.Info("raw-out", "len", frame.Len, "hex", previewHex(frame.Hex))
				}
			case raw := <-rawInSub:
				if frame, ok := raw.(connectors.RawFrame); ok {
					logger.Info("raw-in", "len", frame.Len, "hex", previewHex(frame.Hex))
				}
			}
		}
	}()
}

func tailJournal(ctx context.Context, logger *slog.Logger, path string, limit int) error {
	db, err := journal.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("close journal", "error", closeErr)
		}
	}()

	entries, err := journal.NewRepo(db).Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if len(entries) == 0 {
		logger.Info("journal is empty")

		return nil
	}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		logger.Info("journal", "at", e.At.Format(time.RFC3339), "field", e.Field, "old", e.Old, "new", e.New)
	}

	return nil
}

func logSnapshot(logger *slog.Logger, state *device.State) {
	snapshot := state.Snapshot()
	logger.Info(
		"mirror snapshot",
		"power", snapshot.Power,
		"target_temp", snapshot.TargetTemp.String(),
		"target_scale", snapshot.TargetScale,
		"current_temp", snapshot.CurrentTemp.String(),
		"current_scale", snapshot.CurrentScale,
	)
}

func previewHex(hex string) string {
	hex = strings.TrimSpace(hex)
	if len(hex) <= maxHexPreviewLen {
		return hex
	}
	return hex[:maxHexPreviewLen] + "..."
}
