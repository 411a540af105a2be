// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// hardenmqtt-pair is the standalone pairing CLI: it runs exactly one
// pairing session against an existing settings store and exits, so a
// sensor or display device's identity can be (re)paired without
// starting the full binary. It shares the settings file with whichever
// sensor or display binary owns that device's identity.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/hardenmqtt/hardenmqtt/identity"
	"github.com/hardenmqtt/hardenmqtt/internal/config"
	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt/memory"
	"github.com/hardenmqtt/hardenmqtt/pairing"
	"github.com/hardenmqtt/hardenmqtt/settings"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var master bool
	var repair bool

	flagSet := pflag.NewFlagSet("hardenmqtt-pair", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the bootstrap config file (overrides HARDENMQTT_CONFIG)")
	flagSet.BoolVar(&master, "master", false, "run as the master (selecting) role instead of the slave (accepting) role")
	flagSet.BoolVar(&repair, "repair", false, "clear any existing peer binding and pair again, even if already paired")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := settings.OpenFileStore(cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}

	if repair {
		if err := store.Delete(settings.KeyPairEd25519Public); err != nil {
			return fmt.Errorf("clearing existing peer binding: %w", err)
		}
		if err := store.Delete(settings.KeyPairID); err != nil {
			return fmt.Errorf("clearing existing peer binding: %w", err)
		}
	}

	local, err := identity.LoadOrCreate(store, cfg.DeviceType, func() string { return uuid.NewString() })
	if err != nil {
		return fmt.Errorf("loading device identity: %w", err)
	}
	defer local.Close()

	broker := memory.NewBroker()
	client := memory.NewClient(broker)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer client.Disconnect()

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating pairing nonce: %w", err)
	}

	role := pairing.RoleSlave
	var prompter pairing.Prompter
	if master {
		role = pairing.RoleMaster
		prompter = pairing.AutoSelectFirst{}
	}

	engine := &pairing.Engine{Client: client, Clock: clock.Real(), Prompter: prompter, Logger: logger}
	peer, err := pairing.RunAndPersist(ctx, store, engine, local, cfg.DeviceType, cfg.RemoteType, nonce, role)
	if err != nil {
		if err == pairing.ErrCancelled {
			logger.Info("pairing cancelled")
			return nil
		}
		return fmt.Errorf("pairing: %w", err)
	}

	fmt.Printf("paired with %s (%s)\n", peer.PeerDeviceID, cfg.RemoteType)
	return nil
}

func loadConfig(explicitPath string) (*config.Config, error) {
	if explicitPath != "" {
		return config.LoadFile(explicitPath)
	}
	return config.Load()
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
