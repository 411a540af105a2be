// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// hardenmqtt-troll is the adversarial mutator binary: it subscribes to
// every topic on the shared broker and republishes a perturbed copy of
// whatever it sees, scaled by a configurable trolliness factor.
//
// It has no durable identity of its own and uses no settings store,
// since the troll never pairs and never signs anything.
// Like the sensor and display binaries, it connects through mqtt/memory
// and needs a process that shares that broker to do anything useful;
// run hardenmqtt-demo to see it perturb live traffic.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/hardenmqtt/hardenmqtt/dispatch"
	"github.com/hardenmqtt/hardenmqtt/internal/config"
	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt/memory"
	"github.com/hardenmqtt/hardenmqtt/troll"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var trolliness int
	var seed int64

	flagSet := pflag.NewFlagSet("hardenmqtt-troll", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the bootstrap config file (overrides HARDENMQTT_CONFIG)")
	flagSet.IntVar(&trolliness, "trolliness", -1, "override the configured trolliness factor (higher means less frequent mutation)")
	flagSet.Int64Var(&seed, "seed", 0, "seed for the mutation RNG; 0 derives a seed from the current time")
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
	if trolliness >= 0 {
		cfg.Trolliness = trolliness
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logHandler := dispatch.NewEventLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}), slog.LevelInfo)
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := memory.NewBroker()
	client := memory.NewClient(broker)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer client.Disconnect()
	logHandler.BindClient(client)

	logger.Info("troll starting", "trolliness", cfg.Trolliness, "seed", seed)

	realClock := clock.Real()
	runner := &troll.Runner{
		Client:     client,
		Clock:      realClock,
		Trolliness: cfg.Trolliness,
		Rng:        rand.New(rand.NewSource(seed)),
		Cache:      troll.NewDigestCache(troll.DefaultTTL, realClock),
		Logger:     logger,
	}

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("running troll: %w", err)
	}
	logger.Info("shutting down")
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
