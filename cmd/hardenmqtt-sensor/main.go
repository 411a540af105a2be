// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// hardenmqtt-sensor is the sensor half of the pedagogical demo: it
// pairs with a display device over the shared broker, then publishes a
// synthetic reading on a fixed interval through all five telemetry
// representations.
//
// It connects through mqtt/memory, an in-process stand-in -- it cannot
// reach a sensor or display running as a separate OS process. Run it
// alongside hardenmqtt-display and hardenmqtt-troll via the
// hardenmqtt-demo binary, which wires all three roles to one shared
// broker inside a single process, to see the protocol run end to end.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math"
	mathrand "math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/hardenmqtt/hardenmqtt/dispatch"
	"github.com/hardenmqtt/hardenmqtt/identity"
	"github.com/hardenmqtt/hardenmqtt/internal/config"
	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt/memory"
	"github.com/hardenmqtt/hardenmqtt/pairing"
	"github.com/hardenmqtt/hardenmqtt/sensor"
	"github.com/hardenmqtt/hardenmqtt/settings"
	"github.com/hardenmqtt/hardenmqtt/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var publishInterval time.Duration

	flagSet := pflag.NewFlagSet("hardenmqtt-sensor", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the bootstrap config file (overrides HARDENMQTT_CONFIG)")
	flagSet.DurationVar(&publishInterval, "publish-interval", 5*time.Second, "how often to publish a synthetic reading")
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

	logHandler := dispatch.NewEventLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}), slog.LevelInfo)
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := settings.OpenFileStore(cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
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
	logHandler.BindClient(client)

	logger.Info("sensor starting", "device_id", local.DeviceID, "device_type", local.DeviceType)

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating pairing nonce: %w", err)
	}

	engine := &pairing.Engine{Client: client, Clock: clock.Real(), Logger: logger}
	peer, err := pairing.RunAndPersist(ctx, store, engine, local, cfg.DeviceType, cfg.RemoteType, nonce, pairing.RoleSlave)
	if err != nil {
		if err == pairing.ErrCancelled {
			logger.Info("pairing cancelled")
			return nil
		}
		return fmt.Errorf("pairing: %w", err)
	}
	logger.Info("paired", "peer_device_id", peer.PeerDeviceID)

	publisher := &telemetry.Publisher{Client: client, Local: local, Clock: clock.Real()}
	rng := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			reading := syntheticReading(rng)
			if err := publisher.PublishAll(reading, local.DeviceID, &peer); err != nil {
				logger.Warn("publish failed", "error", err)
				continue
			}
			logger.Debug("published reading", "temperature", *reading.Temperature)
		}
	}
}

func syntheticReading(rng *mathrand.Rand) sensor.Reading {
	now := time.Now()
	temperature := 20 + 5*math.Sin(float64(now.Unix())/60) + rng.Float64()
	humidity := 40 + 10*rng.Float64()
	return sensor.Reading{
		Temperature: &temperature,
		Humidity:    &humidity,
		Readout:     now,
		Timestamp:   now,
		Name:        "sensor",
	}
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
