// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// hardenmqtt-display is the display half of the pedagogical demo: it
// pairs with a sensor device over the shared broker, then renders every
// reading it receives across all six topic shapes, verifying and
// decrypting the secured representations as it goes.
//
// Like hardenmqtt-sensor, it connects through mqtt/memory and cannot
// reach a peer running as a separate OS process; run hardenmqtt-demo to
// see the full protocol end to end in one process.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/hardenmqtt/hardenmqtt/dispatch"
	"github.com/hardenmqtt/hardenmqtt/identity"
	"github.com/hardenmqtt/hardenmqtt/internal/config"
	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt/memory"
	"github.com/hardenmqtt/hardenmqtt/pairing"
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

	flagSet := pflag.NewFlagSet("hardenmqtt-display", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the bootstrap config file (overrides HARDENMQTT_CONFIG)")
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

	logger.Info("display starting", "device_id", local.DeviceID, "device_type", local.DeviceType)

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating pairing nonce: %w", err)
	}

	engine := &pairing.Engine{Client: client, Clock: clock.Real(), Prompter: pairing.AutoSelectFirst{}, Logger: logger}
	peer, err := pairing.RunAndPersist(ctx, store, engine, local, cfg.DeviceType, cfg.RemoteType, nonce, pairing.RoleMaster)
	if err != nil {
		if err == pairing.ErrCancelled {
			logger.Info("pairing cancelled")
			return nil
		}
		return fmt.Errorf("pairing: %w", err)
	}
	logger.Info("paired", "peer_device_id", peer.PeerDeviceID)

	rows := dispatch.NewRowTracker()
	router := &dispatch.Router{
		OnUnstructured: func(deviceID, field string, payload []byte) {
			row, _ := rows.RowFor(deviceID + "/" + field)
			logger.Info("unstructured", "row", row, "device_id", deviceID, "field", field, "value", string(payload))
		},
		OnStructured: func(deviceID string, payload []byte) {
			row, _ := rows.RowFor(deviceID + "/structured")
			logger.Info("structured", "row", row, "device_id", deviceID, "payload", string(payload))
		},
		OnInteroperable: func(deviceID string, payload []byte) {
			row, _ := rows.RowFor(deviceID + "/interoperable")
			logger.Info("interoperable", "row", row, "device_id", deviceID, "bytes", len(payload))
		},
		OnSecuredPublic: func(publicKeyBase64Url string, payload []byte) {
			if publicKeyBase64Url != base64URLOf(peer.PeerPublicKey) {
				return
			}
			fields, err := telemetry.VerifySignedPublic(payload, peer.PeerPublicKey)
			row, _ := rows.RowFor(publicKeyBase64Url + "/public")
			if err != nil {
				logger.Info("secured public: dropped", "row", row, "error", err)
				return
			}
			logger.Info("secured public: verified", "row", row, "fields", len(fields))
		},
		OnSecuredConfidential: func(publicKeyBase64Url string, payload []byte) {
			if publicKeyBase64Url != base64URLOf(peer.PeerPublicKey) {
				return
			}
			fields, err := telemetry.VerifySignedConfidential(payload, local.PrivateKey(), peer.PeerPublicKey)
			row, _ := rows.RowFor(publicKeyBase64Url + "/confidential")
			if err != nil {
				logger.Info("secured confidential: dropped", "row", row, "error", err)
				return
			}
			logger.Info("secured confidential: verified", "row", row, "fields", len(fields))
		},
		OnEvent: func(payload []byte) {
			row, _ := rows.RowFor("events")
			logger.Debug("event", "row", row, "payload", string(payload))
		},
	}
	if err := router.Subscribe(client); err != nil {
		return fmt.Errorf("subscribing dispatcher: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func base64URLOf(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
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
