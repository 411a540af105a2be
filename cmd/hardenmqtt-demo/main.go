// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// hardenmqtt-demo runs a sensor, a display, and a troll together in one
// process, sharing one mqtt/memory broker, so the full pairing,
// telemetry, and adversarial-mutation protocol can be observed end to
// end without standing up a real broker. This is the "single-process
// demo command" the mqtt/memory package is built for -- the separate
// hardenmqtt-sensor/hardenmqtt-display/hardenmqtt-troll binaries each
// hold their own private broker instance and cannot reach each other.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
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
	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt/memory"
	"github.com/hardenmqtt/hardenmqtt/pairing"
	"github.com/hardenmqtt/hardenmqtt/sensor"
	"github.com/hardenmqtt/hardenmqtt/settings"
	"github.com/hardenmqtt/hardenmqtt/telemetry"
	"github.com/hardenmqtt/hardenmqtt/troll"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var publishInterval time.Duration
	var trolliness int
	var duration time.Duration

	flagSet := pflag.NewFlagSet("hardenmqtt-demo", pflag.ContinueOnError)
	flagSet.DurationVar(&publishInterval, "publish-interval", 3*time.Second, "how often the simulated sensor publishes a reading")
	flagSet.IntVar(&trolliness, "trolliness", 0, "troll mutator trolliness factor (higher means less frequent mutation)")
	flagSet.DurationVar(&duration, "duration", 0, "stop automatically after this long; 0 runs until interrupted")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	broker := memory.NewBroker()

	sensorStore := settings.NewMemoryStore()
	displayStore := settings.NewMemoryStore()

	sensorIdentity, err := identity.LoadOrCreate(sensorStore, "Sensor", func() string { return uuid.NewString() })
	if err != nil {
		return fmt.Errorf("creating sensor identity: %w", err)
	}
	defer sensorIdentity.Close()

	displayIdentity, err := identity.LoadOrCreate(displayStore, "Display", func() string { return uuid.NewString() })
	if err != nil {
		return fmt.Errorf("creating display identity: %w", err)
	}
	defer displayIdentity.Close()

	sensorClient := memory.NewClient(broker)
	displayClient := memory.NewClient(broker)
	trollClient := memory.NewClient(broker)
	for _, c := range []*memory.Client{sensorClient, displayClient, trollClient} {
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		defer c.Disconnect()
	}

	logger.Info("pairing sensor and display")
	sensorPeer, displayPeer, err := pairBoth(ctx, logger, sensorStore, displayStore, sensorClient, displayClient, sensorIdentity, displayIdentity)
	if err != nil {
		return fmt.Errorf("pairing: %w", err)
	}
	logger.Info("paired", "sensor_id", sensorIdentity.DeviceID, "display_id", displayIdentity.DeviceID)

	runner := &troll.Runner{
		Client:     trollClient,
		Clock:      clock.Real(),
		Trolliness: trolliness,
		Rng:        mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		Cache:      troll.NewDigestCache(troll.DefaultTTL, clock.Real()),
		Logger:     logger,
	}
	go func() {
		if err := runner.Run(ctx); err != nil {
			logger.Warn("troll stopped", "error", err)
		}
	}()

	router := displayRouter(logger, displayIdentity, displayPeer)
	if err := router.Subscribe(displayClient); err != nil {
		return fmt.Errorf("subscribing display dispatcher: %w", err)
	}

	publisher := &telemetry.Publisher{Client: sensorClient, Local: sensorIdentity, Clock: clock.Real()}
	rng := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("demo finished")
			return nil
		case <-ticker.C:
			reading := syntheticReading(rng)
			if err := publisher.PublishAll(reading, sensorIdentity.DeviceID, &sensorPeer); err != nil {
				logger.Warn("publish failed", "error", err)
			}
		}
	}
}

// pairBoth runs the master and slave pairing sessions concurrently,
// since both sides of the handshake run against the same broker at
// once.
func pairBoth(ctx context.Context, logger *slog.Logger, sensorStore, displayStore settings.Store, sensorClient, displayClient *memory.Client, sensorIdentity, displayIdentity *identity.DeviceIdentity) (sensorPeer, displayPeer identity.PeerBinding, err error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return identity.PeerBinding{}, identity.PeerBinding{}, fmt.Errorf("generating pairing nonce: %w", err)
	}

	type result struct {
		peer identity.PeerBinding
		err  error
	}
	slaveDone := make(chan result, 1)
	masterDone := make(chan result, 1)

	go func() {
		engine := &pairing.Engine{Client: sensorClient, Clock: clock.Real(), Logger: logger}
		peer, err := pairing.RunAndPersist(ctx, sensorStore, engine, sensorIdentity, "Sensor", "Display", nonce, pairing.RoleSlave)
		slaveDone <- result{peer, err}
	}()
	go func() {
		engine := &pairing.Engine{Client: displayClient, Clock: clock.Real(), Prompter: pairing.AutoSelectFirst{}, Logger: logger}
		peer, err := pairing.RunAndPersist(ctx, displayStore, engine, displayIdentity, "Display", "Sensor", nonce, pairing.RoleMaster)
		masterDone <- result{peer, err}
	}()

	slaveResult := <-slaveDone
	masterResult := <-masterDone
	if slaveResult.err != nil {
		return identity.PeerBinding{}, identity.PeerBinding{}, slaveResult.err
	}
	if masterResult.err != nil {
		return identity.PeerBinding{}, identity.PeerBinding{}, masterResult.err
	}
	return slaveResult.peer, masterResult.peer, nil
}

func displayRouter(logger *slog.Logger, local *identity.DeviceIdentity, peer identity.PeerBinding) *dispatch.Router {
	rows := dispatch.NewRowTracker()
	peerKey := base64.RawURLEncoding.EncodeToString(peer.PeerPublicKey)

	return &dispatch.Router{
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
			if publicKeyBase64Url != peerKey {
				return
			}
			row, _ := rows.RowFor(publicKeyBase64Url + "/public")
			fields, err := telemetry.VerifySignedPublic(payload, peer.PeerPublicKey)
			if err != nil {
				logger.Info("secured public: dropped", "row", row, "error", err)
				return
			}
			logger.Info("secured public: verified", "row", row, "fields", len(fields))
		},
		OnSecuredConfidential: func(publicKeyBase64Url string, payload []byte) {
			if publicKeyBase64Url != peerKey {
				return
			}
			row, _ := rows.RowFor(publicKeyBase64Url + "/confidential")
			fields, err := telemetry.VerifySignedConfidential(payload, local.PrivateKey(), peer.PeerPublicKey)
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
