// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package integration_test exercises the system end to end: pairing,
// the two secured telemetry representations, the troll mutator's
// effect on them, and pairing under lossy delivery. Each test wires
// real component values (identity, pairing, telemetry, troll) against
// mqtt/memory rather than mocking any of them.
package integration_test

import (
	"context"
	"crypto/ed25519"
	"math/rand"
	"testing"
	"time"

	"github.com/hardenmqtt/hardenmqtt/identity"
	"github.com/hardenmqtt/hardenmqtt/lib/secret"
	"github.com/hardenmqtt/hardenmqtt/mqtt"
	"github.com/hardenmqtt/hardenmqtt/mqtt/memory"
	"github.com/hardenmqtt/hardenmqtt/settings"
)

// newTestIdentity builds a DeviceIdentity directly from a fixed seed,
// bypassing identity.LoadOrCreate's settings-store round trip, so
// tests can pin exact keypairs rather than depend on crypto/rand.
func newTestIdentity(t *testing.T, seed byte, deviceID, deviceType string) *identity.DeviceIdentity {
	t.Helper()
	seedBytes := make([]byte, 32)
	for i := range seedBytes {
		seedBytes[i] = seed
	}
	privateKey := ed25519.NewKeyFromSeed(seedBytes)
	buffer, err := secret.NewFromBytes(privateKey)
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })

	return &identity.DeviceIdentity{
		Private:    buffer,
		Public:     append([]byte(nil), privateKey[32:]...),
		DeviceID:   deviceID,
		DeviceType: deviceType,
	}
}

func newConnectedClient(t *testing.T, ctx context.Context, broker *memory.Broker) *memory.Client {
	t.Helper()
	client := memory.NewClient(broker)
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(client.Disconnect)
	return client
}

func newMemoryStore() settings.Store {
	return settings.NewMemoryStore()
}

// lossyClient wraps an mqtt.Client and drops a fraction of the
// deliveries each Subscribe handler would otherwise receive, modeling
// an unreliable broker. Publish always succeeds -- loss happens on the
// delivery side, as it would for a real broker that occasionally fails
// to forward a message to one particular subscriber.
type lossyClient struct {
	mqtt.Client
	dropProbability float64
	rng             *rand.Rand
}

func (c *lossyClient) Subscribe(topic string, handler mqtt.Handler) error {
	return c.Client.Subscribe(topic, func(m mqtt.Message) {
		if c.rng.Float64() < c.dropProbability {
			return
		}
		handler(m)
	})
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !condition() {
		t.Fatalf("condition not satisfied within %s", timeout)
	}
}
