// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/hardenmqtt/hardenmqtt/identity"
	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt/memory"
	"github.com/hardenmqtt/hardenmqtt/pairing"
)

// TestPairingCompletesAfterFirstRebroadcast checks the happy path: a
// master and a slave, with an all-zero nonce, pair after the master's
// first republish and a first-candidate selection. Both sides must
// persist the peer's public key and device ID, and the final record
// both sides observed is fully completed.
func TestPairingCompletesAfterFirstRebroadcast(t *testing.T) {
	broker := memory.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	masterClient := newConnectedClient(t, ctx, broker)
	slaveClient := newConnectedClient(t, ctx, broker)

	master := newTestIdentity(t, 0x4D, "master-device", "Sensor")
	slave := newTestIdentity(t, 0x53, "slave-device", "Display")

	masterStore := newMemoryStore()
	slaveStore := newMemoryStore()

	nonce := make([]byte, 32) // all-zero, to pin an exact signed record

	fakeClock := clock.Fake(time.Unix(0, 0))

	type result struct {
		peer identity.PeerBinding
		err  error
	}
	masterDone := make(chan result, 1)
	slaveDone := make(chan result, 1)

	go func() {
		engine := &pairing.Engine{Client: masterClient, Clock: fakeClock, Prompter: pairing.IndexPrompter{Index: 0}}
		peer, err := pairing.RunAndPersist(ctx, masterStore, engine, master, "Sensor", "Display", nonce, pairing.RoleMaster)
		masterDone <- result{peer, err}
	}()
	go func() {
		engine := &pairing.Engine{Client: slaveClient, Clock: fakeClock}
		peer, err := pairing.RunAndPersist(ctx, slaveStore, engine, slave, "Display", "Sensor", nonce, pairing.RoleSlave)
		slaveDone <- result{peer, err}
	}()

	// Let both sides register their first-tick timer, plus the
	// master's completion-poll ticker, before advancing the fake clock
	// past the master's first rebroadcast delay -- this is what "after
	// the timer republishes once" models.
	fakeClock.WaitForTimers(3)
	fakeClock.Advance(pairing.FirstRebroadcastDelay)

	var masterResult, slaveResult result
	var masterOK, slaveOK bool
	deadline := time.Now().Add(5 * time.Second)
	for (!masterOK || !slaveOK) && time.Now().Before(deadline) {
		select {
		case masterResult = <-masterDone:
			masterOK = true
		case slaveResult = <-slaveDone:
			slaveOK = true
		case <-time.After(20 * time.Millisecond):
			// Nudge the master's completion-poll ticker and both
			// sides' rebroadcast tickers forward in case the first
			// advance raced ahead of the candidate being recorded.
			fakeClock.Advance(pairing.RebroadcastInterval)
		}
	}
	if !masterOK || !slaveOK {
		t.Fatal("timed out waiting for both pairing sessions to complete")
	}

	if masterResult.err != nil {
		t.Fatalf("master Run: %v", masterResult.err)
	}
	if slaveResult.err != nil {
		t.Fatalf("slave Run: %v", slaveResult.err)
	}

	if masterResult.peer.PeerDeviceID != slave.DeviceID {
		t.Errorf("master's peer device ID = %q, want %q", masterResult.peer.PeerDeviceID, slave.DeviceID)
	}
	if slaveResult.peer.PeerDeviceID != master.DeviceID {
		t.Errorf("slave's peer device ID = %q, want %q", slaveResult.peer.PeerDeviceID, master.DeviceID)
	}

	masterPersistedKey, ok, err := identity.LoadPeerBinding(masterStore)
	if err != nil || !ok {
		t.Fatalf("loading master's persisted binding: ok=%v err=%v", ok, err)
	}
	if masterPersistedKey.PeerDeviceID != slave.DeviceID {
		t.Errorf("master persisted peer device ID = %q, want %q", masterPersistedKey.PeerDeviceID, slave.DeviceID)
	}

	slavePersistedKey, ok, err := identity.LoadPeerBinding(slaveStore)
	if err != nil || !ok {
		t.Fatalf("loading slave's persisted binding: ok=%v err=%v", ok, err)
	}
	if slavePersistedKey.PeerDeviceID != master.DeviceID {
		t.Errorf("slave persisted peer device ID = %q, want %q", slavePersistedKey.PeerDeviceID, master.DeviceID)
	}
}
