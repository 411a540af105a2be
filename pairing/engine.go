// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package pairing implements the two-party, broker-mediated handshake
// that binds two long-lived Ed25519 identities. Both roles run the
// same protocol over a single topic, observing a shared cancellation
// signal and a periodic rebroadcast timer -- modeled as a single event
// loop per [Engine.Run] call, not a thread per callback.
package pairing

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hardenmqtt/hardenmqtt/canon"
	"github.com/hardenmqtt/hardenmqtt/identity"
	"github.com/hardenmqtt/hardenmqtt/internal/wire"
	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt"
	"github.com/hardenmqtt/hardenmqtt/settings"
)

// Topic is the single broker topic both pairing roles publish to and
// subscribe from.
const Topic = "HardenMqtt/Pairing"

// RebroadcastInterval is the steady-state republish period.
const RebroadcastInterval = 5 * time.Second

// FirstRebroadcastDelay is the delay before the first republish -- late
// joiners and in-flight loss are tolerated without explicit retries.
const FirstRebroadcastDelay = 1 * time.Second

// CompletionPollInterval is how often a blocking prompter re-checks the
// candidate snapshot while waiting for the first candidate.
const CompletionPollInterval = 100 * time.Millisecond

// Role is a pairing session's role: the master selects, the slave
// accepts.
type Role int

const (
	RoleMaster Role = iota
	RoleSlave
)

// ErrCancelled is returned by Run when ctx is cancelled before pairing
// completes. It is not an error condition to surface to a user --
// callers should treat it as a normal, non-fatal outcome ("Cancelled",
// not failure).
var ErrCancelled = errors.New("pairing: cancelled")

// Engine drives the pairing state machine for one Run call.
type Engine struct {
	Client mqtt.Client
	Clock  clock.Clock

	// Prompter selects the slave when Role is RoleMaster. Unused (may
	// be nil) for RoleSlave.
	Prompter Prompter

	Logger *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Run executes the pairing protocol and returns the resulting
// PeerBinding, or ErrCancelled if ctx is cancelled first. nonce is used
// only by the master (it seeds the one Nonce chosen for the whole
// session); the slave ignores it, since the slave's pre-selection
// record carries no Nonce at all -- it receives the session nonce from
// the master's broadcast once selected.
func (e *Engine) Run(ctx context.Context, local *identity.DeviceIdentity, localType, remoteType string, nonce []byte, role Role) (identity.PeerBinding, error) {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	localPublicKey := local.PublicKeyBase64Url()

	inbound := make(chan mqtt.Message, 64)
	if err := e.Client.Subscribe(Topic, func(m mqtt.Message) {
		select {
		case inbound <- m:
		case <-runCtx.Done():
		}
	}); err != nil {
		return identity.PeerBinding{}, fmt.Errorf("pairing: subscribing to %s: %w", Topic, err)
	}
	defer e.Client.Unsubscribe(Topic)

	sess := &session{
		role:           role,
		local:          local,
		localType:      localType,
		remoteType:     remoteType,
		localPublicKey: localPublicKey,
	}
	sess.record = initialRecord(role, local, localType, nonce)

	if role == RoleMaster {
		sess.selectionDone = make(chan selectionOutcome, 1)
		pollTicker := e.Clock.NewTicker(CompletionPollInterval)
		go func() {
			defer pollTicker.Stop()
			candidate, err := e.Prompter.SelectSlave(runCtx, pollTicker.C, sess.candidateSnapshot)
			select {
			case sess.selectionDone <- selectionOutcome{candidate, err}:
			case <-runCtx.Done():
			}
		}()
	}

	publish := func() {
		record := sess.currentRecord()
		data, err := marshalRecord(record)
		if err != nil {
			e.logger().Error("pairing: marshaling local record", "error", err)
			return
		}
		if err := e.Client.Publish(Topic, mqtt.AtMostOnce, false, data); err != nil {
			e.logger().Warn("pairing: publish failed, will retry on next tick", "error", err)
		}
	}

	firstTick := e.Clock.After(FirstRebroadcastDelay)
	var ticker *clock.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		var tickerChan <-chan time.Time
		if ticker != nil {
			tickerChan = ticker.C
		}

		select {
		case <-runCtx.Done():
			return identity.PeerBinding{}, ErrCancelled

		case <-firstTick:
			firstTick = nil
			publish()
			ticker = e.Clock.NewTicker(RebroadcastInterval)

		case <-tickerChan:
			publish()

		case outcome := <-sess.selectionDone:
			if outcome.err != nil {
				return identity.PeerBinding{}, ErrCancelled
			}
			sess.applySelection(outcome.candidate)
			publish()

		case msg := <-inbound:
			binding, done, err := sess.handle(msg.Payload, e.logger())
			if err != nil {
				e.logger().Debug("pairing: dropping inbound record", "error", err)
				continue
			}
			if done {
				if sess.role == RoleSlave {
					// The slave must publish its countersignature before
					// terminating.
					publish()
				}
				return binding, nil
			}
		}
	}
}

// RunAndPersist wraps Run with idempotent persistence: if store already
// holds a PeerBinding, pairing is skipped entirely and the existing
// binding is returned unchanged.
func RunAndPersist(ctx context.Context, store settings.Store, engine *Engine, local *identity.DeviceIdentity, localType, remoteType string, nonce []byte, role Role) (identity.PeerBinding, error) {
	if existing, ok, err := identity.LoadPeerBinding(store); err != nil {
		return identity.PeerBinding{}, fmt.Errorf("pairing: loading existing binding: %w", err)
	} else if ok {
		return existing, nil
	}

	binding, err := engine.Run(ctx, local, localType, remoteType, nonce, role)
	if err != nil {
		return identity.PeerBinding{}, err
	}
	if err := identity.SavePeerBinding(store, binding); err != nil {
		return identity.PeerBinding{}, fmt.Errorf("pairing: persisting binding: %w", err)
	}
	return binding, nil
}

func initialRecord(role Role, local *identity.DeviceIdentity, localType string, nonce []byte) canon.PairingRecord {
	var record canon.PairingRecord
	switch role {
	case RoleMaster:
		record = canon.PairingRecord{
			Nonce:           wire.EncodeBase64Url(nonce),
			MasterPublicKey: local.PublicKeyBase64Url(),
			MasterId:        local.DeviceID,
			MasterType:      localType,
		}
		record.MasterSignature = signRecord(local.PrivateKey(), record)
	case RoleSlave:
		record = canon.PairingRecord{
			SlavePublicKey: local.PublicKeyBase64Url(),
			SlaveId:        local.DeviceID,
			SlaveType:      localType,
		}
		record.SlaveSignature = signRecord(local.PrivateKey(), record)
	}
	return record
}

type selectionOutcome struct {
	candidate Candidate
	err       error
}

// session holds the mutable state for one Run call: the local record
// snapshot currently being republished, and (master only) the
// deduplicated candidate map. The candidate map is mutated from the
// event loop goroutine and read from the prompter's goroutine via
// candidateSnapshot, so it needs its own mutex.
type session struct {
	role           Role
	local          *identity.DeviceIdentity
	localType      string
	remoteType     string
	localPublicKey string

	mu     sync.Mutex
	record canon.PairingRecord

	candidatesMu sync.Mutex
	candidates   map[string]Candidate // keyed by base64url public key

	selectionDone chan selectionOutcome
}

func (s *session) currentRecord() canon.PairingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

func (s *session) candidateSnapshot() []Candidate {
	s.candidatesMu.Lock()
	defer s.candidatesMu.Unlock()
	out := make([]Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		out = append(out, c)
	}
	return out
}

func (s *session) applySelection(candidate Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.SlavePublicKey = wire.EncodeBase64Url(candidate.PublicKey)
	s.record.SlaveId = candidate.DeviceID
	s.record.SlaveType = candidate.SlaveType
	s.record.SlaveSignature = ""
	s.record.MasterSignature = signRecord(s.local.PrivateKey(), s.record)
}

// handle processes one inbound pairing message. Returns (binding, true,
// nil) when this message completes pairing; (zero, false, nil) when the
// message was valid but not yet decisive; (zero, false, err) when the
// message was dropped.
func (s *session) handle(payload []byte, logger *slog.Logger) (identity.PeerBinding, bool, error) {
	record, err := parseAndValidate(payload)
	if err != nil {
		return identity.PeerBinding{}, false, err
	}

	switch s.role {
	case RoleMaster:
		return s.handleAsMaster(record)
	case RoleSlave:
		return s.handleAsSlave(record)
	}
	return identity.PeerBinding{}, false, fmt.Errorf("pairing: unknown role")
}

func (s *session) handleAsMaster(record canon.PairingRecord) (identity.PeerBinding, bool, error) {
	if record.Completed() && record.MasterPublicKey == s.localPublicKey {
		binding, err := bindingFromCompleted(record, forMaster)
		if err != nil {
			return identity.PeerBinding{}, false, err
		}
		return binding, true, nil
	}

	// Candidate collection: a record with no MasterPublicKey but a
	// fully-populated slave side belongs to some slave's own broadcast,
	// not to a concurrent master's session.
	if record.MasterPublicKey == "" && record.SlavePublicKey != "" && record.SlaveId != "" {
		if record.SlaveType != "" && record.SlaveType != s.remoteType {
			return identity.PeerBinding{}, false, fmt.Errorf("pairing: candidate slave type %q does not match expected %q", record.SlaveType, s.remoteType)
		}
		publicKey, err := decodePublicKey(record.SlavePublicKey)
		if err != nil {
			return identity.PeerBinding{}, false, err
		}
		if _, err := identity.SharedSecret(s.local.PrivateKey(), publicKey); err != nil {
			return identity.PeerBinding{}, false, fmt.Errorf("pairing: candidate key failed ECDH validation: %w", err)
		}
		s.candidatesMu.Lock()
		if s.candidates == nil {
			s.candidates = make(map[string]Candidate)
		}
		s.candidates[record.SlavePublicKey] = Candidate{PublicKey: publicKey, DeviceID: record.SlaveId, SlaveType: record.SlaveType}
		s.candidatesMu.Unlock()
	}

	return identity.PeerBinding{}, false, nil
}

func (s *session) handleAsSlave(record canon.PairingRecord) (identity.PeerBinding, bool, error) {
	if record.SlavePublicKey != s.localPublicKey || record.SlaveId != s.local.DeviceID {
		return identity.PeerBinding{}, false, nil
	}

	if record.Completed() {
		binding, err := bindingFromCompleted(record, forSlave)
		if err != nil {
			return identity.PeerBinding{}, false, err
		}
		return binding, true, nil
	}

	if record.MasterCompleted() && !record.SlaveCompleted() {
		if record.MasterType != s.remoteType {
			return identity.PeerBinding{}, false, fmt.Errorf("pairing: master type %q does not match expected %q (role safety)", record.MasterType, s.remoteType)
		}
		record.SlaveSignature = signRecord(s.local.PrivateKey(), record)
		s.mu.Lock()
		s.record = record
		s.mu.Unlock()

		binding, err := bindingFromCompleted(record, forSlave)
		if err != nil {
			return identity.PeerBinding{}, false, err
		}
		return binding, true, nil
	}

	return identity.PeerBinding{}, false, nil
}

type completionSide int

const (
	forMaster completionSide = iota
	forSlave
)

func bindingFromCompleted(record canon.PairingRecord, side completionSide) (identity.PeerBinding, error) {
	var keyField, idField string
	if side == forMaster {
		keyField, idField = record.SlavePublicKey, record.SlaveId
	} else {
		keyField, idField = record.MasterPublicKey, record.MasterId
	}
	publicKey, err := decodePublicKey(keyField)
	if err != nil {
		return identity.PeerBinding{}, fmt.Errorf("pairing: decoding peer public key from completed record: %w", err)
	}
	return identity.PeerBinding{PeerPublicKey: ed25519.PublicKey(publicKey), PeerDeviceID: idField}, nil
}
