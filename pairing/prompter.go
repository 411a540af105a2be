// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package pairing

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"
)

// Candidate is a slave observed by the master during pairing: a
// deduplicated, ECDH-validated entry from the candidate map.
type Candidate struct {
	PublicKey ed25519.PublicKey
	DeviceID  string
	SlaveType string
}

// Prompter selects one candidate slave on behalf of the user. It runs
// on its own goroutine -- a blocking console prompt must not stall the
// event loop's rebroadcast timer -- and is called exactly once per
// master pairing session.
//
// snapshot returns the current, possibly still-growing, candidate list
// at any point; Prompter implementations may call it more than once
// (e.g. to re-print a list after a user asks to refresh) before
// returning a final selection. pollTick delivers at
// CompletionPollInterval granularity, built from the engine's own
// clock.Clock, so a blocking implementation re-checks snapshot on that
// cadence instead of busy-spinning.
type Prompter interface {
	SelectSlave(ctx context.Context, pollTick <-chan time.Time, snapshot func() []Candidate) (Candidate, error)
}

// AutoSelectFirst is a non-interactive Prompter that waits until at
// least one candidate is available and selects it. It is used by the
// demo, display and pairing binaries; when exactly one slave is present,
// selecting the first candidate is the only choice there is.
type AutoSelectFirst struct{}

func (AutoSelectFirst) SelectSlave(ctx context.Context, pollTick <-chan time.Time, snapshot func() []Candidate) (Candidate, error) {
	for {
		if candidates := snapshot(); len(candidates) > 0 {
			return candidates[0], nil
		}
		select {
		case <-ctx.Done():
			return Candidate{}, ctx.Err()
		case <-pollTick:
		}
	}
}

// IndexPrompter selects the candidate at a fixed position once the
// snapshot reaches at least that many entries. It is the fixed-index
// counterpart to AutoSelectFirst, used wherever a test needs to pick a
// specific slave out of a known-size candidate set.
type IndexPrompter struct {
	Index int
}

func (p IndexPrompter) SelectSlave(ctx context.Context, pollTick <-chan time.Time, snapshot func() []Candidate) (Candidate, error) {
	for {
		candidates := snapshot()
		if len(candidates) > p.Index {
			return candidates[p.Index], nil
		}
		select {
		case <-ctx.Done():
			return Candidate{}, ctx.Err()
		case <-pollTick:
		}
	}
}

// ErrNoCandidates reports that no candidate slave is available. The
// prompters in this package do not return it; they wait until ctx is
// done.
var ErrNoCandidates = fmt.Errorf("pairing: no candidates available")
