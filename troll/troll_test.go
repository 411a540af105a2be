// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package troll

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt"
	"github.com/hardenmqtt/hardenmqtt/mqtt/memory"
)

func TestClassifyOrderedCascade(t *testing.T) {
	cases := []struct {
		payload string
		want    Kind
	}{
		{"100", KindInt64},
		{"-42", KindInt64},
		{"3.14", KindFloat},
		{"-2.5e10", KindFloat},
		{"PT1H30M0S", KindDuration},
		{"P2DT3H", KindDuration},
		{"2026-08-06T12:00:00Z", KindDateTime},
		{"2026-08-06", KindDateTime},
		{"https://example.org/sensors/1", KindURI},
		{`{"a":1,"b":"c"}`, KindJSONObject},
		{`[1,2,3]`, KindJSONArray},
		{`<fields><field name="Temperature"><quantity value="21.5" decimals="1" unit="°C"/></field></fields>`, KindXML},
		{"just a plain string", KindString},
	}
	for _, c := range cases {
		got := Classify([]byte(c.payload))
		if got != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.payload, got, c.want)
		}
	}
}

func TestClassifyOversizedPayloadIsBlob(t *testing.T) {
	huge := make([]byte, MaxClassifiablePayloadBytes+1)
	for i := range huge {
		huge[i] = '1'
	}
	if got := Classify(huge); got != KindBlob {
		t.Fatalf("Classify(oversized) = %s, want BLOB", got)
	}
}

func TestClassifyInvalidUTF8IsBlob(t *testing.T) {
	invalid := []byte{0xff, 0xfe, 0xfd}
	if got := Classify(invalid); got != KindBlob {
		t.Fatalf("Classify(invalid utf8) = %s, want BLOB", got)
	}
}

// TestIntegerPerturbationProducesArithmeticVariants checks that
// repeated perturbation of an integer payload eventually exercises the
// Integer menu's arithmetic operations (halve, double, negate).
func TestIntegerPerturbationProducesArithmeticVariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var sawArithmetic bool
	for i := 0; i < 200; i++ {
		out := Perturb(KindInt64, []byte("100"), 0, rng)
		switch string(out) {
		case "50", "200", "-100":
			sawArithmetic = true
		}
	}
	if !sawArithmetic {
		t.Fatalf("expected at least one arithmetic mutation of \"100\" across 200 trials")
	}
}

// TestTrollRespectsTrolliness covers the "higher trolliness, less
// frequent mutation" scaling: at a very high trolliness, the payload
// should usually pass through unchanged.
func TestTrollRespectsTrolliness(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	unchanged := 0
	const trials = 500
	for i := 0; i < trials; i++ {
		out := Perturb(KindInt64, []byte("100"), 999, rng)
		if string(out) == "100" {
			unchanged++
		}
	}
	if unchanged < trials*9/10 {
		t.Fatalf("expected almost all of %d trials unchanged at trolliness=999, got %d unchanged", trials, unchanged)
	}
}

// TestDigestCacheSuppressesOwnEmission checks that the troll's own
// republication, once recorded, is recognized and consumed exactly
// once.
func TestDigestCacheSuppressesOwnEmission(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	cache := NewDigestCache(DefaultTTL, fake)

	digest := Digest("HardenMqtt/Unsecured/Unstructured/sensor-1/Temperature", []byte("200"))
	cache.Record(digest)

	if !cache.ConsumeIfPresent(digest) {
		t.Fatal("expected the recorded digest to be recognized as present")
	}
	if cache.ConsumeIfPresent(digest) {
		t.Fatal("expected the digest to be removed after being consumed once")
	}
}

// TestDigestCacheExpiresAfterTTL checks that an entry older than the
// TTL is treated as absent even if never echoed back.
func TestDigestCacheExpiresAfterTTL(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	cache := NewDigestCache(DefaultTTL, fake)

	digest := Digest("some/topic", []byte("payload"))
	cache.Record(digest)

	fake.Advance(DefaultTTL + time.Second)
	if cache.ConsumeIfPresent(digest) {
		t.Fatal("expected an expired digest to be treated as absent")
	}
}

func TestDigestCacheCleanupRemovesExpiredEntries(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	cache := NewDigestCache(10*time.Second, fake)

	cache.Record(Digest("t1", []byte("a")))
	cache.Record(Digest("t2", []byte("b")))
	if cache.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cache.Len())
	}

	fake.Advance(20 * time.Second)
	removed := cache.Cleanup(fake.Now())
	if removed != 2 {
		t.Fatalf("Cleanup removed %d entries, want 2", removed)
	}
	if cache.Len() != 0 {
		t.Fatalf("Len() after cleanup = %d, want 0", cache.Len())
	}
}

// TestRunnerSuppressesFeedbackLoop checks, end-to-end over the
// in-memory broker, that a message the runner itself republishes must
// not be perturbed a second time when it is echoed back.
func TestRunnerSuppressesFeedbackLoop(t *testing.T) {
	broker := memory.NewBroker()
	sensorClient := memory.NewClient(broker)
	trollClient := memory.NewClient(broker)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sensorClient.Connect(ctx); err != nil {
		t.Fatalf("sensor Connect: %v", err)
	}
	if err := trollClient.Connect(ctx); err != nil {
		t.Fatalf("troll Connect: %v", err)
	}

	fake := clock.Fake(time.Unix(0, 0))
	runner := &Runner{
		Client:     trollClient,
		Clock:      fake,
		Trolliness: 0,
		Rng:        rand.New(rand.NewSource(3)),
		Cache:      NewDigestCache(DefaultTTL, fake),
	}
	if err := trollClient.Subscribe(Wildcard, runner.handle); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	republished := make(chan mqtt.Message, 8)
	if err := sensorClient.Subscribe("HardenMqtt/#", func(m mqtt.Message) { republished <- m }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	const topic = "HardenMqtt/Unsecured/Unstructured/sensor-1/Temperature"
	if err := sensorClient.Publish(topic, mqtt.AtMostOnce, false, []byte("100")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// The publisher's own subscription sees both the original message
	// and the troll's republication; delivery order between them is
	// not guaranteed by the in-memory broker, so collect both and pick
	// out the one that isn't the pristine original.
	var perturbedPayload []byte
	for i := 0; i < 2; i++ {
		select {
		case m := <-republished:
			if string(m.Payload) != "100" {
				perturbedPayload = m.Payload
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d of 2", i+1)
		}
	}
	if perturbedPayload == nil {
		t.Fatal("expected one of the two deliveries to be a perturbed payload")
	}

	// The in-memory broker delivers the troll's republication to the
	// troll's own "#" subscription synchronously, inside Publish. The
	// digest recorded just before publishing has therefore already been
	// recognized and consumed by that echo: the cache is empty again.
	if runner.Cache.Len() != 0 {
		t.Fatalf("Cache.Len() = %d, want 0 once the troll's own echo has been consumed", runner.Cache.Len())
	}

	// The entry must not outlive that one sighting: a further delivery
	// of the same payload is no longer treated as the troll's own.
	if runner.shouldSkip(topic, perturbedPayload) {
		t.Fatal("expected the digest to have been consumed by the echo, not still cached")
	}
	if runner.Cache.Len() != 0 {
		t.Fatalf("Cache.Len() after the second sighting = %d, want 0", runner.Cache.Len())
	}
}

// TestRunnerSkipsReservedEventsTopic covers the reserved-topic half of
// shouldSkip.
func TestRunnerSkipsReservedEventsTopic(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	runner := &Runner{Cache: NewDigestCache(DefaultTTL, fake)}
	if !runner.shouldSkip("HardenMqtt/Events", []byte("anything")) {
		t.Fatal("expected the reserved events topic to be skipped")
	}
}

func TestPerturbJSONObjectNeverReturnsEmptyPayload(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	payload := []byte(`{"temperature":21.5,"humidity":55,"name":"sensor-1"}`)
	for i := 0; i < 20; i++ {
		out := perturbJSONObject(payload, rng)
		if len(out) == 0 {
			t.Fatal("perturbJSONObject produced an empty payload")
		}
	}
}

func TestPerturbXMLStructureReturnsNonEmptyPayload(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	payload := []byte(`<readings><reading id="1">ok</reading></readings>`)
	out := perturbXMLStructure(payload, rng)
	if len(out) == 0 {
		t.Fatal("perturbXMLStructure produced an empty payload")
	}
}

// TestBlobSizeReachesRetainedSmallDraw checks that blobSize's weighted
// distribution actually lands on the small, retained size -- not just
// the three large, non-retained ones -- across enough draws.
func TestBlobSizeReachesRetainedSmallDraw(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	var sawRetainedSmall bool
	for i := 0; i < 2000; i++ {
		size, retained := blobSize(rng)
		if retained {
			if size != smallBlobSize {
				t.Fatalf("blobSize returned retained=true with size %d, want %d", size, smallBlobSize)
			}
			sawRetainedSmall = true
		}
	}
	if !sawRetainedSmall {
		t.Fatal("expected at least one retained, small-sized draw across 2000 trials")
	}
}

// TestLargeBlobDrawsFromSmallBlobWhenRetained checks that largeBlob,
// when its underlying size draw is retained, returns exactly
// smallBlobSize bytes -- the path that makes the retained small BLOB
// perturbation reachable from every menu that calls largeBlob.
func TestLargeBlobDrawsFromSmallBlobWhenRetained(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var sawRetained bool
	for i := 0; i < 2000; i++ {
		blob, retained := largeBlob(rng)
		if retained {
			if len(blob) != smallBlobSize {
				t.Fatalf("largeBlob returned retained=true with %d bytes, want %d", len(blob), smallBlobSize)
			}
			sawRetained = true
		}
	}
	if !sawRetained {
		t.Fatal("expected largeBlob to produce at least one retained small BLOB across 2000 trials")
	}
}
