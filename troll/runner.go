// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package troll

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt"
	"github.com/hardenmqtt/hardenmqtt/telemetry"
)

// Wildcard is the topic filter the troll subscribes to: every topic in
// the namespace.
const Wildcard = "#"

// Runner drives the troll's subscribe-classify-perturb-republish loop
// over one MQTT client connection.
type Runner struct {
	Client     mqtt.Client
	Clock      clock.Clock
	Trolliness int
	Rng        *rand.Rand
	Cache      *DigestCache
	Classifier Classifier
	Mutator    Mutator
	Logger     *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run subscribes to Wildcard and perturbs every inbound message that
// isn't the troll's own prior emission or the reserved event-log
// topic, until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Client.Subscribe(Wildcard, r.handle); err != nil {
		return err
	}
	<-ctx.Done()
	_ = r.Client.Unsubscribe(Wildcard)
	return nil
}

func (r *Runner) handle(msg mqtt.Message) {
	if r.shouldSkip(msg.Topic, msg.Payload) {
		return
	}

	kind := r.Classifier.Classify(msg.Payload)
	perturbed := r.Mutator.Perturb(kind, msg.Payload, r.Trolliness, r.Rng)

	retain := kind == KindBlob && len(perturbed) <= smallBlobSize
	outDigest := Digest(msg.Topic, perturbed)
	r.Cache.Record(outDigest)

	if err := r.Client.Publish(msg.Topic, mqtt.AtMostOnce, retain, perturbed); err != nil {
		r.logger().Warn("troll: republish failed", "topic", msg.Topic, "error", err)
		return
	}
	r.logger().Debug("troll: perturbed message", "topic", msg.Topic, "kind", kind.String())
}

// shouldSkip combines the reserved-topic and feedback-suppression
// checks, run before classification so a skipped message never reaches
// the mutator: the reserved event-log topic is never perturbed, and a
// message whose digest is already in the cache is the troll's own
// prior emission echoing back.
func (r *Runner) shouldSkip(topic string, payload []byte) bool {
	if topic == telemetry.EventsTopic {
		return true
	}
	return r.Cache.ConsumeIfPresent(Digest(topic, payload))
}
