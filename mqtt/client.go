// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package mqtt defines the MQTT client contract the core packages
// depend on. Connect/subscribe/publish/QoS and the underlying broker
// client are external collaborators -- this package never implements a
// production broker client, only the interface and a deterministic
// in-memory stand-in (see the memory subpackage) for tests and the
// bundled demo binaries.
package mqtt

import "context"

// QoS mirrors the MQTT quality-of-service levels. Every topic in the
// namespace uses QoS 0 ("at most once"); the type exists so call sites
// are explicit about that choice rather than passing a bare 0.
type QoS byte

const AtMostOnce QoS = 0

// Message is a single inbound publication.
type Message struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// Handler receives inbound messages for a subscribed topic filter.
type Handler func(Message)

// Client is the set of operations the core depends on from an MQTT
// broker connection: connect, subscribe, unsubscribe, publish, and
// delivery callbacks. No additional features (persistent sessions,
// last-will, QoS 1/2) are required by this specification.
type Client interface {
	// Connect establishes the broker connection. Implementations should
	// retry transient I/O failures internally per the error-handling
	// design -- transient disconnects never surface as ordinary errors
	// to callers of Publish/Subscribe.
	Connect(ctx context.Context) error

	// Disconnect closes the broker connection. Idempotent.
	Disconnect()

	// Subscribe registers handler for topic (which may be a filter
	// containing MQTT wildcards). Inbound messages matching the filter
	// are delivered to handler, possibly from a different goroutine than
	// the caller's.
	Subscribe(topic string, handler Handler) error

	// Unsubscribe removes a previously registered subscription.
	Unsubscribe(topic string) error

	// Publish sends payload to topic at the given QoS, optionally
	// retained.
	Publish(topic string, qos QoS, retain bool, payload []byte) error
}
