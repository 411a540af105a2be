// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hardenmqtt/hardenmqtt/mqtt"
	"github.com/hardenmqtt/hardenmqtt/telemetry"
)

// eventRecord is the JSON shape published to telemetry.EventsTopic.
type eventRecord struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// clientBinding lets EventLogger hold an mqtt.Client behind an
// atomic.Pointer -- atomic.Pointer requires a concrete pointee type,
// and mqtt.Client is an interface, so the interface value is boxed in
// this single-field struct.
type clientBinding struct {
	client mqtt.Client
}

// EventLogger is an slog.Handler that forwards every record to a
// wrapped handler unconditionally, and additionally publishes records
// at or above MinLevel to the reserved event-log topic once a client
// has been bound. A binary constructs its EventLogger before its MQTT
// connection exists and calls BindClient once Connect succeeds --
// mirroring how a TUI's log handler is wired up before the rendering
// program it forwards to has started.
type EventLogger struct {
	next     slog.Handler
	MinLevel slog.Level

	// binding is a pointer to a shared atomic.Pointer so that
	// WithAttrs/WithGroup derivatives observe a later BindClient call
	// made against the original handler, rather than each derivative
	// tracking its own independent binding.
	binding *atomic.Pointer[clientBinding]
}

// NewEventLogger wraps next, which continues to receive every record
// regardless of whether a client is bound.
func NewEventLogger(next slog.Handler, minLevel slog.Level) *EventLogger {
	return &EventLogger{next: next, MinLevel: minLevel, binding: new(atomic.Pointer[clientBinding])}
}

// BindClient attaches the MQTT client records are published over.
// Safe to call at most once; safe to call concurrently with Handle.
func (h *EventLogger) BindClient(client mqtt.Client) {
	h.binding.Store(&clientBinding{client: client})
}

// Enabled reports true for levels at or above MinLevel, which are
// published whatever the wrapped handler's own threshold, and otherwise
// defers to the wrapped handler.
func (h *EventLogger) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.MinLevel || h.next.Enabled(ctx, level)
}

// Handle publishes records at or above MinLevel and forwards every
// record the wrapped handler is enabled for.
func (h *EventLogger) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= h.MinLevel {
		h.publish(record)
	}
	if !h.next.Enabled(ctx, record.Level) {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *EventLogger) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EventLogger{next: h.next.WithAttrs(attrs), MinLevel: h.MinLevel, binding: h.binding}
}

func (h *EventLogger) WithGroup(name string) slog.Handler {
	return &EventLogger{next: h.next.WithGroup(name), MinLevel: h.MinLevel, binding: h.binding}
}

func (h *EventLogger) publish(record slog.Record) {
	bound := h.binding.Load()
	if bound == nil || bound.client == nil {
		return
	}

	attrs := make(map[string]any)
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	data, err := json.Marshal(eventRecord{
		Time:    record.Time,
		Level:   record.Level.String(),
		Message: record.Message,
		Attrs:   attrs,
	})
	if err != nil {
		return
	}

	_ = bound.client.Publish(telemetry.EventsTopic, mqtt.AtMostOnce, true, data)
}
