// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch demultiplexes the HardenMQTT topic namespace into
// the typed presentation and verification paths a display binary
// needs, and provides the ambient console/event-log plumbing shared
// across binaries.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/hardenmqtt/hardenmqtt/mqtt"
	"github.com/hardenmqtt/hardenmqtt/telemetry"
)

// Router subscribes to the whole HardenMqtt namespace once and
// demultiplexes each inbound message to the correct typed callback
// based on which of the six topic shapes it matches. A nil callback
// means "not interested"; the message is dropped without allocating
// anything on that path.
type Router struct {
	OnUnstructured        func(deviceID, field string, payload []byte)
	OnStructured          func(deviceID string, payload []byte)
	OnInteroperable       func(deviceID string, payload []byte)
	OnSecuredPublic       func(publicKeyBase64Url string, payload []byte)
	OnSecuredConfidential func(publicKeyBase64Url string, payload []byte)
	OnEvent               func(payload []byte)
}

// Subscribe registers the router's dispatch method against every
// topic under telemetry.Root.
func (r *Router) Subscribe(client mqtt.Client) error {
	if err := client.Subscribe(telemetry.Root+"/#", r.dispatch); err != nil {
		return fmt.Errorf("dispatch: subscribing to %s/#: %w", telemetry.Root, err)
	}
	return nil
}

func (r *Router) dispatch(msg mqtt.Message) {
	segments := strings.Split(msg.Topic, "/")
	if len(segments) < 2 || segments[0] != telemetry.Root {
		return
	}

	switch segments[1] {
	case "Events":
		if len(segments) == 2 && r.OnEvent != nil {
			r.OnEvent(msg.Payload)
		}
	case "Unsecured":
		r.dispatchUnsecured(segments, msg.Payload)
	case "Secured":
		r.dispatchSecured(segments, msg.Payload)
	}
}

func (r *Router) dispatchUnsecured(segments []string, payload []byte) {
	if len(segments) < 4 {
		return
	}
	switch segments[2] {
	case "Unstructured":
		if len(segments) == 5 && r.OnUnstructured != nil {
			r.OnUnstructured(segments[3], segments[4], payload)
		}
	case "Structured":
		if len(segments) == 4 && r.OnStructured != nil {
			r.OnStructured(segments[3], payload)
		}
	case "Interoperable":
		if len(segments) == 4 && r.OnInteroperable != nil {
			r.OnInteroperable(segments[3], payload)
		}
	}
}

func (r *Router) dispatchSecured(segments []string, payload []byte) {
	if len(segments) != 4 {
		return
	}
	switch segments[2] {
	case "Public":
		if r.OnSecuredPublic != nil {
			r.OnSecuredPublic(segments[3], payload)
		}
	case "Confidential":
		if r.OnSecuredConfidential != nil {
			r.OnSecuredConfidential(segments[3], payload)
		}
	}
}
