// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/hardenmqtt/hardenmqtt/canon"
	"github.com/hardenmqtt/hardenmqtt/identity"
	"github.com/hardenmqtt/hardenmqtt/interop"
	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt"
	"github.com/hardenmqtt/hardenmqtt/sensor"
)

// Root is the fixed topic namespace root every telemetry topic hangs
// off of.
const Root = "HardenMqtt"

// EventsTopic is the reserved event-log topic: the troll mutator never
// perturbs or republishes to it, and the event logger is the only
// writer.
const EventsTopic = Root + "/Events"

func UnstructuredTopic(deviceID, field string) string {
	return fmt.Sprintf("%s/Unsecured/Unstructured/%s/%s", Root, deviceID, field)
}

func StructuredTopic(deviceID string) string {
	return fmt.Sprintf("%s/Unsecured/Structured/%s", Root, deviceID)
}

func InteroperableTopic(deviceID string) string {
	return fmt.Sprintf("%s/Unsecured/Interoperable/%s", Root, deviceID)
}

func SecuredPublicTopic(publicKeyBase64Url string) string {
	return fmt.Sprintf("%s/Secured/Public/%s", Root, publicKeyBase64Url)
}

func SecuredConfidentialTopic(publicKeyBase64Url string) string {
	return fmt.Sprintf("%s/Secured/Confidential/%s", Root, publicKeyBase64Url)
}

// Publisher drives a device's five publish steps -- unstructured,
// structured, plain interoperable, signed, and confidential -- on
// behalf of one device identity.
type Publisher struct {
	Client mqtt.Client
	Local  *identity.DeviceIdentity
	Clock  clock.Clock
}

// PublishUnstructured publishes each populated scalar field of reading
// to its own retained topic (publish step 1).
func (p *Publisher) PublishUnstructured(reading sensor.Reading) error {
	for _, field := range reading.UnstructuredFields() {
		topic := UnstructuredTopic(p.Local.DeviceID, field.Name)
		if err := p.Client.Publish(topic, mqtt.AtMostOnce, true, []byte(field.Value)); err != nil {
			return fmt.Errorf("telemetry: publishing unstructured field %q: %w", field.Name, err)
		}
	}
	return nil
}

// PublishStructured publishes the whole reading as JSON (publish step 2).
func (p *Publisher) PublishStructured(reading sensor.Reading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("telemetry: marshaling structured reading: %w", err)
	}
	topic := StructuredTopic(p.Local.DeviceID)
	if err := p.Client.Publish(topic, mqtt.AtMostOnce, true, data); err != nil {
		return fmt.Errorf("telemetry: publishing structured reading: %w", err)
	}
	return nil
}

// PublishInteroperable publishes the unsigned interoperable XML
// rendering of fields (publish step 3).
func (p *Publisher) PublishInteroperable(fields []interop.Field) error {
	payload, err := canon.InteroperableBytes(fields)
	if err != nil {
		return fmt.Errorf("telemetry: rendering interoperable payload: %w", err)
	}
	topic := InteroperableTopic(p.Local.DeviceID)
	if err := p.Client.Publish(topic, mqtt.AtMostOnce, true, payload); err != nil {
		return fmt.Errorf("telemetry: publishing interoperable payload: %w", err)
	}
	return nil
}

// PublishSignedPublic signs fields and publishes the signed XML
// (publish step 4), returning the signed payload so PublishAll can
// reuse it for the confidential step without re-signing.
func (p *Publisher) PublishSignedPublic(fields []interop.Field) ([]byte, error) {
	signed, err := SignInteroperable(fields, p.Local.PrivateKey(), p.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("telemetry: signing interoperable payload: %w", err)
	}
	topic := SecuredPublicTopic(p.Local.PublicKeyBase64Url())
	if err := p.Client.Publish(topic, mqtt.AtMostOnce, true, signed); err != nil {
		return nil, fmt.Errorf("telemetry: publishing signed public payload: %w", err)
	}
	return signed, nil
}

// PublishSignedConfidential encrypts an already-signed payload (as
// returned by PublishSignedPublic) under the ECDH-derived key shared
// with peer, and publishes the resulting frame (publish step 5).
func (p *Publisher) PublishSignedConfidential(signedPayload []byte, peer identity.PeerBinding) error {
	sharedSecret, err := identity.SharedSecret(p.Local.PrivateKey(), peer.PeerPublicKey)
	if err != nil {
		return fmt.Errorf("telemetry: deriving shared secret: %w", err)
	}
	key := DeriveKey(sharedSecret)
	frame, err := Encrypt(signedPayload, key)
	if err != nil {
		return fmt.Errorf("telemetry: encrypting signed payload: %w", err)
	}
	topic := SecuredConfidentialTopic(p.Local.PublicKeyBase64Url())
	if err := p.Client.Publish(topic, mqtt.AtMostOnce, true, frame.Encode()); err != nil {
		return fmt.Errorf("telemetry: publishing confidential frame: %w", err)
	}
	return nil
}

// PublishAll runs the five publish steps in order, skipping the
// confidential step when peer is nil -- this is the entry point sensor
// binaries call once per reading.
func (p *Publisher) PublishAll(reading sensor.Reading, thing string, peer *identity.PeerBinding) error {
	if err := p.PublishUnstructured(reading); err != nil {
		return err
	}
	if err := p.PublishStructured(reading); err != nil {
		return err
	}
	fields := reading.ToFields(thing)
	if err := p.PublishInteroperable(fields); err != nil {
		return err
	}
	signed, err := p.PublishSignedPublic(fields)
	if err != nil {
		return err
	}
	if peer == nil {
		return nil
	}
	return p.PublishSignedConfidential(signed, *peer)
}
