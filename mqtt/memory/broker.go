// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides a deterministic, in-process stand-in for an
// MQTT broker, implementing mqtt.Client. It is used by tests and by the
// bundled single-process demo command -- it is not a production broker
// client. Publish delivers to matching subscribers synchronously;
// retained messages replayed on Subscribe are delivered from a separate
// goroutine. QoS 0 ("at most once") only, matching the namespace this
// specification defines.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/hardenmqtt/hardenmqtt/mqtt"
)

// Broker is a shared in-memory message hub. Multiple Client values
// created with NewClient on the same Broker can publish to and receive
// from each other, modeling independent devices sharing one real
// broker.
type Broker struct {
	mu          sync.Mutex
	subscribers map[*Client]map[string]mqtt.Handler
	retained    map[string]mqtt.Message
}

// NewBroker creates an empty broker with no retained messages and no
// subscribers.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[*Client]map[string]mqtt.Handler),
		retained:    make(map[string]mqtt.Message),
	}
}

// Client is one device's connection to a Broker.
type Client struct {
	broker    *Broker
	connected bool
}

// NewClient creates a Client bound to broker. Connect must be called
// before Publish/Subscribe take effect.
func NewClient(broker *Broker) *Client {
	return &Client{broker: broker}
}

func (c *Client) Connect(ctx context.Context) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.connected = true
	if _, ok := c.broker.subscribers[c]; !ok {
		c.broker.subscribers[c] = make(map[string]mqtt.Handler)
	}
	return nil
}

func (c *Client) Disconnect() {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.connected = false
	delete(c.broker.subscribers, c)
}

func (c *Client) Subscribe(topic string, handler mqtt.Handler) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.broker.subscribers[c] == nil {
		c.broker.subscribers[c] = make(map[string]mqtt.Handler)
	}
	c.broker.subscribers[c][topic] = handler

	// Deliver retained messages matching this new filter immediately,
	// mirroring real broker behavior on subscribe.
	var toDeliver []mqtt.Message
	for retainedTopic, message := range c.broker.retained {
		if topicMatches(topic, retainedTopic) {
			toDeliver = append(toDeliver, message)
		}
	}
	// Deliver outside the lock to avoid re-entrant deadlock if the
	// handler itself calls back into the broker.
	go func() {
		for _, m := range toDeliver {
			handler(m)
		}
	}()
	return nil
}

func (c *Client) Unsubscribe(topic string) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	delete(c.broker.subscribers[c], topic)
	return nil
}

func (c *Client) Publish(topic string, qos mqtt.QoS, retain bool, payload []byte) error {
	message := mqtt.Message{Topic: topic, Payload: payload, Retain: retain}

	c.broker.mu.Lock()
	if retain {
		if len(payload) == 0 {
			delete(c.broker.retained, topic)
		} else {
			c.broker.retained[topic] = message
		}
	}
	// Snapshot handlers matching this topic under the lock, deliver
	// after releasing it.
	var handlers []mqtt.Handler
	for _, filters := range c.broker.subscribers {
		for filter, handler := range filters {
			if topicMatches(filter, topic) {
				handlers = append(handlers, handler)
			}
		}
	}
	c.broker.mu.Unlock()

	for _, h := range handlers {
		h(message)
	}
	return nil
}

// topicMatches reports whether topic matches filter, per MQTT topic
// filter semantics: "+" matches exactly one level, "#" (only legal as
// the final level) matches zero or more trailing levels.
func topicMatches(filter, topic string) bool {
	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")

	for i, f := range filterLevels {
		if f == "#" {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if f != "+" && f != topicLevels[i] {
			return false
		}
	}
	return len(filterLevels) == len(topicLevels)
}

var _ mqtt.Client = (*Client)(nil)
