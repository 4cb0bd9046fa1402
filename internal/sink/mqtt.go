// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_instrument/internal/engine"
)

// PublishTimeout bounds how long a publish may hold up the caller. While the
// broker is unreachable the client may never complete the token.
const PublishTimeout = 250 * time.Millisecond

// ErrPublishTimeout is returned when the broker did not ack in time.
var ErrPublishTimeout = errors.New("publish timed out")

// Publisher is the slice of mqtt.Client the sinks need.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes each event as JSON on a single topic. Note events are
// never retained: a late subscriber must not replay a stale NoteOn.
type MQTT struct {
	client Publisher
	topic  string
	qos    byte
}

func NewMQTT(client Publisher, topic string) *MQTT {
	return &MQTT{client: client, topic: topic, qos: 0}
}

func (m *MQTT) Send(e engine.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %v: %w", e, err)
	}
	return waitToken(m.client.Publish(m.topic, m.qos, false, payload), m.topic)
}

func waitToken(token mqtt.Token, topic string) error {
	if !token.WaitTimeout(PublishTimeout) {
		return fmt.Errorf("publish %s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishJSON marshals v and publishes it at QoS 0, waiting at most
// PublishTimeout.
func PublishJSON(client Publisher, topic string, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal for %s: %w", topic, err)
	}
	return waitToken(client.Publish(topic, 0, retained, payload), topic)
}
