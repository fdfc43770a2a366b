/*
 * Copyright 2021 Comcast Cable Communications Management, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package transport

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/adobe/pardon-engine/envelope"
)

// MQTT is an alternate, asynchronous engine.Fetcher for endpoints that
// have no HTTP response: it publishes the rendered request's body to
// Topic and returns the first message observed on ReplyTopic, or times
// out. Grounded on the Chan abstraction's Pub/To/Recv split in
// chans/httpclient.go, generalized from net/http to the teacher's own
// paho.mqtt.golang dependency (shipped in go.mod for an MQTT channel
// fixture the retrieved source subset does not include).
type MQTT struct {
	Client     mqtt.Client
	Topic      string
	ReplyTopic string
	QoS        byte
	Timeout    time.Duration
}

func NewMQTT(brokerURL, clientID, topic, replyTopic string) *MQTT {
	opts := mqtt.NewClientOptions().AddBroker(brokerURL).SetClientID(clientID)
	return &MQTT{
		Client:     mqtt.NewClient(opts),
		Topic:      topic,
		ReplyTopic: replyTopic,
		QoS:        1,
		Timeout:    5 * time.Second,
	}
}

// Fetch publishes req.Body to m.Topic and waits for a single reply on
// m.ReplyTopic, mirroring chans/httpclient.go's To (queue, then block
// until ctx.Done() or a value arrives) but over MQTT pub/sub instead of
// an in-process channel.
func (m *MQTT) Fetch(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	if !m.Client.IsConnected() {
		if tok := m.Client.Connect(); tok.Wait() && tok.Error() != nil {
			return nil, fmt.Errorf("transport: mqtt connect: %w", tok.Error())
		}
	}

	replies := make(chan string, 1)
	if m.ReplyTopic != "" {
		tok := m.Client.Subscribe(m.ReplyTopic, m.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			select {
			case replies <- string(msg.Payload()):
			default:
			}
		})
		if tok.Wait() && tok.Error() != nil {
			return nil, fmt.Errorf("transport: mqtt subscribe: %w", tok.Error())
		}
		defer m.Client.Unsubscribe(m.ReplyTopic)
	}

	tok := m.Client.Publish(m.Topic, m.QoS, false, req.Body)
	if tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("transport: mqtt publish: %w", tok.Error())
	}

	if m.ReplyTopic == "" {
		return &envelope.Response{Status: 202}, nil
	}

	body, err := waitOrDone(ctx, replies, m.Timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: mqtt reply on %q: %w", m.ReplyTopic, err)
	}
	return &envelope.Response{Status: 200, Body: body}, nil
}
