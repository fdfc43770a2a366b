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

// Package transport implements the external-collaborator interfaces
// spec.md §6 names but leaves abstract: the engine.Fetcher interface a
// rendered envelope.Request is dispatched through. HTTPClient is the
// default, synchronous implementation over net/http; MQTT and Kinesis
// are alternate asynchronous dispatch paths for endpoints whose
// "response" isn't an HTTP reply.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adobe/pardon-engine/envelope"
)

// HTTPClient implements engine.Fetcher over net/http, grounded directly
// on chans/httpclient.go's HTTPClient channel: a bare *http.Client plus
// a small adapter from the envelope's flat request shape to
// *http.Request and back.
type HTTPClient struct {
	Client *http.Client
}

func NewHTTPClient() *HTTPClient {
	return &HTTPClient{Client: &http.Client{}}
}

// Fetch performs req and decomposes the reply into an
// *envelope.Response, mirroring extractHTTPRequest/Pub in
// chans/httpclient.go (build *http.Request from the flat shape, run
// it, read the body back as a string).
func (h *HTTPClient) Fetch(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &envelope.Response{
		Status:  resp.StatusCode,
		Headers: map[string][]string(resp.Header),
		Body:    string(bs),
	}, nil
}

// waitOrDone mirrors chans/httpclient.go's To: select against either a
// value arriving on replies, ctx.Done(), or a timeout, used by MQTT
// (mqtt.go), which has no synchronous request/response pairing and
// instead blocks on a reply channel fed by a subscription.
func waitOrDone(ctx context.Context, replies <-chan string, timeout time.Duration) (string, error) {
	var after <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		after = timer.C
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case body := <-replies:
		return body, nil
	case <-after:
		return "", fmt.Errorf("transport: reply timed out after %s", timeout)
	}
}
