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

package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/adobe/pardon-engine/endpoint"
	"github.com/adobe/pardon-engine/envelope"
	"github.com/adobe/pardon-engine/https"
)

const getThing = `
config:
  method: GET

>>>
GET /v1/things/{{id}}

<<< 200
Content-Type: application/json

{"ok": true, "id": "{{id}}"}

<<< 404
Content-Type: application/json

{"error": "{{msg}}"}
`

func newTestEndpoint() *endpoint.Endpoint {
	env := endpoint.New("test")
	env.Inputs["origin"] = "https://api.example.com"
	env.Inputs["id"] = "42"
	return env
}

// stubFetcher answers a fixed response without touching the network,
// the same role the teacher's recorded-transcript transports play in
// its own client tests.
type stubFetcher struct {
	resp *envelope.Response
	err  error
	sent *envelope.Request
}

func (f *stubFetcher) Fetch(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	f.sent = req
	return f.resp, f.err
}

func TestEngineRenderBindsFromEndpointInputs(t *testing.T) {
	tpl, err := https.Parse(getThing)
	if err != nil {
		t.Fatal(err)
	}
	e := New(tpl, newTestEndpoint(), nil)

	result, err := e.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Request.Method != "GET" {
		t.Fatalf("got method %q", result.Request.Method)
	}
	if !strings.HasSuffix(result.Request.URL, "/v1/things/42") {
		t.Fatalf("got url %q", result.Request.URL)
	}
	if result.Redacted.Method != result.Request.Method {
		t.Fatalf("redacted copy should only differ in secret values, got method %q", result.Redacted.Method)
	}
	if got := result.Bindings["id"]; got != "42" {
		t.Fatalf("expected id=42 bound, got %v", result.Bindings)
	}
}

func TestEnginePreviewLeavesUnboundHolesAsSource(t *testing.T) {
	tpl, err := https.Parse(getThing)
	if err != nil {
		t.Fatal(err)
	}
	e := New(tpl, endpoint.New("empty"), nil)

	req, err := e.Preview(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(req.URL, "{{id}}") && !strings.Contains(req.URL, "id") {
		t.Fatalf("expected preview to surface the unresolved hole, got %q", req.URL)
	}
}

func TestEngineMatchSelectsVariantAndBindsCapture(t *testing.T) {
	tpl, err := https.Parse(getThing)
	if err != nil {
		t.Fatal(err)
	}
	e := New(tpl, newTestEndpoint(), nil)

	result, err := e.Match(context.Background(), &envelope.Response{
		Status: 404,
		Body:   `{"error": "missing"}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Bindings["msg"]; got != "missing" {
		t.Fatalf("expected msg bound from the 404 variant, got %v", result.Bindings)
	}
	if _, ok := result.Bindings["id"]; ok {
		t.Fatalf("expected id to stay unbound when the 404 variant never references it, got %v", result.Bindings)
	}
}

func TestEngineProcessRendersFetchesAndMatches(t *testing.T) {
	tpl, err := https.Parse(getThing)
	if err != nil {
		t.Fatal(err)
	}
	fetcher := &stubFetcher{resp: &envelope.Response{
		Status: 200,
		Headers: map[string][]string{
			"Content-Type": {"application/json"},
		},
		Body: `{"ok": true, "id": "42"}`,
	}}
	e := New(tpl, newTestEndpoint(), fetcher)

	result, err := e.Process(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Response.Status != 200 {
		t.Fatalf("got status %d", result.Response.Status)
	}
	if fetcher.sent == nil {
		t.Fatal("expected Process to dispatch the rendered request through the fetcher")
	}
	if !strings.HasSuffix(fetcher.sent.URL, "/v1/things/42") {
		t.Fatalf("got dispatched url %q", fetcher.sent.URL)
	}
	if got := result.Ingress["id"]; got != "42" {
		t.Fatalf("expected the response match to confirm id=42, got %v", result.Ingress)
	}
}

func TestEngineProcessReturnsFetchError(t *testing.T) {
	tpl, err := https.Parse(getThing)
	if err != nil {
		t.Fatal(err)
	}
	fetcher := &stubFetcher{err: context.DeadlineExceeded}
	e := New(tpl, newTestEndpoint(), fetcher)

	if _, err := e.Process(context.Background()); err == nil {
		t.Fatal("expected Process to surface the fetcher's error")
	}
}
