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

// scenarios_test.go covers the end-to-end scenarios enumerated in
// spec.md §8 against the full https->engine pipeline.
package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/adobe/pardon-engine/endpoint"
	"github.com/adobe/pardon-engine/envelope"
	"github.com/adobe/pardon-engine/https"
	"github.com/adobe/pardon-engine/pcontext"
)

// Scenario 2: JSON body with a computed field.
func TestScenarioJSONBodyWithComputedField(t *testing.T) {
	const doc = `
config:
  method: POST

>>>
POST /v1/items
Content-Type: application/json

{"name": "{{name}}", "slug": "{{= name.toLowerCase() }}"}

<<< 200
Content-Type: application/json

{"ok": true}
`
	tpl, err := https.Parse(doc)
	if err != nil {
		t.Fatal(err)
	}
	env := endpoint.New("computed")
	env.Inputs["origin"] = "https://api.example.com"
	env.Inputs["name"] = "Acme"

	e := New(tpl, env, nil)
	result, err := e.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Request.Body, `"name":"Acme"`) {
		t.Fatalf("got body %q", result.Request.Body)
	}
	if !strings.Contains(result.Request.Body, `"slug":"acme"`) {
		t.Fatalf("expected a lower-cased slug, got body %q", result.Request.Body)
	}
	if result.Bindings["slug"] != "acme" {
		t.Fatalf("expected slug=acme bound, got %v", result.Bindings)
	}
}

// Scenario 3: form-encoded body round trip (render, then match the
// rendered body back against the same template).
func TestScenarioFormBodyRoundTrip(t *testing.T) {
	const doc = `
config:
  method: POST

>>>
POST /v1/items
Content-Type: application/x-www-form-urlencoded

a={{a}}&b={{b}}

<<< 200
Content-Type: application/json

{"ok": true}
`
	tpl, err := https.Parse(doc)
	if err != nil {
		t.Fatal(err)
	}
	env := endpoint.New("form")
	env.Inputs["origin"] = "https://api.example.com"
	env.Inputs["a"] = "1"
	env.Inputs["b"] = "2 3"

	e := New(tpl, env, nil)
	result, err := e.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Request.Body != "a=1&b=2+3" && result.Request.Body != "a=1&b=2%203" {
		t.Fatalf("got form body %q", result.Request.Body)
	}

	matchCtx := pcontext.New(context.Background(), pcontext.Match)
	if _, err := envelope.Match(matchCtx, tpl.Request, result.Request); err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]string{"a": "1", "b": "2 3"} {
		if v, ok := matchCtx.Scope.Lookup(name); !ok || v.Value != want {
			t.Fatalf("expected %s=%q from matching the rendered request, got %v", name, want, v)
		}
	}
}

// Scenario 4: a @-hinted secret renders in full by default, and as a
// fixed placeholder in the redacted copy Render also produces.
func TestScenarioSecretRedaction(t *testing.T) {
	const doc = `
>>>
GET /v1/whoami
Authorization: {{@token}}

<<< 200
Content-Type: application/json

{"ok": true}
`
	tpl, err := https.Parse(doc)
	if err != nil {
		t.Fatal(err)
	}
	env := endpoint.New("secret")
	env.Inputs["origin"] = "https://api.example.com"
	env.Inputs["token"] = "sek"

	e := New(tpl, env, nil)
	result, err := e.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Request.Headers["Authorization"][0]; got != "sek" {
		t.Fatalf("expected the real secret in the dispatchable request, got %q", got)
	}
	if got := result.Redacted.Headers["Authorization"][0]; got != "{{redacted}}" {
		t.Fatalf("expected the redacted copy to hide the secret, got %q", got)
	}
}

// Scenario 6: a "defaults:" discriminator tree resolves by the current
// config axis, falling back to "default" when the axis is unbound.
func TestScenarioDefaultChainWithDiscriminator(t *testing.T) {
	const doc = `
config:
  method: GET
defaults:
  host:
    env:
      prod: api.example.com
      stage: api.stage.example.com
      default: localhost

>>>
GET /v1/items
origin: https://{{host}}

<<< 200
Content-Type: application/json

{"ok": true}
`
	tpl, err := https.Parse(doc)
	if err != nil {
		t.Fatal(err)
	}

	staged := endpoint.New("staged")
	staged.Config["env"] = "stage"
	req, err := New(tpl, staged, nil).Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(req.Request.URL, "api.stage.example.com") {
		t.Fatalf("expected the stage host default, got %q", req.Request.URL)
	}

	bare := endpoint.New("bare")
	req, err = New(tpl, bare, nil).Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(req.Request.URL, "localhost") {
		t.Fatalf("expected the fallback host default, got %q", req.Request.URL)
	}
}
