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

package https

import (
	"strings"
	"testing"

	"github.com/adobe/pardon-engine/envelope"
	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/schema"
)

const simpleDoc = `
config:
  method: GET

>>>
GET /v1/things/{{id}}

<<<
Content-Type: application/json

{"ok": true}
`

func TestParseSimpleGET(t *testing.T) {
	tpl, err := Parse(simpleDoc)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Request == nil {
		t.Fatal("expected a request schema")
	}
	if tpl.Response.Kind() != schema.KindObject {
		t.Fatalf("expected a single object response variant, got %s", tpl.Response.Kind())
	}
}

func TestRenderSimpleGET(t *testing.T) {
	tpl, err := Parse(simpleDoc)
	if err != nil {
		t.Fatal(err)
	}

	ctx := pcontext.New(nil, pcontext.Render)
	if err := tpl.Request.ScopeInto(ctx); err != nil {
		t.Fatal(err)
	}
	ctx.Scope.Define("origin", "https://api.example.com", false)
	ctx.Scope.Define("id", "42", false)

	req, err := envelope.Render(ctx, tpl.Request)
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != "GET" {
		t.Fatalf("got method %q", req.Method)
	}
	if !strings.HasSuffix(req.URL, "/v1/things/42") {
		t.Fatalf("got url %q", req.URL)
	}
}

const polymorphicDoc = `
>>>
GET /v1/things/{{id}}

<<< 200
Content-Type: application/json

{"ok": true}

<<< 404
Content-Type: application/json

{"error": "not found"}
`

func TestParsePolymorphicResponseIsDeferred(t *testing.T) {
	tpl, err := Parse(polymorphicDoc)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Response.Kind() != schema.KindDeferred {
		t.Fatalf("expected a deferred response for multiple status variants, got %s", tpl.Response.Kind())
	}
}

func TestMatchPolymorphicResponseSelectsVariantByStatus(t *testing.T) {
	tpl, err := Parse(polymorphicDoc)
	if err != nil {
		t.Fatal(err)
	}

	ctx := pcontext.New(nil, pcontext.Match)
	resp := &envelope.Response{Status: 404, Body: `{"error": "not found"}`}
	matched, err := envelope.MatchResponse(ctx, tpl.Response, resp)
	if err != nil {
		t.Fatal(err)
	}
	deferred, ok := matched.(*schema.Deferred)
	if !ok {
		t.Fatalf("expected *schema.Deferred back from Match, got %T", matched)
	}
	if deferred.Selected == nil {
		t.Fatal("expected a selected variant after matching a 404 response")
	}
}

const statusClassDoc = `
>>>
GET /v1/things/{{id}}

<<< 200
Content-Type: application/json

{"ok": true}

<<< 4xx
Content-Type: application/json

{"error": "{{msg}}"}

<<< 5xx
Content-Type: application/json

{"error": "server trouble"}
`

func TestParseStatusClassMarkerIsDeferred(t *testing.T) {
	tpl, err := Parse(statusClassDoc)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Response.Kind() != schema.KindDeferred {
		t.Fatalf("expected a deferred response for multiple status variants, got %s", tpl.Response.Kind())
	}
}

// A "4xx"-tagged variant matches any code in 400-499 without also
// swallowing a "5xx" response into the same slot.
func TestMatchStatusClassSelectsWildcardRange(t *testing.T) {
	tpl, err := Parse(statusClassDoc)
	if err != nil {
		t.Fatal(err)
	}

	ctx := pcontext.New(nil, pcontext.Match)
	resp := &envelope.Response{Status: 422, Body: `{"error": "bad request"}`}
	matched, err := envelope.MatchResponse(ctx, tpl.Response, resp)
	if err != nil {
		t.Fatal(err)
	}
	deferred := matched.(*schema.Deferred)
	if deferred.Selected == nil {
		t.Fatal("expected a selected variant after matching a 422 response")
	}

	render := pcontext.New(nil, pcontext.Render)
	render.Scope = ctx.Scope
	out, err := deferred.Selected.Render(render)
	if err != nil {
		t.Fatal(err)
	}
	status := out.(map[string]interface{})["status"]
	if status != float64(422) {
		t.Fatalf("expected the 4xx variant to bind the real status 422, got %v", status)
	}
}

// A 500 response must select the "5xx" variant, not the "4xx" one --
// confirming distinct status classes stay in distinct slots instead of
// collapsing to a single fallback.
func TestMatchStatusClassKeepsDistinctRangesApart(t *testing.T) {
	tpl, err := Parse(statusClassDoc)
	if err != nil {
		t.Fatal(err)
	}

	ctx := pcontext.New(nil, pcontext.Match)
	resp := &envelope.Response{Status: 500, Body: `{"error": "server trouble"}`}
	matched, err := envelope.MatchResponse(ctx, tpl.Response, resp)
	if err != nil {
		t.Fatal(err)
	}
	deferred := matched.(*schema.Deferred)

	render := pcontext.New(nil, pcontext.Render)
	render.Scope = ctx.Scope
	out, err := deferred.Selected.Render(render)
	if err != nil {
		t.Fatal(err)
	}
	body := out.(map[string]interface{})["body"]
	if body == nil || !strings.Contains(body.(string), "server trouble") {
		t.Fatalf("expected the 5xx variant's body, got %v", body)
	}
}

func TestParseRejectsMissingMarkers(t *testing.T) {
	if _, err := Parse("config:\n  foo: bar\n"); err == nil {
		t.Fatal("expected an error for a document with no >>> marker")
	}
}

func TestConfigDefaultTreesBuildsDiscriminatorBranch(t *testing.T) {
	cfg, err := parseConfig(`
defaults:
  host:
    env:
      prod: api.example.com
      default: localhost
`)
	if err != nil {
		t.Fatal(err)
	}
	trees := cfg.DefaultTrees()
	if _, ok := trees["host"]; !ok {
		t.Fatal("expected a host default tree")
	}
}
