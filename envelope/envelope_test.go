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

package envelope

import (
	"strings"
	"testing"

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/schema"
)

func newRenderCtx() *pcontext.Context {
	return pcontext.New(nil, pcontext.Render)
}

func TestRenderAssemblesURLAndMethod(t *testing.T) {
	ctx := newRenderCtx()

	method, _ := schema.NewScalar(schema.TypeString, "GET")
	origin, _ := schema.NewScalar(schema.TypeString, "https://api.example.com")
	pathname, _ := schema.NewScalar(schema.TypeString, "/v1/things/{{id}}")

	rs := &RequestSchema{Method: method, Origin: origin, Pathname: pathname}
	obj := rs.Object()
	if err := obj.ScopeInto(ctx); err != nil {
		t.Fatal(err)
	}
	ctx.Scope.Define("id", "42", false)

	req, err := Render(ctx, obj)
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != "GET" {
		t.Fatalf("got method %q", req.Method)
	}
	if req.URL != "https://api.example.com/v1/things/42" {
		t.Fatalf("got url %q", req.URL)
	}
}

func TestMatchDecomposesURLIntoBindings(t *testing.T) {
	ctx := pcontext.New(nil, pcontext.Match)

	method, _ := schema.NewScalar(schema.TypeString, "{{method}}")
	origin, _ := schema.NewScalar(schema.TypeString, "{{origin}}")
	pathname, _ := schema.NewScalar(schema.TypeString, "/v1/things/{{id}}")
	rs := &RequestSchema{Method: method, Origin: origin, Pathname: pathname}
	obj := rs.Object()
	if err := obj.ScopeInto(ctx); err != nil {
		t.Fatal(err)
	}

	req := &Request{Method: "GET", URL: "https://api.example.com/v1/things/42"}
	merged, err := Match(ctx, obj, req)
	if err != nil {
		t.Fatal(err)
	}
	if merged == nil {
		t.Fatal("expected a merged schema")
	}

	v, have := ctx.Scope.Lookup("id")
	if !have || v.Value != "42" {
		t.Fatalf("got %v %v", v, have)
	}
}

func TestJoinURLHandlesTrailingSlash(t *testing.T) {
	if got := joinURL("https://x.test/", "/a/b"); got != "https://x.test/a/b" {
		t.Fatalf("got %q", got)
	}
	if got := joinURL("https://x.test", ""); got != "https://x.test" {
		t.Fatalf("got %q", got)
	}
}

func TestBodyEncodingDispatchesOnContentType(t *testing.T) {
	body := &schema.Value{V: `{"a":1}`}
	w := BodyEncoding("application/json", nil)
	if w.Codec.Name() != "json" {
		t.Fatalf("got %s", w.Codec.Name())
	}
	_ = body
	if !strings.Contains("application/json", "json") {
		t.Fatal("sanity")
	}
}
