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

package endpoint

import (
	"testing"

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/scope"
)

type memStore map[string]interface{}

func (m memStore) Learn(name string, value interface{}) { m[name] = value }
func (m memStore) Recall(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

func TestResolvePrefersInputOverDefault(t *testing.T) {
	e := New("svc")
	e.Inputs["host"] = "input.example.com"
	e.Defaults["host"] = scope.Lit("default.example.com")

	ctx := pcontext.New(nil, pcontext.Render)
	v, err := e.Resolve(ctx, "host", false)
	if err != nil {
		t.Fatal(err)
	}
	if v != "input.example.com" {
		t.Fatalf("got %v", v)
	}
}

func TestResolveFallsBackToDefaultTree(t *testing.T) {
	e := New("svc")
	e.Defaults["host"] = scope.Branch("env", map[string]*scope.DefaultTree{
		"prod": scope.Lit("api.example.com"),
	}, scope.Lit("localhost"))

	ctx := pcontext.New(nil, pcontext.Render)
	ctx.Scope.Define("env", "prod", false)

	v, err := e.Resolve(ctx, "host", false)
	if err != nil {
		t.Fatal(err)
	}
	if v != "api.example.com" {
		t.Fatalf("got %v", v)
	}
}

func TestSecretsCapabilityLookupAndBind(t *testing.T) {
	e := New("svc")
	e.Secrets = memStore{}

	ctx := pcontext.New(nil, pcontext.Render)
	cap, err := e.Evaluate(ctx, "secrets")
	if err != nil {
		t.Fatal(err)
	}
	capMap := cap.(map[string]interface{})
	bind := capMap["bind"].(func(string, interface{}) bool)
	lookup := capMap["lookup"].(func(string) (interface{}, bool))

	if !bind("token", "s3cr3t") {
		t.Fatal("expected bind to succeed")
	}
	v, ok := lookup("token")
	if !ok || v != "s3cr3t" {
		t.Fatalf("got %v %v", v, ok)
	}
}

func TestRedactHidesSecretValues(t *testing.T) {
	e := New("svc")
	ctx := pcontext.New(nil, pcontext.Render)
	if got := e.Redact(ctx, "plain", false); got != "plain" {
		t.Fatalf("got %v", got)
	}
	if got := e.Redact(ctx, "s3cr3t", true); got != "{{redacted}}" {
		t.Fatalf("got %v", got)
	}
}
