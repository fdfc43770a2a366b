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

package schema

import (
	"testing"

	"github.com/adobe/pardon-engine/pattern"
	"github.com/adobe/pardon-engine/pcontext"
)

func newCtx(mode pcontext.Mode) *pcontext.Context {
	return pcontext.New(nil, mode)
}

func TestScalarRenderFromInput(t *testing.T) {
	ctx := newCtx(pcontext.Render)
	s, err := NewScalar(TypeString, "{{id}}")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ScopeInto(ctx); err != nil {
		t.Fatal(err)
	}
	ctx.Scope.Define("id", "42", false)

	out, err := s.Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out != "42" {
		t.Fatalf("got %v", out)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	build := newCtx(pcontext.Render)
	s, _ := NewScalar(TypeString, "/v1/things/{{id}}")
	if err := s.ScopeInto(build); err != nil {
		t.Fatal(err)
	}
	build.Scope.Define("id", "42", false)
	rendered, err := s.Render(build)
	if err != nil {
		t.Fatal(err)
	}

	bs, ok, err := pattern.Match(s.Pattern, rendered.(string))
	if err != nil || !ok {
		t.Fatalf("match failed: %v %v", ok, err)
	}
	if bs["id"] != "42" {
		t.Fatalf("got %v", bs)
	}
}

func TestStubRequiredFailsOnMatch(t *testing.T) {
	ctx := newCtx(pcontext.Match)
	s := &Stub{HasFallback: true, Fallback: nil}
	if _, err := s.Render(ctx); err == nil {
		t.Fatal("expected match/required error")
	}
}

func TestEmptyObjectMergeIsNoop(t *testing.T) {
	ctx := newCtx(pcontext.Mix)
	base := NewObject(false)
	name, _ := NewScalar(TypeString, "{{name}}")
	base.Fields["name"] = name

	empty := NewObject(false)
	merged, err := base.Merge(ctx, Of(empty))
	if err != nil {
		t.Fatal(err)
	}
	mo := merged.(*Object)
	if len(mo.Fields) != 1 {
		t.Fatalf("expected empty merge to add no fields, got %v", mo.Fields)
	}
}

func TestObjectMergeUnifiesSharedField(t *testing.T) {
	ctx := newCtx(pcontext.Mix)

	a := NewObject(false)
	an, _ := NewScalar(TypeString, "{{name}}")
	a.Fields["name"] = an

	b := NewObject(false)
	bn, _ := NewScalar(TypeString, "Acme")
	b.Fields["name"] = bn

	merged, err := a.Merge(ctx, Of(b))
	if err != nil {
		t.Fatal(err)
	}

	render := newCtx(pcontext.Render)
	render.Scope = ctx.Scope
	out, err := merged.Render(render)
	if err != nil {
		t.Fatal(err)
	}
	m := out.(map[string]interface{})
	if m["name"] != "Acme" {
		t.Fatalf("got %v", m)
	}
}

func TestValueMergeConflict(t *testing.T) {
	ctx := newCtx(pcontext.Mix)
	a := &Value{V: "x"}
	b := &Value{V: "y"}
	if _, err := a.Merge(ctx, Of(b)); err == nil {
		t.Fatal("expected conflict error")
	}
}
