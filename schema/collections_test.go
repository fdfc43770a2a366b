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
	"reflect"
	"testing"

	"github.com/adobe/pardon-engine/pcontext"
)

// Merging three objects in different orders arrives at the same field
// set and values, since Object.Merge folds by sorted field name rather
// than arrival order (spec.md §8's "order independence" invariant).
func TestObjectMergeIsOrderIndependent(t *testing.T) {
	build := func(fields map[string]string) *Object {
		o := NewObject(false)
		for name, src := range fields {
			s, err := NewScalar(TypeString, src)
			if err != nil {
				t.Fatal(err)
			}
			o.Fields[name] = s
		}
		return o
	}

	a := build(map[string]string{"name": "Acme"})
	b := build(map[string]string{"id": "{{id}}"})
	c := build(map[string]string{"active": "true"})

	mergeAndRender := func(order []*Object) map[string]interface{} {
		ctx := newCtx(pcontext.Mix)
		var merged Schema = order[0]
		for _, next := range order[1:] {
			m, err := merged.Merge(ctx, Of(next))
			if err != nil {
				t.Fatal(err)
			}
			merged = m
		}
		render := newCtx(pcontext.Render)
		render.Scope = ctx.Scope
		render.Scope.Define("id", "7", false)
		out, err := merged.Render(render)
		if err != nil {
			t.Fatal(err)
		}
		return out.(map[string]interface{})
	}

	abc := mergeAndRender([]*Object{build(map[string]string{"name": "Acme"}), build(map[string]string{"id": "{{id}}"}), build(map[string]string{"active": "true"})})
	cba := mergeAndRender([]*Object{build(map[string]string{"active": "true"}), build(map[string]string{"id": "{{id}}"}), build(map[string]string{"name": "Acme"})})

	_ = a
	_ = b
	_ = c
	if !reflect.DeepEqual(abc, cba) {
		t.Fatalf("merge order changed the result: %v vs %v", abc, cba)
	}
}

// A keyed.mv list keeps every value for a repeated key as a bag instead
// of merging them away (spec.md §4.3's "keyed.mv" note).
func TestKeyedMVRetainsRepeatedKeyValues(t *testing.T) {
	ctx := newCtx(pcontext.Mix)

	newEntry := func(id, val string) *Object {
		o := NewObject(false)
		idField, _ := NewScalar(TypeString, id)
		valField, _ := NewScalar(TypeString, val)
		o.Fields["id"] = idField
		o.Fields["value"] = valField
		return o
	}

	k := NewKeyed("id", nil, true)
	first, err := newEntry("a", "one").Merge(ctx, Of(NewObject(false)))
	if err != nil {
		t.Fatal(err)
	}
	k.Items["a"] = first
	k.Order = []string{"a"}

	incoming := &Tuple{Elements: []Schema{newEntry("a", "two")}}
	merged, err := k.Merge(ctx, Of(incoming))
	if err != nil {
		t.Fatal(err)
	}
	mk := merged.(*Keyed)

	tup, ok := mk.Items["a"].(*Tuple)
	if !ok {
		t.Fatalf("expected a repeated key to promote to a Tuple bag, got %T", mk.Items["a"])
	}
	if len(tup.Elements) != 2 {
		t.Fatalf("expected both values retained, got %d elements", len(tup.Elements))
	}
}

// Array elements mix element-wise by index; extra elements on the
// incoming side are appended rather than dropped.
func TestArrayMergeMixesByIndex(t *testing.T) {
	ctx := newCtx(pcontext.Mix)

	a := &Array{Elements: []Schema{mustScalar(t, "{{first}}")}}
	b := &Array{Elements: []Schema{mustScalar(t, "one"), mustScalar(t, "two")}}

	merged, err := a.Merge(ctx, Of(b))
	if err != nil {
		t.Fatal(err)
	}
	ma := merged.(*Array)
	if len(ma.Elements) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(ma.Elements))
	}

	render := newCtx(pcontext.Render)
	render.Scope = ctx.Scope
	out, err := ma.Render(render)
	if err != nil {
		t.Fatal(err)
	}
	vals := out.([]interface{})
	if vals[0] != "one" || vals[1] != "two" {
		t.Fatalf("got %v", vals)
	}
}

func mustScalar(t *testing.T, src string) *Scalar {
	t.Helper()
	s, err := NewScalar(TypeString, src)
	if err != nil {
		t.Fatal(err)
	}
	return s
}
