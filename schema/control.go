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
	"fmt"
	"reflect"

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/perr"
)

// Value is a literal constant (spec.md §4.3): merge accepts only
// templates whose valueId matches; render returns v unconditionally.
type Value struct {
	V interface{}
}

func (v *Value) Kind() Kind { return KindValue }

func (v *Value) ScopeInto(ctx *pcontext.Context) error { return nil }

func (v *Value) Merge(ctx *pcontext.Context, t Schematic) (Schema, error) {
	other, err := Expand(ctx, t)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return v, nil
	}
	switch o := other.(type) {
	case *Value:
		if !reflect.DeepEqual(v.V, o.V) {
			if ctx.Mode == pcontext.Match {
				ctx.Diagnose(nil, "value mismatch: %v vs %v", v.V, o.V)
				return nil, nil
			}
			return nil, perr.New(perr.Conflict, ctx.Loc(), "value mismatch: %v vs %v", v.V, o.V)
		}
		return v, nil
	case *Stub:
		return v, nil
	default:
		return nil, perr.New(perr.Conflict, ctx.Loc(), "cannot merge value with %s", other.Kind())
	}
}

func (v *Value) Render(ctx *pcontext.Context) (interface{}, error)  { return v.V, nil }
func (v *Value) Resolve(ctx *pcontext.Context) (interface{}, error) { return v.V, nil }

// Stub is a placeholder (spec.md §4.3): merging with any template
// expands that template in place; unmerged, it renders its Fallback,
// or nil when it has none. When Fallback is the explicit nil marker,
// rendering in match mode fails with a "required" match error; in
// other modes it renders nil.
type Stub struct {
	// HasFallback distinguishes "no fallback" from "fallback is nil",
	// since Go's nil can't carry that distinction through interface{}.
	HasFallback bool
	Fallback    interface{}
}

func (s *Stub) Kind() Kind { return KindStub }

func (s *Stub) ScopeInto(ctx *pcontext.Context) error { return nil }

func (s *Stub) Merge(ctx *pcontext.Context, t Schematic) (Schema, error) {
	expanded, err := Expand(ctx, t)
	if err != nil {
		return nil, err
	}
	if expanded == nil {
		return s, nil
	}
	return expanded, nil
}

func (s *Stub) Render(ctx *pcontext.Context) (interface{}, error) {
	if ctx.Mode == pcontext.Match && s.HasFallback && s.Fallback == nil {
		return nil, perr.New(perr.Match, ctx.Loc(), "required")
	}
	if s.HasFallback {
		return s.Fallback, nil
	}
	return nil, nil
}

func (s *Stub) Resolve(ctx *pcontext.Context) (interface{}, error) { return s.Render(ctx) }

// Hidden renders to nothing but still declares variables into scope;
// used for computed bindings that should not appear in output.
type Hidden struct {
	Inner Schema
}

func (h *Hidden) Kind() Kind { return KindHidden }

func (h *Hidden) ScopeInto(ctx *pcontext.Context) error {
	return h.Inner.ScopeInto(ctx)
}

func (h *Hidden) Merge(ctx *pcontext.Context, t Schematic) (Schema, error) {
	merged, err := h.Inner.Merge(ctx, t)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, nil
	}
	return &Hidden{Inner: merged}, nil
}

func (h *Hidden) Render(ctx *pcontext.Context) (interface{}, error) {
	if _, err := h.Inner.Render(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

func (h *Hidden) Resolve(ctx *pcontext.Context) (interface{}, error) { return nil, nil }

// Scoped re-roots Inner in a named subscope computed at runtime, by
// resolving Key in the enclosing scope or taking KeyLiteral if Key is
// empty (spec.md §4.3: used by endpoints to isolate response and
// sub-request bindings).
type Scoped struct {
	Key        string // identifier to resolve for the subscope label, or ""
	KeyLiteral string // literal label when Key == ""
	Inner      Schema
}

func (s *Scoped) Kind() Kind { return KindScoped }

func (s *Scoped) label(ctx *pcontext.Context) string {
	if s.Key == "" {
		return s.KeyLiteral
	}
	if v, have := ctx.Scope.Lookup(s.Key); have {
		return fmt.Sprintf("%v", v.Value)
	}
	return s.Key
}

func (s *Scoped) child(ctx *pcontext.Context) *pcontext.Context {
	sub := ctx.Scope.Field(s.label(ctx))
	return ctx.WithScope(sub).Scoped(sub.Label().String())
}

func (s *Scoped) ScopeInto(ctx *pcontext.Context) error {
	return s.Inner.ScopeInto(s.child(ctx))
}

func (s *Scoped) Merge(ctx *pcontext.Context, t Schematic) (Schema, error) {
	merged, err := s.Inner.Merge(s.child(ctx), t)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, nil
	}
	return &Scoped{Key: s.Key, KeyLiteral: s.KeyLiteral, Inner: merged}, nil
}

func (s *Scoped) Render(ctx *pcontext.Context) (interface{}, error) {
	return s.Inner.Render(s.child(ctx))
}

func (s *Scoped) Resolve(ctx *pcontext.Context) (interface{}, error) {
	return s.Inner.Resolve(s.child(ctx))
}

// DeferredRule decides, given the incoming template's expansion, which
// variant schema to swap in.
type DeferredRule func(ctx *pcontext.Context, incoming Schema) (Schema, error)

// Deferred swaps itself at merge time based on Rule evaluating the
// incoming template (spec.md §4.3); used for polymorphism, e.g.
// selecting a response variant by status code.
type Deferred struct {
	Rule     DeferredRule
	Variants []Schema
	Selected Schema // once resolved by a prior merge, subsequent merges go straight here
}

func (d *Deferred) Kind() Kind { return KindDeferred }

func (d *Deferred) ScopeInto(ctx *pcontext.Context) error {
	if d.Selected != nil {
		return d.Selected.ScopeInto(ctx)
	}
	for _, v := range d.Variants {
		if err := v.ScopeInto(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *Deferred) Merge(ctx *pcontext.Context, t Schematic) (Schema, error) {
	if d.Selected != nil {
		merged, err := d.Selected.Merge(ctx, t)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			return nil, nil
		}
		return &Deferred{Rule: d.Rule, Variants: d.Variants, Selected: merged}, nil
	}

	expanded, err := Expand(ctx, t)
	if err != nil {
		return nil, err
	}

	selected, err := d.Rule(ctx, expanded)
	if err != nil {
		if ctx.Mode == pcontext.Match {
			ctx.Diagnose(err, "no deferred variant matched")
			return nil, nil
		}
		return nil, perr.New(perr.Match, ctx.Loc(), "no deferred variant: %v", err)
	}

	merged, err := selected.Merge(ctx, Of(expanded))
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, nil
	}
	return &Deferred{Rule: d.Rule, Variants: d.Variants, Selected: merged}, nil
}

func (d *Deferred) Render(ctx *pcontext.Context) (interface{}, error) {
	if d.Selected == nil {
		if len(d.Variants) == 0 {
			return nil, perr.New(perr.Unbound, ctx.Loc(), "deferred schema has no variants")
		}
		return d.Variants[0].Render(ctx)
	}
	return d.Selected.Render(ctx)
}

func (d *Deferred) Resolve(ctx *pcontext.Context) (interface{}, error) {
	if d.Selected == nil {
		return nil, nil
	}
	return d.Selected.Resolve(ctx)
}
