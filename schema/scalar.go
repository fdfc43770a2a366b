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
	"math/big"
	"strconv"

	"github.com/adobe/pardon-engine/pattern"
	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/perr"
	"github.com/adobe/pardon-engine/scope"
	"github.com/adobe/pardon-engine/script"
)

// ScalarType is the typed leaf's type tag (spec.md §4.2).
type ScalarType string

const (
	TypeString  ScalarType = "string"
	TypeNumber  ScalarType = "number"
	TypeBigint  ScalarType = "bigint"
	TypeBoolean ScalarType = "boolean"
)

// Scalar is a leaf schema node: a single Pattern plus a type tag
// (spec.md §4.2).
type Scalar struct {
	Type    ScalarType
	Pattern *pattern.Pattern
}

// NewScalar parses src as a pattern and wraps it as a typed leaf.
func NewScalar(typ ScalarType, src string) (*Scalar, error) {
	p, err := pattern.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return &Scalar{Type: typ, Pattern: p}, nil
}

func (s *Scalar) Kind() Kind { return KindScalar }

func (s *Scalar) ScopeInto(ctx *pcontext.Context) error {
	for _, h := range s.Pattern.Holes {
		if h.Anonymous() {
			continue
		}
		hints := map[rune]bool{}
		for hint := range h.Hints {
			hints[rune(hint)] = true
		}
		if err := ctx.Scope.Declare(h.Name, h.Expression, hints); err != nil {
			return perr.Wrap(perr.Conflict, ctx.Loc(), err, "declaring %s", h.Name)
		}
	}
	return nil
}

// Merge unifies s with the scalar/value t expands to (spec.md §4.2).
// Two simple holes of the same name unify. In match mode a literal
// must match s's pattern and binds its holes (a mismatch is a soft
// diagnostic, a binding contradicting an existing one a conflict
// error). Otherwise a literal against a simple hole binds that hole's
// variable, failing with a conflict error if the variable already holds
// a different value; against any other pattern, including a differing
// literal, s is kept unchanged and no diagnostic is recorded.
func (s *Scalar) Merge(ctx *pcontext.Context, t Schematic) (Schema, error) {
	other, err := Expand(ctx, t)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return s, nil
	}

	switch o := other.(type) {
	case *Scalar:
		return s.mergeScalar(ctx, o)
	case *Value:
		return s.mergeLiteral(ctx, o.V)
	case *Stub:
		return s, nil
	default:
		if ctx.Mode == pcontext.Match {
			ctx.Diagnose(nil, "cannot match scalar against %s", other.Kind())
			return nil, nil
		}
		return nil, perr.New(perr.Conflict, ctx.Loc(), "cannot merge scalar with %s", other.Kind())
	}
}

func (s *Scalar) mergeScalar(ctx *pcontext.Context, o *Scalar) (Schema, error) {
	if s.Pattern.Simple() && o.Pattern.Simple() {
		sh, oh := s.Pattern.Holes[0], o.Pattern.Holes[0]
		if sh.Name == oh.Name || oh.Anonymous() {
			merged := *s
			// Prefer whichever side carries an expression or the
			// stronger hints (union of hints).
			h := sh
			for hint, v := range oh.Hints {
				if v {
					h.Hints[hint] = true
				}
			}
			if h.Expression == "" {
				h.Expression = oh.Expression
			}
			p := *s.Pattern
			p.Holes = []pattern.Hole{h}
			merged.Pattern = &p
			return &merged, nil
		}
	}

	// Literal vs literal (or pattern) comparison in match/mix modes:
	// if o is a pure literal string, treat like mergeLiteral.
	if o.Pattern.Simple() && o.Pattern.Holes[0].Anonymous() && o.Pattern.Holes[0].Expression == "" {
		return s, nil
	}
	if len(o.Pattern.Holes) == 0 {
		return s.mergeLiteral(ctx, o.Pattern.Source)
	}

	// Otherwise keep s; a full regex-shaped unification against
	// another regex-shaped pattern is out of scope for a leaf merge --
	// structural parents are expected to mediate this via match mode.
	return s, nil
}

func (s *Scalar) mergeLiteral(ctx *pcontext.Context, v interface{}) (Schema, error) {
	literal := fmt.Sprintf("%v", v)

	if ctx.Mode == pcontext.Match {
		bs, ok, err := pattern.Match(s.Pattern, literal)
		if err != nil {
			return nil, perr.Wrap(perr.Parse, ctx.Loc(), err, "matching %q", literal)
		}
		if !ok {
			ctx.Diagnose(nil, "literal %q does not match pattern %q", literal, s.Pattern.Source)
			return nil, nil
		}
		for name, val := range bs {
			if existing, have := ctx.Scope.Lookup(name); have && fmt.Sprintf("%v", existing.Value) != val {
				return nil, perr.New(perr.Conflict, ctx.Loc(), "conflicting bindings for %s: %v vs %v", name, existing.Value, val)
			}
			ctx.Scope.Define(name, val, false)
		}
		return s, nil
	}

	if s.Pattern.Simple() {
		h := s.Pattern.Holes[0]
		if h.Anonymous() {
			return &Scalar{Type: s.Type, Pattern: literalPattern(literal)}, nil
		}
		if existing, have := ctx.Scope.Lookup(h.Name); have {
			if fmt.Sprintf("%v", existing.Value) != literal {
				ctx.Diagnose(nil, "conflicting values for %s: %v vs %v", h.Name, existing.Value, literal)
				return nil, perr.New(perr.Conflict, ctx.Loc(), "conflicting implied value for %s", h.Name)
			}
		}
		ctx.Scope.Define(h.Name, v, false)
		return s, nil
	}

	return s, nil
}

func literalPattern(s string) *pattern.Pattern {
	return &pattern.Pattern{Source: s, Literals: []string{s, ""}, Holes: []pattern.Hole{{}}}
}

// Render resolves each hole (by scope value or by evaluating its
// expression) and concatenates, per pattern.Render.
func (s *Scalar) Render(ctx *pcontext.Context) (interface{}, error) {
	if err := ctx.CheckAborted(); err != nil {
		return nil, err
	}

	out, ok := pattern.Render(s.Pattern, func(name string) (interface{}, bool) {
		v, err := s.resolveHole(ctx, name)
		if err != nil {
			return nil, false
		}
		return v, true
	})

	if !ok {
		if ctx.Mode == pcontext.Preview {
			return s.Pattern.Source, nil
		}
		return nil, perr.New(perr.Unbound, ctx.Loc(), "no value for pattern %q", s.Pattern.Source)
	}

	return s.coerce(out), nil
}

func (s *Scalar) resolveHole(ctx *pcontext.Context, name string) (interface{}, error) {
	for _, h := range s.Pattern.Holes {
		if h.Name != name {
			continue
		}
		if h.Expression != "" {
			return s.evalExpression(ctx, h)
		}
	}

	if v, have := ctx.Scope.Lookup(name); have {
		if v.Secret() && !ctx.ShowSecrets && ctx.Environment != nil {
			return ctx.Environment.Redact(ctx, v.Value, true), nil
		}
		return v.Value, nil
	}

	secret := false
	if decl, have := ctx.Scope.LookupDeclared(name); have {
		secret = decl.Hints != nil && decl.Hints['@']
	}

	if ctx.Environment != nil {
		v, err := ctx.Environment.Resolve(ctx, name, false)
		if err == nil {
			ctx.Scope.Define(name, v, secret)
			if secret && !ctx.ShowSecrets {
				return ctx.Environment.Redact(ctx, v, true), nil
			}
			return v, nil
		}
	}
	return nil, perr.New(perr.Unbound, ctx.Loc(), "%s is unbound", name)
}

func (s *Scalar) evalExpression(ctx *pcontext.Context, h pattern.Hole) (interface{}, error) {
	name, bind := h.Name, !h.Anonymous()
	if !bind && len(ctx.Keys) > 0 {
		// An anonymous expression binds under the key of the field it
		// renders, e.g. "slug": "{{= name.toLowerCase() }}" binds slug.
		name, bind = ctx.Keys[len(ctx.Keys)-1], true
	}
	done, err := ctx.Scope.Enter(name)
	if err != nil {
		return nil, perr.New(perr.Cycle, ctx.Loc(), "%v", err)
	}
	defer done()

	expr, err := script.Compile(h.Expression)
	if err != nil {
		return nil, perr.Wrap(perr.Parse, ctx.Loc(), err, "compiling expression")
	}

	resolver := &scopeResolver{ctx: ctx}
	v, err := script.Run(expr, resolver)
	if err != nil {
		return nil, perr.Wrap(perr.Evaluation, ctx.Loc(), err, "evaluating %q", h.Expression)
	}
	secret := h.Has(pattern.HintSecret)
	if bind {
		ctx.Scope.Define(name, v, secret)
	}
	if secret && !ctx.ShowSecrets && ctx.Environment != nil {
		return ctx.Environment.Redact(ctx, v, true), nil
	}
	return v, nil
}

// scopeResolver adapts a pcontext.Context+scope.Scope pair to the
// script.Resolver interface: a free identifier, or a `` $`name` ``
// literal reference via script's ref(...) intrinsic, resolves from the
// current scope, then the environment's Resolve, then its Evaluate. It
// does not render another schema to produce a value, so an identifier
// that only another hole's expression defines resolves once that hole
// has rendered.
type scopeResolver struct {
	ctx *pcontext.Context
}

func (r *scopeResolver) Get(name string) (interface{}, error) {
	if v, have := r.ctx.Scope.Lookup(name); have {
		return v.Value, nil
	}
	if r.ctx.Environment != nil {
		if v, err := r.ctx.Environment.Resolve(r.ctx, name, false); err == nil {
			r.ctx.Scope.Define(name, v, false)
			return v, nil
		}
		// Not an input/secret/default: fall through to the import table
		// and the "secrets" capability object (spec.md §4.7's evaluate),
		// so an expression can reference an imported helper by name.
		if v, err := r.ctx.Environment.Evaluate(r.ctx, name); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%s is unbound", name)
}

func (r *scopeResolver) Ref(name string) (interface{}, error) {
	return r.Get(name)
}

// Resolve returns the already-bound value without evaluating
// expressions freshly; used for match-time diagnostics.
func (s *Scalar) Resolve(ctx *pcontext.Context) (interface{}, error) {
	out, ok := pattern.Render(s.Pattern, func(name string) (interface{}, bool) {
		v, have := ctx.Scope.Lookup(name)
		if !have {
			return nil, false
		}
		return v.Value, true
	})
	if !ok {
		return nil, nil
	}
	return s.coerce(out), nil
}

func (s *Scalar) coerce(out string) interface{} {
	switch s.Type {
	case TypeNumber:
		if f, err := strconv.ParseFloat(out, 64); err == nil {
			return f
		}
	case TypeBigint:
		if bi, ok := new(big.Int).SetString(out, 10); ok {
			return bi
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(out); err == nil {
			return b
		}
	}
	return out
}

var _ scope.DefaultResolver = (*scope.Scope)(nil)
