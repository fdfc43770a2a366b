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

// Package schema implements the schema-node graph of spec.md §3/§4.3:
// a sealed set of node kinds (scalar, object, array, tuple,
// multivalue, keyed list, stub, hidden, scoped, deferred, value,
// encoding) each implementing the four operations {scope, merge,
// render, resolve}.
//
// Per spec.md §9's design note ("Runtime-typed templates -> tagged
// variants"), each kind is a distinct Go type implementing the Schema
// interface rather than a closure with a method-key map, which is how
// the original, dynamically-typed source represents a schema node.
// Kind() lets callers that need exhaustive dispatch (e.g. the https
// format's response-variant selection) switch on the tag instead of
// doing repeated type assertions.
package schema

import (
	"github.com/adobe/pardon-engine/pcontext"
)

// Kind tags a Schema's runtime variant.
type Kind string

const (
	KindScalar     Kind = "scalar"
	KindValue      Kind = "value"
	KindObject     Kind = "object"
	KindArray      Kind = "array"
	KindTuple      Kind = "tuple"
	KindMultivalue Kind = "multivalue"
	KindKeyed      Kind = "keyed"
	KindStub       Kind = "stub"
	KindHidden     Kind = "hidden"
	KindScoped     Kind = "scoped"
	KindDeferred   Kind = "deferred"
	KindEncoding   Kind = "encoding"
	KindCustom     Kind = "custom"
)

// Schema is the operation-polymorphic node of spec.md §3.  Merge
// returns a *new* node (schemas are immutable); ScopeInto declares
// variables/subscopes into ctx.Scope.
type Schema interface {
	Kind() Kind

	// ScopeInto declares this schema's variables and subscopes into
	// ctx.Scope ("scope" in spec.md's operation set; renamed to avoid
	// colliding with the scope package name).
	ScopeInto(ctx *pcontext.Context) error

	// Merge folds the template t produces into this schema, returning
	// a new schema (or nil with a soft diagnostic on ctx, or a hard
	// *perr.Error).
	Merge(ctx *pcontext.Context, t Schematic) (Schema, error)

	// Render produces a concrete value, substituting ctx.Scope
	// bindings and evaluating expressions as needed.
	Render(ctx *pcontext.Context) (interface{}, error)

	// Resolve returns a value without side effects (no expression
	// evaluation beyond what is already bound), used during matching
	// and diagnostics.
	Resolve(ctx *pcontext.Context) (interface{}, error)
}

// Schematic is a not-yet-specialized template: a thunk that expands
// into a concrete Schema given a merging Context.
type Schematic func(ctx *pcontext.Context) (Schema, error)

// Of wraps an already-built Schema as a Schematic, for composing
// merges where the right-hand side is already concrete.
func Of(s Schema) Schematic {
	return func(*pcontext.Context) (Schema, error) { return s, nil }
}

// Expand runs a Schematic, propagating a cancellation check first
// (spec.md §5: "The engine MUST call checkAborted() at every
// suspension point").
func Expand(ctx *pcontext.Context, t Schematic) (Schema, error) {
	if err := ctx.CheckAborted(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return t(ctx)
}
