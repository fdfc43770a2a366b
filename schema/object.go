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
	"sort"

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/perr"
)

// Object is a map of known fields plus an optional archetype schema
// applied to unknown fields (spec.md §4.3).  When Scoped is true each
// field lives in its own named subscope and merging two objects with
// different field sets unions them; when false, unknown fields are
// handled by Archetype.
type Object struct {
	Fields    map[string]Schema
	Archetype Schema
	Scoped    bool
}

func NewObject(scoped bool) *Object {
	return &Object{Fields: map[string]Schema{}, Scoped: scoped}
}

func (o *Object) Kind() Kind { return KindObject }

func (o *Object) fieldCtx(ctx *pcontext.Context, name string) *pcontext.Context {
	c := ctx.Field(name)
	if o.Scoped {
		c = c.WithScope(ctx.Scope.Field(name)).Scoped(name)
	}
	return c
}

func (o *Object) ScopeInto(ctx *pcontext.Context) error {
	for name, f := range o.Fields {
		if err := f.ScopeInto(o.fieldCtx(ctx, name)); err != nil {
			return err
		}
	}
	return nil
}

// asObject expands t and returns it as an *Object when it is one (nil
// otherwise), together with the raw expansion.
func asObject(ctx *pcontext.Context, t Schematic) (*Object, Schema, error) {
	other, err := Expand(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	if obj, ok := other.(*Object); ok {
		return obj, other, nil
	}
	return nil, other, nil
}

func (o *Object) Merge(ctx *pcontext.Context, t Schematic) (Schema, error) {
	other, raw, err := asObject(ctx, t)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return o, nil
	}
	if other == nil {
		if _, isStub := raw.(*Stub); isStub {
			return o, nil
		}
		if ctx.Mode == pcontext.Match {
			ctx.Diagnose(nil, "cannot match object against %s", raw.Kind())
			return nil, nil
		}
		return nil, perr.New(perr.Conflict, ctx.Loc(), "cannot merge object with %s", raw.Kind())
	}

	merged := &Object{Fields: map[string]Schema{}, Archetype: o.Archetype, Scoped: o.Scoped || other.Scoped}

	names := map[string]bool{}
	for name := range o.Fields {
		names[name] = true
	}
	for name := range other.Fields {
		names[name] = true
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		fieldCtx := merged.fieldCtx(ctx, name)

		existing, haveExisting := o.Fields[name]
		incoming, haveIncoming := other.Fields[name]

		switch {
		case haveExisting && haveIncoming:
			m, err := existing.Merge(fieldCtx, Of(incoming))
			if err != nil {
				return nil, err
			}
			if m == nil {
				// Soft merge failure: field dropped, diagnostic
				// already recorded by the child merge.
				continue
			}
			merged.Fields[name] = m

		case haveExisting:
			merged.Fields[name] = existing

		case haveIncoming:
			if !o.Scoped && o.Archetype != nil {
				m, err := o.Archetype.Merge(fieldCtx, Of(incoming))
				if err != nil {
					return nil, err
				}
				merged.Fields[name] = m
				continue
			}
			merged.Fields[name] = incoming
		}
	}

	if o.Archetype != nil && other.Archetype != nil {
		m, err := o.Archetype.Merge(ctx, Of(other.Archetype))
		if err != nil {
			return nil, err
		}
		merged.Archetype = m
	} else if other.Archetype != nil {
		merged.Archetype = other.Archetype
	}

	return merged, nil
}

func (o *Object) Render(ctx *pcontext.Context) (interface{}, error) {
	out := map[string]interface{}{}
	names := sortedFieldNames(o.Fields)
	for _, name := range names {
		f := o.Fields[name]
		v, err := f.Render(o.fieldCtx(ctx, name))
		if err != nil {
			if _, isHidden := f.(*Hidden); isHidden {
				continue
			}
			return nil, err
		}
		if _, isHidden := f.(*Hidden); isHidden {
			continue
		}
		out[name] = v
	}
	return out, nil
}

func (o *Object) Resolve(ctx *pcontext.Context) (interface{}, error) {
	out := map[string]interface{}{}
	for _, name := range sortedFieldNames(o.Fields) {
		f := o.Fields[name]
		v, err := f.Resolve(o.fieldCtx(ctx, name))
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[name] = v
		}
	}
	return out, nil
}

func sortedFieldNames(fields map[string]Schema) []string {
	out := make([]string, 0, len(fields))
	for name := range fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
