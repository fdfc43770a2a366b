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
	"strconv"

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/perr"
)

// Array is a homogeneous list: every element shares one Element
// schema (spec.md §4.3).  Merging two arrays mixes element-wise by
// index under mix/meld, and concatenates new elements under mux.
type Array struct {
	Elements []Schema // per spec's "arrays concatenate by key" -- here, by index
	Element  Schema   // the archetype new/extra elements are built from
}

func NewArray(element Schema) *Array {
	return &Array{Element: element}
}

func (a *Array) Kind() Kind { return KindArray }

func (a *Array) elemCtx(ctx *pcontext.Context, i int) *pcontext.Context {
	label := strconv.Itoa(i)
	return ctx.Field(label).WithScope(ctx.Scope.Elem(label)).Scoped("[" + label + "]")
}

func (a *Array) ScopeInto(ctx *pcontext.Context) error {
	for i, e := range a.Elements {
		if err := e.ScopeInto(a.elemCtx(ctx, i)); err != nil {
			return err
		}
	}
	if a.Element != nil {
		return a.Element.ScopeInto(ctx.Field("[]"))
	}
	return nil
}

func (a *Array) Merge(ctx *pcontext.Context, t Schematic) (Schema, error) {
	other, err := Expand(ctx, t)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return a, nil
	}
	oa, ok := other.(*Array)
	if !ok {
		if _, isStub := other.(*Stub); isStub {
			return a, nil
		}
		if ctx.Mode == pcontext.Match {
			ctx.Diagnose(nil, "cannot match array against %s", other.Kind())
			return nil, nil
		}
		return nil, perr.New(perr.Conflict, ctx.Loc(), "cannot merge array with %s", other.Kind())
	}

	merged := &Array{Element: a.Element}
	if merged.Element == nil {
		merged.Element = oa.Element
	}

	n := len(a.Elements)
	if len(oa.Elements) > n {
		n = len(oa.Elements)
	}

	for i := 0; i < n; i++ {
		ec := merged.elemCtx(ctx, i)
		switch {
		case i < len(a.Elements) && i < len(oa.Elements):
			m, err := a.Elements[i].Merge(ec, Of(oa.Elements[i]))
			if err != nil {
				return nil, err
			}
			if m != nil {
				merged.Elements = append(merged.Elements, m)
			}
		case i < len(a.Elements):
			merged.Elements = append(merged.Elements, a.Elements[i])
		default:
			if ctx.Mode == pcontext.Mux && merged.Element != nil {
				m, err := merged.Element.Merge(ec, Of(oa.Elements[i]))
				if err != nil {
					return nil, err
				}
				merged.Elements = append(merged.Elements, m)
				continue
			}
			merged.Elements = append(merged.Elements, oa.Elements[i])
		}
	}

	return merged, nil
}

func (a *Array) Render(ctx *pcontext.Context) (interface{}, error) {
	out := make([]interface{}, 0, len(a.Elements))
	for i, e := range a.Elements {
		v, err := e.Render(a.elemCtx(ctx, i))
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (a *Array) Resolve(ctx *pcontext.Context) (interface{}, error) {
	out := make([]interface{}, 0, len(a.Elements))
	for i, e := range a.Elements {
		v, err := e.Resolve(a.elemCtx(ctx, i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
