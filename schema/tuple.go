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

// Tuple is a fixed-length, positionally-typed list (spec.md §4.3):
// each element may have its own, unrelated schema. This is the
// default shape for a plain JSON array literal parsed by the https
// format, since JSON arrays are not required to be homogeneous.
type Tuple struct {
	Elements []Schema
}

func NewTuple(elements ...Schema) *Tuple {
	return &Tuple{Elements: elements}
}

func (t *Tuple) Kind() Kind { return KindTuple }

func (t *Tuple) elemCtx(ctx *pcontext.Context, i int) *pcontext.Context {
	label := strconv.Itoa(i)
	return ctx.Field(label).WithScope(ctx.Scope.Elem(label)).Scoped("[" + label + "]")
}

func (t *Tuple) ScopeInto(ctx *pcontext.Context) error {
	for i, e := range t.Elements {
		if err := e.ScopeInto(t.elemCtx(ctx, i)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tuple) Merge(ctx *pcontext.Context, s Schematic) (Schema, error) {
	other, err := Expand(ctx, s)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return t, nil
	}
	ot, ok := other.(*Tuple)
	if !ok {
		if _, isStub := other.(*Stub); isStub {
			return t, nil
		}
		if ctx.Mode == pcontext.Match {
			ctx.Diagnose(nil, "cannot match tuple against %s", other.Kind())
			return nil, nil
		}
		return nil, perr.New(perr.Conflict, ctx.Loc(), "cannot merge tuple with %s", other.Kind())
	}
	if len(t.Elements) != len(ot.Elements) {
		if ctx.Mode == pcontext.Match {
			ctx.Diagnose(nil, "tuple length mismatch: %d vs %d", len(t.Elements), len(ot.Elements))
			return nil, nil
		}
		return nil, perr.New(perr.Conflict, ctx.Loc(), "tuple length mismatch: %d vs %d", len(t.Elements), len(ot.Elements))
	}

	merged := &Tuple{Elements: make([]Schema, len(t.Elements))}
	for i := range t.Elements {
		m, err := t.Elements[i].Merge(t.elemCtx(ctx, i), Of(ot.Elements[i]))
		if err != nil {
			return nil, err
		}
		merged.Elements[i] = m
	}
	return merged, nil
}

func (t *Tuple) Render(ctx *pcontext.Context) (interface{}, error) {
	out := make([]interface{}, len(t.Elements))
	for i, e := range t.Elements {
		v, err := e.Render(t.elemCtx(ctx, i))
		if err != nil {
			return nil, fmt.Errorf("tuple[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (t *Tuple) Resolve(ctx *pcontext.Context) (interface{}, error) {
	out := make([]interface{}, len(t.Elements))
	for i, e := range t.Elements {
		v, err := e.Resolve(t.elemCtx(ctx, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
