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

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/perr"
)

// Keyed projects a list into a map by extracting KeyField from each
// element and merging by key (spec.md §4.3).  When MV is set
// (keyed.mv), values for a repeated key are appended to a list rather
// than merged, exactly like Multivalue but addressed by an
// extracted key rather than a header/query-parameter name.
type Keyed struct {
	KeyField string
	Body     Schema // archetype new keys are built from
	Items    map[string]Schema
	Order    []string
	MV       bool
}

func NewKeyed(keyField string, body Schema, mv bool) *Keyed {
	return &Keyed{KeyField: keyField, Body: body, Items: map[string]Schema{}, MV: mv}
}

func (k *Keyed) Kind() Kind { return KindKeyed }

func (k *Keyed) itemCtx(ctx *pcontext.Context, key string) *pcontext.Context {
	return ctx.Field(key).WithScope(ctx.Scope.Keyed(key)).Scoped("{" + key + "}")
}

func (k *Keyed) ScopeInto(ctx *pcontext.Context) error {
	for _, key := range k.Order {
		if err := k.Items[key].ScopeInto(k.itemCtx(ctx, key)); err != nil {
			return err
		}
	}
	return nil
}

// extractKey reads the projection key out of an already-expanded
// element schema.  Only Value and simple-literal Scalar fields can
// serve as keys, since the key must be known at merge (build) time.
func (k *Keyed) extractKey(elem Schema) (string, bool) {
	obj, ok := elem.(*Object)
	if !ok {
		return "", false
	}
	field, ok := obj.Fields[k.KeyField]
	if !ok {
		return "", false
	}
	switch f := field.(type) {
	case *Value:
		return fmt.Sprintf("%v", f.V), true
	case *Scalar:
		if len(f.Pattern.Holes) == 0 {
			return f.Pattern.Source, true
		}
		if f.Pattern.Simple() && f.Pattern.Holes[0].Anonymous() {
			return f.Pattern.Source, true
		}
	}
	return "", false
}

// elements pulls the positional children out of a Tuple/Array
// schematic expansion, the shape a keyed list is projected from.
func elements(s Schema) []Schema {
	switch v := s.(type) {
	case *Tuple:
		return v.Elements
	case *Array:
		return v.Elements
	default:
		return nil
	}
}

func (k *Keyed) Merge(ctx *pcontext.Context, t Schematic) (Schema, error) {
	other, err := Expand(ctx, t)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return k, nil
	}

	var incoming []Schema
	if otherKeyed, ok := other.(*Keyed); ok {
		for _, key := range otherKeyed.Order {
			incoming = append(incoming, otherKeyed.Items[key])
		}
		if k.KeyField == "" {
			k.KeyField = otherKeyed.KeyField
		}
	} else {
		incoming = elements(other)
	}

	if incoming == nil {
		if _, isStub := other.(*Stub); isStub {
			return k, nil
		}
		return nil, perr.New(perr.Conflict, ctx.Loc(), "cannot merge keyed list with %s", other.Kind())
	}

	merged := &Keyed{KeyField: k.KeyField, Body: k.Body, Items: map[string]Schema{}, MV: k.MV}
	for _, key := range k.Order {
		merged.Items[key] = k.Items[key]
		merged.Order = append(merged.Order, key)
	}

	for _, elem := range incoming {
		key, ok := k.extractKey(elem)
		if !ok {
			// Key not statically known; fall back to an ordinal key
			// so the element is still retained deterministically.
			key = fmt.Sprintf("#%d", len(merged.Order))
		}

		existing, have := merged.Items[key]
		if !have {
			merged.Order = append(merged.Order, key)
			base := merged.Body
			if base == nil {
				merged.Items[key] = elem
				continue
			}
			m, err := base.Merge(k.itemCtx(ctx, key), Of(elem))
			if err != nil {
				return nil, err
			}
			merged.Items[key] = m
			continue
		}

		if merged.MV {
			// Keep both by collecting them in a Tuple under the same
			// key; keys keep their order of first appearance
			// (spec.md §8 boundary behavior).
			combined, err := combineMV(ctx, existing, elem)
			if err != nil {
				return nil, err
			}
			merged.Items[key] = combined
			continue
		}

		m, err := existing.Merge(k.itemCtx(ctx, key), Of(elem))
		if err != nil {
			return nil, err
		}
		if m != nil {
			merged.Items[key] = m
		}
	}

	return merged, nil
}

// combineMV appends elem to existing's bag, wrapping a lone element in
// a one-element Tuple the first time a duplicate key is seen.
func combineMV(ctx *pcontext.Context, existing, elem Schema) (Schema, error) {
	if tup, ok := existing.(*Tuple); ok {
		return &Tuple{Elements: append(append([]Schema{}, tup.Elements...), elem)}, nil
	}
	return &Tuple{Elements: []Schema{existing, elem}}, nil
}

func (k *Keyed) Render(ctx *pcontext.Context) (interface{}, error) {
	out := map[string]interface{}{}
	for _, key := range k.Order {
		v, err := k.Items[key].Render(k.itemCtx(ctx, key))
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (k *Keyed) Resolve(ctx *pcontext.Context) (interface{}, error) {
	out := map[string]interface{}{}
	for _, key := range k.Order {
		v, err := k.Items[key].Resolve(k.itemCtx(ctx, key))
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
