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
	"github.com/adobe/pardon-engine/pcontext"
)

// Multivalue is a bag of elements keyed by a variable name, used for
// repeated form/query parameters and headers (spec.md §4.3).  Base is
// carried through merges but not otherwise consulted; in match mode
// Archetype builds each incoming value that matches no bound element.
type Multivalue struct {
	Base      Schema
	Archetype Schema
	Values    map[string][]Schema
	Order     []string
}

func NewMultivalue(archetype Schema) *Multivalue {
	return &Multivalue{Archetype: archetype, Values: map[string][]Schema{}}
}

func (m *Multivalue) Kind() Kind { return KindMultivalue }

func (m *Multivalue) keyCtx(ctx *pcontext.Context, key string, i int) *pcontext.Context {
	return ctx.Field(key).WithScope(ctx.Scope.Keyed(key).Elem(itoa(i)))
}

func (m *Multivalue) ScopeInto(ctx *pcontext.Context) error {
	for _, key := range m.Order {
		for i, v := range m.Values[key] {
			if err := v.ScopeInto(m.keyCtx(ctx, key, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Multivalue) Merge(ctx *pcontext.Context, t Schematic) (Schema, error) {
	other, err := Expand(ctx, t)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return m, nil
	}
	om, ok := other.(*Multivalue)
	if !ok {
		if _, isStub := other.(*Stub); isStub {
			return m, nil
		}
		return m, nil
	}

	merged := &Multivalue{
		Base:      m.Base,
		Archetype: m.Archetype,
		Values:    map[string][]Schema{},
	}
	if merged.Archetype == nil {
		merged.Archetype = om.Archetype
	}

	seen := map[string]bool{}
	for _, key := range m.Order {
		merged.Order = append(merged.Order, key)
		seen[key] = true
	}
	for _, key := range om.Order {
		if !seen[key] {
			merged.Order = append(merged.Order, key)
			seen[key] = true
		}
	}

	for _, key := range merged.Order {
		existing := m.Values[key]
		incoming := om.Values[key]

		switch ctx.Mode {
		case pcontext.Match:
			// Each incoming value is matched against the bound
			// elements; one that matches none is built from Archetype
			// when there is one and is otherwise dropped. Unmatched
			// existing elements stay bound.
			merged.Values[key] = existing
			for i, iv := range incoming {
				matchedOne := false
				for j, ev := range existing {
					if got, err := ev.Merge(m.keyCtx(ctx, key, j), Of(iv)); err == nil && got != nil {
						matchedOne = true
						break
					}
				}
				if !matchedOne && merged.Archetype != nil {
					mv, err := merged.Archetype.Merge(m.keyCtx(ctx, key, len(existing)+i), Of(iv))
					if err != nil {
						return nil, err
					}
					merged.Values[key] = append(merged.Values[key], mv)
				}
			}
		default:
			// mix/mux/meld: append, concatenating the bag.
			merged.Values[key] = append(append([]Schema{}, existing...), incoming...)
		}
	}

	return merged, nil
}

func (m *Multivalue) Render(ctx *pcontext.Context) (interface{}, error) {
	out := map[string][]interface{}{}
	for _, key := range m.Order {
		for i, v := range m.Values[key] {
			rv, err := v.Render(m.keyCtx(ctx, key, i))
			if err != nil {
				return nil, err
			}
			out[key] = append(out[key], rv)
		}
	}
	return out, nil
}

func (m *Multivalue) Resolve(ctx *pcontext.Context) (interface{}, error) {
	out := map[string][]interface{}{}
	for _, key := range m.Order {
		for i, v := range m.Values[key] {
			rv, err := v.Resolve(m.keyCtx(ctx, key, i))
			if err != nil {
				return nil, err
			}
			out[key] = append(out[key], rv)
		}
	}
	return out, nil
}

func itoa(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return string(b)
}
