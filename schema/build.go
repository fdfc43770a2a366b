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
)

// FromTemplate builds a Schematic from a generic, JSON-shaped raw
// template value -- map[string]interface{}, []interface{}, string,
// float64/int, bool, or nil -- the representation produced by parsing
// a request/response body or a YAML configuration block.  Strings are
// parsed as patterns (spec.md §4.1); a pattern with no holes becomes a
// literal Value.
func FromTemplate(raw interface{}) Schematic {
	return func(ctx *pcontext.Context) (Schema, error) {
		switch v := raw.(type) {
		case nil:
			return &Value{V: nil}, nil

		case string:
			s, err := NewScalar(TypeString, v)
			if err != nil {
				return nil, err
			}
			if len(s.Pattern.Holes) == 0 {
				return &Value{V: v}, nil
			}
			return s, nil

		case bool, float64, int, int64:
			return &Value{V: v}, nil

		case map[string]interface{}:
			obj := NewObject(false)
			for key, val := range v {
				child, err := Expand(ctx, FromTemplate(val))
				if err != nil {
					return nil, err
				}
				obj.Fields[key] = child
			}
			return obj, nil

		case []interface{}:
			tup := &Tuple{Elements: make([]Schema, len(v))}
			for i, val := range v {
				child, err := Expand(ctx, FromTemplate(val))
				if err != nil {
					return nil, err
				}
				tup.Elements[i] = child
			}
			return tup, nil

		default:
			return nil, fmt.Errorf("schema: cannot build template from %T", v)
		}
	}
}
