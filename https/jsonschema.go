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

package https

import (
	"encoding/json"
	"fmt"

	"github.com/alecthomas/jsonschema"
)

// GenerateSchema reflects a Go-typed body template -- a struct
// describing the shape an endpoint's request or response body is
// expected to take -- into a JSON Schema document, the counterpart to
// ValidateSchema's gojsonschema-driven checking: this produces the
// document a "schema:" declaration points at, instead of requiring one
// to be hand-written.
//
// Struct field names are reflected through their "json" tags the same
// way encoding/json itself would marshal the type, so a template's
// schema stays in lockstep with whatever Go type its caller already
// uses to build sample payloads.
func GenerateSchema(v interface{}) (string, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		RequiredFromJSONTags:      true,
	}
	sch := reflector.Reflect(v)
	out, err := json.MarshalIndent(sch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("https: generating schema for %T: %w", v, err)
	}
	return string(out), nil
}
