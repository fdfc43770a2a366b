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
	"fmt"
	"strings"

	jschema "github.com/xeipuuv/gojsonschema"
)

// ValidateSchema checks payload (a rendered or matched body) against
// the template's declared "schema:" URI, the same validate-then-report
// shape as the teacher's dsl.validateSchema applied to pub/sub
// payloads. A template with no declared schema always validates.
func (t *Template) ValidateSchema(payload string) error {
	if t.Config == nil || t.Config.Schema == "" {
		return nil
	}
	return validateSchema(t.Config.Schema, payload)
}

func validateSchema(schemaURI, payload string) error {
	doc := jschema.NewStringLoader(payload)
	sch := jschema.NewReferenceLoader(schemaURI)
	return runValidation(schemaURI, sch, doc)
}

// ValidateAgainstSchemaDocument validates payload against an in-memory
// JSON Schema document rather than a "schema:" URI -- the path a
// schema produced by GenerateSchema takes, since a Go-reflected schema
// has no file of its own to be referenced by URI.
func ValidateAgainstSchemaDocument(schemaJSON, payload string) error {
	doc := jschema.NewStringLoader(payload)
	sch := jschema.NewStringLoader(schemaJSON)
	return runValidation("<generated>", sch, doc)
}

func runValidation(label string, sch, doc jschema.JSONLoader) error {
	result, err := jschema.Validate(sch, doc)
	if err != nil {
		return fmt.Errorf("https: schema validation error: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		complaints := make([]string, len(errs))
		for i, e := range errs {
			complaints[i] = e.String()
		}
		return fmt.Errorf("https: schema (%s) validation errors: %s", label, strings.Join(complaints, "; "))
	}
	return nil
}
