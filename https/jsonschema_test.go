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

import "testing"

type itemBody struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestGenerateSchemaValidatesMatchingPayload(t *testing.T) {
	sch, err := GenerateSchema(&itemBody{})
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateAgainstSchemaDocument(sch, `{"id": "1", "name": "widget"}`); err != nil {
		t.Fatalf("expected a matching payload to validate, got %v", err)
	}
}

func TestGenerateSchemaRejectsPayloadMissingRequiredField(t *testing.T) {
	sch, err := GenerateSchema(&itemBody{})
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateAgainstSchemaDocument(sch, `{"name": "widget"}`); err == nil {
		t.Fatal("expected a payload missing the required \"id\" field to fail validation")
	}
}
