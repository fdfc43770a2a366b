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

package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/adobe/pardon-engine/endpoint"
	"github.com/adobe/pardon-engine/https"
	"github.com/adobe/pardon-engine/script"
)

// An .https "import:" alias reaches a registered script.GojaHost module
// end to end: the body expression below resolves "helper" through
// Endpoint.Evaluate, not through scope/defaults/inputs.
func TestEngineExpressionResolvesImportedHelper(t *testing.T) {
	const doc = `
config:
  method: POST
import:
  helper: greeter

>>>
POST /v1/items
Content-Type: application/json

{"greeting": "{{= helper.greeting }}"}

<<< 200
Content-Type: application/json

{"ok": true}
`
	tpl, err := https.Parse(doc)
	if err != nil {
		t.Fatal(err)
	}

	host := script.NewGojaHost()
	host.Register("greeter", `module.exports = {greeting: "hello"}`)

	env := endpoint.New("import")
	env.Inputs["origin"] = "https://api.example.com"
	env.Imports = host

	e := New(tpl, env, nil)
	result, err := e.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Request.Body, `"greeting":"hello"`) {
		t.Fatalf("expected the imported helper's value in the body, got %q", result.Request.Body)
	}
}
