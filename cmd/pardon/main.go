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

// Command pardon loads an .https template and either previews,
// renders, or fully processes (render, dispatch, match) it against a
// named endpoint environment, printing the rendered request and/or the
// matched response's bindings as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/adobe/pardon-engine/endpoint"
	"github.com/adobe/pardon-engine/engine"
	"github.com/adobe/pardon-engine/https"
	"github.com/adobe/pardon-engine/transport"
	"github.com/adobe/pardon-engine/vault"
)

func main() {
	var (
		file     = flag.String("file", "", ".https template to load (required)")
		op       = flag.String("op", "preview", "operation to run: preview, render, or process")
		origin   = flag.String("origin", "", "origin default, e.g. https://api.example.com")
		envAxis  = flag.String("env", "", "config axis value, e.g. staging (bound as env for defaults and expressions)")
		inputRaw = flag.String("input", "", "comma-separated name=value pairs bound as inputs, e.g. id=42,name=ok")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "pardon: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("pardon: %v", err)
	}
	defer f.Close()

	tpl, err := https.ParseReader(f)
	if err != nil {
		log.Fatalf("pardon: parsing %s: %v", *file, err)
	}

	env := endpoint.New(*file)
	env.Secrets = vault.NewMemoryStore()
	if *origin != "" {
		env.Inputs["origin"] = *origin
	}
	if *envAxis != "" {
		env.Config["env"] = *envAxis
	}
	for name, value := range parseInputs(*inputRaw) {
		env.Inputs[name] = value
	}

	e := engine.New(tpl, env, transport.NewHTTPClient())
	ctx := context.Background()

	switch *op {
	case "preview":
		req, err := e.Preview(ctx)
		if err != nil {
			log.Fatalf("pardon: preview: %v", err)
		}
		printJSON(req)
	case "render":
		result, err := e.Render(ctx)
		if err != nil {
			log.Fatalf("pardon: render: %v", err)
		}
		printJSON(result)
	case "process":
		result, err := e.Process(ctx)
		if err != nil {
			log.Fatalf("pardon: process: %v", err)
		}
		printJSON(result)
	default:
		log.Fatalf("pardon: unknown -op %q (want preview, render, or process)", *op)
	}
}

// parseInputs turns "a=1,b=2" into {"a": "1", "b": "2"}; inputs are
// always bound as strings, the same way endpoint.Endpoint's Inputs are
// resolved as raw scope values before a Scalar's type tag coerces them.
func parseInputs(raw string) map[string]interface{} {
	out := map[string]interface{}{}
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("pardon: encoding output: %v", err)
	}
}
