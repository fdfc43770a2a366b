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

package script

import "testing"

func TestCompileFreeIdentifiers(t *testing.T) {
	e, err := Compile("name.toLowerCase()")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Idents) != 1 || e.Idents[0] != "name" {
		t.Fatalf("got %v", e.Idents)
	}
}

func TestCompileExcludesObjectLiteralKeys(t *testing.T) {
	e, err := Compile("({name: name}).name")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Idents) != 1 || e.Idents[0] != "name" {
		t.Fatalf("expected only the value reference to be a free identifier, got %v", e.Idents)
	}
}

func TestCompileKeepsTernaryBranchAsFreeIdentifier(t *testing.T) {
	e, err := Compile("cond ? yes : no")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"cond": true, "yes": true, "no": true}
	if len(e.Idents) != len(want) {
		t.Fatalf("got %v", e.Idents)
	}
	for _, id := range e.Idents {
		if !want[id] {
			t.Fatalf("unexpected identifier %q in %v", id, e.Idents)
		}
	}
}

func TestCompileExcludesGlobals(t *testing.T) {
	e, err := Compile("Math.floor(x) + Number(y)")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"x": true, "y": true}
	if len(e.Idents) != len(want) {
		t.Fatalf("got %v", e.Idents)
	}
	for _, id := range e.Idents {
		if !want[id] {
			t.Fatalf("unexpected free identifier %q in %v", id, e.Idents)
		}
	}
}

func TestCompileLiteralReference(t *testing.T) {
	e, err := Compile("$`token`.length")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.LiteralRefs) != 1 || e.LiteralRefs[0] != "token" {
		t.Fatalf("got %v", e.LiteralRefs)
	}
}

func TestRunSimple(t *testing.T) {
	e, err := Compile("name.toLowerCase()")
	if err != nil {
		t.Fatal(err)
	}
	out, err := Run(e, MapResolver{"name": "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "acme" {
		t.Fatalf("got %v", out)
	}
}

func TestRunArithmetic(t *testing.T) {
	e, err := Compile("a + b")
	if err != nil {
		t.Fatal(err)
	}
	out, err := Run(e, MapResolver{"a": int64(1), "b": int64(2)})
	if err != nil {
		t.Fatal(err)
	}
	if out != int64(3) {
		t.Fatalf("got %v (%T)", out, out)
	}
}

func TestRunMissingIdentifier(t *testing.T) {
	e, _ := Compile("missing + 1")
	if _, err := Run(e, MapResolver{}); err == nil {
		t.Fatal("expected unbound identifier error")
	}
}
