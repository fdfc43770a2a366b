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

// Package script is the expression host of spec.md §4.4: it lowers a
// single JS-flavored expression string into a callable, tracks its
// free identifiers, and runs it inside an embedded goja.Runtime.
//
// This generalizes the teacher's own dsl.JSExec, which runs a
// complete script body (Step.Run / Step.Branch / Recv.Guard) against
// a pre-built environment map, into a single-expression compiler with
// explicit dependency tracking -- needed here because the engine must
// know an expression's free identifiers *before* evaluating it, to
// resolve them (possibly recursively) through the scope chain.
package script

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// jsKeywords are excluded from the free-identifier scan.
var jsKeywords = map[string]bool{
	"true": true, "false": true, "null": true, "undefined": true,
	"typeof": true, "instanceof": true, "new": true, "delete": true,
	"void": true, "in": true, "of": true, "this": true, "function": true,
	"return": true, "if": true, "else": true, "await": true, "async": true,
	"var": true, "let": true, "const": true, "NaN": true, "Infinity": true,
}

// globals are not treated as free identifiers requiring scope
// resolution; the host always provides them (spec.md §4.7: "a runtime
// globals table (Number, String, Math, Date, user functions)").
var defaultGlobals = map[string]bool{
	"Number": true, "String": true, "Math": true, "Date": true,
	"JSON": true, "Array": true, "Object": true, "Boolean": true,
	"console": true, "print": true, "ref": true,
}

var identRE = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)
var taggedTemplateRE = regexp.MustCompile("\\$`([^`]*)`")
var awaitPropertyRE = regexp.MustCompile(`([A-Za-z_$][A-Za-z0-9_$]*)\.await\b`)

// Expr is a compiled expression: its lowered JS source, the ordered
// list of free identifiers it depends on, and the literal references
// (`` $`name` `` tagged templates, lowered to ref("name") calls) it
// mentions.
type Expr struct {
	Source     string // original expression source
	lowered    string // after rewriting
	Idents     []string
	LiteralRefs []string
}

// cache is the process-wide compiled-expression cache keyed by source
// string, per spec.md §9 ("cache keyed by source string plus the
// ordered list of free-identifier names" -- here the identifier list
// is deterministic from the source alone, so the source is sufficient
// key material within one process).
var cache sync.Map // string -> *Expr

// Compile performs the five-step lowering of spec.md §4.4:
//  1. parse as "(expr)" (syntax-checked lazily at Run time by goja)
//  2. identify free identifiers
//  3. identify `` $`name` `` literal references, rewritten to ref("name")
//  4. rewrite "x.await" to "(await x)"
//  5. the returned *Expr is evaluated by Run, which binds each free
//     identifier as a VM global in Idents order and installs ref(name)
//     for literal references.
func Compile(source string) (*Expr, error) {
	if cached, ok := cache.Load(source); ok {
		return cached.(*Expr), nil
	}

	lowered := source

	var refs []string
	lowered = taggedTemplateRE.ReplaceAllStringFunc(lowered, func(m string) string {
		sub := taggedTemplateRE.FindStringSubmatch(m)
		name := sub[1]
		refs = append(refs, name)
		return fmt.Sprintf("ref(%q)", name)
	})

	lowered = awaitPropertyRE.ReplaceAllString(lowered, "(await $1)")

	idents := freeIdentifiers(lowered)

	e := &Expr{
		Source:      source,
		lowered:     lowered,
		Idents:      idents,
		LiteralRefs: refs,
	}
	cache.Store(source, e)
	return e, nil
}

// freeIdentifiers scans lowered for identifiers that are not: a JS
// keyword, a default global, a property-access name (preceded by '.'),
// an object-literal key (preceded by '{' or ',' and followed by a single
// ':', see isObjectLiteralKey), or text inside a quoted string,
// including a ref(...) argument.
func freeIdentifiers(src string) []string {
	seen := map[string]bool{}
	var out []string

	// Strip string/template literals so identifiers inside them are
	// not mistaken for free variables.
	stripped := stripStringLiterals(src)

	matches := identRE.FindAllStringIndex(stripped, -1)
	for _, loc := range matches {
		start, end := loc[0], loc[1]
		name := stripped[start:end]

		if jsKeywords[name] || defaultGlobals[name] {
			continue
		}
		if start > 0 && stripped[start-1] == '.' {
			continue // property access
		}
		if isObjectLiteralKey(stripped, start, end) {
			continue
		}
		// Skip the identifier if it's immediately followed by '(' and
		// preceded by nothing indicating a call to a free function we
		// still want tracked -- function calls to free identifiers
		// (e.g. helper(x)) are legitimate free identifiers, so no
		// special-case needed here.

		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// isObjectLiteralKey reports whether the identifier at stripped[start:end]
// is an object-literal key rather than a value reference: a name
// preceded (skipping whitespace) by '{' or ',' and followed (skipping
// whitespace) by a single ':'. A ternary's branch ("cond ? a : b") is
// never preceded by '{'/',', so it is never mistaken for a key here.
func isObjectLiteralKey(stripped string, start, end int) bool {
	j := end
	for j < len(stripped) && (stripped[j] == ' ' || stripped[j] == '\t' || stripped[j] == '\n') {
		j++
	}
	if j >= len(stripped) || stripped[j] != ':' {
		return false
	}
	if j+1 < len(stripped) && stripped[j+1] == ':' {
		return false
	}

	i := start - 1
	for i >= 0 && (stripped[i] == ' ' || stripped[i] == '\t' || stripped[i] == '\n') {
		i--
	}
	if i < 0 {
		return false
	}
	return stripped[i] == '{' || stripped[i] == ','
}

func stripStringLiterals(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	inStr := byte(0)
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inStr != 0 {
			b.WriteByte(' ')
			if c == '\\' {
				i++
				if i < len(src) {
					b.WriteByte(' ')
				}
				continue
			}
			if c == inStr {
				inStr = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			inStr = c
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Resolver supplies a value for a free identifier, possibly triggering
// recursive rendering of another schema (spec.md §4.4's async mode).
// Sync and async execution are unified here as a single trampoline:
// Resolver.Get may itself block on nested work, which is
// indistinguishable from "awaiting" from the caller's perspective and
// keeps resolution order deterministic (spec.md §5's "Ordering").
type Resolver interface {
	Get(name string) (interface{}, error)
	Ref(name string) (interface{}, error)
}

// MapResolver is a Resolver backed by a plain map, useful for tests
// and for the simple "sync" case where every dependency is already in
// hand.
type MapResolver map[string]interface{}

func (m MapResolver) Get(name string) (interface{}, error) {
	v, have := m[name]
	if !have {
		return nil, fmt.Errorf("script: %s is unbound", name)
	}
	return v, nil
}

func (m MapResolver) Ref(name string) (interface{}, error) {
	return m.Get(name)
}

// Run resolves e's free identifiers (in AST/declaration order, i.e.
// the order freeIdentifiers encountered them) via r, then evaluates
// the expression in a fresh goja.Runtime and returns its value.
//
// Each evaluation gets a fresh Runtime: expressions are small and
// side-effect-free by convention, and a fresh Runtime keeps evaluation
// order and cancellation trivially deterministic without needing to
// reason about goja's shared-state semantics across calls.
func Run(e *Expr, r Resolver) (interface{}, error) {
	vm := goja.New()

	vm.Set("ref", func(name string) goja.Value {
		v, err := r.Ref(name)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(v)
	})
	vm.Set("print", func(args ...interface{}) { _ = args })

	args := make([]goja.Value, 0, len(e.Idents))
	for _, name := range e.Idents {
		v, err := r.Get(name)
		if err != nil {
			return nil, fmt.Errorf("script: resolving %q: %w", name, err)
		}
		if err := vm.Set(name, v); err != nil {
			return nil, fmt.Errorf("script: binding %q: %w", name, err)
		}
		args = append(args, vm.ToValue(v))
	}

	val, err := vm.RunString("(" + e.lowered + ")")
	if err != nil {
		return nil, fmt.Errorf("script: evaluating %q: %w", e.Source, err)
	}

	return export(val), nil
}

func export(v goja.Value) interface{} {
	if v == nil {
		return nil
	}
	x := v.Export()
	if x == nil {
		return nil
	}
	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice {
		return x
	}
	return x
}
