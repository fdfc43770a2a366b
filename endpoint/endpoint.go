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

// Package endpoint implements spec.md §4.7: the environment an .https
// template renders/matches against, wrapping defaults, imports, config
// axes, a secrets proxy and a runtime globals table behind
// pcontext.Environment.
package endpoint

import (
	"fmt"

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/scope"
	"github.com/adobe/pardon-engine/script"
)

// SecretStorage is the learn/recall collaborator of spec.md §6,
// grounded on the teacher's environment-variable/credential lookup
// idiom used to resolve step inputs before substitution.
type SecretStorage interface {
	Learn(name string, value interface{})
	Recall(name string) (interface{}, bool)
}

// Compiler resolves an entry from the template's import table (the
// "import:" block of an .https configuration), generalizing the
// teacher's module-loading step in dsl.JSExec. It reproduces spec.md
// §6's two consumed interfaces unchanged: `Compiler.import(specifier,
// parentSpecifier) -> module` and `Compiler.resolve(specifier,
// parentSpecifier) -> canonical specifier`, parentSpecifier being the
// importing template's own identity so a relative specifier resolves
// the way a CommonJS require would against the file that named it.
type Compiler interface {
	Import(specifier, parentSpecifier string) (interface{}, error)
	Resolve(specifier, parentSpecifier string) (string, error)
}

// Endpoint is the concrete pcontext.Environment used while
// rendering/matching one .https template: it layers input bindings,
// secret storage, config axes and default chains, in that order,
// extending spec.md §4.4's input -> secret -> default fall-through with
// config axes ahead of the defaults.
type Endpoint struct {
	Name string

	// Inputs are caller-supplied values (the highest-precedence layer).
	Inputs map[string]interface{}

	// Config holds named axes (e.g. "env" => "staging"). Resolve answers
	// an axis by its bare name (e.g. `env`), the name schema nodes,
	// default-tree discriminators and expressions use for it.
	Config map[string]interface{}

	// Defaults are the hierarchical discriminator trees of spec.md §3.
	Defaults map[string]*scope.DefaultTree

	Secrets SecretStorage
	Imports Compiler

	// ImportTable maps an .https "import:" block's declared alias to
	// the module specifier it names (spec.md §4.7: "the import: map
	// (specifier -> names)"); Evaluate resolves and imports the
	// specifier through Imports the first time an expression
	// references the alias.
	ImportTable map[string]string

	// Globals are additional identifiers always in scope for script
	// expressions (e.g. helper functions), mirroring the teacher's
	// runtime-injected globals for step bodies.
	Globals map[string]interface{}
}

func New(name string) *Endpoint {
	return &Endpoint{
		Name:        name,
		Inputs:      map[string]interface{}{},
		Config:      map[string]interface{}{},
		Defaults:    map[string]*scope.DefaultTree{},
		ImportTable: map[string]string{},
		Globals:     map[string]interface{}{},
	}
}

var _ pcontext.Environment = (*Endpoint)(nil)

// Resolve implements pcontext.Environment: input -> secret -> config
// axis -> default.
func (e *Endpoint) Resolve(ctx *pcontext.Context, name string, scoped bool) (interface{}, error) {
	if v, ok := e.Inputs[name]; ok {
		return v, nil
	}
	if e.Secrets != nil {
		if v, ok := e.Secrets.Recall(name); ok {
			return v, nil
		}
	}
	if v, ok := e.Config[name]; ok {
		return v, nil
	}
	if tree, ok := e.Defaults[name]; ok {
		resolver := defaultResolver{ctx}
		v, ok, err := scope.Resolve(tree, resolver)
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("endpoint: %s: no binding for %q", e.Name, name)
}

// defaultResolver adapts a pcontext.Context's current scope to
// scope.DefaultResolver so default-tree discriminators can read
// already-bound values.
type defaultResolver struct {
	ctx *pcontext.Context
}

func (r defaultResolver) Lookup(name string) (*scope.Value, bool) {
	return r.ctx.Scope.Lookup(name)
}

// Evaluate implements pcontext.Environment for import-table references
// and the special "secrets" capability name (spec.md §9: a capability
// object exposing lookup/bind/scoped rather than a bare proxy). An
// import reference resolves its ImportTable specifier (falling back to
// the bare name when the alias isn't declared) through Imports.Resolve
// before loading it via Imports.Import, both relative to this
// Endpoint's own name as parentSpecifier.
func (e *Endpoint) Evaluate(ctx *pcontext.Context, name string) (interface{}, error) {
	if name == "secrets" {
		return e.secretsCapability(), nil
	}
	if v, ok := e.Globals[name]; ok {
		return v, nil
	}
	if e.Imports == nil {
		return nil, fmt.Errorf("endpoint: %s: no import named %q", e.Name, name)
	}
	specifier, ok := e.ImportTable[name]
	if !ok {
		specifier = name
	}
	canonical, err := e.Imports.Resolve(specifier, e.Name)
	if err != nil {
		return nil, fmt.Errorf("endpoint: %s: resolving import %q: %w", e.Name, name, err)
	}
	return e.Imports.Import(canonical, e.Name)
}

// Redact implements pcontext.Environment: secrets render as a fixed
// placeholder string instead of their real value.
func (e *Endpoint) Redact(ctx *pcontext.Context, value interface{}, secret bool) interface{} {
	if secret {
		return "{{redacted}}"
	}
	return value
}

// secretsCapability is the object spec.md §9 describes script
// expressions calling as `secrets.lookup(...)`/`secrets.bind(...)`.
func (e *Endpoint) secretsCapability() map[string]interface{} {
	return map[string]interface{}{
		"lookup": func(name string) (interface{}, bool) {
			if e.Secrets == nil {
				return nil, false
			}
			return e.Secrets.Recall(name)
		},
		"bind": func(name string, value interface{}) bool {
			if e.Secrets == nil {
				return false
			}
			e.Secrets.Learn(name, value)
			return true
		},
		"scoped": func(prefix string) map[string]interface{} {
			return scopedSecrets(e.Secrets, prefix)
		},
	}
}

func scopedSecrets(store SecretStorage, prefix string) map[string]interface{} {
	return map[string]interface{}{
		"lookup": func(name string) (interface{}, bool) {
			if store == nil {
				return nil, false
			}
			return store.Recall(prefix + "." + name)
		},
		"bind": func(name string, value interface{}) bool {
			if store == nil {
				return false
			}
			store.Learn(prefix+"."+name, value)
			return true
		},
	}
}

// RunScript compiles source and runs it through the script host
// against resolver. It does not add this Endpoint's Globals: every
// identifier the expression uses resolves through resolver alone.
func (e *Endpoint) RunScript(source string, resolver script.Resolver) (interface{}, error) {
	expr, err := script.Compile(source)
	if err != nil {
		return nil, err
	}
	return script.Run(expr, resolver)
}
