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

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// GojaHost resolves an .https configuration's "import:" table by
// running named module sources in a goja.Runtime and exporting what
// each module assigns to module.exports, or its last expression value
// when module.exports is left empty, mirroring the teacher's dsl.JSExec
// wrapping of goja.Runtime.RunString for a full script body (as
// opposed to Expr's single-expression host in script.go).  It implements
// endpoint.Compiler.
type GojaHost struct {
	mu      sync.Mutex
	modules map[string]string
	cache   map[string]interface{}
}

// NewGojaHost builds a host with no modules registered.
func NewGojaHost() *GojaHost {
	return &GojaHost{modules: map[string]string{}, cache: map[string]interface{}{}}
}

// Register associates name with source, the body of a module an
// .https "import:" block may reference by name. Source's final
// expression (or an assignment to the identifier "module.exports")
// becomes the imported value.
func (h *GojaHost) Register(name, source string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modules[name] = source
	delete(h.cache, name)
}

// Import implements endpoint.Compiler: it runs specifier's registered
// module source once and caches the resulting value for subsequent
// imports. parentSpecifier is accepted to satisfy the interface (a
// caller normally passes the already-Resolve'd specifier here) but
// otherwise unused, since modules are addressed directly by name
// rather than by a path relative to parentSpecifier.
func (h *GojaHost) Import(specifier, parentSpecifier string) (interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if v, ok := h.cache[specifier]; ok {
		return v, nil
	}

	source, ok := h.modules[specifier]
	if !ok {
		return nil, fmt.Errorf("script: no module registered for import %q (from %q)", specifier, parentSpecifier)
	}

	vm := goja.New()
	exports := vm.NewObject()
	module := vm.NewObject()
	_ = module.Set("exports", exports)
	vm.Set("module", module)
	vm.Set("exports", exports)

	val, err := vm.RunString(source)
	if err != nil {
		return nil, fmt.Errorf("script: running module %q: %w", specifier, err)
	}

	result := exportsValue(module, val)
	h.cache[specifier] = result
	return result, nil
}

// Resolve implements endpoint.Compiler: a specifier starting with "."
// resolves against parentSpecifier's directory the way a CommonJS
// require would; anything else is already canonical, since this host
// has no on-disk module tree to walk (file loading is an external
// collaborator's concern, per spec.md §6).
func (h *GojaHost) Resolve(specifier, parentSpecifier string) (string, error) {
	if !strings.HasPrefix(specifier, ".") {
		return specifier, nil
	}
	dir := path.Dir(parentSpecifier)
	if dir == "." {
		dir = ""
	}
	return path.Clean(path.Join(dir, specifier)), nil
}

// exportsValue prefers whatever was assigned to module.exports, and
// falls back to the script's own final expression value when nothing
// was assigned (a module that is a single expression, not a CommonJS
// assignment).
func exportsValue(module *goja.Object, last goja.Value) interface{} {
	exports := module.Get("exports")
	if exports != nil {
		if obj, ok := exports.Export().(map[string]interface{}); ok && len(obj) > 0 {
			return obj
		}
	}
	if last != nil {
		return last.Export()
	}
	return nil
}
