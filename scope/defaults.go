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

package scope

import "fmt"

// DefaultTree is one node of the hierarchical default-chain described
// in spec.md §4.4 and illustrated by §8 scenario 6:
//
//	defaults: { host: { env: { prod: "api.example.com", stage: "...", default: "localhost" } } }
//
// A leaf DefaultTree carries only Literal; a branch carries a
// Discriminator (the identifier to look up in scope) plus Branches
// keyed by the discriminator's value, and an optional Default branch.
// A literal nil at a leaf explicitly unsets the default.
type DefaultTree struct {
	Leaf     bool
	Literal  interface{}
	Unset    bool
	Discrim  string
	Branches map[string]*DefaultTree
	Default  *DefaultTree
}

// Lit constructs a leaf default.
func Lit(v interface{}) *DefaultTree { return &DefaultTree{Leaf: true, Literal: v} }

// Unsetting constructs a leaf that explicitly unsets an inherited default.
func Unsetting() *DefaultTree { return &DefaultTree{Leaf: true, Unset: true} }

// Branch constructs a discriminator branch.
func Branch(discriminator string, branches map[string]*DefaultTree, def *DefaultTree) *DefaultTree {
	return &DefaultTree{Discrim: discriminator, Branches: branches, Default: def}
}

// defaultResolver is implemented by anything that can look up a
// discriminator's current value while resolving a DefaultTree; in
// practice this is scope.Scope.Lookup, but kept as an interface so
// endpoint.Environment can interpose.
type DefaultResolver interface {
	Lookup(name string) (*Value, bool)
}

// Resolve walks t, looking up each Discrim in resolver and following
// the matching branch, recursing until a leaf is reached.  It returns
// (nil, false) if resolution bottoms out at an explicit unset or an
// unresolvable discriminator with no default branch.
func Resolve(t *DefaultTree, resolver DefaultResolver) (interface{}, bool, error) {
	if t == nil {
		return nil, false, nil
	}
	if t.Leaf {
		if t.Unset {
			return nil, false, nil
		}
		return t.Literal, true, nil
	}

	var selected *DefaultTree
	if v, have := resolver.Lookup(t.Discrim); have {
		key := fmt.Sprintf("%v", v.Value)
		if branch, ok := t.Branches[key]; ok {
			selected = branch
		}
	}
	if selected == nil {
		selected = t.Default
	}
	if selected == nil {
		return nil, false, nil
	}
	return Resolve(selected, resolver)
}
