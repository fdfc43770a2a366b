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

// Package scope implements the EvaluationScope of spec.md §3/§4.4: a
// tree of named frames holding declared/defined identifiers, secrets,
// and subscope labels.
//
// Frames are arena-indexed (spec.md §9's "cyclic graphs between scope
// and schema" design note): a Scope is an ID into an Arena, which owns
// the actual frame storage.  This breaks the ownership cycle between
// schema nodes (which reference the scope they declare into) and
// scope frames (which reference the schemas that declared into them)
// without requiring a garbage-collected cyclic graph of pointers to be
// reasoned about directly -- both directions are plain integer ids.
package scope

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ID identifies a frame within an Arena.
type ID int

// LabelClass distinguishes the three subscope-label namespaces named
// in spec.md §9 (":name", "[index]", "{key}").  The Open Question of
// precedence when a name collides across these namespaces is resolved
// here: scopes are disjoint by label-class prefix, so "foo" under
// ":foo", "[foo]", and "{foo}" never collide with one another.
type LabelClass int

const (
	Field LabelClass = iota // ":name"
	Index                   // "[index]"
	Key                     // "{key}"
)

// Label is a fully qualified subscope label: a class plus the raw
// name/index/key string.
type Label struct {
	Class LabelClass
	Name  string
}

func (l Label) String() string {
	switch l.Class {
	case Field:
		return ":" + l.Name
	case Index:
		return "[" + l.Name + "]"
	case Key:
		return "{" + l.Name + "}"
	default:
		return l.Name
	}
}

// Value is a declared or defined identifier binding.
type Value struct {
	Value      interface{}
	Defined    bool
	Expression string
	Source     string // declaring schema's description, for diagnostics
	Hints      map[rune]bool
	Context    interface{} // opaque context snapshot, e.g. the declaring scope path
}

// Secret returns whether this value was declared @secret.
func (v Value) Secret() bool { return v.Hints != nil && v.Hints['@'] }

// frame is the actual storage for one Scope node; Arena owns frames,
// Scope (an ID) is a lightweight handle.
type frame struct {
	parent ID
	label  Label

	values    map[string]*Value
	secrets   map[string]*Value
	subscopes map[Label]ID

	// imported is the set of identifiers resolved via the script host
	// rather than plain lookup.
	imported map[string]bool

	// index holds the "struts": identifiers whose resolution
	// determines membership of a scoped array/map.
	index map[string]bool

	// inFlight tracks identifiers currently being evaluated in this
	// frame, for cycle detection (spec.md §4.4/§5).
	inFlight map[string]bool
}

func newFrame(parent ID, label Label) *frame {
	return &frame{
		parent:    parent,
		label:     label,
		values:    map[string]*Value{},
		secrets:   map[string]*Value{},
		subscopes: map[Label]ID{},
		imported:  map[string]bool{},
		index:     map[string]bool{},
		inFlight:  map[string]bool{},
	}
}

// Arena owns all frames for one evaluation (spec.md §3's Lifecycle:
// "Scope frames ... live for the duration of a single
// request-processing call").
type Arena struct {
	mu     sync.Mutex
	frames []*frame
}

// NewArena creates an Arena with a single root frame and returns its ID.
func NewArena() (*Arena, ID) {
	a := &Arena{}
	root := newFrame(-1, Label{})
	a.frames = append(a.frames, root)
	return a, ID(0)
}

func (a *Arena) get(id ID) *frame {
	return a.frames[id]
}

// Child returns the existing subscope frame for label under parent,
// creating it lazily if necessary (spec.md §3: "Scope frames are
// created lazily when a schema first declares into them").
func (a *Arena) Child(parent ID, label Label) ID {
	a.mu.Lock()
	defer a.mu.Unlock()

	f := a.get(parent)
	if id, have := f.subscopes[label]; have {
		return id
	}
	child := newFrame(parent, label)
	a.frames = append(a.frames, child)
	id := ID(len(a.frames) - 1)
	f.subscopes[label] = id
	return id
}

// Scope is a handle into an Arena: the frame id plus a back-pointer to
// its owning arena, so callers can pass it around like a value without
// threading the Arena separately.
type Scope struct {
	Arena *Arena
	ID    ID
}

// Root returns the root Scope of a freshly created Arena.
func Root() *Scope {
	a, root := NewArena()
	return &Scope{Arena: a, ID: root}
}

func (s *Scope) frame() *frame { return s.Arena.get(s.ID) }

// Label returns the label this scope was entered under (zero value at
// the root).
func (s *Scope) Label() Label { return s.frame().label }

// Path returns the dotted/bracketed label path from the root to s,
// used for diagnostics and for scope.Scopes on pcontext.Context.
func (s *Scope) Path() []string {
	var labels []string
	for id := s.ID; id >= 0; {
		f := s.Arena.get(id)
		if f.parent < 0 {
			break
		}
		labels = append([]string{f.label.String()}, labels...)
		id = f.parent
	}
	return labels
}

// Sub returns (creating lazily) the named subscope.
func (s *Scope) Sub(label Label) *Scope {
	id := s.Arena.Child(s.ID, label)
	return &Scope{Arena: s.Arena, ID: id}
}

// Field is sugar for Sub(Label{Field, name}).
func (s *Scope) Field(name string) *Scope { return s.Sub(Label{Field, name}) }

// Elem is sugar for Sub(Label{Index, idx}).
func (s *Scope) Elem(idx string) *Scope { return s.Sub(Label{Index, idx}) }

// Keyed is sugar for Sub(Label{Key, key}).
func (s *Scope) Keyed(key string) *Scope { return s.Sub(Label{Key, key}) }

// Parent returns the parent scope, or nil at the root.
func (s *Scope) Parent() *Scope {
	f := s.frame()
	if f.parent < 0 {
		return nil
	}
	return &Scope{Arena: s.Arena, ID: f.parent}
}

// Declare records that identifier name is used by some schema, without
// giving it a value yet.  Redeclaring with a conflicting expression is
// an invariant violation (spec.md §3).
func (s *Scope) Declare(name, expression string, hints map[rune]bool) error {
	f := s.frame()
	if existing, have := f.values[name]; have {
		if existing.Expression != "" && expression != "" && existing.Expression != expression {
			return fmt.Errorf("scope: %s already declared with expression %q (got %q)", name, existing.Expression, expression)
		}
		if expression != "" && existing.Expression == "" {
			existing.Expression = expression
		}
		for h, v := range hints {
			if v {
				if existing.Hints == nil {
					existing.Hints = map[rune]bool{}
				}
				existing.Hints[h] = true
			}
		}
		return nil
	}
	f.values[name] = &Value{Expression: expression, Hints: hints}
	return nil
}

// Define assigns a concrete value to name, marking it defined.  If
// secret, the value is marked with the '@' hint (which AllDefined and
// redacted renders honor) and mirrored into the secrets table; Lookup
// still returns it.
func (s *Scope) Define(name string, value interface{}, secret bool) {
	f := s.frame()
	v, have := f.values[name]
	if !have {
		v = &Value{}
		f.values[name] = v
	}
	v.Value = value
	v.Defined = true
	if secret {
		if v.Hints == nil {
			v.Hints = map[rune]bool{}
		}
		v.Hints['@'] = true
		f.secrets[name] = &Value{Value: value, Defined: true, Hints: v.Hints}
	}
}

// Lookup resolves name by walking this frame's values, then up the
// parent chain (spec.md §4.4: "Identifiers resolve by walking the
// current scope frame upward").  It does not consult the script
// environment; callers needing the full chain use endpoint.Environment.
func (s *Scope) Lookup(name string) (*Value, bool) {
	for id := s.ID; id >= 0; {
		f := s.Arena.get(id)
		if v, have := f.values[name]; have && v.Defined {
			return v, true
		}
		id = f.parent
	}
	return nil, false
}

// LookupDeclared is like Lookup but also returns not-yet-defined
// declarations (used during the validate phase to check reachability).
func (s *Scope) LookupDeclared(name string) (*Value, bool) {
	for id := s.ID; id >= 0; {
		f := s.Arena.get(id)
		if v, have := f.values[name]; have {
			return v, true
		}
		id = f.parent
	}
	return nil, false
}

// MarkImported records that name was last resolved via the script
// host's import table rather than plain scope lookup.
func (s *Scope) MarkImported(name string) {
	s.frame().imported[name] = true
}

// Imported reports whether name was resolved via the script host.
func (s *Scope) Imported(name string) bool {
	return s.frame().imported[name]
}

// MarkStrut adds name to the set of identifiers whose resolution
// determines membership in a scoped array/map.
func (s *Scope) MarkStrut(name string) {
	s.frame().index[name] = true
}

// Struts returns the strut identifiers for this frame, sorted for
// determinism.
func (s *Scope) Struts() []string {
	f := s.frame()
	out := make([]string, 0, len(f.index))
	for k := range f.index {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Enter marks name as in-flight in this frame for cycle detection. If
// name is already in-flight it returns an error naming only that
// identifier ("cyclic dependency: a"), not the chain that led back to
// it; otherwise it returns a func to call on exit.
func (s *Scope) Enter(name string) (func(), error) {
	f := s.frame()
	if f.inFlight[name] {
		return nil, fmt.Errorf("cyclic dependency: %s", name)
	}
	f.inFlight[name] = true
	return func() { delete(f.inFlight, name) }, nil
}

// AllDefined walks this frame and its subscopes, returning every
// defined identifier keyed by its path (subscope labels, then "." and
// the name); secret identifiers are included only when includeSecrets
// is true. Used by render to build a bindings snapshot.
func (s *Scope) AllDefined(includeSecrets bool) map[string]interface{} {
	out := map[string]interface{}{}
	s.collect("", out, includeSecrets)
	return out
}

func (s *Scope) collect(prefix string, out map[string]interface{}, includeSecrets bool) {
	f := s.frame()
	for name, v := range f.values {
		if !v.Defined {
			continue
		}
		if v.Secret() && !includeSecrets {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		out[key] = v.Value
	}
	for label, id := range f.subscopes {
		child := &Scope{Arena: s.Arena, ID: id}
		sub := label.String()
		if prefix != "" {
			sub = prefix + sub
		}
		child.collect(sub, out, includeSecrets)
	}
}

// String renders a debug view of the frame tree.
func (s *Scope) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scope%v", s.Path())
	return b.String()
}
