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

// Package pcontext implements the merge/render state machine of
// spec.md §4.5: the Mode/Phase pair, the Context that threads through
// every schema operation, and diagnostic accumulation.
//
// Context embeds a context.Context the same way the teacher's dsl.Ctx
// wraps one, so cancellation (spec.md §5) is ordinary Go context
// cancellation: CheckAborted polls ctx.Err(), Aborting returns
// ctx.Done().
package pcontext

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/adobe/pardon-engine/perr"
	"github.com/adobe/pardon-engine/scope"
)

// Mode is one of the merge/render modes of spec.md §4.5.
type Mode string

const (
	Mix        Mode = "mix"
	Mux        Mode = "mux"
	Match      Mode = "match"
	Meld       Mode = "meld"
	Render     Mode = "render"
	Preview    Mode = "preview"
	Prerender  Mode = "prerender"
	Postrender Mode = "postrender"
)

// Merging reports whether m is one of the merge modes (mix, mux,
// match, meld) as opposed to a render-only mode.
func (m Mode) Merging() bool {
	switch m {
	case Mix, Mux, Match, Meld:
		return true
	default:
		return false
	}
}

// Phase is one of the two structural phases of spec.md §4.5.
type Phase string

const (
	Build    Phase = "build"
	Validate Phase = "validate"
)

// Diagnostic is a single soft-failure note appended to a Context.
type Diagnostic struct {
	Loc     perr.Loc
	Message string
	Cause   error
}

func (d Diagnostic) String() string {
	if d.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", d.Loc, d.Message, d.Cause)
	}
	return fmt.Sprintf("%s: %s", d.Loc, d.Message)
}

// Environment is the pluggable script/identifier-resolution
// collaborator an endpoint interposes in front of plain scope
// resolution (spec.md §4.7).
type Environment interface {
	// Resolve looks up name, honoring the input -> secret -> default
	// chain.  scoped is true when name was referenced with a dotted
	// scope path.
	Resolve(ctx *Context, name string, scoped bool) (interface{}, error)

	// Evaluate resolves an import-table reference (or the special
	// "secrets" name) via the script host.
	Evaluate(ctx *Context, name string) (interface{}, error)

	// Redact renders the display form of value, replacing it with a
	// placeholder such as "{{redacted}}" when secret is true. It is not
	// given the variable's name, so no per-variable redactor applies.
	Redact(ctx *Context, value interface{}, secret bool) interface{}
}

// Context threads mode, phase, scope, diagnostics and the script
// environment through every schema operation.
type Context struct {
	context.Context

	Mode  Mode
	Phase Phase

	// Keys is the path of field accesses taken to reach the current
	// schema node; Scopes is the path of scope labels.
	Keys   []string
	Scopes []string

	Diagnostics []Diagnostic

	Environment Environment

	// ShowSecrets controls whether a @-hinted hole renders its real
	// value or the environment's redacted placeholder (spec.md §8's
	// "no secret leak" invariant). Render defaults this true (a
	// dispatched request needs the real value); the redacted copy a
	// render also produces runs a second pass with this false.
	ShowSecrets bool

	// Scope is the current evaluation-scope frame schema operations
	// declare into and resolve identifiers against.
	Scope *scope.Scope

	// Template is the incoming schematic being merged; nil outside
	// merge modes.
	Template interface{}

	logger *log.Logger
	indent int
	debug  bool
}

// New creates a root Context for mode m wrapping parent (usually
// context.Background()).
func New(parent context.Context, mode Mode) *Context {
	if parent == nil {
		parent = context.Background()
	}
	return &Context{
		Context:     parent,
		Mode:        mode,
		Phase:       Build,
		Scope:       scope.Root(),
		ShowSecrets: true,
		logger:      log.New(os.Stderr, "", log.LstdFlags),
	}
}

// WithSecrets returns a child Context with ShowSecrets set to show,
// used to run a second, redacted render pass over the same template
// and scope.
func (c *Context) WithSecrets(show bool) *Context {
	clone := *c
	clone.ShowSecrets = show
	return &clone
}

// WithDebug turns on Inddf-level tracing, mirroring the teacher's
// dsl.Ctx verbosity switch.
func (c *Context) WithDebug(debug bool) *Context {
	clone := *c
	clone.debug = debug
	return &clone
}

// Field returns a child Context with key appended to Keys, used when
// a structural schema descends into a field.
func (c *Context) Field(key string) *Context {
	clone := *c
	clone.Keys = append(append([]string{}, c.Keys...), key)
	return &clone
}

// Scoped returns a child Context with label appended to Scopes.
func (c *Context) Scoped(label string) *Context {
	clone := *c
	clone.Scopes = append(append([]string{}, c.Scopes...), label)
	return &clone
}

// WithMode returns a child Context operating in a different mode,
// preserving scope location but resetting diagnostics accumulation to
// share the same backing slice (diagnostics are a property of the
// whole operation, not one mode).
func (c *Context) WithMode(mode Mode) *Context {
	clone := *c
	clone.Mode = mode
	return &clone
}

func (c *Context) WithPhase(phase Phase) *Context {
	clone := *c
	clone.Phase = phase
	return &clone
}

// WithScope returns a child Context whose current scope frame is s,
// used when a structural schema descends into a subscope.
func (c *Context) WithScope(s *scope.Scope) *Context {
	clone := *c
	clone.Scope = s
	return &clone
}

// WithTemplate returns a child Context merging schematic t.
func (c *Context) WithTemplate(t interface{}) *Context {
	clone := *c
	clone.Template = t
	return &clone
}

// Loc captures the current scope/key path as a perr.Loc.
func (c *Context) Loc() perr.Loc {
	return perr.Loc{Scopes: c.Scopes, Keys: c.Keys}
}

// Diagnose appends a soft-failure diagnostic at the current location.
func (c *Context) Diagnose(cause error, format string, args ...interface{}) {
	c.Diagnostics = append(c.Diagnostics, Diagnostic{
		Loc:     c.Loc(),
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	})
}

// FirstDiagnostic raises the first accumulated diagnostic as an error,
// per spec.md §7's propagation policy ("if the resulting schema is
// undefined and diagnostics are non-empty, the first diagnostic is
// raised as the error").
func (c *Context) FirstDiagnostic(kind perr.Kind) error {
	if len(c.Diagnostics) == 0 {
		return nil
	}
	d := c.Diagnostics[0]
	return perr.Wrap(kind, d.Loc, d.Cause, "%s", d.Message)
}

// CheckAborted polls for cancellation, mirroring the teacher's
// repeated `select { case <-ctx.Done(): ... }` idiom.
func (c *Context) CheckAborted() error {
	select {
	case <-c.Done():
		return perr.Wrap(perr.Cancelled, c.Loc(), c.Err(), "operation cancelled")
	default:
		return nil
	}
}

// Aborting returns the cancellation channel, named to match spec.md §5.
func (c *Context) Aborting() <-chan struct{} {
	return c.Done()
}

// Indf logs an info-level indented trace line, mirroring dsl.Ctx.Indf.
func (c *Context) Indf(format string, args ...interface{}) {
	if c.logger == nil {
		return
	}
	c.logger.Printf("%s%s", indentOf(c.indent), fmt.Sprintf(format, args...))
}

// Inddf logs a debug-level indented trace line, mirroring dsl.Ctx.Inddf.
func (c *Context) Inddf(format string, args ...interface{}) {
	if !c.debug || c.logger == nil {
		return
	}
	c.logger.Printf("%s%s", indentOf(c.indent), fmt.Sprintf(format, args...))
}

// Indented returns a Context whose trace lines are nested one level
// deeper, the way the teacher indents per Step/Phase.
func (c *Context) Indented() *Context {
	clone := *c
	clone.indent = c.indent + 1
	return &clone
}

func indentOf(n int) string {
	b := make([]byte, n*2)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
