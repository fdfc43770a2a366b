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

// Package engine implements spec.md §6: the façade exposing Match,
// Preview, Render and Process over an .https Template and its
// endpoint environment, dispatching the actual wire round trip to a
// pluggable Fetcher collaborator (transport.HTTPClient, transport.MQTT,
// or transport.Kinesis).
//
// Grounded on the teacher's dsl.Ctx-driven Test.Run: a Test walks its
// Phases/Steps against one shared Ctx, accumulating scope bindings as
// it goes; Engine does the analogous walk over one .https step's
// request and response halves against one shared pcontext.Context, so
// bindings a response produces are visible to anything resolved
// afterward exactly the way a later step sees an earlier one's output.
package engine

import (
	"context"
	"fmt"

	"github.com/adobe/pardon-engine/endpoint"
	"github.com/adobe/pardon-engine/envelope"
	"github.com/adobe/pardon-engine/https"
	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/perr"
	"github.com/adobe/pardon-engine/schema"
	"github.com/adobe/pardon-engine/script"
)

// Fetcher is the external collaborator that actually dispatches a
// rendered request and waits for its response, implemented by
// transport.HTTPClient, transport.MQTT and transport.Kinesis.
type Fetcher interface {
	Fetch(ctx context.Context, req *envelope.Request) (*envelope.Response, error)
}

// Engine ties one .https Template to the endpoint environment it
// renders/matches against and the transport that executes it.
type Engine struct {
	Template *https.Template
	Env      *endpoint.Endpoint
	Fetcher  Fetcher
}

// New builds an Engine, folding the template's "defaults:" discriminator
// trees (spec.md §3) into env.Defaults and its "import:" alias table
// into env.ImportTable, wherever env doesn't already declare that name
// itself. When env has no Compiler of its own, New supplies a fresh
// script.GojaHost so an expression referencing an import alias has a
// working path end to end; the caller remains free to Register modules
// on it (or replace env.Imports with its own Compiler) before
// rendering.
func New(tpl *https.Template, env *endpoint.Endpoint, fetcher Fetcher) *Engine {
	if tpl != nil && tpl.Config != nil && env != nil {
		for name, tree := range tpl.Config.DefaultTrees() {
			if _, exists := env.Defaults[name]; !exists {
				env.Defaults[name] = tree
			}
		}
		for alias, specifier := range tpl.Config.Import {
			if _, exists := env.ImportTable[alias]; !exists {
				if env.ImportTable == nil {
					env.ImportTable = map[string]string{}
				}
				env.ImportTable[alias] = specifier
			}
		}
	}
	if env != nil && env.Imports == nil {
		env.Imports = script.NewGojaHost()
	}
	return &Engine{Template: tpl, Env: env, Fetcher: fetcher}
}

// newContext builds a Context wired to e.Env, pre-binding every config
// axis (e.g. "env" => "staging") into scope so a default tree's
// discriminator branches -- which read the current scope, not the
// endpoint's Config map directly -- can see them.
func (e *Engine) newContext(parent context.Context, mode pcontext.Mode) *pcontext.Context {
	ctx := pcontext.New(parent, mode)
	ctx.Environment = e.Env
	for name, value := range e.Env.Config {
		ctx.Scope.Define(name, value, false)
	}
	return ctx
}

// RenderResult is Render's outcome: the dispatchable request, a
// display copy with every @-hinted value replaced by its redacted
// placeholder, and every binding the render collected.
type RenderResult struct {
	Request  *envelope.Request
	Redacted *envelope.Request
	Bindings map[string]interface{}
}

// Preview renders the request with unbound holes left as their
// pattern source rather than raising an error, for showing a user what
// a step would send before every input is known (spec.md §4.5's
// preview mode).
func (e *Engine) Preview(parent context.Context) (*envelope.Request, error) {
	ctx := e.newContext(parent, pcontext.Preview)
	if err := e.Template.Request.ScopeInto(ctx); err != nil {
		return nil, err
	}
	return envelope.Render(ctx, e.Template.Request)
}

// Render renders the request twice against the same inputs: once with
// real secret values (the copy a Fetcher actually sends) and once
// redacted (a display copy safe to log), per spec.md §6's "two-pass if
// secrets present". Every hole must resolve in the unredacted pass; an
// unbound identifier is an error.
func (e *Engine) Render(parent context.Context) (*RenderResult, error) {
	ctx := e.newContext(parent, pcontext.Render)
	if err := e.Template.Request.ScopeInto(ctx); err != nil {
		return nil, err
	}

	req, err := envelope.Render(ctx, e.Template.Request)
	if err != nil {
		if diag := ctx.FirstDiagnostic(perr.Unbound); diag != nil {
			return nil, diag
		}
		return nil, err
	}
	if err := e.Template.ValidateSchema(req.Body); err != nil {
		return nil, err
	}

	redacted, err := envelope.Render(ctx.WithSecrets(false), e.Template.Request)
	if err != nil {
		return nil, err
	}

	return &RenderResult{
		Request:  req,
		Redacted: redacted,
		Bindings: ctx.Scope.AllDefined(false),
	}, nil
}

// MatchResult is Match's outcome: the response schema variant that was
// selected (the template's response tree itself when there was only
// one shape) and every binding the match collected.
type MatchResult struct {
	Matched  schema.Schema
	Bindings map[string]interface{}
}

// Match merges a concrete response against the template's response
// schema, binding whatever variables it carries into ctx's scope.
func (e *Engine) Match(parent context.Context, resp *envelope.Response) (*MatchResult, error) {
	ctx := e.newContext(parent, pcontext.Match)
	if err := e.Template.Response.ScopeInto(ctx); err != nil {
		return nil, err
	}
	merged, err := envelope.MatchResponse(ctx, e.Template.Response, resp)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		if diag := ctx.FirstDiagnostic(perr.Match); diag != nil {
			return nil, diag
		}
		return nil, fmt.Errorf("engine: response did not match the template")
	}
	if err := e.Template.ValidateSchema(resp.Body); err != nil {
		return nil, err
	}
	return &MatchResult{Matched: merged, Bindings: ctx.Scope.AllDefined(false)}, nil
}

// ProcessResult is Process's outcome: the rendered request, the
// dispatched response, and the bindings ("ingress") the response's
// match produced.
type ProcessResult struct {
	Request  *envelope.Request
	Response *envelope.Response
	Ingress  map[string]interface{}
}

// Process performs the full round trip: render the request, dispatch
// it through Fetcher, match the reply against the response template,
// and validate both bodies against any declared JSON Schema. Request
// and response share one Context, so a value the response binds is
// visible to anything resolved afterward in the same scope.
func (e *Engine) Process(parent context.Context) (*ProcessResult, error) {
	ctx := e.newContext(parent, pcontext.Render)

	if err := e.Template.Request.ScopeInto(ctx); err != nil {
		return nil, err
	}
	req, err := envelope.Render(ctx, e.Template.Request)
	if err != nil {
		return nil, err
	}
	if err := e.Template.ValidateSchema(req.Body); err != nil {
		return nil, err
	}

	resp, err := e.Fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch: %w", err)
	}

	matchCtx := ctx.WithMode(pcontext.Match)
	if err := e.Template.Response.ScopeInto(matchCtx); err != nil {
		return nil, err
	}
	if _, err := envelope.MatchResponse(matchCtx, e.Template.Response, resp); err != nil {
		return nil, err
	}
	if diag := matchCtx.FirstDiagnostic(perr.Match); diag != nil {
		return nil, diag
	}
	if err := e.Template.ValidateSchema(resp.Body); err != nil {
		return nil, err
	}

	return &ProcessResult{
		Request:  req,
		Response: resp,
		Ingress:  matchCtx.Scope.AllDefined(false),
	}, nil
}
