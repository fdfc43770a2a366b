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

// Package encoding implements the reversible textual encodings of
// spec.md §4.2 (json, form, query, base64, headers, text) and the
// Encoding[Inner] wrapper schema that composes an encoding with an
// arbitrary inner schema.
//
// Grounded on the teacher's own marshal-if-not-string /
// unmarshal-into-interface{} idiom (dsl.Pub.Substitute,
// chans.extractHTTPRequest: "If Body isn't a string, it'll be
// JSON-serialized").
package encoding

import (
	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/schema"
)

// Codec is the per-encoding collaborator of spec.md §4.2.
type Codec interface {
	Name() string
	// Decode parses outer (the wire-format string) into a raw,
	// JSON-shaped template value suitable for schema.FromTemplate.
	Decode(outer string) (interface{}, error)
	// Encode renders a raw inner value back to wire format.
	Encode(inner interface{}) (string, error)
}

// Wrapper is the "encoding<inner,outer>" structural schema of
// spec.md §4.3: it wraps an inner schema producing an outer schema
// over the encoded textual form.
type Wrapper struct {
	Codec Codec
	Inner schema.Schema

	// raw is the last outer-form string merged in; Merge records it
	// but does not read it back.
	raw string
}

func New(codec Codec, inner schema.Schema) *Wrapper {
	return &Wrapper{Codec: codec, Inner: inner}
}

func (w *Wrapper) Kind() schema.Kind { return schema.KindEncoding }

func (w *Wrapper) ScopeInto(ctx *pcontext.Context) error {
	if w.Inner == nil {
		return nil
	}
	return w.Inner.ScopeInto(ctx)
}

// Merge decodes the incoming outer schema's literal/pattern string
// (spec.md §4.2: "decode the template string to the inner form, merge
// with the inner schema, rewrap"). The incoming Schematic must expand
// to a *schema.Scalar or *schema.Value carrying the outer-form string,
// or to another *Wrapper with the same Codec.
func (w *Wrapper) Merge(ctx *pcontext.Context, t schema.Schematic) (schema.Schema, error) {
	other, err := schema.Expand(ctx, t)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return w, nil
	}

	if ow, ok := other.(*Wrapper); ok {
		inner := w.Inner
		if inner == nil {
			return &Wrapper{Codec: w.Codec, Inner: ow.Inner, raw: ow.raw}, nil
		}
		merged, err := inner.Merge(ctx, schema.Of(ow.Inner))
		if err != nil {
			return nil, err
		}
		return &Wrapper{Codec: w.Codec, Inner: merged}, nil
	}

	outer, ok := literalString(other)
	if !ok {
		return nil, nil
	}

	raw, err := w.Codec.Decode(outer)
	if err != nil {
		ctx.Diagnose(err, "decoding %s body", w.Codec.Name())
		if ctx.Mode == pcontext.Match {
			return nil, nil
		}
		return nil, err
	}

	decoded, err := schema.Expand(ctx, schema.FromTemplate(raw))
	if err != nil {
		return nil, err
	}

	inner := w.Inner
	if inner == nil {
		return &Wrapper{Codec: w.Codec, Inner: decoded, raw: outer}, nil
	}

	merged, err := inner.Merge(ctx, schema.Of(decoded))
	if err != nil {
		return nil, err
	}
	return &Wrapper{Codec: w.Codec, Inner: merged, raw: outer}, nil
}

func literalString(s schema.Schema) (string, bool) {
	switch v := s.(type) {
	case *schema.Value:
		str, ok := v.V.(string)
		return str, ok
	case *schema.Scalar:
		return v.Pattern.Source, true
	default:
		return "", false
	}
}

func (w *Wrapper) Render(ctx *pcontext.Context) (interface{}, error) {
	if w.Inner == nil {
		return "", nil
	}
	inner, err := w.Inner.Render(ctx)
	if err != nil {
		return nil, err
	}
	return w.Codec.Encode(inner)
}

func (w *Wrapper) Resolve(ctx *pcontext.Context) (interface{}, error) {
	if w.Inner == nil {
		return "", nil
	}
	inner, err := w.Inner.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return w.Codec.Encode(inner)
}
