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

package https

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/schema"
	"github.com/adobe/pardon-engine/schema/encoding"
)

// Template is a fully parsed .https document: its configuration and
// the schema trees for the request and (possibly polymorphic) response.
type Template struct {
	Config   *Config
	Request  *schema.Object
	Response schema.Schema // *schema.Deferred when there's more than one status variant
}

// Parse parses an .https document's source into a Template.
//
// The request start line is "METHOD pathname[?query]" -- origin is
// deliberately never written on the request line itself; it resolves
// through the endpoint environment's defaults/config chain (spec.md
// §4.7), the same way a test's target host is normally an environment
// concern rather than something copy-pasted into every request.  A
// request line may still override it explicitly by declaring an
// "origin:" header, which this parser special-cases into the origin
// field instead of the wire headers.
func Parse(src string) (*Template, error) {
	doc, err := parseDocument(src)
	if err != nil {
		return nil, err
	}

	cfg, err := parseConfig(doc.config)
	if err != nil {
		return nil, err
	}

	request, err := buildRequest(doc.request)
	if err != nil {
		return nil, fmt.Errorf("https: building request: %w", err)
	}

	response, err := buildResponse(doc.response)
	if err != nil {
		return nil, fmt.Errorf("https: building response: %w", err)
	}

	return &Template{Config: cfg, Request: request, Response: response}, nil
}

func buildRequest(b rawBlock) (*schema.Object, error) {
	parts := strings.SplitN(b.startLine, " ", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("https: malformed request line %q", b.startLine)
	}
	method, rest := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	pathname, query := rest, ""
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		pathname, query = rest[:idx], rest[idx+1:]
	}

	obj := schema.NewObject(false)

	methodSchema, err := schema.NewScalar(schema.TypeString, method)
	if err != nil {
		return nil, err
	}
	obj.Fields["method"] = methodSchema

	pathnameSchema, err := schema.NewScalar(schema.TypeString, pathname)
	if err != nil {
		return nil, err
	}
	obj.Fields["pathname"] = pathnameSchema

	if query != "" {
		searchParams, err := buildEncodedSchema(encoding.Query{}, query)
		if err != nil {
			return nil, fmt.Errorf("https: parsing query string: %w", err)
		}
		obj.Fields["searchParams"] = searchParams
	}

	headers, contentType, origin, err := buildHeaders(b.headers)
	if err != nil {
		return nil, err
	}
	if headers != nil {
		obj.Fields["headers"] = headers
	}

	if origin == "" {
		origin = "{{origin}}"
	}
	originSchema, err := schema.NewScalar(schema.TypeString, origin)
	if err != nil {
		return nil, err
	}
	obj.Fields["origin"] = originSchema

	if b.body != "" {
		bodySchema, err := buildEncodedSchema(encoding.ForContentType(contentType), b.body)
		if err != nil {
			return nil, fmt.Errorf("https: parsing body: %w", err)
		}
		obj.Fields["body"] = bodySchema
	}

	return obj, nil
}

// buildEncodedSchema decodes a wire-format string (a query string or a
// request/response body) through codec into its JSON-shaped raw form,
// builds the inner schema tree from that, and wraps both back up in an
// encoding.Wrapper -- the same decode-then-build step
// encoding.Wrapper.Merge performs at merge time, done once up front so
// holes embedded inside a JSON/form body (e.g. a quoted "{{id}}") are
// visible to ScopeInto/Render rather than staying opaque text until
// the first merge.
func buildEncodedSchema(codec encoding.Codec, raw string) (*encoding.Wrapper, error) {
	decoded, err := codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	inner, err := schema.Expand(pcontext.New(nil, pcontext.Mix), schema.FromTemplate(decoded))
	if err != nil {
		return nil, err
	}
	return encoding.New(codec, inner), nil
}

// buildHeaders turns the ordered header lines into a Multivalue keyed
// by header name, returning the Content-Type value (if declared) so
// the caller can pick a body codec. An "origin" header is special: it
// names the request's scheme+host rather than a wire header, so it is
// pulled out of the Multivalue and returned separately.
func buildHeaders(lines []headerLine) (mv *schema.Multivalue, contentType, origin string, err error) {
	var entries []headerLine
	for _, h := range lines {
		if strings.EqualFold(h.name, "origin") {
			origin = h.value
			continue
		}
		entries = append(entries, h)
	}
	if len(entries) == 0 {
		return nil, "", origin, nil
	}

	mv = schema.NewMultivalue(nil)
	for _, h := range entries {
		if strings.EqualFold(h.name, "content-type") {
			contentType = h.value
		}
		s, scalarErr := schema.NewScalar(schema.TypeString, h.value)
		if scalarErr != nil {
			return nil, "", "", scalarErr
		}
		if _, have := mv.Values[h.name]; !have {
			mv.Order = append(mv.Order, h.name)
		}
		mv.Values[h.name] = append(mv.Values[h.name], s)
	}
	return mv, contentType, origin, nil
}

// buildResponse builds one response variant per <<< block; when there
// is exactly one, it's returned directly (no deferred wrapper needed).
// With more than one, they're wrapped in a schema.Deferred keyed by
// status code, selecting a variant by comparing the incoming response
// object's "status" field (spec.md §4.6's polymorphic response
// support).
func buildResponse(blocks []rawBlock) (schema.Schema, error) {
	variants := make([]schema.Schema, 0, len(blocks))
	tags := make([]statusTag, 0, len(blocks))

	for _, b := range blocks {
		v, err := buildResponseVariant(b)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
		tags = append(tags, b.status)
	}

	if len(variants) == 1 {
		return variants[0], nil
	}

	d := &schema.Deferred{Variants: variants}
	d.Rule = statusRule(tags, variants)
	return d, nil
}

func buildResponseVariant(b rawBlock) (schema.Schema, error) {
	obj := schema.NewObject(false)

	if b.status.Kind == statusExact {
		obj.Fields["status"] = &schema.Value{V: float64(b.status.Exact)}
	} else {
		// An untagged marker or a status-class wildcard ("4xx") binds
		// whatever concrete status the incoming response carries,
		// rather than constraining it to a single literal.
		statusSchema, err := schema.NewScalar(schema.TypeNumber, "{{status}}")
		if err != nil {
			return nil, err
		}
		obj.Fields["status"] = statusSchema
	}

	headers, contentType, _, err := buildHeaders(b.headers)
	if err != nil {
		return nil, err
	}
	if headers != nil {
		obj.Fields["headers"] = headers
	}

	if b.body != "" {
		bodySchema, err := buildEncodedSchema(encoding.ForContentType(contentType), b.body)
		if err != nil {
			return nil, fmt.Errorf("https: parsing response body: %w", err)
		}
		obj.Fields["body"] = bodySchema
	}

	return obj, nil
}

// statusRule builds the schema.DeferredRule that picks a response
// variant by the incoming object's "status" field: an exact-tagged
// variant wins first, then a status-class wildcard ("4xx") whose
// range contains the code, and only then the untagged catch-all, so a
// three-way "200" / "4xx" / "5xx" template (spec.md §8 scenario 5)
// never collapses distinct classes into the same fallback slot.
func statusRule(tags []statusTag, variants []schema.Schema) schema.DeferredRule {
	return func(ctx *pcontext.Context, incoming schema.Schema) (schema.Schema, error) {
		obj, ok := incoming.(*schema.Object)
		if !ok {
			return nil, fmt.Errorf("https: response to match is not an object")
		}
		statusField, ok := obj.Fields["status"]
		if !ok {
			return nil, fmt.Errorf("https: response to match has no status field")
		}
		v, err := statusField.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		code, err := statusCode(v)
		if err != nil {
			return nil, err
		}

		for i, tag := range tags {
			if tag.Kind == statusExact && tag.Exact == code {
				return variants[i], nil
			}
		}
		for i, tag := range tags {
			if tag.Kind == statusClass && code >= tag.Low && code <= tag.High {
				return variants[i], nil
			}
		}
		for i, tag := range tags {
			if tag.Kind == statusNone {
				return variants[i], nil
			}
		}
		return nil, fmt.Errorf("https: no response variant matches status %d", code)
	}
}

// statusCode coerces a resolved "status" field value (typically a
// float64, since Scalar.coerce parses a TypeNumber hole that way) into
// a plain int for range comparison.
func statusCode(v interface{}) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("https: status value %v is not numeric", v)
}
