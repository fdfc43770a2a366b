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

// Package envelope implements spec.md §4.8: the request/response wire
// shapes a rendered or matched .https step ultimately produces.
//
// Grounded on the teacher's chans.HTTPRequest (chans/httpclient.go),
// which already models {Method, URL, Headers, Body, Form} as the flat
// struct handed to net/http; this package keeps that terminal shape
// but builds it from a schema tree instead of assembling it by hand,
// so every field can itself carry pattern holes, defaults, and
// content-type-driven body encoding.
package envelope

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/schema"
	"github.com/adobe/pardon-engine/schema/encoding"
)

// Request is the rendered/matched HTTP request envelope, mirroring
// chans.HTTPRequest's field set.
type Request struct {
	Method  string
	URL     string
	Headers map[string][]string
	Body    string
}

// Response is the matching envelope for a reply, mirroring the
// response half of chans.HTTPRequest's round trip.
type Response struct {
	Status  int
	Headers map[string][]string
	Body    string
}

// RequestSchema builds the schema tree backing an .https request block:
// a scoped object {method, origin, pathname, searchParams, headers,
// body, meta}, per spec.md §4.8.
type RequestSchema struct {
	Method       schema.Schema
	Origin       schema.Schema
	Pathname     schema.Schema
	SearchParams schema.Schema // *encoding.Wrapper over Query
	Headers      *schema.Multivalue
	Body         schema.Schema // typically *encoding.Wrapper
	Meta         schema.Schema
}

// Object assembles the fields present into a *schema.Object, skipping
// any left nil (an .https block need not declare every field).
func (r *RequestSchema) Object() *schema.Object {
	obj := schema.NewObject(false)
	add := func(name string, s schema.Schema) {
		if s != nil {
			obj.Fields[name] = s
		}
	}
	add("method", r.Method)
	add("origin", r.Origin)
	add("pathname", r.Pathname)
	if r.SearchParams != nil {
		add("searchParams", r.SearchParams)
	}
	if r.Headers != nil {
		add("headers", r.Headers)
	}
	add("body", r.Body)
	add("meta", r.Meta)
	return obj
}

// Render walks the assembled object and flattens it into the terminal
// Request wire shape net/http (or transport.HTTPClient) consumes.
func Render(ctx *pcontext.Context, obj *schema.Object) (*Request, error) {
	out, err := obj.Render(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("envelope: rendered request is not an object: %T", out)
	}
	return assemble(m)
}

func assemble(m map[string]interface{}) (*Request, error) {
	req := &Request{Headers: map[string][]string{}}

	if v, ok := m["method"]; ok {
		req.Method = fmt.Sprintf("%v", v)
	}
	origin, _ := m["origin"].(string)
	pathname, _ := m["pathname"].(string)
	req.URL = joinURL(origin, pathname)

	if sp, ok := m["searchParams"].(string); ok && sp != "" {
		if strings.Contains(req.URL, "?") {
			req.URL += "&" + sp
		} else {
			req.URL += "?" + sp
		}
	}

	if hdrs, ok := m["headers"].(map[string][]interface{}); ok {
		for k, vs := range hdrs {
			for _, v := range vs {
				req.Headers[k] = append(req.Headers[k], fmt.Sprintf("%v", v))
			}
		}
	}

	if body, ok := m["body"]; ok && body != nil {
		req.Body = fmt.Sprintf("%v", body)
	}

	return req, nil
}

func joinURL(origin, pathname string) string {
	origin = strings.TrimSuffix(origin, "/")
	if pathname == "" {
		return origin
	}
	if !strings.HasPrefix(pathname, "/") {
		pathname = "/" + pathname
	}
	return origin + pathname
}

// Match builds the scope bindings for an incoming concrete *Request
// matched against obj, per spec.md §4.8's match direction: decompose
// the wire shape back into the {method, origin, pathname,
// searchParams, headers, body} template and merge.
func Match(ctx *pcontext.Context, obj *schema.Object, req *Request) (schema.Schema, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("envelope: invalid request URL %q: %w", req.URL, err)
	}

	raw := map[string]interface{}{
		"method":   req.Method,
		"origin":   u.Scheme + "://" + u.Host,
		"pathname": u.Path,
	}
	if u.RawQuery != "" {
		raw["searchParams"] = u.RawQuery
	}
	if len(req.Headers) > 0 {
		raw["headers"] = headersToTemplate(req.Headers)
	}
	if req.Body != "" {
		raw["body"] = req.Body
	}

	return obj.Merge(ctx, schema.FromTemplate(raw))
}

func headersToTemplate(h map[string][]string) map[string]interface{} {
	out := map[string]interface{}{}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vs := h[k]
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		list := make([]interface{}, len(vs))
		for i, v := range vs {
			list[i] = v
		}
		out[k] = list
	}
	return out
}

// RenderResponse walks a response schema (built by the https package,
// typically {status, headers, body}) and flattens it into the
// terminal Response wire shape, the response-side mirror of Render.
func RenderResponse(ctx *pcontext.Context, obj schema.Schema) (*Response, error) {
	out, err := obj.Render(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("envelope: rendered response is not an object: %T", out)
	}
	return assembleResponse(m)
}

func assembleResponse(m map[string]interface{}) (*Response, error) {
	resp := &Response{Headers: map[string][]string{}}

	if v, ok := m["status"]; ok {
		switch s := v.(type) {
		case float64:
			resp.Status = int(s)
		default:
			fmt.Sscanf(fmt.Sprintf("%v", v), "%d", &resp.Status)
		}
	}
	if hdrs, ok := m["headers"].(map[string][]interface{}); ok {
		for k, vs := range hdrs {
			for _, v := range vs {
				resp.Headers[k] = append(resp.Headers[k], fmt.Sprintf("%v", v))
			}
		}
	}
	if body, ok := m["body"]; ok && body != nil {
		resp.Body = fmt.Sprintf("%v", body)
	}

	return resp, nil
}

// MatchResponse builds the scope bindings for an incoming concrete
// *Response matched against obj (a response schema that may be a bare
// {status, headers, body} object or, for a polymorphic .https step, a
// *schema.Deferred that picks its variant by status), per spec.md
// §4.8's match direction applied to the response half of a round trip.
func MatchResponse(ctx *pcontext.Context, obj schema.Schema, resp *Response) (schema.Schema, error) {
	raw := map[string]interface{}{
		"status": float64(resp.Status),
	}
	if len(resp.Headers) > 0 {
		raw["headers"] = headersToTemplate(resp.Headers)
	}
	if resp.Body != "" {
		raw["body"] = resp.Body
	}

	return obj.Merge(ctx, schema.FromTemplate(raw))
}

// BodyEncoding picks the Wrapper codec for a body given its declared
// Content-Type header, per spec.md §4.8's content-type dispatch.
func BodyEncoding(contentType string, inner schema.Schema) *encoding.Wrapper {
	return encoding.New(encoding.ForContentType(contentType), inner)
}

// SearchParamsEncoding wraps a query-parameter object with the query
// codec, used to build RequestSchema.SearchParams.
func SearchParamsEncoding(inner schema.Schema) *encoding.Wrapper {
	return encoding.New(encoding.Query{}, inner)
}
