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

package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// JSON decodes with UseNumber and then turns every number into a
// float64 (jsonNumberToFloat), so number formatting is not preserved:
// a body holding 1.50 decodes to 1.5 and re-encodes as 1.5.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Decode(outer string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(outer))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("encoding: invalid json body: %w", err)
	}
	return jsonNumberToFloat(v), nil
}

func (JSON) Encode(inner interface{}) (string, error) {
	b, err := json.Marshal(inner)
	if err != nil {
		return "", fmt.Errorf("encoding: cannot marshal json body: %w", err)
	}
	return string(b), nil
}

// jsonNumberToFloat recursively turns json.Number into float64 so the
// value matches what schema.FromTemplate expects from a hand-authored
// template (which only ever sees float64 numeric literals).
func jsonNumberToFloat(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case map[string]interface{}:
		for k, e := range t {
			t[k] = jsonNumberToFloat(e)
		}
		return t
	case []interface{}:
		for i, e := range t {
			t[i] = jsonNumberToFloat(e)
		}
		return t
	default:
		return v
	}
}

// Form implements application/x-www-form-urlencoded, decoding into a
// map from name to value: a name that appears once maps to its string
// value, a repeated name to the list of its values. schema.FromTemplate
// builds an Object from that map.
type Form struct{}

func (Form) Name() string { return "form" }

func (Form) Decode(outer string) (interface{}, error) {
	values, err := url.ParseQuery(outer)
	if err != nil {
		return nil, fmt.Errorf("encoding: invalid form body: %w", err)
	}
	return valuesToTemplate(values), nil
}

func (Form) Encode(inner interface{}) (string, error) {
	values, err := templateToValues(inner)
	if err != nil {
		return "", err
	}
	return values.Encode(), nil
}

// Query implements a URLSearchParams-shaped encoding for the request
// line's query string; semantically identical to Form, kept distinct
// so https templates can name it explicitly (spec.md §4.7).
type Query struct{ Form }

func (Query) Name() string { return "query" }

func valuesToTemplate(values url.Values) map[string]interface{} {
	out := map[string]interface{}{}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vs := values[k]
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

func templateToValues(inner interface{}) (url.Values, error) {
	m, ok := inner.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("encoding: form/query body must be an object, got %T", inner)
	}
	out := url.Values{}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := m[k].(type) {
		case []interface{}:
			for _, e := range v {
				out.Add(k, fmt.Sprintf("%v", e))
			}
		default:
			out.Add(k, fmt.Sprintf("%v", v))
		}
	}
	return out, nil
}

// Base64 decodes/encodes a text inner value through standard base64,
// for templates that embed a base64-wrapped sub-document (spec.md
// §4.2: "base64 (text<->text with configurable inner charset)").
type Base64 struct{}

func (Base64) Name() string { return "base64" }

func (Base64) Decode(outer string) (interface{}, error) {
	b, err := base64.StdEncoding.DecodeString(outer)
	if err != nil {
		return nil, fmt.Errorf("encoding: invalid base64 body: %w", err)
	}
	return string(b), nil
}

func (Base64) Encode(inner interface{}) (string, error) {
	s, ok := inner.(string)
	if !ok {
		s = fmt.Sprintf("%v", inner)
	}
	return base64.StdEncoding.EncodeToString([]byte(s)), nil
}

// Headers splits one header value on commas into the list of its
// trimmed parts, and joins such a list back with ", ", for a header
// value that itself carries an embedded sub-template, e.g. a "Link"
// header built from a pattern. It does not convert a whole header set
// to or from a [name,value] list.
type Headers struct{}

func (Headers) Name() string { return "headers" }

func (Headers) Decode(outer string) (interface{}, error) {
	parts := strings.Split(outer, ",")
	list := make([]interface{}, len(parts))
	for i, p := range parts {
		list[i] = strings.TrimSpace(p)
	}
	return list, nil
}

func (Headers) Encode(inner interface{}) (string, error) {
	list, ok := inner.([]interface{})
	if !ok {
		return fmt.Sprintf("%v", inner), nil
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, ", "), nil
}

// Text is the identity encoding: the wire form and the inner schema
// operate on the same string, used as the default body encoding when
// no Content-Type indicates a structured body.
type Text struct{}

func (Text) Name() string { return "text" }

func (Text) Decode(outer string) (interface{}, error) { return outer, nil }

func (Text) Encode(inner interface{}) (string, error) {
	if s, ok := inner.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", inner), nil
}

// ForContentType picks the Codec matching a Content-Type header value,
// the dispatch spec.md §4.6/§4.8 require when parsing/rendering a
// request or response body.
func ForContentType(contentType string) Codec {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return JSON{}
	case strings.Contains(ct, "x-www-form-urlencoded"):
		return Form{}
	default:
		return Text{}
	}
}
