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
	"testing"

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/schema"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	raw, err := JSON{}.Decode(`{"id":1,"name":"Acme"}`)
	if err != nil {
		t.Fatal(err)
	}
	out, err := JSON{}.Encode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if out == "" {
		t.Fatal("expected non-empty encoded body")
	}
}

func TestFormCodecRoundTrip(t *testing.T) {
	raw, err := Form{}.Decode("a=1&b=2")
	if err != nil {
		t.Fatal(err)
	}
	m, ok := raw.(map[string]interface{})
	if !ok || m["a"] != "1" || m["b"] != "2" {
		t.Fatalf("got %v", raw)
	}
	out, err := Form{}.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if out != "a=1&b=2" {
		t.Fatalf("got %q", out)
	}
}

func TestBase64CodecRoundTrip(t *testing.T) {
	enc, err := Base64{}.Encode("hello")
	if err != nil {
		t.Fatal(err)
	}
	dec, err := Base64{}.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if dec != "hello" {
		t.Fatalf("got %v", dec)
	}
}

func TestWrapperMergeDecodesJSONBody(t *testing.T) {
	ctx := pcontext.New(nil, pcontext.Mix)
	w := New(JSON{}, nil)

	body := &schema.Value{V: `{"id":1}`}
	merged, err := w.Merge(ctx, schema.Of(body))
	if err != nil {
		t.Fatal(err)
	}
	mw, ok := merged.(*Wrapper)
	if !ok {
		t.Fatalf("expected *Wrapper, got %T", merged)
	}
	if err := mw.ScopeInto(ctx); err != nil {
		t.Fatal(err)
	}
	rendered, err := mw.Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rendered != `{"id":1}` {
		t.Fatalf("got %v", rendered)
	}
}

func TestForContentTypeDispatch(t *testing.T) {
	if _, ok := ForContentType("application/json").(JSON); !ok {
		t.Fatal("expected JSON codec")
	}
	if _, ok := ForContentType("application/x-www-form-urlencoded").(Form); !ok {
		t.Fatal("expected Form codec")
	}
	if _, ok := ForContentType("text/plain").(Text); !ok {
		t.Fatal("expected Text codec")
	}
}
