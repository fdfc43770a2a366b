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

package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adobe/pardon-engine/envelope"
)

func TestHTTPClientFetchRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bs, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Echo", string(bs))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewHTTPClient()
	resp, err := c.Fetch(context.Background(), &envelope.Request{
		Method: "POST",
		URL:    srv.URL + "/things",
		Body:   `{"id":1}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != http.StatusCreated {
		t.Fatalf("got status %d", resp.Status)
	}
	if resp.Body != `{"ok":true}` {
		t.Fatalf("got body %q", resp.Body)
	}
	if got := resp.Headers["X-Echo"]; len(got) != 1 || got[0] != `{"id":1}` {
		t.Fatalf("got echo header %v", got)
	}
}
