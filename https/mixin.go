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

	"github.com/adobe/pardon-engine/pcontext"
	"github.com/adobe/pardon-engine/schema"
)

// Selects reports whether m, read as a mixin's own configuration axes,
// applies to target (spec.md §4.6: "a mixin file contributes
// additional fields/headers/defaults that are merged into every
// request matching its selector"). Every axis m declares must equal
// target's; an axis m leaves blank matches any target.
func (m *Config) Selects(target *Config) bool {
	if target == nil {
		target = &Config{}
	}
	if m.Name != "" && m.Name != target.Name {
		return false
	}
	if m.Service != "" && m.Service != target.Service {
		return false
	}
	if m.Action != "" && m.Action != target.Action {
		return false
	}
	return true
}

// ApplyMixin merges mixin into tpl when mixin.Config.Selects(tpl.Config),
// returning a new Template that layers mixin's request fields, config
// axes and default trees underneath tpl's own (tpl wins any conflict,
// since a mixin only ever *contributes*, per spec.md §4.6). Loading a
// mixin's source from disk by name (the "mixin:" list's entries) is the
// named external collaborator's concern -- ApplyMixin only performs the
// selector check and the merge once a caller has already parsed the
// mixin's own .https source into a Template.
func ApplyMixin(ctx *pcontext.Context, tpl *Template, mixin *Template) (*Template, error) {
	if mixin == nil {
		return tpl, nil
	}
	if tpl == nil {
		return mixin, nil
	}
	if mixin.Config != nil && !mixin.Config.Selects(tpl.Config) {
		return tpl, nil
	}

	merged, err := tpl.Request.Merge(ctx, schema.Of(mixin.Request))
	if err != nil {
		return nil, fmt.Errorf("https: applying mixin: %w", err)
	}
	request, ok := merged.(*schema.Object)
	if !ok {
		return nil, fmt.Errorf("https: mixin request merged to a non-object schema %T", merged)
	}

	return &Template{
		Config:   mergeConfig(tpl.Config, mixin.Config),
		Request:  request,
		Response: tpl.Response,
	}, nil
}

// mergeConfig layers mixin underneath base: any "config:"/"defaults:"
// key base already declares wins, and mixin only fills in the rest.
func mergeConfig(base, mixin *Config) *Config {
	if mixin == nil {
		return base
	}
	if base == nil {
		return mixin
	}

	out := *base
	out.Config = mergeMaps(base.Config, mixin.Config)
	out.Defaults = mergeMaps(base.Defaults, mixin.Defaults)
	out.Import = mergeStringMaps(base.Import, mixin.Import)
	return &out
}

func mergeMaps(base, extra map[string]interface{}) map[string]interface{} {
	if len(extra) == 0 {
		return base
	}
	out := map[string]interface{}{}
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range base {
		out[k] = v
	}
	return out
}

func mergeStringMaps(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	out := map[string]string{}
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range base {
		out[k] = v
	}
	return out
}
