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

// Package https parses the .https template format of spec.md §4.6: a
// leading YAML configuration block, a ">>>"-marked request section,
// and one or more "<<<"-marked (optionally status-tagged) response
// sections.
//
// Grounded on the teacher's dsl.Spec/Phase/Step YAML document shape
// (a top-level document broken into ordered named blocks, each mapped
// onto a typed Go struct with yaml:",omitempty" tags) for the
// configuration block; the step-marker grammar itself has no YAML
// analogue in the teacher (">>>"/"<<<" are not YAML-expressible) so it
// is hand-parsed with bufio.Scanner, the same way the teacher
// hand-writes Step.exe's dispatch instead of reaching for a
// parser-combinator library.
package https

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/adobe/pardon-engine/scope"
)

// Config is the leading YAML block of an .https document.
type Config struct {
	Configuration string                 `yaml:"configuration,omitempty"`
	Name          string                 `yaml:"name,omitempty"`
	Service       string                 `yaml:"service,omitempty"`
	Action        string                 `yaml:"action,omitempty"`
	Config        map[string]interface{} `yaml:"config,omitempty"`
	Defaults      map[string]interface{} `yaml:"defaults,omitempty"`
	Import        map[string]string      `yaml:"import,omitempty"`
	Mixin         []string               `yaml:"mixin,omitempty"`
	Flow          string                 `yaml:"flow,omitempty"`
	Schema        string                 `yaml:"schema,omitempty"`
}

// parseConfig parses the YAML front matter, returning a zero Config
// (not an error) when src is empty -- an .https file need not declare
// any configuration at all.
func parseConfig(src string) (*Config, error) {
	cfg := &Config{}
	if trimmedEmpty(src) {
		return cfg, nil
	}
	if err := yaml.Unmarshal([]byte(src), cfg); err != nil {
		return nil, fmt.Errorf("https: parsing configuration block: %w", err)
	}
	return cfg, nil
}

func trimmedEmpty(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// DefaultTrees converts the YAML "defaults:" block into scope.DefaultTree
// values, one per top-level name, per spec.md §4.4's discriminator-tree
// shape:
//
//	defaults:
//	  host:
//	    env:
//	      prod: api.example.com
//	      default: localhost
//
// A bare scalar (or list/map with no single-key discriminator shape)
// becomes a literal leaf. A null value becomes an explicit unset.
func (c *Config) DefaultTrees() map[string]*scope.DefaultTree {
	out := map[string]*scope.DefaultTree{}
	for name, raw := range c.Defaults {
		out[name] = buildDefaultTree(raw)
	}
	return out
}

func buildDefaultTree(raw interface{}) *scope.DefaultTree {
	if raw == nil {
		return scope.Unsetting()
	}
	m, ok := raw.(map[string]interface{})
	if !ok || len(m) != 1 {
		return scope.Lit(raw)
	}
	for discrim, branchesRaw := range m {
		branchesMap, ok := branchesRaw.(map[string]interface{})
		if !ok {
			return scope.Lit(raw)
		}
		branches := map[string]*scope.DefaultTree{}
		var def *scope.DefaultTree
		for key, v := range branchesMap {
			if key == "default" {
				def = buildDefaultTree(v)
				continue
			}
			branches[key] = buildDefaultTree(v)
		}
		return scope.Branch(discrim, branches, def)
	}
	return scope.Lit(raw)
}
