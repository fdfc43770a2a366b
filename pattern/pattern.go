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

// Package pattern implements the "{{hint name = expr}}" pattern
// language of spec.md §4.1: parsing a string into literal segments and
// variable holes, rendering a pattern against a lookup, and matching a
// literal string against a pattern to extract bindings.
//
// This generalizes the teacher's own flat bindings substitution
// (dsl.Bindings.StringSub, which only ever substitutes "{{name}}" with
// no hints or expressions) into the fuller hinted-hole grammar.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Hint is a single parsed hole modifier.
type Hint rune

const (
	HintSecret   Hint = '@'
	HintOptional Hint = '?'
	HintRequired Hint = '!'
	HintNonempty Hint = '*'
)

// Hole is one variable reference inside a Pattern.
type Hole struct {
	// Name is the (possibly dotted) identifier the hole binds, or ""
	// for an anonymous hole ("_" or "{{}}").
	Name string

	Hints map[Hint]bool

	// Rest is true for the "..." hint: "rest of path/string".
	Rest bool

	// Expression is the optional script source after '='.
	Expression string

	// Redactor is an optional function name applied before display.
	Redactor string

	// start/end are byte offsets of the hole's "{{ ... }}" span in
	// the original source, used only by Parse/diagnostics.
	start, end int
}

func (h Hole) Anonymous() bool { return h.Name == "" }

func (h Hole) Has(hint Hint) bool { return h.Hints[hint] }

// Pattern is a parsed string: literal segments interleaved with holes.
//
// A Pattern is "simple" when it consists of exactly one hole spanning
// the whole string (Literals == ["", ""]); otherwise it is
// "regex-shaped" and is rendered/matched via a compiled regexp.
type Pattern struct {
	Source string

	// Literals has len(Holes)+1 entries; Literals[i] precedes
	// Holes[i], and the final entry follows the last hole.
	Literals []string
	Holes    []Hole
}

// Simple reports whether p is exactly one hole spanning the string.
func (p *Pattern) Simple() bool {
	return len(p.Holes) == 1 && p.Literals[0] == "" && p.Literals[1] == ""
}

var holeOpen = "{{"
var holeClose = "}}"

// Parse tokenizes src into a Pattern.  It returns a parse error when
// two holes are adjacent with no separating literal character and
// neither is a fixed-length typed scalar (spec.md §4.1 edge case) --
// this implementation always requires a separator, a stricter
// resolution documented in DESIGN.md.
func Parse(src string) (*Pattern, error) {
	p := &Pattern{Source: src}

	var (
		i       = 0
		lit     strings.Builder
		lastEnd = -1
	)

	for i < len(src) {
		start := strings.Index(src[i:], holeOpen)
		if start < 0 {
			lit.WriteString(src[i:])
			break
		}
		start += i
		lit.WriteString(src[i:start])

		end := strings.Index(src[start+2:], holeClose)
		if end < 0 {
			return nil, fmt.Errorf("pattern: unterminated hole starting at %d in %q", start, src)
		}
		end = start + 2 + end

		body := src[start+2 : end]
		hole, err := parseHole(body)
		if err != nil {
			return nil, fmt.Errorf("pattern: %w", err)
		}
		hole.start, hole.end = start, end+2

		if lit.Len() == 0 && lastEnd == start && 0 < len(p.Holes) {
			return nil, fmt.Errorf("pattern: ambiguous adjacent holes at %d in %q (needs a separating literal)", start, src)
		}

		p.Literals = append(p.Literals, lit.String())
		p.Holes = append(p.Holes, hole)
		lit.Reset()

		lastEnd = end + 2
		i = end + 2
	}
	p.Literals = append(p.Literals, lit.String())

	return p, nil
}

// parseHole parses the inside of "{{ ... }}": hint* name? ('=' expression)?
func parseHole(body string) (Hole, error) {
	h := Hole{Hints: map[Hint]bool{}}

	s := body
	for {
		s2 := strings.TrimLeft(s, " \t")
		if strings.HasPrefix(s2, "...") {
			h.Rest = true
			s = s2[3:]
			continue
		}
		if 0 < len(s2) {
			switch Hint(s2[0]) {
			case HintSecret, HintOptional, HintRequired, HintNonempty:
				h.Hints[Hint(s2[0])] = true
				s = s2[1:]
				continue
			}
		}
		s = s2
		break
	}

	// Split off an '=' expression, if any.  The name (if present)
	// comes before '='.
	if idx := strings.IndexByte(s, '='); idx >= 0 {
		h.Name = strings.TrimSpace(s[:idx])
		h.Expression = strings.TrimSpace(s[idx+1:])
	} else {
		h.Name = strings.TrimSpace(s)
	}

	if h.Name == "_" {
		h.Name = ""
	}

	// Optional trailing "|redactor" on the name, e.g. "{{@token|mask}}".
	if idx := strings.IndexByte(h.Name, '|'); idx >= 0 {
		h.Redactor = h.Name[idx+1:]
		h.Name = h.Name[:idx]
	}

	return h, nil
}

// Lookup resolves a hole's value by name (ignoring Expression, which
// is the caller's job to evaluate and pass as the resolved value).
type Lookup func(name string) (interface{}, bool)

// Render concatenates p's literals with values drawn from lookup,
// returning (_, false) if a hole has no value and lacks the '?' hint,
// matching spec.md's render(pattern, lookup) semantics.
func Render(p *Pattern, lookup Lookup) (string, bool) {
	var out strings.Builder
	for i, h := range p.Holes {
		out.WriteString(p.Literals[i])

		v, ok := lookup(h.Name)
		if !ok {
			if h.Has(HintOptional) {
				continue
			}
			return "", false
		}
		out.WriteString(stringify(v))
	}
	out.WriteString(p.Literals[len(p.Literals)-1])
	return out.String(), true
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Bindings is the result of a successful Match: hole name -> captured
// string.  Anonymous holes are omitted.
type Bindings map[string]string

// regexGroup is the unique regexp group name assigned to hole i.
func regexGroup(i int) string { return fmt.Sprintf("h%d", i) }

// compile builds a regexp for a regex-shaped pattern, escaping
// literals and translating holes into named capture groups. "..."
// becomes a greedy ".*"; everything else becomes a non-greedy capture,
// which may also span '/' characters.
func (p *Pattern) compile() (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i, lit := range p.Literals {
		b.WriteString(regexp.QuoteMeta(lit))
		if i < len(p.Holes) {
			h := p.Holes[i]
			b.WriteString("(?P<")
			b.WriteString(regexGroup(i))
			b.WriteString(">")
			if h.Rest {
				b.WriteString(".*")
			} else if h.Has(HintNonempty) {
				b.WriteString(".+?")
			} else {
				b.WriteString(".*?")
			}
			b.WriteString(")")
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Match compiles p to a regex (literals escaped, holes as named
// groups) and matches it against literal, returning bindings per
// spec.md §4.1.  A '!' hole that fails to capture is a hard failure
// (ok=false); a '?' hole that fails to capture is silently skipped.
func Match(p *Pattern, literal string) (Bindings, bool, error) {
	if p.Simple() {
		h := p.Holes[0]
		bs := Bindings{}
		if !h.Anonymous() {
			bs[h.Name] = literal
		}
		return bs, true, nil
	}

	re, err := p.compile()
	if err != nil {
		return nil, false, fmt.Errorf("pattern: compiling %q: %w", p.Source, err)
	}

	m := re.FindStringSubmatch(literal)
	if m == nil {
		// Check whether any '!' hole exists; that's still just "no match".
		return nil, false, nil
	}

	bs := Bindings{}
	for i, h := range p.Holes {
		name := regexGroup(i)
		idx := re.SubexpIndex(name)
		captured := ""
		have := idx >= 0 && idx < len(m) && m[idx] != ""
		if idx >= 0 && idx < len(m) {
			captured = m[idx]
		}

		if !have {
			if h.Has(HintRequired) {
				return nil, false, nil
			}
			if h.Has(HintOptional) {
				continue
			}
		}

		if !h.Anonymous() {
			bs[h.Name] = captured
		}
	}

	return bs, true, nil
}

// Values returns positional captures keyed by hole index rather than
// name, used by redaction (spec.md §4.1's values(pattern, literal)).
func Values(p *Pattern, literal string) ([]string, bool, error) {
	if p.Simple() {
		return []string{literal}, true, nil
	}
	re, err := p.compile()
	if err != nil {
		return nil, false, err
	}
	m := re.FindStringSubmatch(literal)
	if m == nil {
		return nil, false, nil
	}
	out := make([]string, len(p.Holes))
	for i := range p.Holes {
		idx := re.SubexpIndex(regexGroup(i))
		if idx >= 0 && idx < len(m) {
			out[i] = m[idx]
		}
	}
	return out, true, nil
}

// Names returns the (non-anonymous) hole names in declaration order.
func (p *Pattern) Names() []string {
	var out []string
	for _, h := range p.Holes {
		if !h.Anonymous() {
			out = append(out, h.Name)
		}
	}
	return out
}
