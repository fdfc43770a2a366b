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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// rawBlock is one ">>>" or "<<<" section: a start line ("METHOD url"
// for a request, empty for a response whose status came from the
// marker itself), an ordered list of "Name: value" header lines, and a
// body (everything after the first blank line).
type rawBlock struct {
	startLine string
	headers   []headerLine
	body      string

	// status is the marker's status selector: an exact code
	// ("<<< 200"), a status-class wildcard ("<<< 4xx"), or untagged
	// ("<<<" alone), per spec.md §8 scenario 5's polymorphic response.
	status statusTag
}

// statusTagKind distinguishes the three "<<<" marker shapes.
type statusTagKind int

const (
	statusNone  statusTagKind = iota // untagged marker: catch-all
	statusExact                      // "<<< 200"
	statusClass                      // "<<< 4xx", "<<< 2xx"
)

// statusTag is a parsed "<<<" marker tag.
type statusTag struct {
	Kind  statusTagKind
	Exact int
	Low   int // inclusive, set when Kind == statusClass
	High  int // inclusive, set when Kind == statusClass
}

// parseStatusTag parses a "<<<" marker's tag: empty for an untagged
// catch-all marker, a plain integer for an exact status, or a
// wildcard class like "4xx"/"40x"/"2xx" -- one or more trailing 'x'
// digits widen the low/high bounds by a power of ten each (spec.md §8
// scenario 5's "4xx with {error}" block).
func parseStatusTag(tag string) (statusTag, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return statusTag{Kind: statusNone}, nil
	}
	if n, err := strconv.Atoi(tag); err == nil {
		return statusTag{Kind: statusExact, Exact: n}, nil
	}

	lower := strings.ToLower(tag)
	xCount := 0
	for i := len(lower) - 1; i >= 0 && lower[i] == 'x'; i-- {
		xCount++
	}
	digits := lower[:len(lower)-xCount]
	if xCount == 0 || digits == "" {
		return statusTag{}, fmt.Errorf("https: malformed status marker %q", tag)
	}
	base, err := strconv.Atoi(digits)
	if err != nil {
		return statusTag{}, fmt.Errorf("https: malformed status marker %q", tag)
	}
	span := 1
	for i := 0; i < xCount; i++ {
		base *= 10
		span *= 10
	}
	return statusTag{Kind: statusClass, Low: base, High: base + span - 1}, nil
}

type headerLine struct {
	name  string
	value string
}

// document is the fully line-parsed, not-yet-schema-built .https file.
type document struct {
	config   string
	request  rawBlock
	response []rawBlock
}

// parseDocument splits src into its configuration block, one request block,
// and one or more response blocks, per spec.md §4.6's ">>>"/"<<<"
// step-marker grammar.
func parseDocument(src string) (*document, error) {
	lines := strings.Split(src, "\n")

	reqIdx := -1
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), ">>>") {
			reqIdx = i
			break
		}
	}
	if reqIdx < 0 {
		return nil, fmt.Errorf("https: no %q request marker found", ">>>")
	}

	doc := &document{config: strings.Join(lines[:reqIdx], "\n")}

	// Collect marker positions (the ">>>" line plus every "<<<" line)
	// so each block runs from one marker to the next (or EOF).
	type marker struct {
		idx      int
		response bool
		status   statusTag
	}
	markers := []marker{{idx: reqIdx, response: false}}
	for i := reqIdx + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "<<<") {
			tag := strings.TrimSpace(strings.TrimPrefix(trimmed, "<<<"))
			status, err := parseStatusTag(tag)
			if err != nil {
				return nil, err
			}
			markers = append(markers, marker{idx: i, response: true, status: status})
		}
	}

	for m, mk := range markers {
		end := len(lines)
		if m+1 < len(markers) {
			end = markers[m+1].idx
		}
		// The request block's first non-blank line is "METHOD url";
		// a response block has no start line of its own (its status
		// lives on the "<<<" marker itself), so its first non-blank
		// line is already its first header.
		block, err := parseBlock(lines[mk.idx+1:end], !mk.response)
		if err != nil {
			return nil, err
		}
		block.status = mk.status
		if mk.response {
			doc.response = append(doc.response, block)
		} else {
			doc.request = block
		}
	}

	if len(doc.response) == 0 {
		return nil, fmt.Errorf("https: no %q response marker found", "<<<")
	}

	return doc, nil
}

// parseBlock parses a marker's body lines into a rawBlock. When
// wantStartLine is true (the request block), the first non-blank line
// is taken as the start line ("METHOD url"); otherwise parsing goes
// straight to headers, since a response block's status comes from its
// "<<<" marker rather than a line of its own. Subsequent "Name: value"
// lines up to the first blank line are headers, and everything after
// that is the body.
func parseBlock(lines []string, wantStartLine bool) (rawBlock, error) {
	var b rawBlock

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if wantStartLine {
		if i < len(lines) {
			b.startLine = strings.TrimSpace(lines[i])
			i++
		}
	}

	for i < len(lines) {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			break
		}
		name, value, err := parseHeaderLine(line)
		if err != nil {
			return b, err
		}
		b.headers = append(b.headers, headerLine{name: name, value: value})
		i++
	}

	if i < len(lines) {
		b.body = strings.Join(lines[i:], "\n")
		b.body = strings.TrimRight(b.body, "\n")
	}

	return b, nil
}

func parseHeaderLine(line string) (string, string, error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("https: malformed header line %q", line)
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), nil
}

// scanLines is a small bufio.Scanner-based helper for callers that read
// an .https file incrementally (e.g. ParseReader, used by cmd/pardon)
// rather than holding the whole source string at once.
func scanLines(r *bufio.Scanner) []string {
	var out []string
	for r.Scan() {
		out = append(out, r.Text())
	}
	return out
}

// ParseReader reads an .https document from r line by line and parses
// it, the entry point cmd/pardon uses to load a template file without
// first slurping it whole through io.ReadAll.
func ParseReader(r io.Reader) (*Template, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lines := scanLines(scanner)
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("https: reading template: %w", err)
	}
	return Parse(strings.Join(lines, "\n"))
}
