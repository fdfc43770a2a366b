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

// Package perr defines the tagged error type used throughout the
// template engine.
package perr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error per spec.md §7.
type Kind string

const (
	Parse      Kind = "parse"
	Match      Kind = "match"
	Conflict   Kind = "conflict"
	Unbound    Kind = "unbound"
	Evaluation Kind = "evaluation"
	Cycle      Kind = "cycle"
	Cancelled  Kind = "cancelled"
	Internal   Kind = "internal"
)

// Loc locates an Error within the scope/schema tree, formatted
// "scope:subscope|.field.subfield".
type Loc struct {
	Scopes []string
	Keys   []string
}

func (l Loc) String() string {
	var scopes string
	if 0 < len(l.Scopes) {
		scopes = strings.Join(l.Scopes, ":")
	}
	var keys string
	if 0 < len(l.Keys) {
		keys = "." + strings.Join(l.Keys, ".")
	}
	return scopes + "|" + keys
}

// Error is the tagged error carried by the engine.  It satisfies the
// standard errors.Is/errors.As protocol via Unwrap.
type Error struct {
	Kind    Kind
	Loc     Loc
	Message string
	Cause   error
}

func New(kind Kind, loc Loc, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Loc:     loc,
		Message: fmt.Sprintf(format, args...),
	}
}

func Wrap(kind Kind, loc Loc, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Loc:     loc,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Loc, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Loc, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, perr.Of(perr.Cycle)) style checks work: any
// *Error target matches when its Kind equals e's, whatever its Message.
func (e *Error) Is(target error) bool {
	var o *Error
	if errors.As(target, &o) {
		return e.Kind == o.Kind
	}
	return false
}

// Of returns an *Error template usable with errors.Is: errors.Is(err, perr.Of(perr.Cycle)).
func Of(kind Kind) *Error {
	return &Error{Kind: kind}
}

// internal "broken" marker, mirroring the teacher's dsl.Brokenf/IsBroken/NewBroken.
//
// A broken error is a distinct wrapper type recognised by IsBroken; it
// carries no perr Kind.
type broken struct {
	err error
}

func (b *broken) Error() string { return b.err.Error() }
func (b *broken) Unwrap() error { return b.err }

// Brokenf formats an unrecoverable internal error.
func Brokenf(format string, args ...interface{}) error {
	return &broken{err: fmt.Errorf(format, args...)}
}

// NewBroken wraps an existing error as unrecoverable.
func NewBroken(err error) error {
	if err == nil {
		return nil
	}
	return &broken{err: err}
}

// IsBroken reports whether err (or something it wraps) is an
// unrecoverable internal error.
func IsBroken(err error) (error, bool) {
	var b *broken
	if errors.As(err, &b) {
		return b.err, true
	}
	return nil, false
}
