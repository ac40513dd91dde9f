/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// status.go: error taxonomy shared by Encode, Decode and Inspect
package core

import (
	"errors"
	"fmt"
	"os"
)

// Status is the coarse outcome of an operation. The numeric values are
// stable and usable as process exit details.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidArgs
	StatusFileNotFound
	StatusIO
	StatusEncodeFailed
	StatusDecodeFailed
	StatusCrypto
	StatusIncomplete
)

// String returns the human-readable description of s.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "success"
	case StatusInvalidArgs:
		return "invalid arguments"
	case StatusFileNotFound:
		return "file not found"
	case StatusIO:
		return "I/O error"
	case StatusEncodeFailed:
		return "encoding failed"
	case StatusDecodeFailed:
		return "decoding failed"
	case StatusCrypto:
		return "encryption/decryption error"
	case StatusIncomplete:
		return "incomplete data"
	default:
		return "unknown error"
	}
}

// Kind sentinels. Every error returned by Encode, Decode and Inspect
// matches exactly one of them with errors.Is.
var (
	ErrInvalidArgs  = errors.New(StatusInvalidArgs.String())
	ErrFileNotFound = errors.New(StatusFileNotFound.String())
	ErrIO           = errors.New(StatusIO.String())
	ErrEncodeFailed = errors.New(StatusEncodeFailed.String())
	ErrDecodeFailed = errors.New(StatusDecodeFailed.String())
	ErrCrypto       = errors.New(StatusCrypto.String())
	ErrIncomplete   = errors.New(StatusIncomplete.String())
)

// ErrCanceled is wrapped, next to the kind, when the progress callback or
// the context stopped the operation.
var ErrCanceled = errors.New("operation canceled")

var kinds = []struct {
	err    error
	status Status
}{
	{ErrInvalidArgs, StatusInvalidArgs},
	{ErrFileNotFound, StatusFileNotFound},
	{ErrIO, StatusIO},
	{ErrEncodeFailed, StatusEncodeFailed},
	{ErrDecodeFailed, StatusDecodeFailed},
	{ErrCrypto, StatusCrypto},
	{ErrIncomplete, StatusIncomplete},
}

// Error carries the kind of a failure, the operation step that failed and
// the underlying cause. errors.Is matches both Kind and Err.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// StatusOf maps err to its Status. Errors that did not come from this
// package are classified by their cause.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		return StatusFileNotFound
	}
	return StatusIO
}

// StatusString describes err the way Status.String does.
func StatusString(err error) string {
	return StatusOf(err).String()
}
