/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package secure holds the small helpers framestash uses for secret material:
// password copies, derived keys and the temporary buffers that carry them.
package secure

import (
	"crypto/subtle"
)

// Zero overwrites b with zeros.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	clear(b)
	// Read the buffer back so the stores cannot be elided.
	_ = subtle.ConstantTimeCompare(b, make([]byte, len(b)))
}

// ZeroAll zeroes every buffer in bufs.
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		Zero(b)
	}
}

// Clone returns a private copy of b that the caller must Zero when done.
// A nil or empty input yields nil.
func Clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// SecureCompare performs constant-time comparison of two byte slices
func SecureCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
