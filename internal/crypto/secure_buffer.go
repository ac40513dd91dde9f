/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"sync"

	"github.com/gitrgoliveira/go-framestash/secure"
)

// SecureBuffer provides memory-safe storage for sensitive key material.
type SecureBuffer struct {
	buf    []byte
	mu     sync.Mutex
	zeroed bool
	unlock func()
}

// NewSecureBufferFromBytes creates a SecureBuffer holding a copy of b.
// It attempts to lock the memory to prevent swapping (best effort).
func NewSecureBufferFromBytes(b []byte) (*SecureBuffer, error) {
	buf := make([]byte, len(b))
	copy(buf, b)
	return newSecureBuffer(buf), nil
}

// adoptSecureBuffer copies b into a new SecureBuffer and zeroes b.
func adoptSecureBuffer(b []byte) *SecureBuffer {
	buf := make([]byte, len(b))
	copy(buf, b)
	secure.Zero(b)
	return newSecureBuffer(buf)
}

func newSecureBuffer(buf []byte) *SecureBuffer {
	unlock := func() {}
	if err := secure.LockMemory(buf); err == nil {
		unlock = func() {
			_ = secure.UnlockMemory(buf)
		}
	}

	return &SecureBuffer{
		buf:    buf,
		unlock: unlock,
	}
}

// Data returns the buffer contents.
func (s *SecureBuffer) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

// Len returns the size of the key material.
func (s *SecureBuffer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Destroyed reports whether Destroy has run.
func (s *SecureBuffer) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zeroed
}

// Destroy zeroes the buffer, unlocks memory, and marks it destroyed.
// Safe to call more than once and on a nil receiver.
func (s *SecureBuffer) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.zeroed {
		secure.Zero(s.buf)
		s.zeroed = true

		if s.unlock != nil {
			s.unlock()
		}
	}
}
