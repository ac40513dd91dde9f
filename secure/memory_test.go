/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// memory_test.go: secret buffer helper tests
package secure_test

import (
	"bytes"
	"crypto/rand"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrgoliveira/go-framestash/secure"
)

func TestLockUnlockMemory(t *testing.T) {
	buf := make([]byte, 4096)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	original := bytes.Clone(buf)

	if err := secure.LockMemory(buf); err != nil {
		// RLIMIT_MEMLOCK is often tiny in containers.
		if runtime.GOOS == "windows" {
			t.Errorf("LockMemory should be a no-op on windows: %v", err)
		}
		t.Logf("LockMemory failed (may be expected): %v", err)
	}
	assert.Equal(t, original, buf, "locking must not touch the contents")

	if err := secure.UnlockMemory(buf); err != nil {
		t.Logf("UnlockMemory failed: %v", err)
	}
}

func TestLockMemory_EmptyBuffer(t *testing.T) {
	assert.NoError(t, secure.LockMemory(nil))
	assert.NoError(t, secure.UnlockMemory([]byte{}))
}

func TestZero(t *testing.T) {
	buf := make([]byte, 1024)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	require.NotEqual(t, make([]byte, len(buf)), buf)

	secure.Zero(buf)
	assert.Equal(t, make([]byte, len(buf)), buf)

	// empty input must not panic
	secure.Zero(nil)
}

func TestZeroAll(t *testing.T) {
	a := []byte("password")
	b := []byte("derived key material")
	secure.ZeroAll(a, nil, b)
	assert.Equal(t, make([]byte, len(a)), a)
	assert.Equal(t, make([]byte, len(b)), b)
}

func TestClone(t *testing.T) {
	src := []byte("hunter2")
	c := secure.Clone(src)
	require.Equal(t, src, c)

	secure.Zero(c)
	assert.Equal(t, []byte("hunter2"), src, "zeroing the clone must not reach the source")
	assert.Nil(t, secure.Clone(nil))
}

func TestSecureCompare(t *testing.T) {
	tests := []struct {
		name     string
		a        []byte
		b        []byte
		expected bool
	}{
		{"equal slices", []byte("hello"), []byte("hello"), true},
		{"different slices", []byte("hello"), []byte("world"), false},
		{"different lengths", []byte("hello"), []byte("hi"), false},
		{"empty slices", []byte{}, []byte{}, true},
		{"one empty", []byte("hello"), []byte{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, secure.SecureCompare(tt.a, tt.b))
		})
	}
}
