/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumHelpers(t *testing.T) {
	data := testData(4096)
	path := writeInput(t, t.TempDir(), data)
	want := sha256.Sum256(data)

	sum, err := CalculateChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, want[:], sum)

	hexSum, err := CalculateChecksumHex(path)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want[:]), hexSum)

	ok, err := VerifyChecksum(path, want[:])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyChecksumHex(path, hexSum)
	require.NoError(t, err)
	assert.True(t, ok)

	other := sha256.Sum256([]byte("other"))
	ok, err = VerifyChecksum(path, other[:])
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyChecksumHex(path, "zz")
	assert.Error(t, err)

	_, err = CalculateChecksum(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestChecksumWriter(t *testing.T) {
	var buf bytes.Buffer
	w := newChecksumWriter(&buf)
	_, err := w.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = w.Write([]byte("world"))
	require.NoError(t, err)

	want := sha256.Sum256([]byte("hello world"))
	assert.Equal(t, want[:], w.Sum())
	assert.Equal(t, "hello world", buf.String())
}
