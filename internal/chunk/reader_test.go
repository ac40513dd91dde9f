/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package chunk

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFileReader_Counts(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunkSize int
		want      uint32
		lastLen   int
	}{
		{"empty file", 0, 16, 1, 0},
		{"smaller than a chunk", 10, 16, 1, 10},
		{"exact chunk", 16, 16, 1, 16},
		{"two chunks plus one", 33, 16, 3, 1},
		{"default chunk size", 5, 0, 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0xAB}, tt.size)
			r, err := Open(writeFile(t, data), tt.chunkSize)
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, tt.want, r.NumChunks())
			assert.Equal(t, int64(tt.size), r.FileSize())

			joined := []byte{}
			for i := uint32(0); i < r.NumChunks(); i++ {
				c, err := r.ReadChunk(i)
				require.NoError(t, err)
				if i == r.NumChunks()-1 {
					assert.Len(t, c, tt.lastLen)
				}
				joined = append(joined, c...)
			}
			assert.Equal(t, data, joined)
		})
	}
}

func TestFileReader_DefaultSize(t *testing.T) {
	r, err := Open(writeFile(t, nil), -1)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, DefaultSize, r.ChunkSize())
}

func TestFileReader_RandomAccess(t *testing.T) {
	data := []byte("0123456789abcdefghij")
	r, err := Open(writeFile(t, data), 8)
	require.NoError(t, err)
	defer r.Close()

	c, err := r.ReadChunk(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("ghij"), c)

	c, err = r.ReadChunk(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("01234567"), c)

	_, err = r.ReadChunk(3)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestFileReader_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), 16)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Open(t.TempDir(), 16)
	assert.Error(t, err)
}
