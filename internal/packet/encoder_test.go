/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrgoliveira/go-framestash/internal/integrity"
)

func newTestEncoder(t *testing.T, symbolSize int, alg integrity.Algorithm) *Encoder {
	t.Helper()
	enc, err := NewEncoder(symbolSize, alg)
	require.NoError(t, err)
	return enc
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31 + 7)
	}
	return b
}

func TestEncodeChunk_Division(t *testing.T) {
	const T = 16
	enc := newTestEncoder(t, T, integrity.CRC32C)

	tests := []struct {
		name        string
		size        int
		wantN       int
		wantLastLen int
	}{
		{"empty chunk", 0, 1, 0},
		{"one byte", 1, 1, 1},
		{"exactly T", T, 1, T},
		{"exact multiple", 4 * T, 4, T},
		{"multiple plus one", 4*T + 1, 5, 1},
		{"ten bytes", 10, 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pattern(tt.size)
			packets, entry, err := enc.EncodeChunk(Chunk{Index: 3, Data: data})
			require.NoError(t, err)
			require.Len(t, packets, tt.wantN)

			var joined []byte
			for i, p := range packets {
				h, err := p.Header()
				require.NoError(t, err)
				assert.Equal(t, uint32(i), h.BlockID)
				assert.Equal(t, uint32(tt.wantN), h.NumSource)
				assert.Equal(t, uint16(T), h.SymbolSize)
				assert.Equal(t, uint32(3), h.ChunkIndex)
				assert.Equal(t, uint32(tt.size), h.ChunkSize)
				if i < len(packets)-1 {
					assert.Equal(t, uint16(T), h.PayloadLength)
				} else {
					assert.Equal(t, uint16(tt.wantLastLen), h.PayloadLength)
				}
				assert.Len(t, p, HeaderSize+int(h.PayloadLength))
				joined = append(joined, p.Payload()...)
			}
			assert.True(t, bytes.Equal(data, joined))

			assert.Equal(t, uint32(3), entry.ChunkIndex)
			assert.Equal(t, uint32(tt.wantN), entry.N)
			assert.Equal(t, uint16(T), entry.T)
			assert.Equal(t, integrity.SHA256(data), entry.SHA256)
		})
	}
}

func TestEncodeChunk_Flags(t *testing.T) {
	enc := newTestEncoder(t, 8, integrity.XXHash32)

	packets, _, err := enc.EncodeChunk(Chunk{Index: 0, Data: pattern(20), Last: true, Encrypted: true})
	require.NoError(t, err)
	for _, p := range packets {
		flags, ok := PeekFlags(p)
		require.True(t, ok)
		assert.True(t, flags.Has(FlagLastChunk))
		assert.True(t, flags.Has(FlagEncrypted))
		assert.Equal(t, integrity.XXHash32, flags.Algorithm())
	}

	packets, _, err = newTestEncoder(t, 8, integrity.CRC32C).EncodeChunk(Chunk{Index: 1, Data: pattern(3)})
	require.NoError(t, err)
	flags, _ := PeekFlags(packets[0])
	assert.Equal(t, Flags(0), flags)
}

func TestEncodeChunk_ManifestDigestsEmbeddedBytes(t *testing.T) {
	enc := newTestEncoder(t, 8, integrity.CRC32C)
	original := []byte("plaintext")
	sealed := []byte("ciphertext-with-a-tag")

	_, entry, err := enc.EncodeChunk(Chunk{Index: 0, Data: sealed, Original: original, Encrypted: true})
	require.NoError(t, err)
	assert.Equal(t, uint32(len(sealed)), entry.ChunkSize)
	assert.Equal(t, uint32(len(original)), entry.OriginalSize)
	assert.Equal(t, integrity.SHA256(sealed), entry.SHA256)
	assert.NotEqual(t, integrity.SHA256(original), entry.SHA256)
}

func TestEncodeChunk_ChecksumCoversHeaderAndPayload(t *testing.T) {
	for _, alg := range []integrity.Algorithm{integrity.CRC32C, integrity.XXHash32} {
		packets, _, err := newTestEncoder(t, 32, alg).EncodeChunk(Chunk{Data: pattern(40)})
		require.NoError(t, err)
		for _, p := range packets {
			h, err := p.Header()
			require.NoError(t, err)
			assert.True(t, integrity.VerifyPacketChecksum(p[:HeaderSize], p.Payload(), OffChecksum, alg, h.Checksum))
		}
	}
}

func TestNewEncoder_Validation(t *testing.T) {
	_, err := NewEncoder(0, integrity.CRC32C)
	assert.Error(t, err)
	_, err = NewEncoder(MaxSymbolSize+1, integrity.CRC32C)
	assert.Error(t, err)
	_, err = NewEncoder(16, integrity.Algorithm(7))
	assert.Error(t, err)
}

func TestParseHeader_Errors(t *testing.T) {
	_, err := ParseHeader(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrShortPacket)

	_, err = ParseHeader(make([]byte, HeaderSize))
	assert.ErrorIs(t, err, ErrBadMagic)

	b := make([]byte, HeaderSize)
	Header{Version: 9}.Put(b)
	_, err = ParseHeader(b)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestPeek(t *testing.T) {
	b := make([]byte, HeaderSize)
	Header{Version: Version, Flags: FlagLastChunk, ChunkIndex: 77, PayloadLength: 5}.Put(b)

	idx, ok := PeekChunkIndex(b)
	require.True(t, ok)
	assert.Equal(t, uint32(77), idx)

	flags, ok := PeekFlags(b)
	require.True(t, ok)
	assert.True(t, flags.Has(FlagLastChunk))
	assert.Equal(t, HeaderSize+5, PeekLength(b))

	// payload claims more than is present: Payload clamps
	assert.Empty(t, Packet(b).Payload())

	_, ok = PeekChunkIndex(b[:10])
	assert.False(t, ok)
	_, ok = PeekFlags(nil)
	assert.False(t, ok)
	assert.Zero(t, PeekLength(b[:3]))
}
