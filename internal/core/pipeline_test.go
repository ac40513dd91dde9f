/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"context"
	"crypto/sha256"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrgoliveira/go-framestash/internal/crypto"
	"github.com/gitrgoliveira/go-framestash/internal/frame"
	"github.com/gitrgoliveira/go-framestash/internal/integrity"
)

func TestRoundTrip(t *testing.T) {
	password := []byte("correct horse battery staple")

	tests := []struct {
		name    string
		size    int
		encode  []Option
		decode  []Option
		chunks  uint64
		packets uint64
	}{
		{name: "empty file", size: 0, chunks: 1, packets: 1},
		{name: "ten bytes", size: 10, chunks: 1, packets: 1},
		{name: "exactly one symbol", size: 175, chunks: 1, packets: 1},
		{name: "one symbol plus one", size: 176, chunks: 1, packets: 2},
		// 500 -> 3 packets, 500 -> 3 packets, 1 -> 1 packet
		{name: "two chunks plus one byte", size: 1001, chunks: 3, packets: 7},
		{name: "xxhash", size: 1001, encode: []Option{WithHashAlgorithm(integrity.XXHash32)}, chunks: 3, packets: 7},
		{
			name:    "aes-gcm",
			size:    1001,
			encode:  []Option{WithEncryption(password)},
			decode:  []Option{WithPassword(password)},
			chunks:  3,
			packets: 7, // sealed chunks of 516, 516 and 17 bytes
		},
		{
			name:    "chacha20-poly1305 with xxhash",
			size:    1001,
			encode:  []Option{WithEncryption(password), WithCipher(crypto.CipherChaCha20Poly1305), WithHashAlgorithm(integrity.XXHash32)},
			decode:  []Option{WithPassword(password)},
			chunks:  3,
			packets: 7,
		},
		{
			name:    "encrypted empty file",
			size:    0,
			encode:  []Option{WithEncryption(password)},
			decode:  []Option{WithPassword(password)},
			chunks:  1,
			packets: 1,
		},
		{
			name:    "pbkdf2",
			size:    64,
			encode:  []Option{WithEncryption(password), WithKDF(crypto.KDFParams{Algorithm: crypto.KDFPBKDF2, Iterations: crypto.MinPBKDF2Iterations})},
			decode:  []Option{WithPassword(password)},
			chunks:  1,
			packets: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testData(tt.size)
			encOpts := append(baseOptions(t, 500), tt.encode...)
			dir, video, res := encodeData(t, data, encOpts...)

			assert.Equal(t, uint64(tt.size), res.InputSize)
			assert.Equal(t, tt.chunks, res.ChunkCount)
			assert.Equal(t, tt.packets, res.PacketCount)
			info, err := os.Stat(video)
			require.NoError(t, err)
			assert.Equal(t, uint64(info.Size()), res.OutputSize)
			assert.Equal(t, uint64(frameCount(t, video)), res.FrameCount)

			out := filepath.Join(dir, "decoded.bin")
			// decoding needs no layout: it comes from the stream header
			decOpts := append([]Option{WithLogger(quietLogger())}, tt.decode...)
			dres, err := Decode(context.Background(), video, out, decOpts...)
			require.NoError(t, err)

			got, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, data, got)
			assert.Equal(t, tt.chunks, dres.ChunkCount)
			assert.Equal(t, tt.packets, dres.PacketCount)
			assert.Equal(t, uint64(tt.size), dres.OutputSize)
			assert.Equal(t, res.FrameCount, dres.FrameCount)
			assert.Equal(t, res.OutputSize, dres.InputSize)
		})
	}
}

func TestEncode_TenBytesDefaultLayout(t *testing.T) {
	data := []byte("0123456789")
	dir, video, res := encodeData(t, data, WithLogger(quietLogger()))

	assert.Equal(t, uint64(10), res.InputSize)
	assert.Equal(t, uint64(1), res.ChunkCount)
	assert.Equal(t, uint64(1), res.PacketCount)
	// header, one data frame, trailer
	assert.Equal(t, uint64(3), res.FrameCount)

	out := filepath.Join(dir, "out.bin")
	dres, err := Decode(context.Background(), video, out, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), dres.ChunkCount)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestEncode_DefaultEncryptedChunkSize(t *testing.T) {
	cfg := newConfig(WithEncryption([]byte("pw")))
	defer cfg.wipe()
	assert.Equal(t, DefaultChunkSize-crypto.TagSize, cfg.chunkSize())
	assert.Equal(t, DefaultChunkSize, newConfig().chunkSize())
}

func TestLegacyStream(t *testing.T) {
	data := testData(1001)

	t.Run("plain", func(t *testing.T) {
		opts := append(baseOptions(t, 500), WithLegacyStream(true))
		dir, video, res := encodeData(t, data, opts...)
		// 7 packets in 5-slot frames, no control frames
		assert.Equal(t, uint64(2), res.FrameCount)

		out := filepath.Join(dir, "out.bin")
		_, err := Decode(context.Background(), video, out, WithLayout(testLayout), WithLogger(quietLogger()))
		require.NoError(t, err)
		got, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("encrypted uses the fixed file id", func(t *testing.T) {
		pw := []byte("legacy")
		opts := append(baseOptions(t, 500), WithLegacyStream(true), WithEncryption(pw))
		dir, video, _ := encodeData(t, data, opts...)

		out := filepath.Join(dir, "out.bin")
		_, err := Decode(context.Background(), video, out,
			WithLayout(testLayout), WithKDF(fastKDF), WithPassword(pw), WithLogger(quietLogger()))
		require.NoError(t, err)
		got, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, data, got)

		_, err = Decode(context.Background(), video, filepath.Join(dir, "other.bin"),
			WithLayout(testLayout), WithKDF(fastKDF), WithPassword(pw), WithFileID(crypto.FileID{1}), WithLogger(quietLogger()))
		assert.ErrorIs(t, err, ErrCrypto)
	})

	t.Run("layout mismatch", func(t *testing.T) {
		opts := append(baseOptions(t, 500), WithLegacyStream(true))
		dir, video, _ := encodeData(t, data, opts...)

		_, err := Decode(context.Background(), video, filepath.Join(dir, "a.bin"),
			WithLayout(frame.LayoutConfig{Width: 64, Height: 16, PacketsPerFrame: 4}), WithLogger(quietLogger()))
		assert.ErrorIs(t, err, ErrIncomplete)

		_, err = Decode(context.Background(), video, filepath.Join(dir, "b.bin"),
			WithLayout(frame.LayoutConfig{Width: 32, Height: 32, PacketsPerFrame: 5}), WithLogger(quietLogger()))
		assert.ErrorIs(t, err, ErrDecodeFailed)
		assert.ErrorIs(t, err, frame.ErrLayoutMismatch)

		assert.ElementsMatch(t, []string{"input.bin", "stream.y4m"}, dirEntries(t, dir))
	})
}

func TestEncode_FixedFileIDIsDeterministic(t *testing.T) {
	data := testData(700)
	id := crypto.FileID{0xAA, 0xBB}
	opts := append(baseOptions(t, 500), WithFileID(id), WithEncryption([]byte("pw")))

	_, a, _ := encodeData(t, data, opts...)
	_, b, _ := encodeData(t, data, opts...)

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, sha256.Sum256(da), sha256.Sum256(db))
}

func TestEncode_RandomFileID(t *testing.T) {
	data := testData(100)
	_, a, _ := encodeData(t, data, baseOptions(t, 0)...)
	_, b, _ := encodeData(t, data, baseOptions(t, 0)...)

	ia, err := Inspect(context.Background(), a, WithLogger(quietLogger()))
	require.NoError(t, err)
	ib, err := Inspect(context.Background(), b, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.NotEqual(t, ia.Header.FileID, ib.Header.FileID)
}

func TestChecksumOption(t *testing.T) {
	data := testData(900)
	opts := append(baseOptions(t, 500), WithChecksum(true))
	dir, video, res := encodeData(t, data, opts...)

	sum, err := CalculateChecksum(video)
	require.NoError(t, err)
	assert.Equal(t, sum, res.Checksum)

	out := filepath.Join(dir, "out.bin")
	dres, err := Decode(context.Background(), video, out, WithChecksum(true), WithLogger(quietLogger()))
	require.NoError(t, err)
	want := sha256.Sum256(data)
	assert.Equal(t, want[:], dres.Checksum)

	ok, err := VerifyChecksum(out, dres.Checksum)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFFV1RoundTrip(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	data := testData(1001)
	opts := append(baseOptions(t, 500), WithContainer("ffv1"))
	dir := t.TempDir()
	in := writeInput(t, dir, data)
	video := filepath.Join(dir, "stream.mkv")
	_, err := Encode(context.Background(), in, video, opts...)
	require.NoError(t, err)

	out := filepath.Join(dir, "out.bin")
	_, err = Decode(context.Background(), video, out, WithLogger(quietLogger()))
	require.NoError(t, err)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestInspect(t *testing.T) {
	data := testData(1001)
	opts := append(baseOptions(t, 500), WithEncryption([]byte("pw")))
	_, video, res := encodeData(t, data, opts...)

	info, err := Inspect(context.Background(), video, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, "y4m", info.Container)
	require.NotNil(t, info.Header)
	assert.True(t, info.Header.Encrypted)
	assert.True(t, info.Encrypted)
	assert.Equal(t, uint64(1001), info.Header.InputSize)
	assert.Equal(t, uint32(3), info.Header.ChunkCount)
	require.NotNil(t, info.Manifest)
	assert.Len(t, info.Manifest.Entries, 3)
	for i, e := range info.Manifest.Entries {
		plain := data[i*500 : min((i+1)*500, len(data))]
		assert.NotEqual(t, integrity.SHA256(plain), e.SHA256, "chunk %d digest is over plaintext", i)
		assert.False(t, e.SHA256.IsZero())
		assert.Greater(t, e.ChunkSize, e.OriginalSize)
	}
	assert.Equal(t, res.FrameCount, info.Frames)
	assert.Equal(t, res.PacketCount, info.Packets)
	assert.Equal(t, uint64(3), info.ExpectedChunks)
	assert.True(t, info.Complete())
	assert.Zero(t, info.Rejected)
}
