/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/gitrgoliveira/go-framestash/internal/crypto"
	"github.com/gitrgoliveira/go-framestash/internal/frame"
)

// testLayout gives 64x16 frames with 5 slots of 203 bytes, T = 175.
var testLayout = frame.LayoutConfig{Width: 64, Height: 16, PacketsPerFrame: 5}

// fastKDF keeps Argon2id at its minimum cost so tests stay quick.
var fastKDF = crypto.KDFParams{
	Algorithm: crypto.KDFArgon2id,
	Time:      1,
	Memory:    crypto.MinArgon2Memory,
	Threads:   1,
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// baseOptions is the option set most tests start from.
func baseOptions(t *testing.T, chunkSize int) []Option {
	t.Helper()
	opts := []Option{WithLayout(testLayout), WithKDF(fastKDF), WithLogger(quietLogger())}
	if chunkSize > 0 {
		cs, err := WithChunkSize(chunkSize)
		require.NoError(t, err)
		opts = append(opts, cs)
	}
	return opts
}

func testData(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*131 + i/7)
	}
	return b
}

func writeInput(t *testing.T, dir string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, "input.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// encodeData writes data to a temp file, encodes it and returns the paths.
func encodeData(t *testing.T, data []byte, opts ...Option) (dir, video string, res *Result) {
	t.Helper()
	dir = t.TempDir()
	in := writeInput(t, dir, data)
	video = filepath.Join(dir, "stream.y4m")
	res, err := Encode(context.Background(), in, video, opts...)
	require.NoError(t, err)
	return dir, video, res
}

// mutateFrame lets fn modify frame idx of the Y4M file at path in place.
func mutateFrame(t *testing.T, path string, idx int, fn func(frame []byte)) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	l, err := frame.ComputeLayout(testLayout)
	require.NoError(t, err)
	header := bytes.IndexByte(data, '\n') + 1
	marker := len("FRAME\n")
	off := header + idx*(marker+l.FrameSize()) + marker
	require.LessOrEqual(t, off+l.FrameSize(), len(data), "frame %d out of range", idx)

	fn(data[off : off+l.FrameSize()])
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// frameCount returns how many frames the Y4M file at path holds.
func frameCount(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	l, err := frame.ComputeLayout(testLayout)
	require.NoError(t, err)
	header := bytes.IndexByte(data, '\n') + 1
	return (len(data) - header) / (len("FRAME\n") + l.FrameSize())
}

// dirEntries lists the names in dir.
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
