/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// reader.go: fixed-size chunking of an input file
package chunk

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// DefaultSize is the plaintext chunk size when none is configured.
const DefaultSize = 1024 * 1024

// ErrOutOfRange is returned by ReadChunk for an index past the last chunk.
var ErrOutOfRange = errors.New("chunk index out of range")

// FileReader splits a file into chunks of a fixed size. The last chunk
// holds the remainder; a zero-length file has exactly one empty chunk.
type FileReader struct {
	f         *os.File
	size      int64
	chunkSize int
	numChunks uint32
}

// Open opens path for chunked reading. chunkSize <= 0 selects DefaultSize.
func Open(path string, chunkSize int) (*FileReader, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultSize
	}
	f, err := os.Open(path) // #nosec G304 -- caller supplied path
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	size := info.Size()
	n := (size + int64(chunkSize) - 1) / int64(chunkSize)
	if n == 0 {
		n = 1
	}
	if n > math.MaxUint32 {
		_ = f.Close()
		return nil, fmt.Errorf("file of %d bytes needs %d chunks, more than a stream can index", size, n)
	}
	return &FileReader{f: f, size: size, chunkSize: chunkSize, numChunks: uint32(n)}, nil
}

// FileSize returns the input size in bytes.
func (r *FileReader) FileSize() int64 { return r.size }

// ChunkSize returns the configured chunk size.
func (r *FileReader) ChunkSize() int { return r.chunkSize }

// NumChunks returns the number of chunks, at least 1.
func (r *FileReader) NumChunks() uint32 { return r.numChunks }

// ReadChunk returns the bytes of chunk i. Chunks can be read in any order.
func (r *FileReader) ReadChunk(i uint32) ([]byte, error) {
	if i >= r.numChunks {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, r.numChunks)
	}
	off := int64(i) * int64(r.chunkSize)
	n := min(int64(r.chunkSize), r.size-off)
	buf := make([]byte, n)
	if _, err := r.f.ReadAt(buf, off); err != nil && !(errors.Is(err, io.EOF) && n == 0) {
		return nil, fmt.Errorf("failed to read chunk %d: %w", i, err)
	}
	return buf, nil
}

// Close closes the underlying file.
func (r *FileReader) Close() error { return r.f.Close() }
