/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// memory.go: in-memory frame store
package media

import (
	"fmt"
	"io"
)

// Memory keeps frames in memory. It is a FrameWriter, and Reader returns a
// FrameReader over what was written.
type Memory struct {
	width  int
	height int
	frames [][]byte
	closed bool
}

// NewMemory returns an empty Memory for width x height frames.
func NewMemory(width, height int) *Memory {
	return &Memory{width: width, height: height}
}

// WriteFrame stores a copy of frame.
func (m *Memory) WriteFrame(frame []byte) error {
	if m.closed {
		return fmt.Errorf("write to closed memory stream")
	}
	if len(frame) != m.width*m.height {
		return fmt.Errorf("frame is %d bytes, want %d", len(frame), m.width*m.height)
	}
	m.frames = append(m.frames, append([]byte(nil), frame...))
	return nil
}

// Close marks the stream complete.
func (m *Memory) Close() error {
	m.closed = true
	return nil
}

// Frames returns the stored frames. Callers may modify them to simulate
// damage.
func (m *Memory) Frames() [][]byte { return m.frames }

// Reader returns a FrameReader positioned at the first frame.
func (m *Memory) Reader() FrameReader {
	return &memoryReader{m: m}
}

type memoryReader struct {
	m   *Memory
	pos int
}

func (r *memoryReader) ReadFrame() ([]byte, error) {
	if r.pos >= len(r.m.frames) {
		return nil, io.EOF
	}
	f := r.m.frames[r.pos]
	r.pos++
	return f, nil
}

func (r *memoryReader) FrameCountHint() int { return len(r.m.frames) }
func (r *memoryReader) Width() int          { return r.m.width }
func (r *memoryReader) Height() int         { return r.m.height }
func (r *memoryReader) Close() error        { return nil }
