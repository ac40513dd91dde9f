/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package frame

import (
	"errors"
	"io"
	"testing"

	"github.com/gitrgoliveira/go-framestash/internal/media"
)

// FuzzReader feeds arbitrary frame contents through the reader; it must
// never panic.
func FuzzReader(f *testing.F) {
	l, err := ComputeLayout(smallConfig)
	if err != nil {
		f.Fatal(err)
	}
	seed := media.NewMemory(l.Width, l.Height)
	w := NewWriter(seed, l, quietLogger())
	if err := w.WriteHeader(StreamHeader{Width: 64, Height: 16, PacketsPerFrame: 5}); err != nil {
		f.Fatal(err)
	}
	if err := w.Finalize(&Manifest{}); err != nil {
		f.Fatal(err)
	}
	for _, fr := range seed.Frames() {
		f.Add(fr)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		frame := make([]byte, l.FrameSize())
		copy(frame, data)
		mem := media.NewMemory(l.Width, l.Height)
		for i := 0; i < 3; i++ {
			if err := mem.WriteFrame(frame); err != nil {
				t.Fatal(err)
			}
		}
		r, err := OpenReader(mem.Reader(), l, quietLogger())
		if err != nil {
			return
		}
		for {
			if _, err := r.DecodeNextFrame(); err != nil {
				if !errors.Is(err, io.EOF) {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
		}
	})
}
