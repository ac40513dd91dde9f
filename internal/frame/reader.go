/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// reader.go: recovers packets from frames
package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-framestash/internal/media"
	"github.com/gitrgoliveira/go-framestash/internal/packet"
)

// ErrLayoutMismatch is returned when the container's frame size disagrees
// with the layout in use.
var ErrLayoutMismatch = errors.New("container frame size does not match layout")

// Reader walks a frame stream once, front to back.
type Reader struct {
	in     media.FrameReader
	layout Layout
	log    logrus.FieldLogger

	header   *StreamHeader
	manifest *Manifest

	pending    []byte
	framesRead uint64
	eof        bool
}

// OpenReader consumes the stream header, if there is one, and prepares to
// decode data frames. A stream without a header is read with fallback and
// Header returns nil.
func OpenReader(in media.FrameReader, fallback Layout, log logrus.FieldLogger) (*Reader, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Reader{in: in, log: log}

	first, err := r.next()
	if errors.Is(err, io.EOF) {
		r.layout = fallback
		r.eof = true
		return r, nil
	}
	if err != nil {
		return nil, err
	}

	fh, ferr := parseFrameHeader(first)
	if ferr != nil || fh.kind != KindHeader {
		if in.Width() != fallback.Width || in.Height() != fallback.Height {
			return nil, fmt.Errorf("%w: container is %dx%d, layout is %dx%d",
				ErrLayoutMismatch, in.Width(), in.Height(), fallback.Width, fallback.Height)
		}
		r.layout = fallback
		r.pending = first
		log.WithFields(logrus.Fields{
			"function": "OpenReader",
			"layout":   fallback.String(),
		}).Debug("no stream header, using configured layout")
		return r, nil
	}

	// Control frames only depend on the frame size, so the header can be
	// read before its layout is known.
	control := Layout{Width: in.Width(), Height: in.Height(), Capacity: in.Width()*in.Height() - HeaderSize}
	if control.controlCapacity() < 1 {
		return nil, fmt.Errorf("%w: %dx%d frame cannot hold a stream header", ErrLayoutMismatch, in.Width(), in.Height())
	}
	var h StreamHeader
	if err := r.readControl(KindHeader, first, control, &h); err != nil {
		return nil, fmt.Errorf("failed to read stream header: %w", err)
	}
	layout, err := h.Layout()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrControl, err)
	}
	if layout.Width != in.Width() || layout.Height != in.Height() {
		return nil, fmt.Errorf("%w: header says %dx%d, container is %dx%d",
			ErrLayoutMismatch, layout.Width, layout.Height, in.Width(), in.Height())
	}
	r.layout = layout
	r.header = &h
	log.WithFields(logrus.Fields{
		"function":  "OpenReader",
		"layout":    layout.String(),
		"encrypted": h.Encrypted,
		"hash":      h.Hash.String(),
	}).Debug("stream header read")
	return r, nil
}

// Layout returns the layout data frames are decoded with.
func (r *Reader) Layout() Layout { return r.layout }

// Header returns the stream header, or nil for a header-less stream.
func (r *Reader) Header() *StreamHeader { return r.header }

// Manifest returns the trailer manifest once the trailer has been read, or
// nil if the stream has none (or it was unreadable).
func (r *Reader) Manifest() *Manifest { return r.manifest }

// IsEOF reports whether the stream is exhausted.
func (r *Reader) IsEOF() bool { return r.eof && r.pending == nil }

// FramesRead counts frames consumed so far, control frames included.
func (r *Reader) FramesRead() uint64 { return r.framesRead }

// TotalFrames is the container's frame count estimate, 0 if unknown.
func (r *Reader) TotalFrames() uint64 {
	if n := r.in.FrameCountHint(); n > 0 {
		return uint64(n)
	}
	return 0
}

// DecodeNextFrame returns the packets of the next data frame. Packets are
// not validated here; each is sliced to the length its header claims,
// clamped to the slot. All-zero slots are padding and are skipped. At the
// end of the stream it returns io.EOF.
func (r *Reader) DecodeNextFrame() ([]packet.Packet, error) {
	for {
		frame, err := r.take()
		if err != nil {
			return nil, err
		}

		fh, ferr := parseFrameHeader(frame)
		switch {
		case ferr != nil:
			// decode as data; packet checksums catch real damage
			r.log.WithFields(logrus.Fields{
				"function": "DecodeNextFrame",
				"frame":    r.framesRead - 1,
				"error":    ferr,
			}).Warn("unreadable frame header")
		case fh.kind == KindTrailer:
			r.readTrailer(frame)
			r.eof = true
			return nil, io.EOF
		case fh.kind == KindHeader:
			r.log.WithFields(logrus.Fields{
				"function": "DecodeNextFrame",
				"frame":    r.framesRead - 1,
			}).Warn("unexpected header frame, skipping")
			continue
		}
		return r.slice(frame), nil
	}
}

func (r *Reader) slice(frame []byte) []packet.Packet {
	packets := make([]packet.Packet, 0, r.layout.PacketsPerFrame)
	for i := 0; i < r.layout.PacketsPerFrame; i++ {
		off := r.layout.slotOffset(i)
		slot := frame[off : off+r.layout.SlotSize]
		if allZero(slot) {
			continue
		}
		n := min(packet.PeekLength(slot), len(slot))
		packets = append(packets, packet.Packet(slot[:n]))
	}
	return packets
}

func (r *Reader) readTrailer(first []byte) {
	var m Manifest
	if err := r.readControl(KindTrailer, first, r.layout, &m); err != nil {
		r.log.WithFields(logrus.Fields{
			"function": "readTrailer",
			"error":    err,
		}).Warn("ignoring unreadable trailer")
		return
	}
	r.manifest = &m
}

// readControl assembles a control payload starting at first and continuing
// through the following frames of the same kind.
func (r *Reader) readControl(kind Kind, first []byte, l Layout, v any) error {
	var asm controlAssembler
	frame := first
	for {
		done, err := asm.add(frame[HeaderSize : HeaderSize+l.Capacity])
		if err != nil {
			return err
		}
		if done {
			return unmarshalControl(asm.buf, v)
		}
		frame, err = r.next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s truncated", ErrControl, kind)
		}
		if err != nil {
			return err
		}
		fh, err := parseFrameHeader(frame)
		if err != nil || fh.kind != kind {
			return fmt.Errorf("%w: %s interrupted", ErrControl, kind)
		}
	}
}

// take returns the pending frame or reads the next one.
func (r *Reader) take() ([]byte, error) {
	if r.pending != nil {
		f := r.pending
		r.pending = nil
		return f, nil
	}
	if r.eof {
		return nil, io.EOF
	}
	return r.next()
}

func (r *Reader) next() ([]byte, error) {
	frame, err := r.in.ReadFrame()
	if errors.Is(err, io.EOF) {
		r.eof = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %d: %w", r.framesRead, err)
	}
	if want := r.in.Width() * r.in.Height(); len(frame) != want {
		return nil, fmt.Errorf("%w: frame %d is %d bytes, want %d", ErrFrameSizeMismatch, r.framesRead, len(frame), want)
	}
	r.framesRead++
	return frame, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
