/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// writer.go: packs packets into frames
package frame

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-framestash/internal/media"
	"github.com/gitrgoliveira/go-framestash/internal/packet"
)

var (
	ErrPacketTooLarge    = errors.New("packet larger than frame slot")
	ErrHeaderAfterData   = errors.New("stream header written after data")
	ErrWriterFinalized   = errors.New("frame writer already finalized")
	ErrFrameSizeMismatch = errors.New("frame size does not match layout")
)

// Writer turns a packet sequence into frames and hands them to a
// media.FrameWriter. Packets fill slots in order; a frame is emitted when
// all PacketsPerFrame slots are used, and Finalize flushes the last partial
// frame with its unused slots left zero.
type Writer struct {
	out    media.FrameWriter
	layout Layout
	log    logrus.FieldLogger

	frame []byte
	slot  int
	seq   uint32

	framesWritten  uint64
	packetsWritten uint64
	dataStarted    bool
	finalized      bool
}

// NewWriter returns a Writer emitting layout-shaped frames to out.
func NewWriter(out media.FrameWriter, layout Layout, log logrus.FieldLogger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{
		out:    out,
		layout: layout,
		log:    log,
		frame:  make([]byte, layout.FrameSize()),
	}
}

// Layout returns the writer's frame layout.
func (w *Writer) Layout() Layout { return w.layout }

// PacketsPerFrame returns the number of packet slots per data frame.
func (w *Writer) PacketsPerFrame() int { return w.layout.PacketsPerFrame }

// FramesWritten counts every frame emitted so far, control frames included.
func (w *Writer) FramesWritten() uint64 { return w.framesWritten }

// PacketsWritten counts packets placed into frames, including those still
// in the pending partial frame.
func (w *Writer) PacketsWritten() uint64 { return w.packetsWritten }

// WriteHeader emits the stream header frames. It must precede all packets.
func (w *Writer) WriteHeader(h StreamHeader) error {
	if w.finalized {
		return ErrWriterFinalized
	}
	if w.dataStarted {
		return ErrHeaderAfterData
	}
	if h.Version == 0 {
		h.Version = StreamVersion
	}
	return w.writeControl(KindHeader, &h)
}

// AddPacket places p into the next free slot.
func (w *Writer) AddPacket(p packet.Packet) error {
	if w.finalized {
		return ErrWriterFinalized
	}
	if len(p) > w.layout.SlotSize {
		return fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, len(p), w.layout.SlotSize)
	}
	w.dataStarted = true
	w.embed(w.slot, p)
	w.slot++
	w.packetsWritten++
	if w.slot == w.layout.PacketsPerFrame {
		return w.flush()
	}
	return nil
}

// EncodePackets adds every packet in ps.
func (w *Writer) EncodePackets(ps []packet.Packet) error {
	for _, p := range ps {
		if err := w.AddPacket(p); err != nil {
			return err
		}
	}
	return nil
}

// Finalize flushes any partial frame, writes the trailer when m is not nil
// and closes the underlying media writer.
func (w *Writer) Finalize(m *Manifest) error {
	if w.finalized {
		return ErrWriterFinalized
	}
	if w.slot > 0 {
		if err := w.flush(); err != nil {
			return err
		}
	}
	if m != nil {
		if err := w.writeControl(KindTrailer, m); err != nil {
			return err
		}
	}
	w.finalized = true
	w.log.WithFields(logrus.Fields{
		"function": "Finalize",
		"frames":   w.framesWritten,
		"packets":  w.packetsWritten,
	}).Debug("frame stream finalized")
	return w.out.Close()
}

// Abort closes the underlying writer without flushing or writing a trailer.
func (w *Writer) Abort() error {
	if w.finalized {
		return nil
	}
	w.finalized = true
	return w.out.Close()
}

// embed copies p into slot i of the pending data frame. Pixels are one
// byte each in row-major order, so a slot is a contiguous byte range.
func (w *Writer) embed(i int, p packet.Packet) {
	off := w.layout.slotOffset(i)
	n := copy(w.frame[off:off+w.layout.SlotSize], p)
	clear(w.frame[off+n : off+w.layout.SlotSize])
}

func (w *Writer) flush() error {
	// slots past w.slot were never written in this frame
	clear(w.frame[w.layout.slotOffset(w.slot):])
	if err := w.encodeFrame(KindData, w.frame); err != nil {
		return err
	}
	w.slot = 0
	return nil
}

// encodeFrame stamps the frame header and writes frame out.
func (w *Writer) encodeFrame(kind Kind, frame []byte) error {
	putFrameHeader(frame, kind, w.seq)
	if err := w.out.WriteFrame(frame); err != nil {
		return fmt.Errorf("failed to write %s frame %d: %w", kind, w.seq, err)
	}
	w.seq++
	w.framesWritten++
	return nil
}

func (w *Writer) writeControl(kind Kind, v any) error {
	payload, err := marshalControl(v)
	if err != nil {
		return err
	}
	if len(payload) > maxControlSize {
		return fmt.Errorf("%w: %s payload of %d bytes", ErrControl, kind, len(payload))
	}

	capacity := w.layout.controlCapacity()
	frame := make([]byte, w.layout.FrameSize())
	total := uint32(len(payload)) // #nosec G115 -- bounded by maxControlSize
	for off := 0; ; {
		end := min(off+capacity, len(payload))
		clear(frame)
		putSegment(frame[HeaderSize:], total, uint32(off), payload[off:end]) // #nosec G115
		if err := w.encodeFrame(kind, frame); err != nil {
			return err
		}
		off = end
		if off >= len(payload) {
			break
		}
	}
	w.log.WithFields(logrus.Fields{
		"function": "writeControl",
		"kind":     kind.String(),
		"bytes":    len(payload),
	}).Debug("control frames written")
	return nil
}
