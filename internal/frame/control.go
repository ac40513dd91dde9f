/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// control.go: stream header and trailer manifest frames
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/gitrgoliveira/go-framestash/internal/crypto"
	"github.com/gitrgoliveira/go-framestash/internal/integrity"
	"github.com/gitrgoliveira/go-framestash/internal/packet"
)

// StreamVersion is the version of the StreamHeader schema.
const StreamVersion = 1

// maxControlSize caps a decoded control payload.
const maxControlSize = 64 << 20

// ErrControl is returned when header or trailer frames cannot be decoded.
var ErrControl = errors.New("corrupt control frame")

// StreamHeader is carried by the leading 'H' frames. It records everything
// the decoder needs that is not derivable from the container itself.
type StreamHeader struct {
	Version         uint8               `cbor:"1,keyasint"`
	Width           uint32              `cbor:"2,keyasint"`
	Height          uint32              `cbor:"3,keyasint"`
	PacketsPerFrame uint32              `cbor:"4,keyasint"`
	Hash            integrity.Algorithm `cbor:"5,keyasint"`
	Encrypted       bool                `cbor:"6,keyasint"`
	Cipher          crypto.Cipher       `cbor:"7,keyasint,omitempty"`
	FileID          crypto.FileID       `cbor:"8,keyasint"`
	KDF             crypto.KDFParams    `cbor:"9,keyasint,omitempty"`
	ChunkSize       uint32              `cbor:"10,keyasint"`
	InputSize       uint64              `cbor:"11,keyasint"`
	ChunkCount      uint32              `cbor:"12,keyasint"`
}

// Layout returns the frame layout the header describes.
func (h *StreamHeader) Layout() (Layout, error) {
	return ComputeLayout(LayoutConfig{
		Width:           int(h.Width),
		Height:          int(h.Height),
		PacketsPerFrame: int(h.PacketsPerFrame),
	})
}

// Manifest is carried by the trailing 'T' frames.
type Manifest struct {
	InputSize   uint64                 `cbor:"1,keyasint"`
	ChunkCount  uint32                 `cbor:"2,keyasint"`
	PacketCount uint64                 `cbor:"3,keyasint"`
	Entries     []packet.ManifestEntry `cbor:"4,keyasint"`
}

// Entry returns the manifest entry of chunk index, if present.
func (m *Manifest) Entry(index uint32) (packet.ManifestEntry, bool) {
	if m == nil {
		return packet.ManifestEntry{}, false
	}
	if int(index) < len(m.Entries) && m.Entries[index].ChunkIndex == index {
		return m.Entries[index], true
	}
	for _, e := range m.Entries {
		if e.ChunkIndex == index {
			return e, true
		}
	}
	return packet.ManifestEntry{}, false
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zenc *zstd.Encoder
	zdec *zstd.Decoder
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("frame: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("frame: CBOR decoder initialization failed: " + err.Error())
	}

	zenc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic("frame: zstd encoder initialization failed: " + err.Error())
	}
	zdec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(maxControlSize))
	if err != nil {
		panic("frame: zstd decoder initialization failed: " + err.Error())
	}
}

// marshalControl encodes v as zstd-compressed deterministic CBOR.
func marshalControl(v any) ([]byte, error) {
	raw, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode control payload: %w", err)
	}
	return zenc.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

func unmarshalControl(data []byte, v any) error {
	raw, err := zdec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrControl, err)
	}
	if err := decMode.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrControl, err)
	}
	return nil
}

// Control payloads are split into segments, one per frame, each placed
// right after the frame header:
//
//	[4 total][4 offset][4 length][4 crc32c(bytes)][bytes...]
const segmentHeaderSize = 16

type segment struct {
	total  uint32
	offset uint32
	data   []byte
}

func putSegment(dst []byte, total, offset uint32, data []byte) {
	binary.BigEndian.PutUint32(dst[0:], total)
	binary.BigEndian.PutUint32(dst[4:], offset)
	binary.BigEndian.PutUint32(dst[8:], uint32(len(data))) // #nosec G115 -- bounded by frame capacity
	binary.BigEndian.PutUint32(dst[12:], integrity.Castagnoli(data, 0))
	copy(dst[segmentHeaderSize:], data)
}

func parseSegment(b []byte) (segment, error) {
	if len(b) < segmentHeaderSize {
		return segment{}, fmt.Errorf("%w: short segment", ErrControl)
	}
	total := binary.BigEndian.Uint32(b[0:])
	offset := binary.BigEndian.Uint32(b[4:])
	length := binary.BigEndian.Uint32(b[8:])
	sum := binary.BigEndian.Uint32(b[12:])

	if total > maxControlSize || uint64(length) > uint64(len(b)-segmentHeaderSize) || uint64(offset)+uint64(length) > uint64(total) {
		return segment{}, fmt.Errorf("%w: segment %d+%d of %d does not fit", ErrControl, offset, length, total)
	}
	data := b[segmentHeaderSize : segmentHeaderSize+int(length)]
	if integrity.Castagnoli(data, 0) != sum {
		return segment{}, fmt.Errorf("%w: segment checksum mismatch at offset %d", ErrControl, offset)
	}
	return segment{total: total, offset: offset, data: data}, nil
}

// controlAssembler collects consecutive segments of one control payload.
type controlAssembler struct {
	buf   []byte
	total uint32
	begun bool
}

// add appends the segment carried by frame payload b. done is true once the
// whole payload is present.
func (c *controlAssembler) add(b []byte) (done bool, err error) {
	seg, err := parseSegment(b)
	if err != nil {
		return false, err
	}
	if !c.begun {
		c.total = seg.total
		c.buf = make([]byte, 0, seg.total)
		c.begun = true
	}
	if seg.total != c.total || int(seg.offset) != len(c.buf) {
		return false, fmt.Errorf("%w: segment at offset %d, expected %d of %d", ErrControl, seg.offset, len(c.buf), c.total)
	}
	if len(seg.data) == 0 && len(c.buf) < int(c.total) {
		return false, fmt.Errorf("%w: empty segment", ErrControl)
	}
	c.buf = append(c.buf, seg.data...)
	return len(c.buf) == int(c.total), nil
}
