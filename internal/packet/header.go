/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// header.go: packet wire layout
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gitrgoliveira/go-framestash/internal/integrity"
)

// Wire layout, big-endian:
//
//	[2 magic][1 version][1 flags][4 chunk_index][4 block_id][4 num_source]
//	[4 chunk_size][2 symbol_size][2 payload_length][4 checksum][payload...]
//
// chunk_index and flags sit at fixed offsets so they can be peeked before
// the checksum is verified.
const (
	Magic   uint16 = 0x4653 // "FS"
	Version uint8  = 1

	OffMagic         = 0
	OffVersion       = 2
	OffFlags         = 3
	OffChunkIndex    = 4
	OffBlockID       = 8
	OffNumSource     = 12
	OffChunkSize     = 16
	OffSymbolSize    = 20
	OffPayloadLength = 22
	OffChecksum      = 24

	// HeaderSize is the fixed size of every packet header.
	HeaderSize = OffChecksum + integrity.ChecksumSize

	// MaxSymbolSize is the largest payload a single packet can carry.
	MaxSymbolSize = 1<<16 - 1
)

var (
	ErrShortPacket = errors.New("packet shorter than header")
	ErrBadMagic    = errors.New("bad packet magic")
	ErrBadVersion  = errors.New("unsupported packet version")
)

// Flags is the per-packet flag byte.
type Flags uint8

const (
	// FlagLastChunk marks packets of the final chunk of the file.
	FlagLastChunk Flags = 1 << 0
	// FlagEncrypted marks payloads that are AEAD ciphertext.
	FlagEncrypted Flags = 1 << 1
	// FlagXXHash selects XXHash32 for the checksum; clear means CRC32c.
	FlagXXHash Flags = 1 << 2
)

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool { return f&x == x }

// Algorithm returns the checksum algorithm the flags select.
func (f Flags) Algorithm() integrity.Algorithm {
	if f.Has(FlagXXHash) {
		return integrity.XXHash32
	}
	return integrity.CRC32C
}

func flagsFor(alg integrity.Algorithm) Flags {
	if alg == integrity.XXHash32 {
		return FlagXXHash
	}
	return 0
}

// Header is the decoded form of a packet header.
type Header struct {
	Version       uint8
	Flags         Flags
	ChunkIndex    uint32
	BlockID       uint32
	NumSource     uint32
	ChunkSize     uint32
	SymbolSize    uint16
	PayloadLength uint16
	Checksum      uint32
}

// Put writes h into dst, which must be at least HeaderSize bytes.
func (h Header) Put(dst []byte) {
	binary.BigEndian.PutUint16(dst[OffMagic:], Magic)
	dst[OffVersion] = h.Version
	dst[OffFlags] = byte(h.Flags)
	binary.BigEndian.PutUint32(dst[OffChunkIndex:], h.ChunkIndex)
	binary.BigEndian.PutUint32(dst[OffBlockID:], h.BlockID)
	binary.BigEndian.PutUint32(dst[OffNumSource:], h.NumSource)
	binary.BigEndian.PutUint32(dst[OffChunkSize:], h.ChunkSize)
	binary.BigEndian.PutUint16(dst[OffSymbolSize:], h.SymbolSize)
	binary.BigEndian.PutUint16(dst[OffPayloadLength:], h.PayloadLength)
	binary.BigEndian.PutUint32(dst[OffChecksum:], h.Checksum)
}

// ParseHeader decodes the header at the start of b. It checks structure
// only; the checksum is not verified.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	if m := binary.BigEndian.Uint16(b[OffMagic:]); m != Magic {
		return Header{}, fmt.Errorf("%w: %#04x", ErrBadMagic, m)
	}
	if b[OffVersion] != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrBadVersion, b[OffVersion])
	}
	return Header{
		Version:       b[OffVersion],
		Flags:         Flags(b[OffFlags]),
		ChunkIndex:    binary.BigEndian.Uint32(b[OffChunkIndex:]),
		BlockID:       binary.BigEndian.Uint32(b[OffBlockID:]),
		NumSource:     binary.BigEndian.Uint32(b[OffNumSource:]),
		ChunkSize:     binary.BigEndian.Uint32(b[OffChunkSize:]),
		SymbolSize:    binary.BigEndian.Uint16(b[OffSymbolSize:]),
		PayloadLength: binary.BigEndian.Uint16(b[OffPayloadLength:]),
		Checksum:      binary.BigEndian.Uint32(b[OffChecksum:]),
	}, nil
}

// PeekChunkIndex reads chunk_index without any validation. ok is false
// when raw is too short to hold a header.
func PeekChunkIndex(raw []byte) (index uint32, ok bool) {
	if len(raw) < HeaderSize {
		return 0, false
	}
	return binary.BigEndian.Uint32(raw[OffChunkIndex:]), true
}

// PeekFlags reads the flag byte without any validation.
func PeekFlags(raw []byte) (flags Flags, ok bool) {
	if len(raw) < HeaderSize {
		return 0, false
	}
	return Flags(raw[OffFlags]), true
}

// PeekLength returns the packet length the header at raw claims
// (header plus payload_length), or 0 if raw is too short.
func PeekLength(raw []byte) int {
	if len(raw) < HeaderSize {
		return 0
	}
	return HeaderSize + int(binary.BigEndian.Uint16(raw[OffPayloadLength:]))
}

// Packet is one serialized header+payload unit.
type Packet []byte

// Header parses the packet header.
func (p Packet) Header() (Header, error) { return ParseHeader(p) }

// Payload returns the payload bytes the header announces, clamped to what
// is actually present.
func (p Packet) Payload() []byte {
	n := PeekLength(p)
	if n == 0 {
		return nil
	}
	if n > len(p) {
		n = len(p)
	}
	return p[HeaderSize:n]
}
