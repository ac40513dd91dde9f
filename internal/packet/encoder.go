/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// encoder.go: chunk packetization
package packet

import (
	"fmt"
	"math"

	"github.com/gitrgoliveira/go-framestash/internal/integrity"
)

// Chunk is one slice of the source file on its way into packets.
type Chunk struct {
	Index uint32
	// Data is what gets embedded: the plaintext, or the sealed chunk when
	// Encrypted is set.
	Data []byte
	// Original is the pre-encryption content. Nil means Data.
	Original  []byte
	Last      bool
	Encrypted bool
}

// ManifestEntry summarizes one encoded chunk. SHA256 is taken over the
// embedded bytes, so an encrypted chunk is digested as ciphertext and the
// trailer never exposes a plaintext hash.
type ManifestEntry struct {
	ChunkIndex   uint32           `cbor:"1,keyasint"`
	ChunkSize    uint32           `cbor:"2,keyasint"`
	OriginalSize uint32           `cbor:"3,keyasint"`
	SHA256       integrity.Digest `cbor:"4,keyasint"`
	N            uint32           `cbor:"5,keyasint"`
	T            uint16           `cbor:"6,keyasint"`
}

// Encoder turns chunks into packets of a fixed symbol size.
type Encoder struct {
	symbolSize int
	alg        integrity.Algorithm
}

// NewEncoder returns an Encoder emitting symbolSize-byte payloads checksummed
// with alg. symbolSize normally comes from the frame layout so that one packet
// fills one frame slot exactly.
func NewEncoder(symbolSize int, alg integrity.Algorithm) (*Encoder, error) {
	if symbolSize < 1 || symbolSize > MaxSymbolSize {
		return nil, fmt.Errorf("symbol size must be between 1 and %d, got %d", MaxSymbolSize, symbolSize)
	}
	if !alg.Valid() {
		return nil, fmt.Errorf("invalid checksum algorithm %d", alg)
	}
	return &Encoder{symbolSize: symbolSize, alg: alg}, nil
}

// SymbolSize returns T.
func (e *Encoder) SymbolSize() int { return e.symbolSize }

// Algorithm returns the checksum algorithm stamped into every packet.
func (e *Encoder) Algorithm() integrity.Algorithm { return e.alg }

// SourceCount returns N for a chunk of length bytes: ceil(length/T), and 1
// for an empty chunk.
func SourceCount(length, symbolSize int) int {
	if length == 0 {
		return 1
	}
	return (length + symbolSize - 1) / symbolSize
}

// EncodeChunk splits c into N packets numbered 0..N-1. Every packet but the
// last carries exactly T payload bytes.
func (e *Encoder) EncodeChunk(c Chunk) ([]Packet, ManifestEntry, error) {
	if uint64(len(c.Data)) > math.MaxUint32 {
		return nil, ManifestEntry{}, fmt.Errorf("chunk %d too large: %d bytes", c.Index, len(c.Data))
	}
	originalSize := len(c.Data)
	if c.Original != nil {
		originalSize = len(c.Original)
	}

	t := e.symbolSize
	n := SourceCount(len(c.Data), t)

	flags := flagsFor(e.alg)
	if c.Last {
		flags |= FlagLastChunk
	}
	if c.Encrypted {
		flags |= FlagEncrypted
	}

	packets := make([]Packet, 0, n)
	for block := 0; block < n; block++ {
		start := block * t
		end := min(start+t, len(c.Data))
		payload := c.Data[start:end]

		p := make(Packet, HeaderSize+len(payload))
		h := Header{
			Version:       Version,
			Flags:         flags,
			ChunkIndex:    c.Index,
			BlockID:       uint32(block),       // #nosec G115 -- n fits in uint32, checked above
			NumSource:     uint32(n),           // #nosec G115
			ChunkSize:     uint32(len(c.Data)), // #nosec G115
			SymbolSize:    uint16(t),           // #nosec G115 -- bounded by MaxSymbolSize
			PayloadLength: uint16(len(payload)),
		}
		h.Put(p)
		copy(p[HeaderSize:], payload)
		h.Checksum = integrity.PacketChecksum(p[:HeaderSize], payload, OffChecksum, e.alg)
		h.Put(p)

		packets = append(packets, p)
	}

	entry := ManifestEntry{
		ChunkIndex:   c.Index,
		ChunkSize:    uint32(len(c.Data)),  // #nosec G115
		OriginalSize: uint32(originalSize), // #nosec G115 -- original is never larger than Data
		SHA256:       integrity.SHA256(c.Data),
		N:            uint32(n), // #nosec G115
		T:            uint16(t), // #nosec G115
	}
	return packets, entry, nil
}
