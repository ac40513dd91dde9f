/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// assembler.go: packet verification and chunk reconstruction
package packet

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-framestash/internal/integrity"
)

// ErrChunkIncomplete is returned by Assembler.Chunk for a chunk that is
// missing at least one block.
var ErrChunkIncomplete = errors.New("chunk incomplete")

// RejectReason says why ProcessPacket dropped a packet.
type RejectReason uint8

const (
	ReasonNone RejectReason = iota
	ReasonTooShort
	ReasonBadMagic
	ReasonBadVersion
	ReasonChecksum
	ReasonGeometry
	ReasonInconsistent
	ReasonDuplicate
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTooShort:
		return "too short"
	case ReasonBadMagic:
		return "bad magic"
	case ReasonBadVersion:
		return "bad version"
	case ReasonChecksum:
		return "checksum mismatch"
	case ReasonGeometry:
		return "invalid geometry"
	case ReasonInconsistent:
		return "inconsistent with chunk"
	case ReasonDuplicate:
		return "duplicate block"
	default:
		return "unknown"
	}
}

// ProcessResult reports what happened to one packet.
type ProcessResult struct {
	Accepted   bool
	ChunkIndex uint32
	BlockID    uint32
	// ChunkComplete is set on the packet that completed its chunk.
	ChunkComplete bool
	Reason        RejectReason
}

type chunkState struct {
	numSource  uint32
	symbolSize uint16
	chunkSize  uint32
	blocks     [][]byte
	have       uint32
}

func (c *chunkState) complete() bool { return c.have == c.numSource }

// Assembler is the decode-side reconstruction table keyed by
// (chunk_index, block_id). It is not safe for concurrent use.
type Assembler struct {
	chunks    map[uint32]*chunkState
	encrypted bool
	accepted  int
	rejected  int
	log       logrus.FieldLogger
}

// NewAssembler returns an empty Assembler. A nil logger uses the logrus
// standard logger.
func NewAssembler(log logrus.FieldLogger) *Assembler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Assembler{
		chunks: make(map[uint32]*chunkState),
		log:    log,
	}
}

func (a *Assembler) reject(res ProcessResult, reason RejectReason, detail string) ProcessResult {
	a.rejected++
	res.Reason = reason
	a.log.WithFields(logrus.Fields{
		"function":    "ProcessPacket",
		"chunk_index": res.ChunkIndex,
		"block_id":    res.BlockID,
		"reason":      reason.String(),
	}).Debug(detail)
	return res
}

// ProcessPacket verifies raw and, if it is valid, stores its payload.
// Invalid packets are reported through the result, never as an error.
func (a *Assembler) ProcessPacket(raw []byte) ProcessResult {
	var res ProcessResult

	h, err := ParseHeader(raw)
	switch {
	case errors.Is(err, ErrShortPacket):
		return a.reject(res, ReasonTooShort, "packet too short")
	case errors.Is(err, ErrBadMagic):
		return a.reject(res, ReasonBadMagic, "packet magic mismatch")
	case err != nil:
		return a.reject(res, ReasonBadVersion, err.Error())
	}
	res.ChunkIndex = h.ChunkIndex
	res.BlockID = h.BlockID

	end := HeaderSize + int(h.PayloadLength)
	if len(raw) < end {
		return a.reject(res, ReasonTooShort, "payload truncated")
	}
	payload := raw[HeaderSize:end]

	if !integrity.VerifyPacketChecksum(raw[:HeaderSize], payload, OffChecksum, h.Flags.Algorithm(), h.Checksum) {
		return a.reject(res, ReasonChecksum, "packet checksum mismatch")
	}

	if err := checkGeometry(h); err != nil {
		return a.reject(res, ReasonGeometry, err.Error())
	}

	st, ok := a.chunks[h.ChunkIndex]
	if !ok {
		st = &chunkState{
			numSource:  h.NumSource,
			symbolSize: h.SymbolSize,
			chunkSize:  h.ChunkSize,
			blocks:     make([][]byte, h.NumSource),
		}
		a.chunks[h.ChunkIndex] = st
	} else if st.numSource != h.NumSource || st.symbolSize != h.SymbolSize || st.chunkSize != h.ChunkSize {
		return a.reject(res, ReasonInconsistent, "packet disagrees with earlier packets of its chunk")
	}

	if st.blocks[h.BlockID] != nil {
		return a.reject(res, ReasonDuplicate, "block already stored")
	}

	st.blocks[h.BlockID] = append(make([]byte, 0, len(payload)), payload...)
	st.have++
	if h.Flags.Has(FlagEncrypted) {
		a.encrypted = true
	}
	a.accepted++

	res.Accepted = true
	res.ChunkComplete = st.complete()
	return res
}

// checkGeometry validates the relationship between N, T, chunk_size,
// block_id and payload_length claimed by one header.
func checkGeometry(h Header) error {
	n := uint64(h.NumSource)
	t := uint64(h.SymbolSize)
	size := uint64(h.ChunkSize)

	if n == 0 || t == 0 {
		return fmt.Errorf("zero N or T (N=%d T=%d)", n, t)
	}
	if uint64(h.BlockID) >= n {
		return fmt.Errorf("block %d out of range for N=%d", h.BlockID, n)
	}
	if n != uint64(SourceCount(int(size), int(t))) {
		return fmt.Errorf("N=%d does not match chunk size %d with T=%d", n, size, t)
	}

	want := t
	if uint64(h.BlockID) == n-1 {
		want = size - t*(n-1)
	}
	if uint64(h.PayloadLength) != want {
		return fmt.Errorf("payload length %d, want %d", h.PayloadLength, want)
	}
	return nil
}

// IsComplete reports whether every block of chunk index has been accepted.
func (a *Assembler) IsComplete(index uint32) bool {
	st, ok := a.chunks[index]
	return ok && st.complete()
}

// CompleteChunks counts complete chunks among indices 0..expected-1.
func (a *Assembler) CompleteChunks(expected uint32) uint32 {
	var n uint32
	for idx, st := range a.chunks {
		if idx < expected && st.complete() {
			n++
		}
	}
	return n
}

// Chunk returns the reassembled bytes of chunk index.
func (a *Assembler) Chunk(index uint32) ([]byte, error) {
	st, ok := a.chunks[index]
	if !ok || !st.complete() {
		return nil, fmt.Errorf("%w: chunk %d", ErrChunkIncomplete, index)
	}
	out := make([]byte, 0, st.chunkSize)
	for _, b := range st.blocks {
		out = append(out, b...)
	}
	return out, nil
}

// Release drops the stored blocks of chunk index once it has been written.
func (a *Assembler) Release(index uint32) {
	delete(a.chunks, index)
}

// Encrypted reports whether any accepted packet carried FlagEncrypted.
func (a *Assembler) Encrypted() bool { return a.encrypted }

// Accepted returns the number of accepted packets.
func (a *Assembler) Accepted() int { return a.accepted }

// Rejected returns the number of rejected packets.
func (a *Assembler) Rejected() int { return a.rejected }
