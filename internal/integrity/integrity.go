/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package integrity provides the checksum and digest primitives used by the
// packet layer: CRC32c (Castagnoli), XXHash32 and SHA-256.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/OneOfOne/xxhash"
)

// ChecksumSize is the width of a packet checksum field in bytes.
const ChecksumSize = 4

// Algorithm selects the packet checksum for a whole run.
type Algorithm uint8

const (
	// CRC32C is CRC-32 with the Castagnoli polynomial (default).
	CRC32C Algorithm = iota
	// XXHash32 is the 32-bit xxHash variant, seed 0.
	XXHash32
)

// String returns the algorithm name
func (a Algorithm) String() string {
	switch a {
	case CRC32C:
		return "crc32c"
	case XXHash32:
		return "xxhash32"
	default:
		return "unknown"
	}
}

// Valid reports whether a is one of the two supported algorithms.
func (a Algorithm) Valid() bool {
	return a == CRC32C || a == XXHash32
}

// ParseAlgorithm accepts the names used on the command line and in config files.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "crc32", "crc32c":
		return CRC32C, nil
	case "xxhash", "xxhash32", "xxh32":
		return XXHash32, nil
	default:
		return 0, fmt.Errorf("unknown hash algorithm %q (use crc32 or xxhash)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid hash algorithm %d", a)
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	v, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Castagnoli returns the CRC32c of data continuing from seed.
func Castagnoli(data []byte, seed uint32) uint32 {
	return crc32.Update(seed, castagnoli, data)
}

// CastagnoliConcat returns Castagnoli(first || second, seed) without
// building the concatenation.
func CastagnoliConcat(first, second []byte, seed uint32) uint32 {
	return Castagnoli(second, Castagnoli(first, seed))
}

// XXH32 returns the 32-bit xxHash of data with the given seed.
func XXH32(data []byte, seed uint32) uint32 {
	return xxhash.Checksum32S(data, seed)
}

// PacketChecksum computes the checksum of header||payload with the
// ChecksumSize bytes at header[fieldOffset:] excluded from the input.
// It panics on an Algorithm that is not Valid; callers validate first.
func PacketChecksum(header, payload []byte, fieldOffset int, alg Algorithm) uint32 {
	before := header[:fieldOffset]
	after := header[fieldOffset+ChecksumSize:]

	switch alg {
	case CRC32C:
		return Castagnoli(payload, CastagnoliConcat(before, after, 0))
	case XXHash32:
		h := xxhash.NewS32(0)
		h.Write(before)
		h.Write(after)
		h.Write(payload)
		return h.Sum32()
	}
	panic(fmt.Sprintf("integrity: invalid hash algorithm %d", alg))
}

// VerifyPacketChecksum reports whether want matches the recomputed checksum.
func VerifyPacketChecksum(header, payload []byte, fieldOffset int, alg Algorithm, want uint32) bool {
	return PacketChecksum(header, payload, fieldOffset, alg) == want
}

// Digest is a SHA-256 digest.
type Digest [sha256.Size]byte

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) Digest {
	return sha256.Sum256(data)
}

// Hex returns the lowercase hex encoding of d.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d was never set.
func (d Digest) IsZero() bool {
	return d == Digest{}
}
