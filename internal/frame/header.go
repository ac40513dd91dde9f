/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// header.go: per-frame header
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame header, 8 bytes at the start of every frame:
//
//	['F']['V'][kind][version][4 seq]
const (
	HeaderSize = 8
	Version    = 1

	magic0 = 'F'
	magic1 = 'V'
)

// Kind identifies what a frame carries.
type Kind byte

const (
	KindHeader  Kind = 'H'
	KindData    Kind = 'D'
	KindTrailer Kind = 'T'
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindData:
		return "data"
	case KindTrailer:
		return "trailer"
	default:
		return fmt.Sprintf("kind(%#02x)", byte(k))
	}
}

var (
	ErrBadFrame     = errors.New("bad frame header")
	ErrFrameVersion = errors.New("unsupported frame version")
)

type frameHeader struct {
	kind    Kind
	version uint8
	seq     uint32
}

func putFrameHeader(dst []byte, kind Kind, seq uint32) {
	dst[0] = magic0
	dst[1] = magic1
	dst[2] = byte(kind)
	dst[3] = Version
	binary.BigEndian.PutUint32(dst[4:], seq)
}

func parseFrameHeader(b []byte) (frameHeader, error) {
	if len(b) < HeaderSize || b[0] != magic0 || b[1] != magic1 {
		return frameHeader{}, ErrBadFrame
	}
	h := frameHeader{kind: Kind(b[2]), version: b[3], seq: binary.BigEndian.Uint32(b[4:])}
	switch h.kind {
	case KindHeader, KindData, KindTrailer:
	default:
		return h, fmt.Errorf("%w: %s", ErrBadFrame, h.kind)
	}
	if h.version != Version {
		return h, fmt.Errorf("%w: %d", ErrFrameVersion, h.version)
	}
	return h, nil
}
