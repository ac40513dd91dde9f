/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// media.go: container interfaces and lookup
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrLossyCodec is returned for a codec that may alter pixel values.
	ErrLossyCodec = errors.New("codec is not lossless")
	// ErrUnknownContainer is returned by Lookup and Detect.
	ErrUnknownContainer = errors.New("unknown container")
	// ErrBadStream is returned for malformed container data.
	ErrBadStream = errors.New("malformed video stream")
)

// FrameWriter accepts grey frames of Width*Height bytes in display order.
// Close flushes the container but does not close the io.Writer it was
// created on.
type FrameWriter interface {
	WriteFrame(frame []byte) error
	Close() error
}

// FrameReader yields grey frames in display order and io.EOF at the end.
// The returned slice is only valid until the next ReadFrame call.
type FrameReader interface {
	ReadFrame() ([]byte, error)
	// FrameCountHint is the expected number of frames, 0 if unknown.
	FrameCountHint() int
	Width() int
	Height() int
	Close() error
}

// Container muxes and demuxes frame streams.
type Container interface {
	Name() string
	NewWriter(w io.Writer, width, height int) (FrameWriter, error)
	// NewReader demuxes r. size is the byte length of r, 0 if unknown.
	NewReader(r io.Reader, size int64) (FrameReader, error)
}

// Lookup returns the container registered under name. The empty name is
// Y4M. "ffv1" and "mkv" select FFV1 in Matroska through ffmpeg, and
// "ffmpeg:<codec>" any other codec ffmpeg knows to be lossless.
func Lookup(name string) (Container, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); {
	case n == "" || n == "y4m" || n == "yuv4mpeg":
		return Y4M{}, nil
	case n == "ffv1" || n == "mkv":
		return ffmpegContainer(DefaultFFmpegCodec)
	case strings.HasPrefix(n, "ffmpeg:"):
		return ffmpegContainer(strings.TrimPrefix(n, "ffmpeg:"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContainer, name)
	}
}

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// DetectLen is how many leading bytes Detect wants to see.
const DetectLen = len(y4mMagic)

// Detect picks a container from the first bytes of a stream.
func Detect(prefix []byte) (Container, error) {
	switch {
	case bytes.HasPrefix(prefix, []byte(y4mMagic)):
		return Y4M{}, nil
	case bytes.HasPrefix(prefix, ebmlMagic):
		return ffmpegContainer(DefaultFFmpegCodec)
	default:
		return nil, fmt.Errorf("%w: unrecognised stream signature", ErrUnknownContainer)
	}
}

func ffmpegContainer(codec string) (Container, error) {
	f, err := NewFFmpeg(codec)
	if err != nil {
		return nil, err
	}
	return f, nil
}
