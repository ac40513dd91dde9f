/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// y4m.go: YUV4MPEG2 muxer and demuxer
package media

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	y4mMagic       = "YUV4MPEG2"
	y4mFrameMarker = "FRAME"
	maxY4MLine     = 1024
)

// Y4M is uncompressed YUV4MPEG2 with the mono colour space: each frame is
// exactly the grey plane. Reading also accepts 4:2:0, 4:2:2 and 4:4:4
// streams and returns their luma plane.
type Y4M struct{}

// Name implements Container.
func (Y4M) Name() string { return "y4m" }

// NewWriter implements Container.
func (Y4M) NewWriter(w io.Writer, width, height int) (FrameWriter, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid y4m dimensions %dx%d", width, height)
	}
	bw := bufio.NewWriterSize(w, 1<<20)
	if _, err := fmt.Fprintf(bw, "%s W%d H%d F30:1 Ip A1:1 Cmono\n", y4mMagic, width, height); err != nil {
		return nil, fmt.Errorf("failed to write y4m header: %w", err)
	}
	return &y4mWriter{w: bw, size: width * height}, nil
}

type y4mWriter struct {
	w    *bufio.Writer
	size int
}

func (y *y4mWriter) WriteFrame(frame []byte) error {
	if len(frame) != y.size {
		return fmt.Errorf("frame is %d bytes, want %d", len(frame), y.size)
	}
	if _, err := y.w.WriteString(y4mFrameMarker + "\n"); err != nil {
		return err
	}
	_, err := y.w.Write(frame)
	return err
}

func (y *y4mWriter) Close() error { return y.w.Flush() }

// NewReader implements Container.
func (Y4M) NewReader(r io.Reader, size int64) (FrameReader, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	line, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("%w: y4m header: %w", ErrBadStream, err)
	}
	y, err := parseY4MHeader(line)
	if err != nil {
		return nil, err
	}
	y.r = br
	y.buf = make([]byte, y.frameBytes)
	if size > 0 {
		per := int64(len(y4mFrameMarker) + 1 + y.frameBytes)
		y.hint = int((size - int64(len(line)) - 1) / per)
	}
	return y, nil
}

type y4mReader struct {
	r          *bufio.Reader
	width      int
	height     int
	frameBytes int
	buf        []byte
	hint       int
}

func parseY4MHeader(line string) (*y4mReader, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != y4mMagic {
		return nil, fmt.Errorf("%w: missing %s signature", ErrBadStream, y4mMagic)
	}
	y := &y4mReader{}
	colour := "420jpeg"
	for _, f := range fields[1:] {
		switch f[0] {
		case 'W', 'H':
			v, err := strconv.Atoi(f[1:])
			if err != nil || v < 1 {
				return nil, fmt.Errorf("%w: bad dimension %q", ErrBadStream, f)
			}
			if f[0] == 'W' {
				y.width = v
			} else {
				y.height = v
			}
		case 'C':
			colour = f[1:]
		}
	}
	if y.width == 0 || y.height == 0 {
		return nil, fmt.Errorf("%w: y4m header lacks dimensions", ErrBadStream)
	}
	if int64(y.width)*int64(y.height) > 1<<28 {
		return nil, fmt.Errorf("%w: %dx%d frame too large", ErrBadStream, y.width, y.height)
	}

	luma := y.width * y.height
	cw, ch := (y.width+1)/2, (y.height+1)/2
	switch {
	case colour == "mono":
		y.frameBytes = luma
	case strings.HasPrefix(colour, "420"):
		y.frameBytes = luma + 2*cw*ch
	case colour == "422":
		y.frameBytes = luma + 2*cw*y.height
	case colour == "444":
		y.frameBytes = 3 * luma
	case colour == "444alpha":
		y.frameBytes = 4 * luma
	default:
		return nil, fmt.Errorf("%w: unsupported y4m colour space %q", ErrBadStream, colour)
	}
	return y, nil
}

func (y *y4mReader) ReadFrame() ([]byte, error) {
	line, err := readLine(y.r)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadStream, err)
	}
	if !strings.HasPrefix(line, y4mFrameMarker) {
		return nil, fmt.Errorf("%w: expected FRAME marker", ErrBadStream)
	}
	if _, err := io.ReadFull(y.r, y.buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, fmt.Errorf("%w: truncated frame", ErrBadStream)
		}
		return nil, err
	}
	return y.buf[:y.width*y.height], nil
}

func (y *y4mReader) FrameCountHint() int { return y.hint }
func (y *y4mReader) Width() int          { return y.width }
func (y *y4mReader) Height() int         { return y.height }
func (y *y4mReader) Close() error        { return nil }

// readLine reads one '\n'-terminated line of at most maxY4MLine bytes.
// io.EOF is returned only when no byte was read.
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		if b == '\n' {
			return sb.String(), nil
		}
		if sb.Len() >= maxY4MLine {
			return "", fmt.Errorf("line longer than %d bytes", maxY4MLine)
		}
		sb.WriteByte(b)
	}
}
