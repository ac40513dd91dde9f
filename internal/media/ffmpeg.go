/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// ffmpeg.go: lossless codecs through an ffmpeg subprocess
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// DefaultFFmpegCodec is the codec used by the "ffv1" container.
const DefaultFFmpegCodec = "ffv1"

// ErrFFmpegNotFound is returned when no ffmpeg binary is on PATH.
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")

// losslessCodecs maps the ffmpeg codecs accepted for grey frames to their
// extra encoder arguments.
var losslessCodecs = map[string][]string{
	"ffv1":     {"-level", "3", "-g", "1"},
	"ffvhuff":  nil,
	"rawvideo": nil,
}

// FFmpeg muxes frames into Matroska with a lossless codec by piping Y4M
// through an ffmpeg process. Reading asks ffmpeg to turn any input back
// into a grey Y4M stream.
type FFmpeg struct {
	Codec string
	Path  string
}

// NewFFmpeg returns an FFmpeg container for codec, rejecting any codec not
// known to be lossless.
func NewFFmpeg(codec string) (*FFmpeg, error) {
	codec = strings.ToLower(strings.TrimSpace(codec))
	if codec == "" {
		codec = DefaultFFmpegCodec
	}
	if _, ok := losslessCodecs[codec]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrLossyCodec, codec)
	}
	return &FFmpeg{Codec: codec}, nil
}

// Name implements Container.
func (f *FFmpeg) Name() string { return f.Codec }

func (f *FFmpeg) binary() (string, error) {
	if f.Path != "" {
		return f.Path, nil
	}
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", ErrFFmpegNotFound
	}
	return path, nil
}

// NewWriter implements Container.
func (f *FFmpeg) NewWriter(w io.Writer, width, height int) (FrameWriter, error) {
	bin, err := f.binary()
	if err != nil {
		return nil, err
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "yuv4mpegpipe", "-i", "pipe:0", "-c:v", f.Codec}
	args = append(args, losslessCodecs[f.Codec]...)
	args = append(args, "-pix_fmt", "gray", "-f", "matroska", "pipe:1")

	cmd := exec.Command(bin, args...) // #nosec G204 -- codec is from a fixed allowlist
	cmd.Stdout = w
	p := &ffmpegProc{cmd: cmd}
	cmd.Stderr = &p.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	y, err := Y4M{}.NewWriter(stdin, width, height)
	if err != nil {
		_ = stdin.Close()
		_ = p.wait()
		return nil, err
	}
	return &ffmpegWriter{ffmpegProc: p, y4m: y, stdin: stdin}, nil
}

type ffmpegProc struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
}

func (p *ffmpegProc) wait() error {
	if err := p.cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(p.stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

type ffmpegWriter struct {
	*ffmpegProc
	y4m   FrameWriter
	stdin io.WriteCloser
}

func (w *ffmpegWriter) WriteFrame(frame []byte) error {
	if err := w.y4m.WriteFrame(frame); err != nil {
		return fmt.Errorf("failed to pipe frame to ffmpeg: %w", err)
	}
	return nil
}

func (w *ffmpegWriter) Close() error {
	flushErr := w.y4m.Close()
	closeErr := w.stdin.Close()
	if err := w.wait(); err != nil {
		return err
	}
	return errors.Join(flushErr, closeErr)
}

// NewReader implements Container.
func (f *FFmpeg) NewReader(r io.Reader, _ int64) (FrameReader, error) {
	bin, err := f.binary()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(bin, "-hide_banner", "-loglevel", "error", "-i", "pipe:0", // #nosec G204
		"-f", "yuv4mpegpipe", "-pix_fmt", "gray", "pipe:1")
	cmd.Stdin = r
	p := &ffmpegProc{cmd: cmd}
	cmd.Stderr = &p.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	y, err := Y4M{}.NewReader(stdout, 0)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, errors.Join(err, p.wait())
	}
	return &ffmpegReader{FrameReader: y, ffmpegProc: p}, nil
}

type ffmpegReader struct {
	FrameReader
	*ffmpegProc
	done bool
}

func (r *ffmpegReader) ReadFrame() ([]byte, error) {
	frame, err := r.FrameReader.ReadFrame()
	if err == io.EOF && !r.done {
		r.done = true
		if werr := r.wait(); werr != nil {
			return nil, werr
		}
	}
	return frame, err
}

func (r *ffmpegReader) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	_ = r.cmd.Process.Kill()
	_ = r.cmd.Wait()
	return nil
}
