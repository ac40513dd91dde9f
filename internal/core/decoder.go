/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// decoder.go: frames -> packets -> chunks -> file
package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-framestash/internal/crypto"
	"github.com/gitrgoliveira/go-framestash/internal/frame"
	"github.com/gitrgoliveira/go-framestash/internal/integrity"
	"github.com/gitrgoliveira/go-framestash/internal/media"
	"github.com/gitrgoliveira/go-framestash/internal/packet"
	"github.com/gitrgoliveira/go-framestash/secure"
)

// ErrChunkDigest is wrapped when a reassembled chunk disagrees with the
// digest recorded in the trailer. The digest covers the embedded bytes,
// ciphertext for an encrypted stream.
var ErrChunkDigest = errors.New("chunk digest mismatch")

// stream is an opened video with its frame reader.
type stream struct {
	file      *os.File
	media     media.FrameReader
	frames    *frame.Reader
	container string
	size      int64
}

func (s *stream) Close() {
	_ = s.media.Close()
	_ = s.file.Close()
}

// openStream opens path, picks its container and reads the stream header.
func openStream(op, path string, cfg *Config, log logrus.FieldLogger) (*stream, error) {
	info, err := statInput(op, path)
	if err != nil {
		return nil, err
	}
	fallback, err := frame.ComputeLayout(cfg.Layout)
	if err != nil {
		return nil, newError(ErrInvalidArgs, "compute layout", err)
	}

	var container media.Container
	if cfg.Container != "" {
		if container, err = media.Lookup(cfg.Container); err != nil {
			return nil, newError(ErrInvalidArgs, "select container", err)
		}
	}

	f, err := os.Open(path) // #nosec G304 -- caller supplied path
	if err != nil {
		return nil, newError(ErrIO, "open input", err)
	}
	br := bufio.NewReaderSize(f, 1<<20)
	if container == nil {
		prefix, _ := br.Peek(media.DetectLen)
		if container, err = media.Detect(prefix); err != nil {
			_ = f.Close()
			return nil, newError(ErrDecodeFailed, "detect container", err)
		}
	}

	mr, err := container.NewReader(br, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, newError(ErrDecodeFailed, "open container", err)
	}
	fr, err := frame.OpenReader(mr, fallback, log)
	if err != nil {
		_ = mr.Close()
		_ = f.Close()
		return nil, newError(ErrDecodeFailed, "read stream header", err)
	}
	return &stream{file: f, media: mr, frames: fr, container: container.Name(), size: info.Size()}, nil
}

// scan is the state gathered from one pass over the data frames.
type scan struct {
	asm       *packet.Assembler
	extracted uint64

	// release drops each chunk as soon as it completes, counting it in
	// completed instead of keeping its bytes.
	release   bool
	completed map[uint32]struct{}

	maxIndex  uint32
	lastIndex uint32
	sawLast   bool
	sawAny    bool
}

// observe records what a packet claims about the stream before any of it
// is verified. A damaged packet can inflate the estimate; that only ever
// makes a decode report incomplete, never accept missing data.
func (s *scan) observe(p packet.Packet) {
	s.extracted++
	idx, ok := packet.PeekChunkIndex(p)
	if !ok {
		return
	}
	flags, _ := packet.PeekFlags(p)
	s.sawAny = true
	if idx > s.maxIndex {
		s.maxIndex = idx
	}
	if flags.Has(packet.FlagLastChunk) {
		s.sawLast = true
		s.lastIndex = idx
	}
}

// expected is the number of chunks the stream should contain: the packet
// estimate raised to whatever the stream header and trailer record. It is
// computed in 64 bits since a damaged index of 0xFFFFFFFF must not wrap.
func (s *scan) expected(hdr *frame.StreamHeader, m *frame.Manifest) uint64 {
	n := uint64(s.maxIndex) + 1
	if s.sawLast {
		n = uint64(s.lastIndex) + 1
	}
	if hdr != nil && uint64(hdr.ChunkCount) > n {
		n = uint64(hdr.ChunkCount)
	}
	if m != nil && uint64(m.ChunkCount) > n {
		n = uint64(m.ChunkCount)
	}
	return n
}

// completeChunks counts complete chunks among the first expected.
func (s *scan) completeChunks(expected uint64) uint64 {
	return uint64(s.asm.CompleteChunks(uint32(min(expected, math.MaxUint32)))) // #nosec G115 -- clamped
}

func scanFrames(ctx context.Context, op string, st *stream, cfg *Config, s *scan) error {
	fr := st.frames
	for !fr.IsEOF() {
		if err := cfg.checkCanceled(ctx, fr.FramesRead(), fr.TotalFrames()); err != nil {
			return newError(ErrDecodeFailed, op, err)
		}
		packets, err := fr.DecodeNextFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return newError(ErrDecodeFailed, "read frame", err)
		}
		for _, p := range packets {
			s.observe(p)
			res := s.asm.ProcessPacket(p)
			if s.release && res.ChunkComplete {
				s.completed[res.ChunkIndex] = struct{}{}
				s.asm.Release(res.ChunkIndex)
			}
		}
	}
	return nil
}

// Decode rebuilds the original file from the video at inputPath and writes
// it to outputPath. Nothing is written unless every chunk was recovered and
// authenticated.
func Decode(ctx context.Context, inputPath, outputPath string, opts ...Option) (*Result, error) {
	cfg := newConfig(opts...)
	defer cfg.wipe()
	log := cfg.Logger.WithFields(logrus.Fields{
		"function": "Decode",
		"input":    inputPath,
		"output":   outputPath,
	})

	if inputPath == "" || outputPath == "" {
		return nil, newError(ErrInvalidArgs, "decode", errors.New("input and output paths are required"))
	}
	if samePath(inputPath, outputPath) {
		return nil, newError(ErrInvalidArgs, "decode", errors.New("input and output are the same file"))
	}

	st, err := openStream("stat input", inputPath, cfg, log)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	hdr := st.frames.Header()
	if hdr != nil && hdr.Encrypted && len(cfg.Password) == 0 {
		return nil, newError(ErrCrypto, "decode", crypto.ErrEmptyPassword)
	}

	s := &scan{asm: packet.NewAssembler(log)}
	if err := scanFrames(ctx, "decode", st, cfg, s); err != nil {
		return nil, err
	}
	if s.extracted == 0 {
		return nil, newError(ErrDecodeFailed, "decode", errors.New("no packets found in stream"))
	}

	manifest := st.frames.Manifest()
	expected := s.expected(hdr, manifest)
	if complete := s.completeChunks(expected); complete < expected {
		log.WithFields(logrus.Fields{
			"expected": expected,
			"complete": complete,
			"rejected": s.asm.Rejected(),
			"missing":  missingChunks(s.asm, expected, 8),
		}).Warn("stream incomplete")
		return nil, newError(ErrIncomplete, "decode", fmt.Errorf("%d of %d chunks recovered", complete, expected))
	}

	encrypted := s.asm.Encrypted() || (hdr != nil && hdr.Encrypted)
	if encrypted && len(cfg.Password) == 0 {
		return nil, newError(ErrCrypto, "decode", crypto.ErrEmptyPassword)
	}

	fileID, cipher, kdf := crypto.LegacyFileID, cfg.Cipher, cfg.KDF
	if cfg.FileID != nil {
		fileID = *cfg.FileID
	}
	if hdr != nil {
		fileID, cipher, kdf = hdr.FileID, hdr.Cipher, hdr.KDF
	}

	d := &decodeRun{
		cfg:      cfg,
		log:      log,
		asm:      s.asm,
		header:   hdr,
		manifest: manifest,
		expected: uint32(expected), // #nosec G115 -- every one of them is complete
		output:   outputPath,
	}
	if !encrypted {
		err = d.run(nil)
	} else {
		err = crypto.WithKey(cfg.Password, fileID, kdf, func(key *crypto.SecureBuffer) error {
			cc, err := crypto.NewChunkCipher(cipher, key, fileID)
			if err != nil {
				return newError(ErrCrypto, "create chunk cipher", err)
			}
			return d.run(cc)
		})
		if err != nil && !isPipelineError(err) {
			err = newError(ErrCrypto, "derive key", err)
		}
	}
	if err != nil {
		log.WithError(err).Debug("decode failed")
		return nil, err
	}

	res := &Result{
		InputSize:   uint64(st.size),   // #nosec G115
		OutputSize:  uint64(d.written), // #nosec G115
		ChunkCount:  expected,
		PacketCount: s.extracted,
		FrameCount:  st.frames.FramesRead(),
	}
	if cfg.Checksum {
		res.Checksum = d.digest
	}
	log.WithFields(logrus.Fields{
		"chunks":   res.ChunkCount,
		"packets":  res.PacketCount,
		"rejected": s.asm.Rejected(),
	}).Info("decode complete")
	return res, nil
}

func missingChunks(asm *packet.Assembler, expected uint64, limit int) []uint64 {
	var out []uint64
	for i := uint64(0); i < expected && i <= math.MaxUint32 && len(out) < limit; i++ {
		if !asm.IsComplete(uint32(i)) { // #nosec G115 -- bounded by the loop
			out = append(out, i)
		}
	}
	return out
}

type decodeRun struct {
	cfg      *Config
	log      logrus.FieldLogger
	asm      *packet.Assembler
	header   *frame.StreamHeader
	manifest *frame.Manifest
	expected uint32
	output   string

	written int64
	digest  []byte
}

func (d *decodeRun) run(cc *crypto.ChunkCipher) (err error) {
	out, err := createAtomic(d.output)
	if err != nil {
		return newError(ErrIO, "create output", err)
	}
	defer func() {
		if err != nil {
			out.abort()
		}
	}()

	w := bufio.NewWriterSize(out, 1<<20)
	var sum *checksumWriter
	var dst io.Writer = w
	if d.cfg.Checksum {
		sum = newChecksumWriter(w)
		dst = sum
	}

	for i := uint32(0); i < d.expected; i++ {
		data, err := d.asm.Chunk(i)
		if err != nil {
			return newError(ErrIncomplete, "reassemble chunk", err)
		}
		if entry, ok := d.manifest.Entry(i); ok {
			sum := integrity.SHA256(data)
			if !secure.SecureCompare(sum[:], entry.SHA256[:]) {
				return newError(ErrDecodeFailed, "verify chunk", fmt.Errorf("%w: chunk %d", ErrChunkDigest, i))
			}
		}
		if cc != nil {
			pt, err := cc.Open(i, data)
			if err != nil {
				return newError(ErrCrypto, "decrypt chunk", err)
			}
			data = pt
		}
		if _, err := dst.Write(data); err != nil {
			return newError(ErrIO, "write output", err)
		}
		if cc != nil {
			secure.Zero(data)
		}
		d.asm.Release(i)
	}

	if err := w.Flush(); err != nil {
		return newError(ErrIO, "write output", err)
	}
	if want, from, ok := d.recordedSize(); ok && uint64(out.written) != want { // #nosec G115
		return newError(ErrDecodeFailed, "verify size", fmt.Errorf("wrote %d bytes, %s records %d", out.written, from, want))
	}
	if err := out.commit(); err != nil {
		return newError(ErrIO, "commit output", err)
	}
	d.written = out.written
	if sum != nil {
		d.digest = sum.Sum()
	}
	return nil
}

// recordedSize returns the input size the trailer, or failing that the
// stream header, recorded for a stream of d.expected chunks.
func (d *decodeRun) recordedSize() (uint64, string, bool) {
	if d.manifest != nil && d.manifest.ChunkCount == d.expected {
		return d.manifest.InputSize, "trailer", true
	}
	if d.header != nil && d.header.ChunkCount == d.expected {
		return d.header.InputSize, "stream header", true
	}
	return 0, "", false
}

// StreamInfo describes a stream without decoding it to disk.
type StreamInfo struct {
	Container string
	Layout    frame.Layout
	// Header is nil for a stream written without one.
	Header *frame.StreamHeader
	// Manifest is nil when the stream has no readable trailer.
	Manifest *frame.Manifest

	Frames         uint64
	Packets        uint64
	Rejected       uint64
	ExpectedChunks uint64
	CompleteChunks uint64
	Encrypted      bool
}

// Complete reports whether every expected chunk could be reassembled.
func (i *StreamInfo) Complete() bool { return i.CompleteChunks == i.ExpectedChunks }

// Inspect reads the whole stream at inputPath and reports its header,
// trailer and how many chunks are recoverable. It needs no password.
func Inspect(ctx context.Context, inputPath string, opts ...Option) (*StreamInfo, error) {
	cfg := newConfig(opts...)
	defer cfg.wipe()
	log := cfg.Logger.WithFields(logrus.Fields{
		"function": "Inspect",
		"input":    inputPath,
	})
	if inputPath == "" {
		return nil, newError(ErrInvalidArgs, "inspect", errors.New("input path is required"))
	}

	st, err := openStream("stat input", inputPath, cfg, log)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	s := &scan{asm: packet.NewAssembler(log), release: true, completed: make(map[uint32]struct{})}
	if err := scanFrames(ctx, "inspect", st, cfg, s); err != nil {
		return nil, err
	}

	info := &StreamInfo{
		Container: st.container,
		Layout:    st.frames.Layout(),
		Header:    st.frames.Header(),
		Manifest:  st.frames.Manifest(),
		Frames:    st.frames.FramesRead(),
		Packets:   s.extracted,
		Rejected:  uint64(s.asm.Rejected()), // #nosec G115
		Encrypted: s.asm.Encrypted() || (st.frames.Header() != nil && st.frames.Header().Encrypted),
	}
	if s.sawAny {
		info.ExpectedChunks = s.expected(info.Header, info.Manifest)
		for idx := range s.completed {
			if uint64(idx) < info.ExpectedChunks {
				info.CompleteChunks++
			}
		}
	}
	return info, nil
}
