/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// encoder.go: file -> chunks -> packets -> frames
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-framestash/internal/chunk"
	"github.com/gitrgoliveira/go-framestash/internal/crypto"
	"github.com/gitrgoliveira/go-framestash/internal/frame"
	"github.com/gitrgoliveira/go-framestash/internal/media"
	"github.com/gitrgoliveira/go-framestash/internal/packet"
)

// Result summarises a successful Encode or Decode.
type Result struct {
	// InputSize is the size of the file that was read: the source file
	// for Encode, the video for Decode.
	InputSize   uint64
	OutputSize  uint64
	ChunkCount  uint64
	PacketCount uint64
	FrameCount  uint64
	// Checksum is the SHA-256 of the written file when WithChecksum is set.
	Checksum []byte
}

// checkCanceled consults the progress callback, then the context.
func (c *Config) checkCanceled(ctx context.Context, current, total uint64) error {
	if c.Progress != nil && c.Progress(current, total) {
		return ErrCanceled
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return nil
}

func samePath(a, b string) bool {
	ca, err1 := filepath.Abs(a)
	cb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && ca == cb
}

func statInput(op, path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, newError(ErrFileNotFound, op, err)
	case err != nil:
		return nil, newError(ErrIO, op, err)
	case !info.Mode().IsRegular():
		return nil, newError(ErrInvalidArgs, op, fmt.Errorf("%s is not a regular file", path))
	}
	return info, nil
}

// Encode stores the file at inputPath in a video written to outputPath.
// The output only appears once the whole stream has been written.
func Encode(ctx context.Context, inputPath, outputPath string, opts ...Option) (*Result, error) {
	cfg := newConfig(opts...)
	defer cfg.wipe()
	log := cfg.Logger.WithFields(logrus.Fields{
		"function": "Encode",
		"input":    inputPath,
		"output":   outputPath,
	})

	if inputPath == "" || outputPath == "" {
		return nil, newError(ErrInvalidArgs, "encode", errors.New("input and output paths are required"))
	}
	if samePath(inputPath, outputPath) {
		return nil, newError(ErrInvalidArgs, "encode", errors.New("input and output are the same file"))
	}
	if cfg.Encrypt && len(cfg.Password) == 0 {
		return nil, newError(ErrInvalidArgs, "encode", crypto.ErrEmptyPassword)
	}
	if !cfg.Hash.Valid() {
		return nil, newError(ErrInvalidArgs, "encode", fmt.Errorf("invalid hash algorithm %d", cfg.Hash))
	}
	if cfg.Encrypt {
		if !cfg.Cipher.IsSupported() {
			return nil, newError(ErrInvalidArgs, "encode", fmt.Errorf("%w: %s", crypto.ErrUnsupportedCipher, cfg.Cipher))
		}
		if err := cfg.KDF.Validate(); err != nil {
			return nil, newError(ErrInvalidArgs, "validate key derivation", err)
		}
	}
	chunkSize := cfg.chunkSize()
	limit, err := maxChunkSize()
	if err != nil {
		return nil, newError(ErrInvalidArgs, "encode", err)
	}
	if chunkSize > limit {
		return nil, newError(ErrInvalidArgs, "encode", fmt.Errorf("chunk size %d exceeds %d", chunkSize, limit))
	}
	layout, err := frame.ComputeLayout(cfg.Layout)
	if err != nil {
		return nil, newError(ErrInvalidArgs, "compute layout", err)
	}
	container, err := media.Lookup(cfg.Container)
	if err != nil {
		return nil, newError(ErrInvalidArgs, "select container", err)
	}

	info, err := statInput("stat input", inputPath)
	if err != nil {
		return nil, err
	}

	src, err := chunk.Open(inputPath, chunkSize)
	if err != nil {
		return nil, newError(ErrIO, "open input", err)
	}
	defer src.Close()

	fileID, err := cfg.streamFileID()
	if err != nil {
		return nil, newError(ErrEncodeFailed, "generate file id", err)
	}

	log.WithFields(logrus.Fields{
		"size":      info.Size(),
		"chunks":    src.NumChunks(),
		"layout":    layout.String(),
		"container": container.Name(),
		"encrypted": cfg.Encrypt,
	}).Debug("encoding")

	e := &encodeRun{
		cfg:       cfg,
		log:       log,
		src:       src,
		layout:    layout,
		container: container,
		fileID:    fileID,
		output:    outputPath,
	}
	if !cfg.Encrypt {
		err = e.run(ctx, nil)
	} else {
		err = crypto.WithKey(cfg.Password, fileID, cfg.KDF, func(key *crypto.SecureBuffer) error {
			cc, err := crypto.NewChunkCipher(cfg.Cipher, key, fileID)
			if err != nil {
				return newError(ErrCrypto, "create chunk cipher", err)
			}
			return e.run(ctx, cc)
		})
		if err != nil && !isPipelineError(err) {
			err = newError(ErrCrypto, "derive key", err)
		}
	}
	if err != nil {
		log.WithError(err).Debug("encode failed")
		return nil, err
	}

	res := &Result{
		InputSize:   uint64(info.Size()),  // #nosec G115 -- file sizes are non-negative
		OutputSize:  uint64(e.outputSize), // #nosec G115
		ChunkCount:  uint64(src.NumChunks()),
		PacketCount: e.packets,
		FrameCount:  e.frames,
	}
	if cfg.Checksum {
		sum, err := CalculateChecksum(outputPath)
		if err != nil {
			return nil, newError(ErrIO, "calculate checksum", err)
		}
		res.Checksum = sum
	}
	log.WithFields(logrus.Fields{
		"frames":  res.FrameCount,
		"packets": res.PacketCount,
	}).Info("encode complete")
	return res, nil
}

func isPipelineError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

func (c *Config) streamFileID() (crypto.FileID, error) {
	switch {
	case c.FileID != nil:
		return *c.FileID, nil
	case c.Legacy:
		return crypto.LegacyFileID, nil
	default:
		return crypto.NewFileID()
	}
}

type encodeRun struct {
	cfg       *Config
	log       logrus.FieldLogger
	src       *chunk.FileReader
	layout    frame.Layout
	container media.Container
	fileID    crypto.FileID
	output    string

	packets    uint64
	frames     uint64
	outputSize int64
}

func (e *encodeRun) run(ctx context.Context, cc *crypto.ChunkCipher) (err error) {
	out, err := createAtomic(e.output)
	if err != nil {
		return newError(ErrIO, "create output", err)
	}
	defer func() {
		if err != nil {
			out.abort()
		}
	}()

	mw, err := e.container.NewWriter(out, e.layout.Width, e.layout.Height)
	if err != nil {
		return newError(ErrEncodeFailed, "open container", err)
	}
	fw := frame.NewWriter(mw, e.layout, e.log)
	defer func() {
		if err != nil {
			_ = fw.Abort()
		}
	}()

	n := e.src.NumChunks()
	if !e.cfg.Legacy {
		hdr := frame.StreamHeader{
			Width:           uint32(e.layout.Width),           // #nosec G115 -- bounded by MaxFramePixels
			Height:          uint32(e.layout.Height),          // #nosec G115
			PacketsPerFrame: uint32(e.layout.PacketsPerFrame), // #nosec G115
			Hash:            e.cfg.Hash,
			Encrypted:       cc != nil,
			FileID:          e.fileID,
			ChunkSize:       uint32(e.src.ChunkSize()), // #nosec G115 -- capped by maxChunkSize
			InputSize:       uint64(e.src.FileSize()),  // #nosec G115
			ChunkCount:      n,
		}
		if cc != nil {
			hdr.Cipher = cc.Cipher()
			hdr.KDF = e.cfg.KDF
		}
		if err := fw.WriteHeader(hdr); err != nil {
			return newError(ErrEncodeFailed, "write stream header", err)
		}
	}

	enc, err := packet.NewEncoder(e.layout.SymbolSize, e.cfg.Hash)
	if err != nil {
		return newError(ErrEncodeFailed, "create packet encoder", err)
	}
	manifest := &frame.Manifest{
		InputSize:  uint64(e.src.FileSize()), // #nosec G115
		ChunkCount: n,
		Entries:    make([]packet.ManifestEntry, 0, n),
	}

	for i := uint32(0); i < n; i++ {
		if err := e.cfg.checkCanceled(ctx, uint64(i), uint64(n)); err != nil {
			return newError(ErrEncodeFailed, fmt.Sprintf("encode chunk %d", i), err)
		}

		data, err := e.src.ReadChunk(i)
		if err != nil {
			return newError(ErrIO, "read input", err)
		}
		c := packet.Chunk{Index: i, Data: data, Last: i == n-1}
		if cc != nil {
			c.Original = data
			c.Data = cc.Seal(i, data)
			c.Encrypted = true
		}

		packets, entry, err := enc.EncodeChunk(c)
		if err != nil {
			return newError(ErrEncodeFailed, "encode chunk", err)
		}
		if err := fw.EncodePackets(packets); err != nil {
			return newError(ErrEncodeFailed, "write frames", err)
		}
		manifest.Entries = append(manifest.Entries, entry)
		e.packets += uint64(len(packets))
	}
	manifest.PacketCount = e.packets

	if e.cfg.Legacy {
		manifest = nil
	}
	if err := fw.Finalize(manifest); err != nil {
		return newError(ErrEncodeFailed, "finalize stream", err)
	}
	e.frames = fw.FramesWritten()

	if err := out.commit(); err != nil {
		return newError(ErrIO, "commit output", err)
	}
	e.outputSize = out.written
	return nil
}
