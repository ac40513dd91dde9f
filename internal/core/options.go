/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// options.go: Configuration options for go-framestash
package core

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-framestash/internal/crypto"
	"github.com/gitrgoliveira/go-framestash/internal/frame"
	"github.com/gitrgoliveira/go-framestash/internal/integrity"
	"github.com/gitrgoliveira/go-framestash/secure"
)

// ChunkSizeLimitEnv overrides MaxChunkSize, e.g. "4MiB".
const ChunkSizeLimitEnv = "FRAMESTASH_CHUNKSIZE_LIMIT"

// ProgressFunc receives the current unit and the total. For Encode a unit is
// a chunk and the call happens before the chunk is processed; for Decode it
// is a frame, and total is 0 when the container cannot tell. Returning true
// cancels the operation.
type ProgressFunc func(current, total uint64) (cancel bool)

// Config is the resolved set of options for one Encode, Decode or Inspect.
type Config struct {
	ChunkSize int
	Progress  ProgressFunc
	Checksum  bool

	Encrypt  bool
	Password []byte
	Cipher   crypto.Cipher
	KDF      crypto.KDFParams

	Hash      integrity.Algorithm
	Layout    frame.LayoutConfig
	Container string
	FileID    *crypto.FileID
	Legacy    bool

	Logger logrus.FieldLogger
}

// Option defines functional options for encoding and decoding.
type Option func(*Config)

func newConfig(opts ...Option) *Config {
	cfg := &Config{
		Cipher: crypto.CipherAESGCM,
		KDF:    crypto.DefaultKDFParams(),
		Hash:   integrity.CRC32C,
		Layout: frame.DefaultLayoutConfig(),
		Logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return cfg
}

// wipe zeroes the password copy held by the config.
func (c *Config) wipe() {
	secure.Zero(c.Password)
	c.Password = nil
}

func (c *Config) chunkSize() int {
	switch {
	case c.ChunkSize > 0:
		return c.ChunkSize
	case c.Encrypt:
		return DefaultEncryptedChunkSize
	default:
		return DefaultChunkSize
	}
}

func maxChunkSize() (int, error) {
	limit := MaxChunkSize
	if envLimit, exists := os.LookupEnv(ChunkSizeLimitEnv); exists {
		if v, err := humanize.ParseBytes(envLimit); err == nil && v > 0 {
			// G115: Prevent integer overflow conversion uint64 -> int
			if v > uint64(math.MaxInt) || v > math.MaxUint32 {
				return 0, errors.New(ChunkSizeLimitEnv + " too large: exceeds the chunk_size field")
			}
			limit = int(v)
		}
	}
	return limit, nil
}

// WithChunkSize sets the plaintext chunk size.
func WithChunkSize(size int) (Option, error) {
	limit, err := maxChunkSize()
	if err != nil {
		return nil, err
	}
	if size < MinChunkSize || size > limit {
		return nil, fmt.Errorf("invalid chunk size %s: must be between 1 byte and %s",
			humanize.IBytes(uint64(max(size, 0))), humanize.IBytes(uint64(limit))) // #nosec G115
	}
	return func(cfg *Config) {
		cfg.ChunkSize = size
	}, nil
}

// WithProgress sets a progress callback that may cancel the operation.
func WithProgress(cb ProgressFunc) Option {
	return func(cfg *Config) {
		cfg.Progress = cb
	}
}

// WithChecksum makes Encode and Decode report the SHA-256 of the file they
// wrote in Result.Checksum.
func WithChecksum(enable bool) Option {
	return func(cfg *Config) {
		cfg.Checksum = enable
	}
}

// WithEncryption enables per-chunk encryption under a key derived from
// password. The password is copied and wiped when the operation ends.
func WithEncryption(password []byte) Option {
	return func(cfg *Config) {
		cfg.Encrypt = true
		cfg.Password = secure.Clone(password)
	}
}

// WithPassword supplies the password for decoding an encrypted stream.
func WithPassword(password []byte) Option {
	return func(cfg *Config) {
		cfg.Password = secure.Clone(password)
	}
}

// WithCipher selects the chunk AEAD (default AES-256-GCM).
func WithCipher(c crypto.Cipher) Option {
	return func(cfg *Config) {
		cfg.Cipher = c
	}
}

// WithKDF sets the key derivation parameters used when encoding, and for
// decoding streams that carry no header.
func WithKDF(p crypto.KDFParams) Option {
	return func(cfg *Config) {
		cfg.KDF = p
	}
}

// WithHashAlgorithm selects the packet checksum (default CRC32c).
func WithHashAlgorithm(alg integrity.Algorithm) Option {
	return func(cfg *Config) {
		cfg.Hash = alg
	}
}

// WithLayout sets the frame geometry. Decoding only uses it for streams
// without a header.
func WithLayout(l frame.LayoutConfig) Option {
	return func(cfg *Config) {
		cfg.Layout = l
	}
}

// WithContainer selects the container by name ("y4m", "ffv1", ...).
// Decoding detects the container when none is set.
func WithContainer(name string) Option {
	return func(cfg *Config) {
		cfg.Container = name
	}
}

// WithFileID fixes the stream file id instead of drawing a random one.
func WithFileID(id crypto.FileID) Option {
	return func(cfg *Config) {
		cfg.FileID = &id
	}
}

// WithLegacyStream writes no header and no trailer frames, and uses the
// fixed legacy file id unless WithFileID is also given. Such streams can
// only be decoded with the same layout, cipher and KDF configuration.
func WithLegacyStream(enable bool) Option {
	return func(cfg *Config) {
		cfg.Legacy = enable
	}
}

// WithLogger sets the logger (default logrus.StandardLogger()).
func WithLogger(l logrus.FieldLogger) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}
