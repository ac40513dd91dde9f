/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package framestash stores arbitrary files losslessly inside the pixel data
// of a video and restores them bit-exact, optionally encrypting every chunk.
//
// A file is split into chunks, each chunk into fixed-size packets carrying a
// checksummed header, and the packets are packed into 8-bit grayscale frames.
// The video starts with a stream header frame (layout, hash, cipher, key
// derivation parameters and a random file id) and ends with a trailer frame
// holding a SHA-256 per chunk. Decoding verifies every packet, every chunk
// and, for encrypted streams, every AEAD tag before anything is written.
//
// # Features
//
//   - Lossless containers only: raw YUV4MPEG2 by default, FFV1 through ffmpeg
//   - CRC32c or XXHash32 packet checksums
//   - AES-256-GCM or ChaCha20-Poly1305 per chunk, key from Argon2id or PBKDF2
//   - All-or-nothing output: a failed run leaves no file behind
//   - Context cancellation and progress callbacks
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	res, err := framestash.Encode(ctx, "report.pdf", "report.y4m")
//	if err != nil {
//	    log.Fatalf("%s: %v", framestash.StatusString(err), err)
//	}
//	fmt.Println(res.FrameCount, "frames")
//
//	_, err = framestash.Decode(ctx, "report.y4m", "report.restored.pdf")
//
// # Encryption
//
//	password := []byte("correct horse battery staple")
//	_, err := framestash.Encode(ctx, "secret.tar", "secret.y4m", framestash.WithEncryption(password))
//	_, err = framestash.Decode(ctx, "secret.y4m", "secret.tar", framestash.WithPassword(password))
//
// Everything needed for decoding except the password travels inside the
// video. Streams written with WithLegacyStream carry no header and can only
// be decoded with the same layout, cipher and KDF options.
package framestash

import (
	"github.com/gitrgoliveira/go-framestash/internal/core"
	"github.com/gitrgoliveira/go-framestash/internal/crypto"
	"github.com/gitrgoliveira/go-framestash/internal/frame"
	"github.com/gitrgoliveira/go-framestash/internal/integrity"
	"github.com/gitrgoliveira/go-framestash/secure"
)

// Version returns the library version.
func Version() string { return core.ProgramVersion }

// Core operations (re-exported from internal/core).
var (
	Encode  = core.Encode
	Decode  = core.Decode
	Inspect = core.Inspect
)

type (
	// Option configures Encode, Decode and Inspect.
	Option = core.Option
	// Result summarises a successful Encode or Decode.
	Result = core.Result
	// StreamInfo is what Inspect reports about a stream.
	StreamInfo = core.StreamInfo
	// ProgressFunc receives progress and may cancel by returning true.
	ProgressFunc = core.ProgressFunc
	// Error is the concrete type of every error the operations return.
	Error = core.Error
	// Status is the coarse outcome of an operation.
	Status = core.Status
	// FileConfig is the YAML configuration file.
	FileConfig = core.FileConfig

	// LayoutConfig sets the frame geometry.
	LayoutConfig = frame.LayoutConfig
	// Layout is the geometry derived from a LayoutConfig.
	Layout = frame.Layout
	// HashAlgorithm selects the packet checksum.
	HashAlgorithm = integrity.Algorithm
	// Cipher selects the chunk AEAD.
	Cipher = crypto.Cipher
	// KDFParams configures password key derivation.
	KDFParams = crypto.KDFParams
	// FileID identifies one encoded stream.
	FileID = crypto.FileID
)

// Options (re-exported from internal/core).
var (
	WithChunkSize       = core.WithChunkSize
	WithProgress        = core.WithProgress
	WithChecksum        = core.WithChecksum
	WithEncryption      = core.WithEncryption
	WithPassword        = core.WithPassword
	WithCipher          = core.WithCipher
	WithKDF             = core.WithKDF
	WithHashAlgorithm   = core.WithHashAlgorithm
	WithLayout          = core.WithLayout
	WithContainer       = core.WithContainer
	WithFileID          = core.WithFileID
	WithLegacyStream    = core.WithLegacyStream
	WithLogger          = core.WithLogger
	LoadConfigFile      = core.LoadConfigFile
	ComputeLayout       = frame.ComputeLayout
	DefaultLayoutConfig = frame.DefaultLayoutConfig
	DefaultKDFParams    = crypto.DefaultKDFParams
	ParseHashAlgorithm  = integrity.ParseAlgorithm
	ParseCipher         = crypto.ParseCipher
)

const (
	CRC32C   = integrity.CRC32C
	XXHash32 = integrity.XXHash32

	AES256GCM        = crypto.CipherAESGCM
	ChaCha20Poly1305 = crypto.CipherChaCha20Poly1305

	KDFArgon2id = crypto.KDFArgon2id
	KDFPBKDF2   = crypto.KDFPBKDF2

	DefaultChunkSize          = core.DefaultChunkSize
	DefaultEncryptedChunkSize = core.DefaultEncryptedChunkSize
	MaxChunkSize              = core.MaxChunkSize
)

// Status codes.
const (
	StatusOK           = core.StatusOK
	StatusInvalidArgs  = core.StatusInvalidArgs
	StatusFileNotFound = core.StatusFileNotFound
	StatusIO           = core.StatusIO
	StatusEncodeFailed = core.StatusEncodeFailed
	StatusDecodeFailed = core.StatusDecodeFailed
	StatusCrypto       = core.StatusCrypto
	StatusIncomplete   = core.StatusIncomplete
)

// Error kinds; match them with errors.Is.
var (
	ErrInvalidArgs  = core.ErrInvalidArgs
	ErrFileNotFound = core.ErrFileNotFound
	ErrIO           = core.ErrIO
	ErrEncodeFailed = core.ErrEncodeFailed
	ErrDecodeFailed = core.ErrDecodeFailed
	ErrCrypto       = core.ErrCrypto
	ErrIncomplete   = core.ErrIncomplete
	ErrCanceled     = core.ErrCanceled
)

// StatusOf maps an error returned by this package to its Status.
var StatusOf = core.StatusOf

// StatusString describes err the way Status.String does.
var StatusString = core.StatusString

// SanitizeError replaces a crypto failure with a message that is safe to
// show to users, without key or chunk details.
var SanitizeError = crypto.SanitizeError

// Re-export checksum helpers from internal/core so callers can compute/verify checksums.
var CalculateChecksum = core.CalculateChecksum
var CalculateChecksumHex = core.CalculateChecksumHex
var VerifyChecksum = core.VerifyChecksum
var VerifyChecksumHex = core.VerifyChecksumHex

// ZeroPassword securely zeroes a password slice once it is no longer needed.
var ZeroPassword = secure.Zero
