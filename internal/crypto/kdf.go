/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// kdf.go: password-based key derivation salted with the file id
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the derived key size (32 bytes for both supported ciphers).
	KeySize = 32

	// FileIDSize is the size of the per-stream identifier that salts the KDF
	// and prefixes every chunk nonce.
	FileIDSize = 16

	// DefaultPBKDF2Iterations is the default iteration count for PBKDF2
	DefaultPBKDF2Iterations = 600000 // OWASP recommendation (2023)

	// MinPBKDF2Iterations is the minimum safe iteration count
	MinPBKDF2Iterations = 210000 // OWASP minimum

	// Argon2id parameters (OWASP 2023 recommendations for interactive logins)

	// DefaultArgon2Time is the number of iterations (time cost)
	DefaultArgon2Time = 3

	// DefaultArgon2Memory is the memory cost in KiB (64 MB)
	DefaultArgon2Memory = 64 * 1024

	// DefaultArgon2Threads is the parallelism factor
	DefaultArgon2Threads = 4

	// MinArgon2Memory is the minimum memory cost (19 MB per OWASP minimum)
	MinArgon2Memory = 19 * 1024
)

// FileID identifies one encoded stream. It is bound into key derivation and
// into every chunk nonce.
type FileID [FileIDSize]byte

// LegacyFileID is the fixed id used by streams written without a stream
// header frame.
var LegacyFileID = FileID{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// NewFileID returns a random file id.
func NewFileID() (FileID, error) {
	var id FileID
	if _, err := rand.Read(id[:]); err != nil {
		return FileID{}, fmt.Errorf("failed to generate file id: %w", err)
	}
	return id, nil
}

// KDFAlgorithm selects the password hashing function.
type KDFAlgorithm uint8

const (
	// KDFArgon2id is the default.
	KDFArgon2id KDFAlgorithm = 1
	// KDFPBKDF2 is PBKDF2-HMAC-SHA256.
	KDFPBKDF2 KDFAlgorithm = 2
)

// String returns the algorithm name
func (a KDFAlgorithm) String() string {
	switch a {
	case KDFArgon2id:
		return "argon2id"
	case KDFPBKDF2:
		return "pbkdf2"
	default:
		return "unknown"
	}
}

// ParseKDFAlgorithm maps a config or flag value to a KDFAlgorithm.
func ParseKDFAlgorithm(s string) (KDFAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "argon2", "argon2id":
		return KDFArgon2id, nil
	case "pbkdf2", "pbkdf2-sha256":
		return KDFPBKDF2, nil
	default:
		return 0, fmt.Errorf("unknown key derivation function %q", s)
	}
}

// KDFParams are the cost parameters of a key derivation. They travel in the
// stream header so the decoder can reproduce the key.
type KDFParams struct {
	Algorithm  KDFAlgorithm `cbor:"1,keyasint" yaml:"-"`
	Time       uint32       `cbor:"2,keyasint,omitempty" yaml:"time"`
	Memory     uint32       `cbor:"3,keyasint,omitempty" yaml:"memory"`
	Threads    uint8        `cbor:"4,keyasint,omitempty" yaml:"threads"`
	Iterations int          `cbor:"5,keyasint,omitempty" yaml:"iterations"`
}

// DefaultKDFParams returns Argon2id with the OWASP interactive profile.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Algorithm:  KDFArgon2id,
		Time:       DefaultArgon2Time,
		Memory:     DefaultArgon2Memory,
		Threads:    DefaultArgon2Threads,
		Iterations: DefaultPBKDF2Iterations,
	}
}

// Validate checks the parameters without deriving anything.
func (p KDFParams) Validate() error {
	switch p.Algorithm {
	case KDFArgon2id:
		if p.Time < 1 {
			return fmt.Errorf("time cost must be at least 1, got %d", p.Time)
		}
		if p.Memory < MinArgon2Memory {
			return fmt.Errorf("memory cost must be at least %d KiB, got %d", MinArgon2Memory, p.Memory)
		}
		if p.Threads < 1 {
			return fmt.Errorf("threads must be at least 1, got %d", p.Threads)
		}
	case KDFPBKDF2:
		if p.Iterations < MinPBKDF2Iterations {
			return fmt.Errorf("iterations must be at least %d, got %d", MinPBKDF2Iterations, p.Iterations)
		}
	default:
		return fmt.Errorf("unknown key derivation function %d", p.Algorithm)
	}
	return nil
}

// DeriveKey derives the chunk key for one stream from password, using
// fileID as the salt so equal passwords give different keys per stream.
// The caller owns the returned buffer and must Destroy it.
func DeriveKey(password []byte, fileID FileID, params KDFParams) (*SecureBuffer, error) {
	var (
		raw []byte
		err error
	)
	switch params.Algorithm {
	case KDFPBKDF2:
		raw, err = DeriveKeyPBKDF2(password, fileID[:], params.Iterations, KeySize)
	default:
		raw, err = DeriveKeyArgon2(password, fileID[:], params.Time, params.Memory, params.Threads, KeySize)
	}
	if err != nil {
		return nil, err
	}
	return adoptSecureBuffer(raw), nil
}

// WithKey derives the stream key, hands it to fn and destroys it on every
// return path, including a panic unwinding through fn.
func WithKey(password []byte, fileID FileID, params KDFParams, fn func(key *SecureBuffer) error) error {
	key, err := DeriveKey(password, fileID, params)
	if err != nil {
		return err
	}
	defer key.Destroy()
	return fn(key)
}

// DeriveKeyPBKDF2 derives a key from a password using PBKDF2-HMAC-SHA256.
// Returns the derived key. The caller must securely zero the key after use.
func DeriveKeyPBKDF2(password, salt []byte, iterations, keyLen int) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}

	if len(salt) < 16 {
		return nil, fmt.Errorf("salt must be at least 16 bytes, got %d", len(salt))
	}

	if iterations < MinPBKDF2Iterations {
		return nil, fmt.Errorf("iterations must be at least %d, got %d", MinPBKDF2Iterations, iterations)
	}

	if keyLen <= 0 || keyLen > 128 {
		return nil, fmt.Errorf("keyLen must be between 1 and 128 bytes, got %d", keyLen)
	}

	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New), nil
}

// DeriveKeyArgon2 derives a key from a password using Argon2id.
//
// OWASP 2023 Recommendations:
//   - Interactive logins: memory=64MB, time=3, threads=4
//   - Minimum acceptable: memory=19MB, time=2, threads=1
func DeriveKeyArgon2(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}

	if len(salt) < 16 {
		return nil, fmt.Errorf("salt must be at least 16 bytes, got %d", len(salt))
	}

	if time < 1 {
		return nil, fmt.Errorf("time cost must be at least 1, got %d", time)
	}

	if memory < MinArgon2Memory {
		return nil, fmt.Errorf("memory cost must be at least %d KiB, got %d", MinArgon2Memory, memory)
	}

	if threads < 1 {
		return nil, fmt.Errorf("threads must be at least 1, got %d", threads)
	}

	if keyLen == 0 || keyLen > 128 {
		return nil, fmt.Errorf("keyLen must be between 1 and 128 bytes, got %d", keyLen)
	}

	return argon2.IDKey(password, salt, time, memory, threads, keyLen), nil
}
