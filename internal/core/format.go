/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// format.go: stream-wide constants for go-framestash
package core

import (
	"github.com/gitrgoliveira/go-framestash/internal/chunk"
	"github.com/gitrgoliveira/go-framestash/internal/crypto"
)

const (
	// ProgramVersion is reported by Version.
	ProgramVersion = "1.0.0"

	// DefaultChunkSize is the plaintext chunk size without encryption.
	DefaultChunkSize = chunk.DefaultSize
	// DefaultEncryptedChunkSize leaves room for the AEAD tag so a sealed
	// chunk is exactly DefaultChunkSize bytes.
	DefaultEncryptedChunkSize = DefaultChunkSize - crypto.TagSize

	// MinChunkSize is the smallest configurable chunk.
	MinChunkSize = 1
	// MaxChunkSize caps one chunk; a whole chunk is held in memory while
	// it is sealed and split.
	MaxChunkSize = 10 * 1024 * 1024
)
