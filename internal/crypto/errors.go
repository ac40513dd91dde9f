/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"errors"
	"fmt"
	"os"
)

// SanitizeError removes sensitive details for external consumption
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrAuthentication):
		return fmt.Errorf("wrong password or corrupted chunk")
	case errors.Is(err, ErrInvalidKey), errors.Is(err, ErrEmptyPassword):
		return fmt.Errorf("invalid encryption key")
	case errors.Is(err, ErrCiphertextSize):
		return fmt.Errorf("corrupted encrypted chunk")
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("insufficient permissions")
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("file not found")
	default:
		return fmt.Errorf("encryption operation failed")
	}
}

// Error types for chunk encryption
var (
	ErrInvalidKey        = fmt.Errorf("invalid key")
	ErrEmptyPassword     = fmt.Errorf("password cannot be empty")
	ErrAuthentication    = fmt.Errorf("message authentication failed")
	ErrCiphertextSize    = fmt.Errorf("ciphertext shorter than authentication tag")
	ErrUnsupportedCipher = fmt.Errorf("unsupported cipher")
	ErrKeyDestroyed      = fmt.Errorf("key material already destroyed")
)

// ChunkError ties a crypto failure to the chunk it happened on.
type ChunkError struct {
	Op         string // "seal" or "open"
	ChunkIndex uint32
	Err        error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%s chunk %d: %v", e.Op, e.ChunkIndex, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// WrapError adds context to an error
func WrapError(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
