/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// errors_test.go: Error handling tests for go-framestash
package framestash_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gitrgoliveira/go-framestash"
)

func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func TestEncode_EmptyPassword(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := writeTestFile(t, tmpDir, "test.txt", []byte("test data"))

	opts := append(testOptions(), framestash.WithEncryption(nil))
	_, err := framestash.Encode(context.Background(), srcPath, filepath.Join(tmpDir, "out.y4m"), opts...)
	if !errors.Is(err, framestash.ErrInvalidArgs) {
		t.Fatalf("expected invalid arguments, got %v", err)
	}
	if got := framestash.StatusString(err); got != "invalid arguments" {
		t.Errorf("StatusString = %q", got)
	}
}

func TestDecode_WrongPassword(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := writeTestFile(t, tmpDir, "test.txt", []byte("test data"))
	videoPath := filepath.Join(tmpDir, "test.y4m")
	decPath := filepath.Join(tmpDir, "test.dec")

	opts := append(testOptions(), framestash.WithEncryption([]byte("password one")))
	if _, err := framestash.Encode(context.Background(), srcPath, videoPath, opts...); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	opts = append(testOptions(), framestash.WithPassword([]byte("password two")))
	_, err := framestash.Decode(context.Background(), videoPath, decPath, opts...)
	if !errors.Is(err, framestash.ErrCrypto) {
		t.Fatalf("expected crypto error, got %v", err)
	}
	if framestash.StatusOf(err) != framestash.StatusCrypto {
		t.Errorf("StatusOf = %v", framestash.StatusOf(err))
	}
	if _, err := os.Stat(decPath); !os.IsNotExist(err) {
		t.Error("decode output must not exist after a failed decode")
	}
}

func TestDecode_CorruptedData(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := writeTestFile(t, tmpDir, "test.txt", []byte("test data that fills a few packets of the small layout"))
	videoPath := filepath.Join(tmpDir, "test.y4m")
	decPath := filepath.Join(tmpDir, "test.dec")

	if _, err := framestash.Encode(context.Background(), srcPath, videoPath, testOptions()...); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	data, err := os.ReadFile(videoPath)
	if err != nil {
		t.Fatalf("failed to read video: %v", err)
	}
	// Flip one payload byte of the first packet of the first data frame.
	l, _ := framestash.ComputeLayout(smallLayout)
	header := bytes.IndexByte(data, '\n') + 1
	frameStart := header + len("FRAME\n")
	dataFrame := frameStart + len("FRAME\n") + l.FrameSize()
	data[dataFrame+8+28+3] ^= 0xFF
	if err := os.WriteFile(videoPath, data, 0600); err != nil {
		t.Fatalf("failed to write corrupted video: %v", err)
	}

	_, err = framestash.Decode(context.Background(), videoPath, decPath, testOptions()...)
	if !errors.Is(err, framestash.ErrIncomplete) {
		t.Fatalf("expected incomplete data, got %v", err)
	}
}

func TestEncode_ContextCancellation(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := writeTestFile(t, tmpDir, "test.txt", make([]byte, 4096))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := framestash.Encode(ctx, srcPath, filepath.Join(tmpDir, "out.y4m"), testOptions()...)
	if !errors.Is(err, framestash.ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if framestash.StatusOf(err) != framestash.StatusEncodeFailed {
		t.Errorf("StatusOf = %v, want %v", framestash.StatusOf(err), framestash.StatusEncodeFailed)
	}
}

func TestEncode_NonExistentSource(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := framestash.Encode(context.Background(), filepath.Join(tmpDir, "missing.txt"), filepath.Join(tmpDir, "out.y4m"))
	if !errors.Is(err, framestash.ErrFileNotFound) {
		t.Fatalf("expected file not found, got %v", err)
	}
}

func TestDecode_NonExistentSource(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := framestash.Decode(context.Background(), filepath.Join(tmpDir, "missing.y4m"), filepath.Join(tmpDir, "out"))
	if !errors.Is(err, framestash.ErrFileNotFound) {
		t.Fatalf("expected file not found, got %v", err)
	}
}

func TestDecode_NotAVideo(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := writeTestFile(t, tmpDir, "notes.txt", []byte("plain text, no frames"))
	_, err := framestash.Decode(context.Background(), srcPath, filepath.Join(tmpDir, "out"))
	if !errors.Is(err, framestash.ErrDecodeFailed) {
		t.Fatalf("expected decoding failed, got %v", err)
	}
}

func TestStatusCodes(t *testing.T) {
	codes := map[framestash.Status]int{
		framestash.StatusOK:           0,
		framestash.StatusInvalidArgs:  1,
		framestash.StatusFileNotFound: 2,
		framestash.StatusIO:           3,
		framestash.StatusEncodeFailed: 4,
		framestash.StatusDecodeFailed: 5,
		framestash.StatusCrypto:       6,
		framestash.StatusIncomplete:   7,
	}
	for status, code := range codes {
		if int(status) != code {
			t.Errorf("%v = %d, want %d", status, int(status), code)
		}
	}
	if framestash.StatusString(nil) != "success" {
		t.Errorf("StatusString(nil) = %q", framestash.StatusString(nil))
	}
	if framestash.Version() != "1.0.0" {
		t.Errorf("Version() = %q", framestash.Version())
	}
}
