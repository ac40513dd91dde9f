/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// output.go: all-or-nothing output files
package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// atomicFile is written under a temporary name next to its destination
// and only renamed into place by commit. abort removes it.
type atomicFile struct {
	*os.File
	path    string
	written int64
	done    bool
}

func createAtomic(path string) (*atomicFile, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &atomicFile{File: f, path: path}, nil
}

func (a *atomicFile) Write(p []byte) (int, error) {
	n, err := a.File.Write(p)
	a.written += int64(n)
	return n, err
}

func (a *atomicFile) commit() error {
	if err := a.Sync(); err != nil {
		a.abort()
		return fmt.Errorf("failed to sync %s: %w", a.Name(), err)
	}
	if err := a.Close(); err != nil {
		a.abort()
		return fmt.Errorf("failed to close %s: %w", a.Name(), err)
	}
	if err := os.Rename(a.Name(), a.path); err != nil {
		_ = os.Remove(a.Name())
		a.done = true
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	a.done = true
	return nil
}

// abort discards the temporary file. It is a no-op after commit.
func (a *atomicFile) abort() {
	if a.done {
		return
	}
	a.done = true
	_ = a.Close()
	_ = os.Remove(a.Name())
}
