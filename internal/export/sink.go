// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// Sink receives flushed archives. It is the native counterpart of
// the original application's browser download.
type Sink interface {
	Deliver(ctx context.Context, name string, r io.Reader) error
}

// DirSink is a [Sink] writing each archive as a file in a directory.
type DirSink struct {
	Root string
}

// Deliver implements [Sink].
func (s DirSink) Deliver(_ context.Context, name string, r io.Reader) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return err
	}

	fd, err := os.Create(filepath.Join(s.Root, filepath.Base(name)))
	if err != nil {
		return err
	}

	if _, err = io.Copy(fd, r); err != nil {
		fd.Close() //nolint:errcheck
		return err
	}
	return fd.Close()
}

// WriterSink is a [Sink] streaming every archive to a single
// [io.Writer]. It fits single-chunk sessions delivered over HTTP.
type WriterSink struct {
	W io.Writer
}

// Deliver implements [Sink].
func (s WriterSink) Deliver(_ context.Context, _ string, r io.Reader) error {
	_, err := io.Copy(s.W, r)
	return err
}
