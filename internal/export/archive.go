// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
)

// Accumulator collects named bitmaps for one chunk and serializes
// them into a downloadable container on flush. An accumulator is
// owned by a single session and replaced, not reused, at every chunk
// boundary.
type Accumulator interface {
	// Add stores a named bitmap. Names keep their arrival order.
	Add(name string, data []byte) error

	// Len returns the number of stored bitmaps.
	Len() int

	// Ext returns the container file extension, dot included.
	Ext() string

	// Flush serializes the accumulated bitmaps and delivers the
	// container through the sink. Contents are only released after
	// serialization completed.
	Flush(ctx context.Context, name string, sink Sink) error
}

// AccumulatorFactory creates a fresh [Accumulator] for a new chunk.
type AccumulatorFactory func() Accumulator

type archiveEntry struct {
	name string
	data []byte
}

// ZipAccumulator is an [Accumulator] producing a zip file. Entries
// are stored uncompressed; PNG payloads don't deflate and the time
// spent trying is wasted on large batches.
type ZipAccumulator struct {
	entries []archiveEntry
}

// NewZipAccumulator returns a [ZipAccumulator] instance.
func NewZipAccumulator() *ZipAccumulator {
	return &ZipAccumulator{}
}

// Add implements [Accumulator].
func (a *ZipAccumulator) Add(name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("empty entry name")
	}
	a.entries = append(a.entries, archiveEntry{name: name, data: data})
	return nil
}

// Len implements [Accumulator].
func (a *ZipAccumulator) Len() int {
	return len(a.entries)
}

// Ext implements [Accumulator].
func (a *ZipAccumulator) Ext() string {
	return ".zip"
}

// Flush implements [Accumulator].
func (a *ZipAccumulator) Flush(ctx context.Context, name string, sink Sink) error {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	for _, entry := range a.entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   entry.name,
			Method: zip.Store,
		})
		if err != nil {
			return err
		}
		if _, err = w.Write(entry.data); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return err
	}

	if err := sink.Deliver(ctx, name, buf); err != nil {
		return err
	}

	// Only now can the bitmaps be dropped.
	a.entries = nil
	return nil
}
