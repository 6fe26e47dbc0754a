// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export

import (
	"bytes"
	"context"

	"github.com/jung-kurt/gofpdf"
)

// Poker-card print size, in millimeters.
const (
	cardWidthMM   = 63.5
	cardHeightMM  = 88.9
	sheetMarginMM = 8.0
)

// PDFAccumulator is an [Accumulator] producing tiled A4 sheets ready
// for printing, 3×3 cards per page.
type PDFAccumulator struct {
	entries []archiveEntry
}

// NewPDFAccumulator returns a [PDFAccumulator] instance.
func NewPDFAccumulator() *PDFAccumulator {
	return &PDFAccumulator{}
}

// Add implements [Accumulator].
func (a *PDFAccumulator) Add(name string, data []byte) error {
	a.entries = append(a.entries, archiveEntry{name: name, data: data})
	return nil
}

// Len implements [Accumulator].
func (a *PDFAccumulator) Len() int {
	return len(a.entries)
}

// Ext implements [Accumulator].
func (a *PDFAccumulator) Ext() string {
	return ".pdf"
}

// Flush implements [Accumulator].
func (a *PDFAccumulator) Flush(ctx context.Context, name string, sink Sink) error {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetAutoPageBreak(false, 0)

	pageW, pageH := doc.GetPageSize()
	cols := int((pageW - 2*sheetMarginMM) / cardWidthMM)
	rows := int((pageH - 2*sheetMarginMM) / cardHeightMM)
	perPage := cols * rows

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	for i, entry := range a.entries {
		if i%perPage == 0 {
			doc.AddPage()
		}
		cell := i % perPage
		x := sheetMarginMM + float64(cell%cols)*cardWidthMM
		y := sheetMarginMM + float64(cell/cols)*cardHeightMM

		doc.RegisterImageOptionsReader(entry.name, opts, bytes.NewReader(entry.data))
		doc.ImageOptions(entry.name, x, y, cardWidthMM, cardHeightMM, false, opts, 0, "")
	}

	buf := new(bytes.Buffer)
	if err := doc.Output(buf); err != nil {
		return err
	}

	if err := sink.Deliver(ctx, name, buf); err != nil {
		return err
	}

	a.entries = nil
	return nil
}
