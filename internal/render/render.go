// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package render draws card faces.
//
// CardRenderer is the default rendering collaborator of the export
// pipeline. It lays out one card at a time (background, title, kind
// banner, artwork, description and stat line) and captures the
// result as a PNG bitmap at a fixed pixel density.
package render

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"

	"github.com/chichekebbab/cardforge/internal/cards"
	"github.com/chichekebbab/cardforge/internal/export"
)

// Card face raster size. 750×1050 at pixel ratio 1 is a 2.5×3.5 inch
// card at 300 dpi; consistent print density matters more here than
// adaptive resolution.
const (
	faceWidth  = 750
	faceHeight = 1050
)

// Options configures a [CardRenderer].
type Options struct {
	// FontPath is a TTF/OTF file used for all card text. When empty
	// or unreadable, rendering falls back to a builtin bitmap face.
	FontPath string

	// Backgrounds maps a deck category to a background layout image
	// file. Missing entries fall back to a flat painted background.
	Backgrounds map[cards.Category]string
}

// CardRenderer implements the export pipeline's rendering
// collaborator for [cards.Card] items.
type CardRenderer struct {
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	titleFace  font.Face
	textFace   font.Face
	statFace   font.Face
	background map[cards.Category]image.Image
}

var _ export.Renderer = (*CardRenderer)(nil)

// New returns a [CardRenderer] instance.
func New(opts Options, logger *slog.Logger) *CardRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardRenderer{
		opts:       opts,
		logger:     logger,
		background: make(map[cards.Category]image.Image),
	}
}

// PrepareFonts implements [export.Renderer]. It parses the
// configured font file once and derives every face used on a card.
// On failure the renderer keeps its builtin fallback face, which
// degrades the output but never blocks an item.
func (r *CardRenderer) PrepareFonts(ctx context.Context) error {
	if r.opts.FontPath == "" {
		return fmt.Errorf("no font file configured")
	}

	data, err := os.ReadFile(r.opts.FontPath)
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	ft, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", r.opts.FontPath, err)
	}

	newFace := func(size float64) (font.Face, error) {
		return opentype.NewFace(ft, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}

	title, err := newFace(52)
	if err != nil {
		return err
	}
	text, err := newFace(30)
	if err != nil {
		return err
	}
	stat, err := newFace(38)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.titleFace, r.textFace, r.statFace = title, text, stat
	r.mu.Unlock()

	r.logger.Debug("card fonts ready", slog.String("font", r.opts.FontPath))
	return nil
}

// faces returns the prepared faces, or the builtin fallback when
// font preparation did not succeed.
func (r *CardRenderer) faces() (title, text, stat font.Face) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.titleFace == nil {
		return basicfont.Face7x13, basicfont.Face7x13, basicfont.Face7x13
	}
	return r.titleFace, r.textFace, r.statFace
}

// Render implements [export.Renderer]. It starts loading the item's
// raster assets in the background and returns a capture handle.
func (r *CardRenderer) Render(_ context.Context, item export.Item) (export.Rendered, error) {
	card, ok := item.(*cards.Card)
	if !ok {
		return nil, fmt.Errorf("unsupported item type %T", item)
	}

	rc := &renderedCard{r: r, card: card}
	rc.loadAssets()
	return rc, nil
}
