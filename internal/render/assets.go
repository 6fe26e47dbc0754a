// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"sync"

	// Artwork decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/chichekebbab/cardforge/internal/cards"
)

// renderedCard is one laid-out card, with its raster assets loading
// in the background.
type renderedCard struct {
	r    *CardRenderer
	card *cards.Card

	g *errgroup.Group

	mu         sync.Mutex
	artwork    image.Image
	background image.Image
	failures   []error
}

// loadAssets starts the background and artwork loaders. Loaders
// record their failures instead of returning them so that one broken
// file never cancels the other loads.
func (rc *renderedCard) loadAssets() {
	rc.g = new(errgroup.Group)
	category := rc.card.Kind.Category()

	rc.g.Go(func() error {
		im, err := rc.r.categoryBackground(category)
		if err != nil {
			rc.fail(fmt.Errorf("background %s: %w", category, err))
			return nil
		}
		rc.mu.Lock()
		rc.background = im
		rc.mu.Unlock()
		return nil
	})

	if rc.card.Artwork != "" {
		rc.g.Go(func() error {
			im, err := loadImage(rc.card.Artwork)
			if err != nil {
				rc.fail(fmt.Errorf("artwork %s: %w", rc.card.Artwork, err))
				return nil
			}
			rc.mu.Lock()
			rc.artwork = im
			rc.mu.Unlock()
			return nil
		})
	}
}

func (rc *renderedCard) fail(err error) {
	rc.mu.Lock()
	rc.failures = append(rc.failures, err)
	rc.mu.Unlock()
	rc.r.logger.Debug("asset load failed", slog.Any("err", err))
}

// WaitAssets implements [export.Rendered]. It blocks until every
// asset is loaded or failed, or the context expires. On expiration
// the stragglers keep loading but their results are only picked up
// if they land before the capture.
func (rc *renderedCard) WaitAssets(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		rc.g.Wait() //nolint:errcheck
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	return errors.Join(rc.failures...)
}

// categoryBackground returns the background layout image of a deck
// category. Images are loaded once and shared across all the items
// of a session.
func (r *CardRenderer) categoryBackground(category cards.Category) (image.Image, error) {
	r.mu.Lock()
	if im, ok := r.background[category]; ok {
		r.mu.Unlock()
		return im, nil
	}
	r.mu.Unlock()

	name, ok := r.opts.Backgrounds[category]
	if !ok {
		// No layout file; the painted fallback applies.
		return nil, nil
	}

	im, err := loadImage(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.background[category] = im
	r.mu.Unlock()
	return im, nil
}

// loadImage opens, sniffs and decodes a raster image file.
func loadImage(name string) (image.Image, error) {
	mt, err := mimetype.DetectFile(name)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("not an image (%s)", mt.String())
	}

	fd, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fd.Close() //nolint:errcheck

	im, _, err := image.Decode(fd)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return im, nil
}
