// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export

import "context"

// Renderer is the rendering collaborator of the pipeline. Given an
// item, it produces a [Rendered] card whose visual state can be
// captured as a bitmap. The pipeline never looks inside; it only
// sequences preparation, readiness and capture.
type Renderer interface {
	// PrepareFonts makes font resources ready for capture. The
	// session calls it at most once; a failure leaves the renderer
	// in a slower per-item fallback mode and is not an error of the
	// session.
	PrepareFonts(ctx context.Context) error

	// Render lays out one item and returns a handle on the result.
	Render(ctx context.Context, item Item) (Rendered, error)
}

// Rendered is one laid-out item, ready to be captured.
type Rendered interface {
	// WaitAssets blocks until every raster asset of the item is
	// either ready or failed. Failed assets don't block a capture,
	// they only leave blank regions.
	WaitAssets(ctx context.Context) error

	// Capture encodes the current visual state as a PNG bitmap.
	Capture(ctx context.Context) ([]byte, error)
}
