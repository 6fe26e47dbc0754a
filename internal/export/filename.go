// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export

import (
	"fmt"

	"github.com/chichekebbab/cardforge/pkg/slug"
)

// ItemFilename returns the name of a captured bitmap inside an
// archive. The index is the item's position in the whole input
// sequence, not its position within its chunk.
func ItemFilename(item Item, index int) string {
	return fmt.Sprintf(
		"%s_%s_%03d_%s.png",
		item.Group(),
		slug.Text(item.TypeName()),
		index+1,
		slug.Lower(item.Name()),
	)
}

// ArchiveName returns the name of a flushed archive. A single-chunk
// session gets the plain base name; a multi-chunk session numbers
// each part.
func ArchiveName(base string, chunk, chunks int, ext string) string {
	if chunks <= 1 {
		return base + ext
	}
	return fmt.Sprintf("%s_partie%d_sur_%d%s", base, chunk, chunks, ext)
}
