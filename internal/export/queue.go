// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export

// Item is one unit of export work. The pipeline only needs an
// identifier, a name for filenames and a type/group pair for the
// filename scheme; everything else is the renderer's business.
type Item interface {
	ID() string
	Name() string
	TypeName() string
	Group() string
}

// queue is the ordered, fixed-length list of items to process. The
// cursor only moves forward; cursor == length is the terminal
// position.
type queue struct {
	items  []Item
	cursor int
}

func newQueue(items []Item) *queue {
	return &queue{items: items}
}

// current returns the item under the cursor and its global index.
func (q *queue) current() (Item, int, bool) {
	if q.cursor >= len(q.items) {
		return nil, q.cursor, false
	}
	return q.items[q.cursor], q.cursor, true
}

// advance moves the cursor one position forward.
func (q *queue) advance() {
	if q.cursor < len(q.items) {
		q.cursor++
	}
}

func (q *queue) len() int {
	return len(q.items)
}

// done returns true once every item has been attempted.
func (q *queue) done() bool {
	return q.cursor >= len(q.items)
}
