// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPauseDue(t *testing.T) {
	assert := require.New(t)

	// Default tuning: every 10th item of a 40-item chunk, counted
	// from the chunk start.
	for _, index := range []int{10, 20, 30, 50, 70} {
		assert.True(pauseDue(index, 40, 10), "index %d", index)
	}
	for _, index := range []int{0, 1, 9, 39, 40, 80} {
		assert.False(pauseDue(index, 40, 10), "index %d", index)
	}

	// A chunk size that is not a multiple of the interval restarts
	// the count at each chunk boundary.
	assert.True(pauseDue(2, 3, 2))
	assert.True(pauseDue(5, 3, 2))
	assert.False(pauseDue(3, 3, 2))
	assert.False(pauseDue(4, 3, 2))

	// Interval zero disables the pause entirely.
	assert.False(pauseDue(10, 40, 0))
}
