// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"os"

	"github.com/chichekebbab/cardforge/internal/app"
)

func main() {
	os.Exit(app.Run())
}
