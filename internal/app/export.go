// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cristalhq/acmd"

	"github.com/chichekebbab/cardforge/internal/cards"
	"github.com/chichekebbab/cardforge/internal/export"
	"github.com/chichekebbab/cardforge/internal/render"
)

func init() {
	commands = append(commands, acmd.Command{
		Name:        "export",
		Description: "Export a deck as chunked archives of card images",
		ExecFunc:    runExport,
	})
}

func runExport(ctx context.Context, args []string) error {
	var flags appFlags
	fs := flags.Flags()
	// nolint: errcheck
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: export [arguments...] DECK")
		fmt.Fprintln(fs.Output(), "  DECK")
		fmt.Fprintln(fs.Output(), "    \tdeck file (JSON)")
		fs.PrintDefaults()
	}
	out := fs.String("out", ".", "output directory")
	format := fs.String("format", "zip", "archive format (zip or pdf)")
	fontPath := fs.String("font", "", "TTF/OTF font file for card text")
	bgDungeon := fs.String("bg-donjon", "", "dungeon background image")
	bgTreasure := fs.String("bg-tresor", "", "treasure background image")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	src := strings.TrimSpace(fs.Arg(0))
	if src == "" {
		return errors.New("deck file is required")
	}

	if err := appPreRun(&flags); err != nil {
		return err
	}

	cfg, err := export.LoadConfig()
	if err != nil {
		return err
	}

	var newArchive export.AccumulatorFactory
	switch *format {
	case "zip":
		newArchive = func() export.Accumulator { return export.NewZipAccumulator() }
	case "pdf":
		newArchive = func() export.Accumulator { return export.NewPDFAccumulator() }
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	deck, err := cards.OpenDeck(src)
	if err != nil {
		return err
	}

	renderer := render.New(render.Options{
		FontPath: *fontPath,
		Backgrounds: backgrounds(map[cards.Category]string{
			cards.CategoryDungeon:  *bgDungeon,
			cards.CategoryTreasure: *bgTreasure,
		}),
	}, slog.Default())

	items := make([]export.Item, len(deck.Cards))
	for i, c := range deck.Cards {
		items[i] = c
	}

	session, err := export.New(cfg, renderer, export.DirSink{Root: *out},
		export.WithLogger(slog.Default()),
		export.WithKeepAlive(export.NewHeartbeat(slog.Default(), 0)),
		export.WithAccumulator(newArchive),
		export.WithProgress(func(current, total int, chunk export.ChunkInfo) {
			fmt.Fprintf(os.Stdout, "\r  %s%d/%d%s (partie %d/%d)",
				colorYellow, current, total, colorReset,
				chunk.Current, chunk.Total,
			) //nolint:errcheck
		}),
		export.WithCompletion(func() {
			fmt.Fprintln(os.Stdout) //nolint:errcheck
		}),
	)
	if err != nil {
		return err
	}

	if err = session.Run(ctx, items); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s%s%d card(s)%s exported to %s\n",
		bold, colorGreen, session.Exported(), colorReset, *out,
	) //nolint:errcheck
	return nil
}

// backgrounds drops the empty entries of the flag map.
func backgrounds(m map[cards.Category]string) map[cards.Category]string {
	res := make(map[cards.Category]string)
	for k, v := range m {
		if v != "" {
			res[k] = v
		}
	}
	return res
}
