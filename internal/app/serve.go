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
	"net/http"
	"time"

	"github.com/cristalhq/acmd"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chichekebbab/cardforge/internal/cards"
	"github.com/chichekebbab/cardforge/internal/export"
	"github.com/chichekebbab/cardforge/internal/render"
)

func init() {
	commands = append(commands, acmd.Command{
		Name:        "serve",
		Description: "Serve the card export API over HTTP",
		ExecFunc:    runServe,
	})
}

func runServe(ctx context.Context, args []string) error {
	var flags appFlags
	fs := flags.Flags()
	addr := fs.String("addr", "127.0.0.1:8123", "listen address")
	fontPath := fs.String("font", "", "TTF/OTF font file for card text")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := appPreRun(&flags); err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/export", exportHandler(*fontPath))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx) //nolint:errcheck
	}()

	slog.Info("server started", slog.String("addr", *addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// exportHandler receives a deck as a JSON body and streams back one
// archive holding every captured card. The chunk size is raised to
// the deck size so exactly one archive reaches the response body.
func exportHandler(fontPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deck, err := cards.LoadDeck(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		cfg, err := export.LoadConfig()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		cfg.ChunkSize = len(deck.Cards)

		// One request at a time gets fast pacing; the browser-side
		// timing workarounds don't apply to a server process.
		cfg.SettleDelay = 0
		cfg.StepDelay = 0
		cfg.InterChunkPause = 0

		renderer := render.New(render.Options{FontPath: fontPath}, slog.Default())

		items := make([]export.Item, len(deck.Cards))
		for i, c := range deck.Cards {
			items[i] = c
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf(
			`attachment; filename="%s"`,
			export.ArchiveName(cfg.ArchiveBase, 1, 1, ".zip"),
		))

		session, err := export.New(cfg, renderer, export.WriterSink{W: w},
			export.WithLogger(slog.Default()),
		)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if err := session.Run(r.Context(), items); err != nil {
			// Too late for a status code once the body started.
			slog.Error("export request failed", slog.Any("err", err))
		}
	}
}
