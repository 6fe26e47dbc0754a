// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chichekebbab/cardforge/internal/export"
)

var (
	goodPayload = []byte("a-capture-result-long-enough-to-pass")
	tinyPayload = []byte("x")
)

// testConfig returns a configuration with no pacing, suitable for
// fast tests.
func testConfig() export.Config {
	cfg := export.NewConfig()
	cfg.SettleDelay = 0
	cfg.StepDelay = 0
	cfg.InterChunkPause = 0
	cfg.RetryBackoff = 0
	cfg.GCPauseInterval = 0
	cfg.FontTimeout = time.Second
	cfg.AssetTimeout = 50 * time.Millisecond
	cfg.RetryAssetTimeout = 10 * time.Millisecond
	cfg.MinCaptureBytes = 16
	return cfg
}

type testItem struct {
	id    string
	title string
	kind  string
	group string
}

func (i testItem) ID() string       { return i.id }
func (i testItem) Name() string     { return i.title }
func (i testItem) TypeName() string { return i.kind }
func (i testItem) Group() string    { return i.group }

// makeItems returns n monster items with predictable names.
func makeItems(n int) []export.Item {
	items := make([]export.Item, n)
	for i := range items {
		items[i] = testItem{
			id:    fmt.Sprintf("c%d", i+1),
			title: fmt.Sprintf("Carte %d", i+1),
			kind:  "monster",
			group: "Donjon",
		}
	}
	return items
}

// fakeRenderer is a scripted renderer. The captures map holds, per
// item ID, the successive results of each capture attempt; items
// without a script always capture successfully.
type fakeRenderer struct {
	mu         sync.Mutex
	fontErr    error
	fontDelay  time.Duration
	fontCalls  int
	captures   map[string][][]byte
	attempts   map[string]int
	renderFail map[string]bool
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		captures:   make(map[string][][]byte),
		attempts:   make(map[string]int),
		renderFail: make(map[string]bool),
	}
}

func (r *fakeRenderer) PrepareFonts(ctx context.Context) error {
	r.mu.Lock()
	r.fontCalls++
	r.mu.Unlock()
	if r.fontDelay > 0 {
		select {
		case <-time.After(r.fontDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.fontErr
}

func (r *fakeRenderer) fontCallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fontCalls
}

func (r *fakeRenderer) Render(_ context.Context, item export.Item) (export.Rendered, error) {
	r.mu.Lock()
	fail := r.renderFail[item.ID()]
	r.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("render %s: no surface", item.ID())
	}
	return &fakeRendered{r: r, id: item.ID()}, nil
}

type fakeRendered struct {
	r  *fakeRenderer
	id string
}

func (f *fakeRendered) WaitAssets(context.Context) error {
	return nil
}

func (f *fakeRendered) Capture(context.Context) ([]byte, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()

	attempt := f.r.attempts[f.id]
	f.r.attempts[f.id] = attempt + 1

	script := f.r.captures[f.id]
	if attempt < len(script) {
		return script[attempt], nil
	}
	return goodPayload, nil
}

// memSink collects delivered archives in memory.
type memSink struct {
	mu       sync.Mutex
	names    []string
	archives map[string][]byte
}

func newMemSink() *memSink {
	return &memSink{archives: make(map[string][]byte)}
}

func (s *memSink) Deliver(_ context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.archives[name] = data
	return nil
}

// failingSink refuses delivery of one named archive and accepts the
// rest.
type failingSink struct {
	*memSink
	refuse string
}

func (s *failingSink) Deliver(ctx context.Context, name string, r io.Reader) error {
	if name == s.refuse {
		return fmt.Errorf("deliver %s: disk full", name)
	}
	return s.memSink.Deliver(ctx, name, r)
}

// deadKeepAlive always fails to start.
type deadKeepAlive struct {
	starts int
	stops  int
}

func (k *deadKeepAlive) Start(context.Context) error {
	k.starts++
	return errors.New("audio device unavailable")
}

func (k *deadKeepAlive) Stop() { k.stops++ }

func (s *memSink) zipEntries(t *testing.T, name string) []string {
	t.Helper()
	data, ok := s.archives[name]
	require.True(t, ok, "archive %s was not delivered", name)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

type progressReport struct {
	current, total int
	chunk          export.ChunkInfo
}

type recorder struct {
	mu        sync.Mutex
	progress  []progressReport
	events    []export.Event
	completed int
}

func (r *recorder) options() []export.Option {
	return []export.Option{
		export.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		export.WithProgress(func(current, total int, chunk export.ChunkInfo) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress = append(r.progress, progressReport{current, total, chunk})
		}),
		export.WithNotifier(export.NotifierFunc(func(_ context.Context, evt export.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, evt)
		})),
		export.WithCompletion(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed++
		}),
	}
}

func (r *recorder) eventsOf(t export.EventType) []export.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []export.Event{}
	for _, evt := range r.events {
		if evt.Type == t {
			res = append(res, evt)
		}
	}
	return res
}

func TestSessionSingleItem(t *testing.T) {
	assert := require.New(t)

	rec := new(recorder)
	sink := newMemSink()
	session, err := export.New(testConfig(), newFakeRenderer(), sink, rec.options()...)
	assert.NoError(err)

	assert.NoError(session.Run(context.Background(), makeItems(1)))

	assert.Equal(export.StateCompleted, session.State())
	assert.Equal(1, session.Exported())
	assert.Equal([]progressReport{
		{1, 1, export.ChunkInfo{Current: 1, Total: 1}},
	}, rec.progress)
	assert.Equal(1, rec.completed)

	// Single chunk: plain base name, no part numbering.
	assert.Equal([]string{"cartes.zip"}, sink.names)
	assert.Equal(
		[]string{"Donjon_monster_001_carte-1.png"},
		sink.zipEntries(t, "cartes.zip"),
	)
}

func TestSessionProgressSequence(t *testing.T) {
	assert := require.New(t)

	rec := new(recorder)
	session, err := export.New(testConfig(), newFakeRenderer(), newMemSink(), rec.options()...)
	assert.NoError(err)

	assert.NoError(session.Run(context.Background(), makeItems(7)))

	assert.Len(rec.progress, 7)
	for i, p := range rec.progress {
		assert.Equal(i+1, p.current)
		assert.Equal(7, p.total)
	}
}

func TestSessionChunking(t *testing.T) {
	assert := require.New(t)

	rec := new(recorder)
	sink := newMemSink()
	session, err := export.New(testConfig(), newFakeRenderer(), sink, rec.options()...)
	assert.NoError(err)

	assert.NoError(session.Run(context.Background(), makeItems(85)))

	assert.Equal([]string{
		"cartes_partie1_sur_3.zip",
		"cartes_partie2_sur_3.zip",
		"cartes_partie3_sur_3.zip",
	}, sink.names)

	// Chunks hold exactly the attempted items of their index range;
	// the entry index is the global position.
	first := sink.zipEntries(t, "cartes_partie1_sur_3.zip")
	assert.Len(first, 40)
	assert.Equal("Donjon_monster_001_carte-1.png", first[0])
	assert.Equal("Donjon_monster_040_carte-40.png", first[39])

	last := sink.zipEntries(t, "cartes_partie3_sur_3.zip")
	assert.Len(last, 5)
	assert.Equal("Donjon_monster_081_carte-81.png", last[0])

	assert.Equal(progressReport{
		85, 85, export.ChunkInfo{Current: 3, Total: 3},
	}, rec.progress[len(rec.progress)-1])

	assert.Len(rec.eventsOf(export.EventChunkFlushed), 3)
	assert.Len(rec.eventsOf(export.EventCompleted), 1)
}

func TestSessionRenderFailureKeepsBoundaries(t *testing.T) {
	assert := require.New(t)

	renderer := newFakeRenderer()
	renderer.renderFail["c2"] = true

	cfg := testConfig()
	cfg.ChunkSize = 2

	rec := new(recorder)
	sink := newMemSink()
	session, err := export.New(cfg, renderer, sink, rec.options()...)
	assert.NoError(err)

	assert.NoError(session.Run(context.Background(), makeItems(4)))
	assert.Equal(3, session.Exported())

	// The failed item still counts toward the boundary, so the first
	// chunk closes after two attempts even though it holds one entry.
	assert.Equal([]string{
		"cartes_partie1_sur_2.zip",
		"cartes_partie2_sur_2.zip",
	}, sink.names)
	assert.Equal([]string{
		"Donjon_monster_001_carte-1.png",
	}, sink.zipEntries(t, "cartes_partie1_sur_2.zip"))
	assert.Equal([]string{
		"Donjon_monster_003_carte-3.png",
		"Donjon_monster_004_carte-4.png",
	}, sink.zipEntries(t, "cartes_partie2_sur_2.zip"))

	assert.Len(rec.progress, 4)
}

func TestSessionLostChunk(t *testing.T) {
	assert := require.New(t)

	cfg := testConfig()
	cfg.ChunkSize = 2

	rec := new(recorder)
	sink := &failingSink{memSink: newMemSink(), refuse: "cartes_partie2_sur_3.zip"}
	session, err := export.New(cfg, newFakeRenderer(), sink, rec.options()...)
	assert.NoError(err)

	// A chunk whose delivery fails is lost, the session is not.
	assert.NoError(session.Run(context.Background(), makeItems(5)))
	assert.Equal(export.StateCompleted, session.State())
	assert.Equal(5, session.Exported())

	assert.Equal([]string{
		"cartes_partie1_sur_3.zip",
		"cartes_partie3_sur_3.zip",
	}, sink.names)
	assert.Equal([]string{
		"Donjon_monster_005_carte-5.png",
	}, sink.zipEntries(t, "cartes_partie3_sur_3.zip"))

	flushed := rec.eventsOf(export.EventChunkFlushed)
	assert.Len(flushed, 2)
	assert.Equal("cartes_partie1_sur_3.zip", flushed[0].Filename)
	assert.Equal("cartes_partie3_sur_3.zip", flushed[1].Filename)
	assert.Len(rec.eventsOf(export.EventCompleted), 1)
	assert.Equal(1, rec.completed)
}

func TestSessionKeepAliveFailure(t *testing.T) {
	assert := require.New(t)

	keep := new(deadKeepAlive)
	rec := new(recorder)
	sink := newMemSink()
	opts := append(rec.options(), export.WithKeepAlive(keep))
	session, err := export.New(testConfig(), newFakeRenderer(), sink, opts...)
	assert.NoError(err)

	assert.NoError(session.Run(context.Background(), makeItems(2)))
	assert.Equal(export.StateCompleted, session.State())
	assert.Equal(2, session.Exported())
	assert.Equal(1, keep.starts)
	assert.Equal(1, keep.stops)
}

func TestSessionRetry(t *testing.T) {
	t.Run("retry succeeds", func(t *testing.T) {
		assert := require.New(t)

		renderer := newFakeRenderer()
		renderer.captures["c2"] = [][]byte{tinyPayload, goodPayload}

		rec := new(recorder)
		sink := newMemSink()
		session, err := export.New(testConfig(), renderer, sink, rec.options()...)
		assert.NoError(err)

		assert.NoError(session.Run(context.Background(), makeItems(3)))

		assert.Equal(3, session.Exported())
		assert.Equal(2, renderer.attempts["c2"])
		// Included exactly once.
		assert.Equal([]string{
			"Donjon_monster_001_carte-1.png",
			"Donjon_monster_002_carte-2.png",
			"Donjon_monster_003_carte-3.png",
		}, sink.zipEntries(t, "cartes.zip"))
	})

	t.Run("retry fails", func(t *testing.T) {
		assert := require.New(t)

		renderer := newFakeRenderer()
		renderer.captures["c2"] = [][]byte{tinyPayload, nil}

		rec := new(recorder)
		sink := newMemSink()
		session, err := export.New(testConfig(), renderer, sink, rec.options()...)
		assert.NoError(err)

		assert.NoError(session.Run(context.Background(), makeItems(3)))

		// Exactly one retry, then the item is skipped; the session
		// keeps going and progress is still reported for it.
		assert.Equal(2, renderer.attempts["c2"])
		assert.Equal(2, session.Exported())
		assert.Len(rec.progress, 3)
		assert.Equal([]string{
			"Donjon_monster_001_carte-1.png",
			"Donjon_monster_003_carte-3.png",
		}, sink.zipEntries(t, "cartes.zip"))
	})
}

func TestSessionZeroSuccess(t *testing.T) {
	assert := require.New(t)

	renderer := newFakeRenderer()
	for i := 1; i <= 4; i++ {
		renderer.captures[fmt.Sprintf("c%d", i)] = [][]byte{tinyPayload, tinyPayload}
	}

	rec := new(recorder)
	sink := newMemSink()
	session, err := export.New(testConfig(), renderer, sink, rec.options()...)
	assert.NoError(err)

	assert.NoError(session.Run(context.Background(), makeItems(4)))

	assert.Empty(sink.names)
	assert.Len(rec.eventsOf(export.EventNothingExported), 1)
	assert.Empty(rec.eventsOf(export.EventCompleted))
	assert.Equal(1, rec.completed)
	assert.Equal(0, session.Exported())
}

func TestSessionCancel(t *testing.T) {
	assert := require.New(t)

	rec := new(recorder)
	sink := newMemSink()

	var session *export.Session
	opts := append(rec.options(), export.WithProgress(func(current, _ int, _ export.ChunkInfo) {
		rec.mu.Lock()
		rec.progress = append(rec.progress, progressReport{current: current})
		rec.mu.Unlock()
		if current == 3 {
			session.Cancel()
		}
	}))

	session, err := export.New(testConfig(), newFakeRenderer(), sink, opts...)
	assert.NoError(err)

	err = session.Run(context.Background(), makeItems(50))
	assert.ErrorIs(err, export.ErrCancelled)

	assert.Equal(export.StateCancelled, session.State())
	assert.Len(rec.progress, 3)
	assert.Empty(sink.names)
	assert.Zero(rec.completed)
	assert.Empty(rec.events)
}

func TestSessionContextCancel(t *testing.T) {
	assert := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := new(recorder)
	session, err := export.New(testConfig(), newFakeRenderer(), newMemSink(), rec.options()...)
	assert.NoError(err)

	assert.ErrorIs(session.Run(ctx, makeItems(5)), export.ErrCancelled)
	assert.Empty(rec.progress)
}

func TestSessionFontPreparation(t *testing.T) {
	t.Run("attempted once", func(t *testing.T) {
		assert := require.New(t)

		renderer := newFakeRenderer()
		renderer.fontErr = fmt.Errorf("no such font")

		rec := new(recorder)
		session, err := export.New(testConfig(), renderer, newMemSink(), rec.options()...)
		assert.NoError(err)

		// A font failure is a degraded mode, never a session error.
		assert.NoError(session.Run(context.Background(), makeItems(5)))
		assert.Equal(1, renderer.fontCallCount())
		assert.Equal(5, session.Exported())
	})

	t.Run("timeout", func(t *testing.T) {
		assert := require.New(t)

		renderer := newFakeRenderer()
		renderer.fontDelay = time.Second

		cfg := testConfig()
		cfg.FontTimeout = 10 * time.Millisecond

		rec := new(recorder)
		session, err := export.New(cfg, renderer, newMemSink(), rec.options()...)
		assert.NoError(err)

		assert.NoError(session.Run(context.Background(), makeItems(2)))
		assert.Equal(1, renderer.fontCallCount())
		assert.Equal(2, session.Exported())
	})
}

func TestSessionRunsOnce(t *testing.T) {
	assert := require.New(t)

	session, err := export.New(testConfig(), newFakeRenderer(), newMemSink(),
		export.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.NoError(err)

	assert.NoError(session.Run(context.Background(), makeItems(1)))
	assert.ErrorContains(session.Run(context.Background(), makeItems(1)), "already ran")
}

func TestSessionNoItems(t *testing.T) {
	session, err := export.New(testConfig(), newFakeRenderer(), newMemSink(),
		export.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	require.ErrorContains(t, session.Run(context.Background(), nil), "nothing to export")
}
