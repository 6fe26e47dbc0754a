// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package export implements the batch card export pipeline.
//
// A [Session] walks an ordered queue of items exactly once, renders
// and captures each one, groups the captured bitmaps into fixed-size
// chunks and delivers every chunk as one archive file. The whole
// pipeline is a single logical stream: no two items are ever in
// flight at the same time, which bounds peak memory to one bitmap
// plus one chunk's archive.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the position of a session in its lifecycle.
type State uint8

// All the session states.
const (
	StateIdle State = iota
	StatePreloading
	StateProcessing
	StateFinalizing
	StateCompleted
	StateCancelled
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreloading:
		return "preloading"
	case StateProcessing:
		return "processing"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ErrCancelled is returned by [Session.Run] when the session was
// stopped before reaching the end of the queue.
var ErrCancelled = errors.New("export cancelled")

// ChunkInfo locates the current chunk within the session.
type ChunkInfo struct {
	Current int
	Total   int
}

// ProgressFunc receives a progress report after every attempted
// item, success or failure.
type ProgressFunc func(current, total int, chunk ChunkInfo)

// Option configures a [Session].
type Option func(s *Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithNotifier sets the [Notifier] receiving session events.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithKeepAlive sets the [KeepAlive] held for the session lifetime.
func WithKeepAlive(k KeepAlive) Option {
	return func(s *Session) {
		s.keepAlive = k
	}
}

// WithAccumulator sets the [AccumulatorFactory] creating each
// chunk's archive. The default produces zip files.
func WithAccumulator(fn AccumulatorFactory) Option {
	return func(s *Session) {
		s.newArchive = fn
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Session) {
		s.onProgress = fn
	}
}

// WithCompletion sets a callback invoked once when the session
// reaches its terminal state. It does not fire on cancellation.
func WithCompletion(fn func()) Option {
	return func(s *Session) {
		s.onComplete = fn
	}
}

// Session is the export driver. It owns the queue cursor, the
// current archive and every cross-item value (font preparation
// state, counters, cancellation flag). A session runs once; create a
// new one for each export.
type Session struct {
	cfg      Config
	renderer Renderer
	sink     Sink

	newArchive AccumulatorFactory
	notifier   Notifier
	keepAlive  KeepAlive
	logger     *slog.Logger
	onProgress ProgressFunc
	onComplete func()

	id        uuid.UUID
	state     State
	queue     *queue
	archive   Accumulator
	chunks    int
	exported  int
	cancelled atomic.Bool

	// Only one item may be in flight at a time.
	processing bool

	// Font preparation is attempted at most once per session; the
	// first outcome, success or failure, wins permanently.
	fontsTried bool
	fontsReady bool
}

// New creates an export [Session].
func New(cfg Config, renderer Renderer, sink Sink, options ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}

	s := &Session{
		cfg:        cfg,
		renderer:   renderer,
		sink:       sink,
		id:         uuid.New(),
		state:      StateIdle,
		keepAlive:  noKeepAlive{},
		onProgress: func(_, _ int, _ ChunkInfo) {},
		onComplete: func() {},
	}

	for _, fn := range options {
		fn(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("session", s.id.String()))
	if s.notifier == nil {
		s.notifier = LogNotifier(s.logger)
	}
	if s.newArchive == nil {
		s.newArchive = func() Accumulator { return NewZipAccumulator() }
	}

	return s, nil
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// Exported returns the number of items whose capture succeeded. It
// is a diagnostic value and never blocks progress.
func (s *Session) Exported() int {
	return s.exported
}

// Cancel stops the session. In-flight waits are not preempted but
// their results are discarded; no further progress report, chunk
// flush or completion callback happens once the flag is observed.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Run processes every item in order and returns once the session
// reached a terminal state. It must be called exactly once.
func (s *Session) Run(ctx context.Context, items []Item) error {
	if s.state != StateIdle {
		return fmt.Errorf("session already ran (state %s)", s.state)
	}
	if len(items) == 0 {
		return errors.New("nothing to export")
	}

	s.queue = newQueue(items)
	s.chunks = (len(items) + s.cfg.ChunkSize - 1) / s.cfg.ChunkSize
	s.archive = s.newArchive()
	s.state = StatePreloading

	s.logger.LogAttrs(ctx, slog.LevelInfo, "export session started",
		slog.Int("items", len(items)),
		slog.Int("chunks", s.chunks),
		slog.Int("chunk_size", s.cfg.ChunkSize),
	)

	if err := s.keepAlive.Start(ctx); err != nil {
		// Degraded pacing only, never fatal.
		s.logger.LogAttrs(ctx, slog.LevelWarn, "keep-alive unavailable",
			slog.Any("err", err),
		)
	}
	defer s.keepAlive.Stop()

	s.state = StateProcessing
	for !s.queue.done() {
		if err := s.step(ctx); err != nil {
			s.state = StateCancelled
			return err
		}
	}

	return s.finalize(ctx)
}

// step attempts the item under the cursor and advances it. This is
// the only place where an item is processed; the processing flag
// guards against overlapping invocations.
func (s *Session) step(ctx context.Context) error {
	if err := s.checkCancelled(ctx); err != nil {
		return err
	}
	if s.processing {
		return nil
	}
	s.processing = true
	defer func() { s.processing = false }()

	item, index, ok := s.queue.current()
	if !ok {
		return nil
	}

	if err := s.processItem(ctx, item, index); err != nil {
		return err
	}

	s.queue.advance()

	if !s.queue.done() {
		if err := s.sleep(ctx, s.cfg.StepDelay); err != nil {
			return err
		}
	}
	return nil
}

// processItem runs the full per-item sequence: settle, one-shot font
// preparation, asset barrier, pacing pause, capture with retry,
// archive insertion, progress report and chunk flush. No per-item
// failure escapes this function; only cancellation returns an error.
func (s *Session) processItem(ctx context.Context, item Item, index int) error {
	log := s.logger.With(
		slog.Int("index", index),
		slog.String("item", item.ID()),
	)

	// Let the renderer commit its current item first.
	if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
		return err
	}

	s.prepareFonts(ctx)

	if err := s.checkCancelled(ctx); err != nil {
		return err
	}

	if err := s.attemptItem(ctx, item, index, log); err != nil {
		return err
	}

	if err := s.reportProgress(ctx, index); err != nil {
		return err
	}

	// Chunk boundary: flush, then let the delivery side settle
	// before resuming.
	if (index+1)%s.cfg.ChunkSize == 0 && index+1 < s.queue.len() {
		s.flushChunk(ctx, (index+1)/s.cfg.ChunkSize)
		if err := s.sleep(ctx, s.cfg.InterChunkPause); err != nil {
			return err
		}
	}

	return nil
}

// attemptItem renders and captures one item into the open archive. A
// render or capture failure is logged and absorbed so the item still
// counts toward chunk boundaries; only cancellation returns an error.
func (s *Session) attemptItem(ctx context.Context, item Item, index int, log *slog.Logger) error {
	rendered, err := s.renderer.Render(ctx, item)
	if err != nil {
		log.Error("render failed", slog.Any("err", err))
		return nil
	}

	s.waitAssets(ctx, rendered, s.cfg.AssetTimeout, log)

	if err := s.gcPause(ctx, index); err != nil {
		return err
	}
	if err := s.checkCancelled(ctx); err != nil {
		return err
	}

	data, err := s.capture(ctx, rendered, log)
	switch {
	case err != nil:
		return err
	case data == nil:
		log.Warn("item skipped after failed retry")
	default:
		name := ItemFilename(item, index)
		if err := s.archive.Add(name, data); err != nil {
			log.Error("archive insertion failed", slog.Any("err", err))
		} else {
			s.exported++
			log.Debug("item captured",
				slog.String("file", name),
				slog.Int("size", len(data)),
			)
		}
	}
	return nil
}

// prepareFonts attempts the one-shot font preparation, bounded by
// the font timeout. The loser of the race is ignored; a timeout or
// error only leaves the renderer in its slower fallback mode.
func (s *Session) prepareFonts(ctx context.Context) {
	if s.fontsTried {
		return
	}
	s.fontsTried = true

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FontTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.renderer.PrepareFonts(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn("font preparation failed, falling back to per-item fonts",
				slog.Any("err", err),
			)
			return
		}
		s.fontsReady = true
	case <-ctx.Done():
		s.logger.Warn("font preparation timed out, falling back to per-item fonts")
	}
}

// waitAssets waits for the rendered item's raster assets, bounded by
// the given timeout. Stragglers are treated as failed but never
// block the capture.
func (s *Session) waitAssets(ctx context.Context, rendered Rendered, timeout time.Duration, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := rendered.WaitAssets(ctx); err != nil {
		log.Debug("asset wait incomplete", slog.Any("err", err))
	}
}

// capture rasterizes the rendered item. An absent or undersized
// result triggers exactly one retry after a backoff and a second,
// shorter asset wait. A nil result with a nil error means the item
// failed both attempts and must be skipped.
func (s *Session) capture(ctx context.Context, rendered Rendered, log *slog.Logger) ([]byte, error) {
	data, err := rendered.Capture(ctx)
	if err == nil && len(data) >= s.cfg.MinCaptureBytes {
		return data, nil
	}

	log.Warn("capture failed, retrying",
		slog.Int("size", len(data)),
		slog.Any("err", err),
	)

	if err := s.sleep(ctx, s.cfg.RetryBackoff); err != nil {
		return nil, err
	}
	s.waitAssets(ctx, rendered, s.cfg.RetryAssetTimeout, log)
	if err := s.checkCancelled(ctx); err != nil {
		return nil, err
	}

	data, err = rendered.Capture(ctx)
	if err != nil || len(data) < s.cfg.MinCaptureBytes {
		log.Error("capture failed twice",
			slog.Int("size", len(data)),
			slog.Any("err", err),
		)
		return nil, nil
	}
	return data, nil
}

// gcPause inserts a pacing pause every few items so the runtime can
// reclaim the memory of already archived bitmaps.
func (s *Session) gcPause(ctx context.Context, index int) error {
	if !pauseDue(index, s.cfg.ChunkSize, s.cfg.GCPauseInterval) {
		return nil
	}
	runtime.GC()
	return s.sleep(ctx, s.cfg.GCPauseDuration)
}

// pauseDue reports whether a pacing pause falls on the item at the
// given global index. The position is counted within the chunk, so a
// fresh chunk starts its own interval after the inter-chunk pause.
func pauseDue(index, chunkSize, interval int) bool {
	if interval <= 0 {
		return false
	}
	pos := index % chunkSize
	return pos != 0 && pos%interval == 0
}

// reportProgress fires the progress callback for the attempted item
// at the given index, unless the session was cancelled.
func (s *Session) reportProgress(ctx context.Context, index int) error {
	if err := s.checkCancelled(ctx); err != nil {
		return err
	}
	s.onProgress(index+1, s.queue.len(), ChunkInfo{
		Current: index/s.cfg.ChunkSize + 1,
		Total:   s.chunks,
	})
	return nil
}

// flushChunk delivers the current archive and replaces it with an
// empty one. A serialization failure loses the chunk but never the
// session.
func (s *Session) flushChunk(ctx context.Context, chunk int) {
	archive := s.archive
	s.archive = s.newArchive()

	if archive.Len() == 0 {
		s.logger.Info("empty chunk, nothing to flush", slog.Int("chunk", chunk))
		return
	}

	name := ArchiveName(s.cfg.ArchiveBase, chunk, s.chunks, archive.Ext())
	if err := archive.Flush(ctx, name, s.sink); err != nil {
		s.logger.Error("archive flush failed",
			slog.String("file", name),
			slog.Int("chunk", chunk),
			slog.Any("err", err),
		)
		return
	}

	s.notifier.Notify(ctx, Event{
		Type:     EventChunkFlushed,
		Filename: name,
		Chunk:    chunk,
		Chunks:   s.chunks,
		Exported: s.exported,
		Total:    s.queue.len(),
	})
}

// finalize flushes the last archive, emits the end-of-session event
// and invokes the completion callback.
func (s *Session) finalize(ctx context.Context) error {
	if err := s.checkCancelled(ctx); err != nil {
		s.state = StateCancelled
		return err
	}
	s.state = StateFinalizing

	if s.exported == 0 {
		// Not a partial export: nothing at all was captured.
		s.notifier.Notify(ctx, Event{
			Type:  EventNothingExported,
			Total: s.queue.len(),
		})
		s.state = StateCompleted
		s.onComplete()
		return nil
	}

	s.flushChunk(ctx, s.chunks)

	s.notifier.Notify(ctx, Event{
		Type:     EventCompleted,
		Exported: s.exported,
		Total:    s.queue.len(),
	})
	s.logger.LogAttrs(ctx, slog.LevelInfo, "export session finished",
		slog.Int("exported", s.exported),
		slog.Int("total", s.queue.len()),
	)

	s.state = StateCompleted
	s.onComplete()
	return nil
}

// checkCancelled polls the cancellation flag and the context. It is
// called at every phase transition.
func (s *Session) checkCancelled(ctx context.Context) error {
	if s.cancelled.Load() {
		return ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		s.cancelled.Store(true)
		return ErrCancelled
	}
	return nil
}

// sleep is a cancellable pause.
func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if err := s.checkCancelled(ctx); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return s.checkCancelled(ctx)
	case <-ctx.Done():
		s.cancelled.Store(true)
		return ErrCancelled
	}
}
