// Package worker implements the single-threaded per-request pipeline that
// ties every other component together: admission, cross-process locking,
// model loading, voice resolution, chunked generation, WAV assembly, and
// ordered playback.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ManuGH/xg2g/internal/chunk"
	"github.com/ManuGH/xg2g/internal/coordination"
	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/metrics"
	"github.com/ManuGH/xg2g/internal/model"
	"github.com/ManuGH/xg2g/internal/playback"
	"github.com/ManuGH/xg2g/internal/resource"
	"github.com/ManuGH/xg2g/internal/voice"
	wavfile "github.com/ManuGH/xg2g/internal/wav"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// dequeueTimeout bounds how long the run loop waits for a new item before
// checking whether the model has gone idle.
const dequeueTimeout = 5 * time.Second

// idleWaitStep is how long the admission retry loop sleeps between
// can_allocate checks before re-evaluating.
const idleWaitStep = 200 * time.Millisecond

// estimatedGenerateMB is a conservative fixed estimate of the additional
// memory one in-flight generation consumes, used only for the admission
// projection; the model itself reports no real figure through Handle.
const estimatedGenerateMB = 512

// Request is one /generate call's parsed, validated body.
type Request struct {
	Text          string
	VoicePath     string
	VoiceName     string
	CorrelationID string
}

// item is a request paired with the in-process playback ticket issued for
// it at submission time, so the caller can report that ticket immediately.
type item struct {
	req         Request
	ticket      uint64
	submittedAt time.Time
}

// Worker is the single consumer of the request queue. Exactly one Run
// goroutine must be active at a time.
type Worker struct {
	coord    *coordination.Coordinator
	resource *resource.Monitor
	loader   model.Loader
	catalog  *voice.Catalog
	order    *playback.Order

	lockTimeout     time.Duration
	idleUnloadAfter time.Duration
	tempDir         string

	queue chan item

	handle       model.Handle
	lastActivity time.Time
	modelLoaded  atomic.Bool
}

// ModelLoaded reports whether a model handle is currently resident. Safe
// to call from any goroutine, including the RPC layer's /status handler,
// while Run's single consumer goroutine owns the handle itself.
func (w *Worker) ModelLoaded() bool {
	return w.modelLoaded.Load()
}

// Pending reports how many requests are currently queued and not yet
// dequeued by Run. Used by the lifecycle's shutdown sequence to bound how
// long it waits for the queue to drain before cancelling Run outright.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// Config collects Worker's construction-time dependencies.
type Config struct {
	Coordinator     *coordination.Coordinator
	Resource        *resource.Monitor
	Loader          model.Loader
	Catalog         *voice.Catalog
	LockTimeout     time.Duration
	IdleUnloadAfter time.Duration
	TempDir         string
	QueueCapacity   int
}

// New constructs a Worker. Run must be called to start processing.
func New(cfg Config) *Worker {
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 256
	}
	return &Worker{
		coord:           cfg.Coordinator,
		resource:        cfg.Resource,
		loader:          cfg.Loader,
		catalog:         cfg.Catalog,
		order:           playback.NewOrder(),
		lockTimeout:     cfg.LockTimeout,
		idleUnloadAfter: cfg.IdleUnloadAfter,
		tempDir:         tempDir,
		queue:           make(chan item, capacity),
	}
}

// Submit validates req, issues its playback ticket, and enqueues it for
// processing. It returns as soon as the item is queued, never waiting on
// generation or playback — matching the RPC layer's "queued" response
// contract. Submit blocks only if the queue is at capacity, which is the
// backpressure the spec allows in place of an unbounded queue.
func (w *Worker) Submit(ctx context.Context, req Request) (uint64, error) {
	if strings.TrimSpace(req.Text) == "" {
		return 0, newError(KindInputInvalid, errors.New("text must not be empty"))
	}

	ticket := w.order.Issue()

	select {
	case w.queue <- item{req: req, ticket: ticket, submittedAt: time.Now()}:
		return ticket, nil
	case <-ctx.Done():
		w.order.FinishTurn()
		return 0, ctx.Err()
	}
}

// Run consumes the queue until ctx is cancelled, processing one request at
// a time. It dequeues with a timeout so it can periodically check whether
// an idle-loaded model should be dropped.
func (w *Worker) Run(ctx context.Context) {
	logger := log.WithComponent("worker")

	for {
		select {
		case <-ctx.Done():
			w.unloadModel(logger)
			return
		case it := <-w.queue:
			w.process(ctx, it)
		case <-time.After(dequeueTimeout):
			w.maybeIdleUnload(logger)
		}
	}
}

// process runs the full per-request pipeline described by the coordination
// core's design: admission, system lock, model load, voice resolution,
// chunked generation, WAV assembly, and ordered playback — all inside the
// system lock scope, per the chosen blocking-playback strategy.
func (w *Worker) process(ctx context.Context, it item) {
	logger := log.WithComponent("worker").With().
		Uint64(log.FieldTicketID, it.ticket).
		Str(log.FieldCorrelationID, correlationID(it.req)).
		Logger()

	started := time.Now()
	logger.Debug().Dur(log.FieldWaitMillis, started.Sub(it.submittedAt)).Msg("dequeued request")
	defer func() {
		metrics.GenerateLatencySeconds.Observe(time.Since(started).Seconds())
	}()

	if !w.awaitAdmission(ctx) {
		w.order.FinishTurn()
		metrics.RecordGenerateOutcome("error")
		return
	}

	ranLocked := false
	err := w.coord.WithInferenceLock(ctx, w.lockTimeout, func(ctx context.Context) error {
		ranLocked = true
		return w.runLocked(ctx, it, logger)
	})
	if err != nil {
		// runLocked finishes the turn itself on every path it returns from.
		if !ranLocked {
			w.order.FinishTurn()
		}
		if errors.Is(err, coordination.ErrTimeout) {
			logger.Warn().Err(err).Msg("timed out waiting for the coordination lock")
			metrics.RecordGenerateOutcome("error")
			return
		}
		logger.Warn().Err(err).Msg("request failed")
		metrics.RecordGenerateOutcome("error")
		return
	}
	metrics.RecordGenerateOutcome("ok")
}

// awaitAdmission blocks, retrying in place, until the resource monitor
// judges the estimated additional allocation safe or ctx is cancelled.
func (w *Worker) awaitAdmission(ctx context.Context) bool {
	if w.resource == nil {
		return true
	}
	for !w.resource.CanAllocate(estimatedGenerateMB) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(idleWaitStep):
		}
	}
	return true
}

// runLocked executes pipeline steps 3 through 10 while the caller holds
// the exclusive system lock.
func (w *Worker) runLocked(ctx context.Context, it item, logger zerolog.Logger) error {
	if err := w.ensureModelLoaded(ctx); err != nil {
		w.order.FinishTurn()
		return newError(KindModelUnavailable, err)
	}

	res, err := w.catalog.Resolve(ctx, w.handle, model.VoiceSource{Path: it.req.VoicePath, Name: it.req.VoiceName})
	if err != nil {
		w.order.FinishTurn()
		return newError(KindVoiceResolutionFailed, err)
	}
	defer res.Cleanup()

	chunks := chunk.Split(it.req.Text)
	if len(chunks) == 0 {
		w.order.FinishTurn()
		return newError(KindInputInvalid, errors.New("chunking produced no content"))
	}

	var segments [][]float32
	for _, c := range chunks {
		samples, err := w.handle.Generate(ctx, res.State, c)
		if err != nil {
			logger.Warn().Err(err).Msg("chunk generation failed, continuing")
			continue
		}
		if len(samples) > 0 {
			segments = append(segments, samples)
		}
	}
	if len(segments) == 0 {
		w.order.FinishTurn()
		return newError(KindModelUnavailable, errors.New("no chunk produced audio"))
	}

	assembled := assemble(segments)

	wavPath := filepath.Join(w.tempDir, "ttsd-"+uuid.NewString()+".wav")
	if err := wavfile.WriteFile(wavPath, assembled, w.handle.SampleRate()); err != nil {
		w.order.FinishTurn()
		return newError(KindModelUnavailable, fmt.Errorf("persist audio: %w", err))
	}

	w.order.WaitTurn(it.ticket)
	playErr := playback.Play(ctx, wavPath)
	os.Remove(wavPath)
	w.order.FinishTurn()

	if playErr != nil {
		logger.Warn().Err(playErr).Msg("playback failed")
		return newError(KindPlaybackFailed, playErr)
	}
	return nil
}

// ensureModelLoaded lazily loads the model handle and refreshes the
// idle-unload clock.
func (w *Worker) ensureModelLoaded(ctx context.Context) error {
	if w.handle != nil {
		w.lastActivity = time.Now()
		return nil
	}
	h, err := w.loader(ctx)
	if err != nil {
		metrics.RecordModelLoad("error")
		return err
	}
	w.handle = h
	w.lastActivity = time.Now()
	w.modelLoaded.Store(true)
	metrics.RecordModelLoad("ok")
	metrics.SetModelLoaded(true)
	return nil
}

// maybeIdleUnload drops the model handle once it has sat unused for
// longer than idleUnloadAfter.
func (w *Worker) maybeIdleUnload(logger zerolog.Logger) {
	if w.handle == nil {
		return
	}
	if time.Since(w.lastActivity) <= w.idleUnloadAfter {
		return
	}
	w.unloadModel(logger)
	metrics.ModelIdleUnloadsTotal.Inc()
}

func (w *Worker) unloadModel(logger zerolog.Logger) {
	if w.handle == nil {
		return
	}
	if err := w.handle.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close model handle cleanly")
	}
	w.handle = nil
	w.modelLoaded.Store(false)
	metrics.SetModelLoaded(false)
}

func correlationID(req Request) string {
	if req.CorrelationID != "" {
		return req.CorrelationID
	}
	return uuid.NewString()
}

// assemble concatenates per-chunk audio segments along the time axis.
func assemble(segments [][]float32) []float32 {
	n := 0
	for _, s := range segments {
		n += len(s)
	}
	out := make([]float32, 0, n)
	for _, s := range segments {
		out = append(out, s...)
	}
	return out
}
