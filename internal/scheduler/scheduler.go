// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scheduler runs one conversion job per source on a bounded worker
// pool and merges each job's stats fragment into the run total. A failing
// job is recorded as an error against its source type; cancelling the
// context aborts the whole run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/notemill/internal/artifact"
	"github.com/pdiddy/notemill/internal/cache"
	"github.com/pdiddy/notemill/internal/stats"
)

var (
	// ErrNoSources is returned when Run is called with nothing to do.
	ErrNoSources = errors.New("no sources to process")
	// ErrInvalidSource wraps a source's validation failure.
	ErrInvalidSource = errors.New("invalid source")
	// ErrAlreadyStarted is returned when Run is called twice on one Scheduler.
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Source is one independent input tree, such as an exported notes folder.
// Convert runs synchronously inside a single worker.
type Source interface {
	// Type names the kind of source; stats are broken down by it.
	Type() string
	// Name identifies this particular source in logs and errors. Sources of
	// one type must have distinct names within a run.
	Name() string
	// Validate checks that the source can be processed before any work starts.
	Validate() error
	// Convert processes the source and returns its stats fragment. A
	// fragment returned together with an error is still merged.
	Convert(ctx context.Context, env *Env) (*stats.Run, error)
}

// Env is the shared state handed to every job.
type Env struct {
	Cache     *cache.Store
	Oracle    *cache.Oracle
	Artifacts *artifact.Registry
	Log       *slog.Logger
	// Out receives per-unit status lines. Writes are serialized.
	Out io.Writer
}

// State is the lifecycle stage of a Scheduler.
type State int

const (
	// NotStarted is the state of a new Scheduler.
	NotStarted State = iota
	// Validating means sources are being checked before any work starts.
	Validating
	// Running means jobs are executing on the worker pool.
	Running
	// Completed means every job finished and the stats were merged.
	Completed
	// Failed means validation failed or the run was cancelled.
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Validating:
		return "validating"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Scheduler runs sources concurrently. Each Scheduler performs one run.
type Scheduler struct {
	env     Env
	workers int
	metrics *Metrics
	log     *slog.Logger

	mu    sync.Mutex
	state State
}

// New returns a Scheduler that hands env to every job. workers caps the pool
// size; zero or less means one worker per available CPU.
func New(env Env, workers int) *Scheduler {
	if env.Log == nil {
		env.Log = slog.Default()
	}
	if env.Out == nil {
		env.Out = io.Discard
	}
	env.Out = &lockedWriter{w: env.Out}
	return &Scheduler{
		env:     env,
		workers: workers,
		metrics: NewMetrics(),
		log:     env.Log,
	}
}

// State returns the current lifecycle stage.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Metrics returns the scheduler's metrics.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// Run validates all sources, then converts them on the worker pool and
// returns the merged stats. Job failures are recorded in the stats; only
// validation failures and cancellation are returned as errors.
func (s *Scheduler) Run(ctx context.Context, sources []Source) (*stats.Run, error) {
	s.mu.Lock()
	if s.state != NotStarted {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	s.state = Validating
	s.mu.Unlock()

	if err := validate(sources); err != nil {
		s.setState(Failed)
		return nil, err
	}

	s.setState(Running)
	workers := poolSize(len(sources), s.workers)
	s.log.Info("starting run", "sources", len(sources), "workers", workers)

	fragments := make(chan *stats.Run, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, src := range sources {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			frag, err := s.runJob(gctx, src)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if frag == nil {
				frag = stats.New()
			}
			if err != nil {
				s.log.Error("source failed", "source", src.Name(), "type", src.Type(), "error", err)
				frag.AddError(fmt.Sprintf("%s: %v", src.Name(), err), src.Type())
			}
			fragments <- frag
			return nil
		})
	}

	waitErr := g.Wait()
	close(fragments)
	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		s.setState(Failed)
		return nil, fmt.Errorf("run aborted: %w", waitErr)
	}

	total := stats.New()
	for frag := range fragments {
		total.Merge(frag)
	}
	s.setState(Completed)
	return total, nil
}

// runJob converts one source, turning a panic into an error.
func (s *Scheduler) runJob(ctx context.Context, src Source) (frag *stats.Run, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		s.metrics.observe(src.Type(), time.Since(start), frag, err)
	}()

	s.log.Debug("source started", "source", src.Name(), "type", src.Type())
	return src.Convert(ctx, &s.env)
}

func validate(sources []Source) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	seen := make(map[[2]string]bool, len(sources))
	for _, src := range sources {
		if src.Type() == "" {
			return fmt.Errorf("%w: %s: empty source type", ErrInvalidSource, src.Name())
		}
		id := [2]string{src.Type(), src.Name()}
		if seen[id] {
			return fmt.Errorf("%w: %s: duplicate %s source", ErrInvalidSource, src.Name(), src.Type())
		}
		seen[id] = true
		if err := src.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSource, src.Name(), err)
		}
	}
	return nil
}

// poolSize returns min(jobs, limit), where a non-positive limit means the
// number of usable CPUs.
func poolSize(jobs, limit int) int {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return max(1, min(jobs, limit))
}

// lockedWriter serializes writes from concurrent jobs so status lines do not
// interleave.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
