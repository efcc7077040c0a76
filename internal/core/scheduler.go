package core

// scheduler.go drives Fetch -> Parse -> Publish sync cycles.
//
// A cycle moves through idle -> fetching -> parsing -> publishing -> idle, or
// fetching|parsing -> failed -> idle. At most one cycle runs at a time: the
// periodic timer, RunOnce and ForceRefresh all share one singleflight key, so
// a request arriving mid-cycle joins the running cycle instead of starting a
// second download.
//
// Failures are never fatal. They are recorded in the snapshot metadata, the
// previously published Summary stays visible, and the next tick retries.

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/proddash/internal/snapshot"
	"github.com/JonMunkholm/proddash/internal/summary"
)

// Fetcher downloads the workbook behind a share link.
type Fetcher interface {
	Fetch(ctx context.Context, shareURL string) ([]byte, error)
}

// Parser turns workbook bytes into a Summary.
type Parser interface {
	Parse(data []byte, file string, sel summary.Selector) (*summary.Summary, error)
}

// SyncConfig holds what a cycle needs to know about the remote workbook.
type SyncConfig struct {
	ShareURL string
	FileName string // logical workbook name, diagnostics and export only
	Selector summary.Selector
	Interval time.Duration // default: 1h
}

// RefreshStatus is the answer to a refresh request.
type RefreshStatus string

const (
	RefreshAccepted  RefreshStatus = "accepted"
	RefreshCoalesced RefreshStatus = "coalesced"
)

// CycleResult reports the outcome of the cycle a caller ran or joined.
type CycleResult struct {
	CycleID     string        `json:"cycle_id"`
	Success     bool          `json:"success"`
	Coalesced   bool          `json:"coalesced"` // joined a cycle started by another caller
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	ContentHash string        `json:"content_hash,omitempty"`
	Unchanged   bool          `json:"unchanged"` // same bytes as the previous summary
}

const cycleKey = "sync-cycle"

// Syncer runs sync cycles against one SnapshotStore.
type Syncer struct {
	cfg     SyncConfig
	fetcher Fetcher
	parser  Parser
	store   *snapshot.Store
	clock   Clock
	logger  *slog.Logger

	group  singleflight.Group
	active atomic.Bool
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithClock injects a clock, mainly for tests.
func WithClock(c Clock) SyncerOption {
	return func(s *Syncer) { s.clock = c }
}

// WithLogger sets the logger. The component attribute is added.
func WithLogger(l *slog.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = l }
}

// NewSyncer creates a Syncer that publishes into store.
func NewSyncer(cfg SyncConfig, f Fetcher, p Parser, store *snapshot.Store, opts ...SyncerOption) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	s := &Syncer{
		cfg:     cfg,
		fetcher: f,
		parser:  p,
		store:   store,
		clock:   SystemClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "sync")
	return s
}

// Start runs a cycle immediately, then one every interval until ctx is done.
// A non-positive interval uses the configured one.
func (s *Syncer) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.cfg.Interval
	}
	s.logger.Info("sync scheduler started", "interval", interval.String())

	// Ticks are anchored at startup, not at the end of the first cycle.
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	s.scheduleNext(s.clock.Now().Add(interval))

	// Run immediately on startup so the dashboard has data before the first tick.
	s.runScheduled(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			s.store.UpdateMeta(func(m *snapshot.SyncMetadata) { m.NextScheduled = nil })
			return
		case tick := <-ticker.C():
			s.scheduleNext(tick.Add(interval))
			s.runScheduled(ctx)
		}
	}
}

// scheduleNext records the next tick. Forced refreshes do not move it.
func (s *Syncer) scheduleNext(at time.Time) {
	s.store.UpdateMeta(func(m *snapshot.SyncMetadata) { m.NextScheduled = &at })
}

func (s *Syncer) runScheduled(ctx context.Context) {
	// Outcomes are logged and recorded by the cycle itself.
	_, _ = s.join(ctx, "scheduled")
}

// RunOnce runs one cycle, or joins the one in flight.
func (s *Syncer) RunOnce(ctx context.Context) (CycleResult, error) {
	return s.join(ctx, "run_once")
}

// ForceRefresh runs a cycle outside the schedule. If a cycle is already in
// flight the caller joins it and receives its outcome. Cancelling ctx stops
// the wait, not the cycle.
func (s *Syncer) ForceRefresh(ctx context.Context) (CycleResult, error) {
	return s.join(ctx, "forced")
}

// TriggerRefresh starts a cycle in the background without waiting.
func (s *Syncer) TriggerRefresh() RefreshStatus {
	if s.InFlight() {
		return RefreshCoalesced
	}
	go func() {
		_, _ = s.join(context.Background(), "triggered")
	}()
	return RefreshAccepted
}

// InFlight reports whether a cycle is currently running.
func (s *Syncer) InFlight() bool {
	return s.active.Load()
}

func (s *Syncer) join(ctx context.Context, trigger string) (CycleResult, error) {
	id := uuid.NewString()
	cycleCtx := context.WithoutCancel(ctx)

	ch := s.group.DoChan(cycleKey, func() (any, error) {
		return s.runCycle(cycleCtx, id, trigger)
	})

	select {
	case res := <-ch:
		r, _ := res.Val.(CycleResult)
		r.Coalesced = r.CycleID != id
		return r, res.Err
	case <-ctx.Done():
		return CycleResult{}, ctx.Err()
	}
}

func (s *Syncer) runCycle(ctx context.Context, id, trigger string) (CycleResult, error) {
	s.active.Store(true)
	defer s.active.Store(false)

	start := s.clock.Now()
	logger := s.logger.With("cycle_id", id, "trigger", trigger)
	res := CycleResult{CycleID: id, StartedAt: start}

	s.store.UpdateMeta(func(m *snapshot.SyncMetadata) {
		m.LastAttempt = &start
		m.InProgress = true
		m.State = snapshot.StateFetching
		m.CycleID = id
	})
	logger.Info("sync cycle started")

	data, err := s.fetcher.Fetch(ctx, s.cfg.ShareURL)
	if err != nil {
		return s.fail(res, "fetch", err, logger)
	}
	s.setState(snapshot.StateParsing)

	sum, err := s.parser.Parse(data, s.cfg.FileName, s.cfg.Selector)
	if err != nil {
		return s.fail(res, "parse", err, logger)
	}

	prev, _ := s.store.Read()
	if err := checkWeekScheme(prev, sum, s.cfg.FileName); err != nil {
		return s.fail(res, "parse", err, logger)
	}
	s.setState(snapshot.StatePublishing)

	end := s.clock.Now()
	res.Success = true
	res.Duration = end.Sub(start)
	res.ContentHash = sum.ContentHash
	res.Unchanged = prev.ContentHash != "" && prev.ContentHash == sum.ContentHash

	s.store.PublishWith(sum, data, func(m *snapshot.SyncMetadata) {
		m.LastSuccess = &end
		m.LastError = nil
		m.LastErrorCode = ""
		m.InProgress = false
		m.State = snapshot.StateIdle
		m.ConsecutiveFailures = 0
		m.LastDuration = res.Duration
		m.Cycles++
	})

	logger.Info("sync cycle completed",
		"bytes", len(data),
		"rows", rowCount(sum),
		"unchanged", res.Unchanged,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// fail records a failed cycle. The published Summary is left untouched.
func (s *Syncer) fail(res CycleResult, stage string, err error, logger *slog.Logger) (CycleResult, error) {
	end := s.clock.Now()
	res.Duration = end.Sub(res.StartedAt)
	msg := err.Error()
	code := MapError(err).Code

	// The state stays failed until the next attempt starts.
	s.store.UpdateMeta(func(m *snapshot.SyncMetadata) {
		m.LastError = &msg
		m.LastErrorCode = code
		m.InProgress = false
		m.State = snapshot.StateFailed
		m.ConsecutiveFailures++
		m.LastDuration = res.Duration
		m.Cycles++
	})

	logger.Error("sync cycle failed",
		"stage", stage,
		"error", err,
		"error_code", code,
		"consecutive_failures", s.store.Meta().ConsecutiveFailures,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, err
}

func (s *Syncer) setState(state snapshot.CycleState) {
	s.store.UpdateMeta(func(m *snapshot.SyncMetadata) { m.State = state })
}

// checkWeekScheme rejects a workbook whose week identifiers switched format
// relative to the published Summary. There is no safe mapping between
// schemes, so the old Summary stays until the sheet is fixed.
func checkWeekScheme(prev, next *summary.Summary, file string) error {
	was, now := prev.WeekScheme(), next.WeekScheme()
	if was == summary.SchemeNone || now == summary.SchemeNone || was == now {
		return nil
	}
	return &summary.SchemaError{
		File:   file,
		Err:    summary.ErrWeekScheme,
		Detail: fmt.Sprintf("published summary uses %s weeks, new workbook uses %s", was, now),
	}
}

func rowCount(s *summary.Summary) int {
	n := 0
	for _, sh := range s.Bases {
		n += len(sh.Rows)
	}
	return n
}
