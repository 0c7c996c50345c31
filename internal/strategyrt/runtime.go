package strategyrt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stratexec/internal/errs"
	"stratexec/internal/ledger"
	"stratexec/internal/metrics"
)

// RunStatus is a live run's current lifecycle state.
type RunStatus string

const (
	StatusRunning  RunStatus = "running"
	StatusSleeping RunStatus = "sleeping"
	StatusStopped  RunStatus = "stopped"
	StatusErrored  RunStatus = "errored"
)

// StrategyStore is the subset of the Ledger the runtime reads and writes
// strategy/run rows through.
type StrategyStore interface {
	GetStrategy(id string) (*ledger.Strategy, error)
	SetStrategyStatus(id, status string) error
	OpenRun(strategyID, initialCapitalEth, mode, userAddr string, dryRun bool) (string, error)
	CloseRun(runID string) error
	ListActiveStrategies() ([]ledger.Strategy, error)
}

// CapabilityFactory builds the capability surface for one tick of a run,
// bound to that run's own log buffer and rate limiter.
type CapabilityFactory func(runID string, logs *LogBuffer, limiter *RateLimiter) *Capability

// liveRun is one strategy's in-memory scheduling state. All ticks for a
// run serialize behind mu; this is what makes the monotonic per-run trade
// index trivially correct without any distributed locking.
type liveRun struct {
	mu         sync.Mutex
	strategyID string
	runID      string
	status     RunStatus
	logs       *LogBuffer
	limiter    *RateLimiter
	timer      *time.Timer
}

// RuntimeHost encapsulates the runtime's process-wide mutable state — the
// dry-run flag, the live-run table, and the rate-limiter configuration — as
// one explicit value passed to every start/stop/query call, instead of
// package-level globals.
type RuntimeHost struct {
	mu       sync.Mutex
	live     map[string]*liveRun
	store    StrategyStore
	buildCap CapabilityFactory
	dryRun   bool
	mode     string
	userAddr string
	maxReads int
	log      zerolog.Logger
}

// NewRuntimeHost builds a RuntimeHost. maxReads bounds each run's parallel
// market-data reads (0 falls back to the package default of 4). mode is the
// execution mode the configured Executor actually runs trades in
// ("direct", "delegate", or "simulated" when dryRun is set) and userAddr is
// the wallet a delegate-mode run trades on behalf of; both are recorded on
// every Run a Start call opens.
func NewRuntimeHost(store StrategyStore, buildCap CapabilityFactory, dryRun bool, mode, userAddr string, maxReads int, log zerolog.Logger) *RuntimeHost {
	return &RuntimeHost{
		live:     make(map[string]*liveRun),
		store:    store,
		buildCap: buildCap,
		dryRun:   dryRun,
		mode:     mode,
		userAddr: userAddr,
		maxReads: maxReads,
		log:      log.With().Str("component", "strategyrt").Logger(),
	}
}

// Start transitions a strategy Idle → Running: it validates that code is
// present, opens a Run via the Ledger, marks the strategy active, and fires
// the first tick immediately. Starting a strategy that already has a live
// run is refused — exactly-one-active-run-per-strategy is an invariant.
func (h *RuntimeHost) Start(ctx context.Context, strategyID string) error {
	h.mu.Lock()
	if _, exists := h.live[strategyID]; exists {
		h.mu.Unlock()
		return errs.New(errs.KindParameterOutOfRange, "strategy already has an active run")
	}
	h.mu.Unlock()

	strat, err := h.store.GetStrategy(strategyID)
	if err != nil {
		return err
	}
	if strat.SourceText == "" {
		return errs.New(errs.KindVenueNotConfigured, "strategy has no source to run")
	}

	runID, err := h.store.OpenRun(strategyID, "0", h.mode, h.userAddr, h.dryRun)
	if err != nil {
		return err
	}

	run := &liveRun{
		strategyID: strategyID,
		runID:      runID,
		status:     StatusRunning,
		logs:       NewLogBuffer(),
		limiter:    NewRateLimiter(h.maxReads),
	}

	h.mu.Lock()
	h.live[strategyID] = run
	h.mu.Unlock()

	if err := h.store.SetStrategyStatus(strategyID, "active"); err != nil {
		h.log.Error().Err(err).Str("strategy", strategyID).Msg("failed to mark strategy active")
	}

	h.tick(ctx, run, strat)
	return nil
}

// Stop cancels any armed timer and closes the run, marking the strategy
// paused. It is idempotent, and does not interrupt a tick already in
// flight — it waits for that tick to reach its own decision point.
func (h *RuntimeHost) Stop(strategyID string) error {
	h.mu.Lock()
	run, ok := h.live[strategyID]
	h.mu.Unlock()
	if !ok {
		return h.store.SetStrategyStatus(strategyID, "paused")
	}

	run.mu.Lock()
	alreadyDone := run.status == StatusStopped || run.status == StatusErrored
	if run.timer != nil {
		run.timer.Stop()
	}
	if !alreadyDone {
		run.status = StatusStopped
	}
	run.mu.Unlock()

	if alreadyDone {
		return nil
	}

	if err := h.store.CloseRun(run.runID); err != nil {
		return err
	}
	if err := h.store.SetStrategyStatus(strategyID, "paused"); err != nil {
		return err
	}

	h.mu.Lock()
	delete(h.live, strategyID)
	h.mu.Unlock()
	return nil
}

// Status reports a strategy's current live run state, if it has one.
func (h *RuntimeHost) Status(strategyID string) (RunStatus, bool) {
	h.mu.Lock()
	run, ok := h.live[strategyID]
	h.mu.Unlock()
	if !ok {
		return "", false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.status, true
}

// Logs returns a snapshot of a live strategy's rolling log buffer.
func (h *RuntimeHost) Logs(strategyID string) ([]LogEntry, bool) {
	h.mu.Lock()
	run, ok := h.live[strategyID]
	h.mu.Unlock()
	if !ok {
		return nil, false
	}
	return run.logs.Snapshot(), true
}

// ResumeActive enumerates strategies persisted with status active and
// starts each one, tolerating at-least-once redelivery across a process
// restart since every tick re-reads fresh state from the Ledger.
func (h *RuntimeHost) ResumeActive(ctx context.Context) error {
	strategies, err := h.store.ListActiveStrategies()
	if err != nil {
		return err
	}
	for _, s := range strategies {
		if err := h.Start(ctx, s.ID); err != nil {
			h.log.Error().Err(err).Str("strategy", s.ID).Msg("failed to resume strategy at startup")
		}
	}
	return nil
}

// HealthCheck restarts any strategy the store still marks active but which
// has no live run — e.g. after a process crash that never reached the
// status update in finishLocked. Intended to be invoked periodically by a
// supplementary scheduler alongside the interval-driven per-run timers.
func (h *RuntimeHost) HealthCheck(ctx context.Context) {
	strategies, err := h.store.ListActiveStrategies()
	if err != nil {
		h.log.Error().Err(err).Msg("health check failed to list active strategies")
		return
	}
	for _, s := range strategies {
		h.mu.Lock()
		_, live := h.live[s.ID]
		h.mu.Unlock()
		if live {
			continue
		}
		if err := h.Start(ctx, s.ID); err != nil {
			h.log.Error().Err(err).Str("strategy", s.ID).Msg("health check failed to restart strategy")
		}
	}
}

// tick runs exactly one invocation of the strategy's program to completion.
// It must not be preempted mid-tick; run.mu enforces that ticks for this
// run are strictly serialized, including the timer-armed continuation.
func (h *RuntimeHost) tick(ctx context.Context, run *liveRun, strat *ledger.Strategy) {
	run.mu.Lock()
	defer run.mu.Unlock()

	if run.status == StatusStopped || run.status == StatusErrored {
		return
	}

	decls, err := ParseParamSchema(strat.ParamSchema)
	if err != nil {
		h.crashLocked(run, err)
		return
	}
	values, err := ParseParamValues(strat.ParamValues)
	if err != nil {
		h.crashLocked(run, err)
		return
	}
	params, err := LoadParams(decls, values)
	if err != nil {
		h.crashLocked(run, err)
		return
	}
	prog, err := ParseProgram(strat.SourceText)
	if err != nil {
		h.crashLocked(run, err)
		return
	}

	cap := h.buildCap(run.runID, run.logs, run.limiter)
	interp := NewInterpreter(cap, params)

	tickErr := runProgramSafely(ctx, interp, prog)
	if tickErr != nil {
		h.crashLocked(run, tickErr)
		return
	}
	metrics.RecordTick(run.strategyID, "ok")

	interval, rescheduled := cap.Scheduled()
	if !rescheduled {
		h.finishLocked(run, StatusStopped)
		return
	}

	d, _, err := ParseInterval(interval)
	if err != nil {
		h.crashLocked(run, err)
		return
	}

	run.status = StatusSleeping
	run.timer = time.AfterFunc(d, func() { h.continueAfterSleep(run) })
}

// runProgramSafely recovers a panicking tick into an error so one
// misbehaving strategy can never take down the host process.
func runProgramSafely(ctx context.Context, interp *Interpreter, prog *Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return interp.Run(ctx, prog)
}

func (h *RuntimeHost) continueAfterSleep(run *liveRun) {
	h.mu.Lock()
	stillLive := h.live[run.strategyID] == run
	h.mu.Unlock()
	if !stillLive {
		return
	}

	strat, err := h.store.GetStrategy(run.strategyID)
	if err != nil {
		run.mu.Lock()
		h.crashLocked(run, err)
		run.mu.Unlock()
		return
	}
	run.mu.Lock()
	run.status = StatusRunning
	run.mu.Unlock()

	h.tick(context.Background(), run, strat)
}

// crashLocked ends run with status Errored. Caller must hold run.mu.
func (h *RuntimeHost) crashLocked(run *liveRun, err error) {
	run.logs.Append(LogError, err.Error(), time.Now())
	h.log.Error().Err(err).Str("strategy", run.strategyID).Msg("tick failed, ending run")
	metrics.RecordTick(run.strategyID, "error")
	h.finishLocked(run, StatusErrored)
}

// finishLocked closes the run and removes it from the live table. Caller
// must hold run.mu.
func (h *RuntimeHost) finishLocked(run *liveRun, status RunStatus) {
	if run.timer != nil {
		run.timer.Stop()
	}
	run.status = status

	if err := h.store.CloseRun(run.runID); err != nil {
		h.log.Error().Err(err).Str("run", run.runID).Msg("failed to close run")
	}
	finalStatus := "paused"
	if status == StatusErrored {
		finalStatus = "error"
	}
	if err := h.store.SetStrategyStatus(run.strategyID, finalStatus); err != nil {
		h.log.Error().Err(err).Str("strategy", run.strategyID).Msg("failed to update strategy status")
	}
	metrics.RunStatus.WithLabelValues(run.runID, string(status)).Set(1)

	h.mu.Lock()
	delete(h.live, run.strategyID)
	h.mu.Unlock()
}
