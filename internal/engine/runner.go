// Package engine is the host scheduler: it keeps the queue of pending operations, presents it to
// every chain plugin once per tick, and routes the canonical events that fall out to storage,
// rules and sinks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devblac/ibc-watch/internal/config"
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/message"
	"github.com/devblac/ibc-watch/internal/metrics"
	"github.com/devblac/ibc-watch/internal/rpcerr"
	"github.com/devblac/ibc-watch/internal/sink"
	"github.com/devblac/ibc-watch/internal/storage"
	"github.com/devblac/ibc-watch/internal/vm"
	"github.com/google/uuid"
)

// Plugin is a named handler of calls, one per watched chain.
type Plugin interface {
	message.Handler
	Name() string
}

// Options tunes a Runner.
type Options struct {
	// Concurrency bounds concurrent dispatches within one plugin pass.
	Concurrency int
	// DryRun stores events and evaluates rules without sending.
	DryRun bool
	// RetryDelay holds back an operation whose calls all failed or were not ready for this long
	// before presenting it again. Zero retries on the next tick.
	RetryDelay time.Duration
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

type item struct {
	id      uuid.UUID
	op      message.Op
	retryAt time.Time
}

type ruleExec struct {
	rule    config.Rule
	preds   []Predicate
	ttl     time.Duration
	limiter *TokenBucket
}

// Runner wires plugins, storage, predicates, dedupe, and sinks.
type Runner struct {
	store   *storage.Store
	sinks   map[string]sink.Sender
	rules   []ruleExec
	plugins []Plugin
	limit   int
	dryRun  bool
	retry   time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
	nowFunc func() time.Time

	mu    sync.Mutex
	queue []item
}

// NewRunner builds a runner for the provided rules, plugins, and sinks.
func NewRunner(store *storage.Store, rules []config.Rule, plugins []Plugin, sinks map[string]sink.Sender, opts Options) (*Runner, error) {
	execs := make([]ruleExec, 0, len(rules))
	for _, r := range rules {
		preds, err := CompilePredicates(r.Where)
		if err != nil {
			return nil, fmt.Errorf("rule %s predicates: %w", r.ID, err)
		}
		var ttl time.Duration
		if r.Dedupe != nil && r.Dedupe.TTL != "" {
			if d, err := time.ParseDuration(r.Dedupe.TTL); err == nil {
				ttl = d
			}
		}
		var limiter *TokenBucket
		if r.RateLimit != nil {
			limiter = NewTokenBucket(r.RateLimit.Capacity, r.RateLimit.PerSecond)
		}
		execs = append(execs, ruleExec{rule: r, preds: preds, ttl: ttl, limiter: limiter})
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:   store,
		sinks:   sinks,
		rules:   execs,
		plugins: plugins,
		limit:   opts.Concurrency,
		dryRun:  opts.DryRun,
		retry:   opts.RetryDelay,
		log:     log,
		metrics: opts.Metrics,
		nowFunc: time.Now,
	}, nil
}

// Enqueue adds independent operations to the queue.
func (r *Runner) Enqueue(ops ...message.Op) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(ops))
	for _, op := range ops {
		id := uuid.New()
		r.queue = append(r.queue, item{id: id, op: op})
		ids = append(ids, id)
	}
	return ids
}

// Pending returns the number of queued operations.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Run ticks until ctx is done. It sleeps for interval only after a tick that made no progress.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	for {
		progressed, err := r.Tick(ctx)
		if err != nil {
			return err
		}
		if progressed {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// Tick presents the queue to every plugin once, then reduces the queue and handles the events it
// yields. Failed calls stay queued, except defects, which abort their branch. An operation that
// only failed or waited is held back for the retry delay.
func (r *Runner) Tick(ctx context.Context) (bool, error) {
	now := r.nowFunc()
	r.mu.Lock()
	var items, held []item
	for _, it := range r.queue {
		if it.retryAt.After(now) {
			held = append(held, it)
			continue
		}
		items = append(items, it)
	}
	r.queue = nil
	r.mu.Unlock()

	batch := make([]message.Op, len(items))
	for i, it := range items {
		batch[i] = it.op
	}

	batch, progressed, stalled, err := r.passes(ctx, batch)
	if err != nil {
		r.mu.Lock()
		r.queue = append(append(items, held...), r.queue...)
		r.mu.Unlock()
		return false, err
	}

	var next []item
	for i, op := range batch {
		rest, data, done := vm.Reduce(op)
		for _, ev := range data {
			if err := r.handleEvent(ctx, ev); err != nil {
				r.metrics.Errors()
				r.log.Error("handle event", "chain_id", ev.ChainID.String(), "event", ev.Event.EventName(), "error", err)
			}
		}
		if done {
			continue
		}
		var retryAt time.Time
		if stalled[i] && r.retry > 0 {
			retryAt = now.Add(r.retry)
		}
		parts := vm.Split(rest)
		if len(parts) == 1 {
			next = append(next, item{id: items[i].id, op: parts[0], retryAt: retryAt})
			continue
		}
		for _, p := range parts {
			next = append(next, item{id: uuid.New(), op: p, retryAt: retryAt})
		}
	}

	r.mu.Lock()
	r.queue = append(append(next, held...), r.queue...)
	r.mu.Unlock()
	return progressed, nil
}

// passes runs one pass per plugin over batch. stalled marks the batch elements that had failed or
// deferred calls and no call of theirs completed.
func (r *Runner) passes(ctx context.Context, batch []message.Op) ([]message.Op, bool, map[int]bool, error) {
	progressed := false
	moved, waiting := map[int]bool{}, map[int]bool{}

	var orphans []vm.Indexed[message.Call, message.Data]
	for i, root := range batch {
		for _, f := range vm.Frontier(root) {
			call, _ := f.Op.Call()
			if !r.claimed(call) {
				r.log.Warn("no plugin handles call, dropping it", "call", fmt.Sprint(call))
				orphans = append(orphans, vm.Indexed[message.Call, message.Data]{Path: append(vm.Path{i}, f.Path...), Op: message.Noop()})
				moved[i] = true
			}
		}
	}
	if len(orphans) > 0 {
		var err error
		if batch, err = vm.Apply(batch, orphans); err != nil {
			return nil, false, nil, fmt.Errorf("drop unclaimed calls: %w", err)
		}
		progressed = true
	}

	for _, p := range r.plugins {
		res := vm.RunPass(ctx, message.Handler(p), batch, vm.PassOptions{Limit: r.limit})
		r.metrics.Pass(p.Name())
		r.metrics.CallsDispatched(p.Name(), len(res.Ready))

		updates := res.Ready
		for _, f := range res.Failed {
			if vm.IsDefect(f.Err) {
				r.metrics.CallFailed(p.Name(), "defect")
				r.log.Error("aborting branch", "plugin", p.Name(), "path", f.Path.String(), "error", logError(f.Err))
				updates = append(updates, vm.Indexed[message.Call, message.Data]{Path: branchOf(batch, f.Path), Op: message.Noop()})
				continue
			}
			r.metrics.CallFailed(p.Name(), "transient")
			r.log.Warn("call failed, retrying", "plugin", p.Name(), "path", f.Path.String(), "error", logError(f.Err))
			waiting[f.Path[0]] = true
		}
		for _, path := range res.Deferred {
			waiting[path[0]] = true
		}
		if len(updates) == 0 {
			continue
		}
		for _, u := range updates {
			moved[u.Path[0]] = true
		}
		var err error
		if batch, err = vm.Apply(batch, updates); err != nil {
			return nil, false, nil, fmt.Errorf("apply %s: %w", p.Name(), err)
		}
		progressed = true
	}
	stalled := map[int]bool{}
	for i := range waiting {
		if !moved[i] {
			stalled[i] = true
		}
	}
	return batch, progressed, stalled, nil
}

// branchOf returns the path of the branch that owns the call at path: the nearest ancestor that
// is a child of a Conc, or the batch element itself.
func branchOf(batch []message.Op, path vm.Path) vm.Path {
	root := batch[path[0]]
	for k := len(path) - 1; k >= 1; k-- {
		parent, err := vm.At(root, path[1:k])
		if err == nil && parent.Kind() == vm.KindConc {
			return path[:k+1]
		}
	}
	return path[:1]
}

func (r *Runner) claimed(c message.Call) bool {
	for _, p := range r.plugins {
		if p.Interest(c) {
			return true
		}
	}
	return false
}

// logError surfaces the context payload of remote call failures.
func logError(err error) any {
	var re *rpcerr.Error
	if errors.As(err, &re) {
		return re
	}
	return err.Error()
}

func (r *Runner) handleEvent(ctx context.Context, ev ibc.ChainEvent) error {
	fingerprint, raw, err := Fingerprint(ev)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	err = r.store.InsertEvent(ctx, storage.Event{
		ID:                  id,
		Fingerprint:         fingerprint,
		ChainID:             ev.ChainID.String(),
		CounterpartyChainID: ev.CounterpartyChainID.String(),
		SpecID:              string(ev.SpecID),
		Name:                ev.Event.EventName(),
		ProvableHeight:      ev.ProvableHeight.String(),
		TxHash:              ev.TxHash.Hex(),
		PayloadJSON:         string(raw),
		CreatedAt:           r.nowFunc(),
	})
	if errors.Is(err, storage.ErrDuplicateEvent) {
		r.log.Debug("event already recorded", "chain_id", ev.ChainID.String(), "fingerprint", fingerprint)
		return nil
	}
	if err != nil {
		return err
	}
	r.log.Info("ibc event", "chain_id", ev.ChainID.String(), "event", ev.Event.EventName(), "provable_height", ev.ProvableHeight.String(), "tx_hash", ev.TxHash.Hex())

	fields, err := Fields(ev)
	if err != nil {
		return err
	}
	return r.applyRules(ctx, id, ev, fields)
}

func (r *Runner) applyRules(ctx context.Context, eventID string, ev ibc.ChainEvent, fields map[string]any) error {
	sent := map[string]bool{}
	for _, exec := range r.rules {
		if exec.rule.Chain != "" && exec.rule.Chain != ev.ChainID.String() {
			continue
		}
		pass, err := allPredicates(exec.preds, fields)
		if err != nil || !pass {
			continue
		}
		now := r.nowFunc()
		var dedupeKey string
		if exec.rule.Dedupe != nil {
			dedupeKey = exec.rule.ID + "|" + buildDedupeKey(exec.rule.Dedupe.Key, fields)
			isDup, err := r.store.IsDuplicate(ctx, dedupeKey, now)
			if err != nil {
				return err
			}
			if isDup {
				continue
			}
		}
		if exec.limiter != nil && !exec.limiter.Allow(now) {
			r.log.Warn("rule rate limited", "rule", exec.rule.ID)
			continue
		}
		if dedupeKey != "" {
			exp := now.Add(exec.ttl)
			if exec.ttl == 0 {
				exp = now.Add(24 * time.Hour)
			}
			if err := r.store.MarkDedupe(ctx, dedupeKey, exp); err != nil {
				return err
			}
		}
		if r.dryRun {
			continue
		}
		for _, sinkID := range exec.rule.Sinks {
			s := r.sinks[sinkID]
			if s == nil || sent[sinkID] {
				continue
			}
			sent[sinkID] = true
			r.deliver(ctx, s, sinkID, toSinkPayload(exec.rule.ID, eventID, ev, fields))
		}
	}
	return nil
}

func (r *Runner) deliver(ctx context.Context, s sink.Sender, sinkID string, payload sink.EventPayload) {
	status := "ok"
	err := s.Send(ctx, payload)
	if err != nil {
		status = "error"
		r.metrics.Errors()
		r.log.Error("sink delivery failed", "sink", sinkID, "rule", payload.RuleID, "error", err)
	}
	if err := r.store.InsertSend(ctx, storage.Send{
		EventID:      payload.EventID,
		SinkID:       sinkID,
		Status:       status,
		ResponseCode: sink.StatusCode(err),
		CreatedAt:    r.nowFunc(),
	}); err != nil {
		r.log.Error("record send", "sink", sinkID, "error", err)
	}
}

func allPredicates(preds []Predicate, fields map[string]any) (bool, error) {
	for _, p := range preds {
		ok, err := p(fields)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func toSinkPayload(ruleID, eventID string, ev ibc.ChainEvent, fields map[string]any) sink.EventPayload {
	return sink.EventPayload{
		RuleID:              ruleID,
		EventID:             eventID,
		ChainID:             ev.ChainID.String(),
		CounterpartyChainID: ev.CounterpartyChainID.String(),
		Name:                ev.Event.EventName(),
		SpecID:              string(ev.SpecID),
		ClientType:          string(ev.ClientInfo.ClientType),
		ProvableHeight:      ev.ProvableHeight.String(),
		TxHash:              ev.TxHash.Hex(),
		Fields:              fields,
		Event:               ev,
	}
}
