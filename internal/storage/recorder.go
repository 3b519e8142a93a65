package storage

import (
	"context"
	"sync/atomic"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/constants"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// Recorder persists machine transitions off the hot path. Observe is safe to
// register with Machine.OnTransition: it never blocks, and drops events when
// the buffer is full.
type Recorder struct {
	cache  ExecutionCache
	store  TransitionStore
	logger *logrus.Logger

	queue   chan *models.TransitionEvent
	dropped atomic.Uint64
}

// NewRecorder creates a recorder. Either sink may be nil.
func NewRecorder(cache ExecutionCache, store TransitionStore, logger *logrus.Logger) *Recorder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Recorder{
		cache:  cache,
		store:  store,
		logger: logger,
		queue:  make(chan *models.TransitionEvent, constants.RecorderBuffer),
	}
}

// Observe enqueues a transition.
func (r *Recorder) Observe(t execution.Transition) {
	ev := NewTransitionEvent(t)
	select {
	case r.queue <- ev:
	default:
		n := r.dropped.Add(1)
		r.logger.WithFields(logrus.Fields{
			"session": ev.SessionID,
			"to":      ev.To,
			"dropped": n,
		}).Warn("recorder queue full, dropping transition")
	}
}

// Dropped is the number of transitions lost to a full queue.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Run drains the queue until ctx is cancelled, then writes out whatever is
// still queued before it returns. Owners should stop producing transitions
// (close their sessions) before cancelling ctx.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case ev := <-r.queue:
			r.record(ev)
		}
	}
}

func (r *Recorder) flush() {
	n := 0
	for {
		select {
		case ev := <-r.queue:
			r.record(ev)
			n++
		default:
			if n > 0 {
				r.logger.WithField("events", n).Info("recorder flushed on shutdown")
			}
			return
		}
	}
}

func (r *Recorder) record(ev *models.TransitionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.RecordTimeout)
	defer cancel()
	_ = r.Process(ctx, ev)
}

// Process writes one event to every sink. Cache failures are logged; the
// archive error, if any, is returned.
func (r *Recorder) Process(ctx context.Context, ev *models.TransitionEvent) error {
	log := r.logger.WithFields(logrus.Fields{
		"session": ev.SessionID,
		"seq":     ev.Seq,
		"from":    ev.From,
		"to":      ev.To,
	})

	if r.cache != nil {
		// 1. Keep finished attempts in the recent list
		if ev.Terminal() {
			if err := r.cache.AddRecentExecution(ctx, NewExecutionRecord(ev)); err != nil {
				log.WithError(err).Warn("failed to cache execution outcome")
			}
		}

		// 2. Live fan-out
		if err := r.cache.PublishTransition(ctx, ev); err != nil {
			log.WithError(err).Warn("failed to publish transition")
		}
	}

	// 3. Archive
	if r.store != nil {
		if err := r.store.InsertTransition(ctx, ev); err != nil {
			log.WithError(err).Error("failed to archive transition")
			return err
		}
	}

	log.Debug("transition recorded")
	return nil
}

// NewTransitionEvent flattens a machine transition.
func NewTransitionEvent(t execution.Transition) *models.TransitionEvent {
	ev := &models.TransitionEvent{
		SessionID:          t.MachineID,
		Seq:                t.Seq,
		From:               string(t.From),
		To:                 string(t.To),
		Reason:             t.Reason,
		Timestamp:          t.At.UTC(),
		InputMint:          t.InputMint,
		OutputMint:         t.OutputMint,
		AmountAtomic:       t.AmountAtomic,
		QuoteRequestedAtMs: t.QuoteRequestedAtMs,
	}
	if t.Outcome != nil {
		ev.Signature = t.Outcome.Signature
		ev.Status = t.Outcome.Status
		ev.ExecutionTime = t.Outcome.ExecutionTime
		ev.ErrorPreview = t.Outcome.ErrorPreview
	}
	return ev
}

// NewExecutionRecord summarises a terminal event.
func NewExecutionRecord(ev *models.TransitionEvent) *models.ExecutionRecord {
	return &models.ExecutionRecord{
		SessionID:     ev.SessionID,
		Timestamp:     ev.Timestamp,
		Outcome:       ev.To,
		InputMint:     ev.InputMint,
		OutputMint:    ev.OutputMint,
		AmountAtomic:  ev.AmountAtomic,
		Signature:     ev.Signature,
		Status:        ev.Status,
		ExecutionTime: ev.ExecutionTime,
		ErrorPreview:  ev.ErrorPreview,
	}
}
