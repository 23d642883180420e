package entitlements

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

const defaultRecheckInterval = time.Minute

// Watcher keeps one user's gate state current for the life of a stream.
type Watcher struct {
	evaluator Evaluator
	feed      Feed
	interval  time.Duration
	logg      *logger.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

func NewWatcher(evaluator Evaluator, feed Feed, interval time.Duration, logg *logger.Logger) (*Watcher, error) {
	if evaluator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement evaluator required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if interval <= 0 {
		interval = defaultRecheckInterval
	}
	return &Watcher{
		evaluator: evaluator,
		feed:      feed,
		interval:  interval,
		logg:      logg,
		closing:   make(chan struct{}),
	}, nil
}

// Close ends every running Watch and makes later calls return at once.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() { close(w.closing) })
}

// Watch evaluates the gate once, then again on every change signal and on
// each recheck tick, calling onChange only when the state moves. The periodic
// recheck is what blocks a session whose pass expires while it is open. Watch
// returns when ctx ends or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context, userID uuid.UUID, onChange func(Decision)) error {
	if onChange == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "onChange callback required")
	}
	ctx = w.logg.WithUserID(ctx, userID.String())

	// subscribe before the first evaluation so a grant landing in between is
	// not missed
	var signals <-chan string
	if w.feed != nil {
		sub, err := w.feed.Subscribe(ctx, userID)
		if err != nil {
			w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "entitlements.subscribe_failed")
		} else {
			defer sub.Close()
			signals = sub.Messages()
		}
	}

	last := enums.EntitlementUnknown
	evaluate := func() {
		decision, err := w.evaluator.Evaluate(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				w.logg.Error(ctx, "entitlements.evaluate_failed", err)
			}
			return
		}
		if decision.State == last {
			return
		}
		last = decision.State
		onChange(decision)
	}

	evaluate()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.closing:
			return nil
		case _, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			evaluate()
		case <-ticker.C:
			evaluate()
		}
	}
}
