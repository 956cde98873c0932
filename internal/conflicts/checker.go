package conflicts

import (
	"context"
	"sync"
	"sync/atomic"

	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/metrics"
)

// ErrSuperseded reports that a newer check started before this one finished,
// so its result must be discarded rather than shown as current.
var ErrSuperseded = pkgerrors.New(pkgerrors.CodeStateConflict, "conflict check superseded by a newer request")

// LatestChecker wraps a Service so that only the most recently started check
// per checker instance can return a result. Stale responses arriving out of
// order are dropped instead of overwriting fresher ones.
type LatestChecker struct {
	inner      Service
	generation atomic.Uint64
	metrics    *metrics.ConflictMetrics
}

// NewLatestChecker wraps the service with last-writer-wins semantics.
func NewLatestChecker(inner Service, m *metrics.ConflictMetrics) *LatestChecker {
	return &LatestChecker{inner: inner, metrics: m}
}

// Check runs the underlying check and discards the result when a newer check
// has started in the meantime.
func (c *LatestChecker) Check(ctx context.Context, input CheckInput) (*CheckResult, error) {
	generation := c.generation.Add(1)

	result, err := c.inner.Check(ctx, input)

	if c.generation.Load() != generation {
		c.metrics.IncSuperseded()
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Pool hands out one LatestChecker per actor so supersede semantics apply to
// an actor's own re-checks, never across actors.
type Pool struct {
	inner   Service
	metrics *metrics.ConflictMetrics

	mu       sync.Mutex
	checkers map[string]*LatestChecker
}

// NewPool builds an empty checker pool over the service.
func NewPool(inner Service, m *metrics.ConflictMetrics) *Pool {
	return &Pool{
		inner:    inner,
		metrics:  m,
		checkers: map[string]*LatestChecker{},
	}
}

// For returns the actor's checker, creating it on first use.
func (p *Pool) For(actorID string) *LatestChecker {
	p.mu.Lock()
	defer p.mu.Unlock()

	checker, ok := p.checkers[actorID]
	if !ok {
		checker = NewLatestChecker(p.inner, p.metrics)
		p.checkers[actorID] = checker
	}
	return checker
}
