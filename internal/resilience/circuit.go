// Package resilience guards calls to shared stores with a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker state.
type State int

const (
	// Closed passes every call and tracks outcomes.
	Closed State = iota
	// Open rejects calls until the cool-off period has passed.
	Open
	// HalfOpen lets a single probe through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

type counts struct {
	ok, failed int
}

func (c counts) total() int { return c.ok + c.failed }

func (c counts) failureRatio() float64 {
	if c.total() == 0 {
		return 0
	}
	return float64(c.failed) / float64(c.total())
}

// decay halves both counters so old outcomes weigh less than recent ones.
func (c *counts) decay() {
	c.ok = (c.ok + 1) / 2
	c.failed = (c.failed + 1) / 2
}

// Breaker opens once at least minRequests outcomes were observed and the
// failure ratio reaches the threshold. A nil *Breaker allows every call.
type Breaker struct {
	mu           sync.Mutex
	state        State
	counts       counts
	probing      bool
	openedAt     time.Time
	minRequests  int
	failureRatio float64
	openFor      time.Duration
	target       string
	logger       zerolog.Logger
}

// NewBreaker constructs a closed breaker. Non-positive arguments fall back to
// 1 request, a 0.5 ratio and a 30s cool-off.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		minRequests:  minRequests,
		failureRatio: min(failureRatio, 1),
		openFor:      openFor,
		logger:       zerolog.Nop(),
	}
}

// WithTarget names the guarded dependency in metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	b.publishState()
	return b
}

// WithLogger sets the logger used for state transitions.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	if b == nil {
		return Closed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. After the cool-off an open
// breaker moves to half-open and admits exactly one probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.openedAt) < b.openFor {
			return false
		}
		b.transition(ctx, HalfOpen)
		b.probing = true
		return true
	default:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// Report records the outcome of an allowed call.
func (b *Breaker) Report(ctx context.Context, success bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transition(ctx, Closed)
		} else {
			b.transition(ctx, Open)
		}
		return
	}

	if success {
		b.counts.ok++
	} else {
		b.counts.failed++
	}
	if b.counts.total() < b.minRequests {
		return
	}
	if b.counts.failureRatio() >= b.failureRatio {
		b.transition(ctx, Open)
		return
	}
	if b.counts.total() > 2*b.minRequests {
		b.counts.decay()
	}
}

// Do runs fn when the breaker allows it and reports the outcome. Context
// cancellation is not held against the dependency, and errors matching one
// of benign (such as redis.Nil) count as successes.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error, benign ...error) error {
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		if b != nil {
			b.mu.Lock()
			b.probing = false
			b.mu.Unlock()
		}
		return err
	}
	b.Report(ctx, err == nil || isAny(err, benign))
	return err
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// transition must be called with mu held.
func (b *Breaker) transition(ctx context.Context, next State) {
	prev := b.state
	b.state = next
	b.counts = counts{}
	switch next {
	case Open:
		b.openedAt = time.Now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.publishState()
	if prev == next {
		return
	}

	target := b.label()
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(target, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(target).Inc()
	}
	evt := b.logger.Warn()
	if next == Closed {
		evt = b.logger.Info()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Str("target", target).Str("from_state", prev.String()).Str("to_state", next.String()).Msg("breaker_transition")
}

func (b *Breaker) publishState() {
	if BreakerState != nil {
		BreakerState.WithLabelValues(b.label()).Set(float64(b.state))
	}
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

// Backoff returns base doubled per attempt, spread by ±jitterPct (0.2 == 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << uint(max(attempt, 1)-1)
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
