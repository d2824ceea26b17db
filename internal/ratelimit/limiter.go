// Package ratelimit implements C1: a process-wide admission limiter over
// sliding windows of 1 second, 60 seconds, and 1 hour, keyed by
// (operation, scope). It never rejects a caller — it only delays, the
// same cooperative-wait posture the admission gate in the teacher's
// pkg/socket/server.go takes with golang.org/x/time/rate, generalised
// here to three simultaneous windows per (op, scope) pair instead of one
// process-wide token bucket (spec.md §4.1).
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket configures the three thresholds for one operation.
type Bucket struct {
	Scope             string // "global", "per-conversation", "per-url"
	RequestsPerSecond int
	RequestsPerMinute int
	RequestsPerHour   int
}

// Limiter is C1. Construct once per process and share it across adapter
// goroutines.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]Bucket // op -> config
	windows map[string]*window // (op, effectiveKey) -> sliding window state

	now func() time.Time
}

// New builds a limiter from a set of per-operation bucket configs.
func New(buckets map[string]Bucket) *Limiter {
	return &Limiter{
		buckets: buckets,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

type window struct {
	mu      sync.Mutex
	second  []time.Time
	minute  []time.Time
	hour    []time.Time
}

// LimitRequest blocks until emitting one additional request for op/scopeKey
// would not exceed any configured window, then records the admission.
// Admissions for different (op, key) pairs never block each other;
// admissions for the same pair are serialized. Returns ctx.Err() if the
// context is cancelled while waiting.
func (l *Limiter) LimitRequest(ctx context.Context, op string, scopeKey string) error {
	bucket, ok := l.bucketFor(op)
	if !ok {
		return nil // unconfigured op: no ceiling, admit immediately
	}

	effectiveKey := op
	if bucket.Scope != "global" && scopeKey != "" {
		effectiveKey = op + "\x00" + scopeKey
	}

	w := l.windowFor(effectiveKey)

	for {
		w.mu.Lock()
		now := l.now()
		w.prune(now)
		wait := w.requiredWait(now, bucket)
		if wait <= 0 {
			w.record(now)
			w.mu.Unlock()
			return nil
		}
		w.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Limiter) bucketFor(op string) (Bucket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[op]
	return b, ok
}

func (l *Limiter) windowFor(effectiveKey string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[effectiveKey]
	if !ok {
		w = &window{}
		l.windows[effectiveKey] = w
	}
	return w
}

// prune drops, from each of the three windows, the timestamps older than
// that window's span (1s, 1m, 1h).
func (w *window) prune(now time.Time) {
	w.second = pruneBefore(w.second, now.Add(-time.Second))
	w.minute = pruneBefore(w.minute, now.Add(-time.Minute))
	w.hour = pruneBefore(w.hour, now.Add(-time.Hour))
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append([]time.Time(nil), ts[i:]...)
}

// requiredWait computes how long the caller must still wait for each
// configured window, returning the max (spec.md §4.1 "sleep the max").
func (w *window) requiredWait(now time.Time, b Bucket) time.Duration {
	var wait time.Duration
	if b.RequestsPerSecond > 0 {
		if d := waitFor(w.second, now, time.Second, b.RequestsPerSecond); d > wait {
			wait = d
		}
	}
	if b.RequestsPerMinute > 0 {
		if d := waitFor(w.minute, now, time.Minute, b.RequestsPerMinute); d > wait {
			wait = d
		}
	}
	if b.RequestsPerHour > 0 {
		if d := waitFor(w.hour, now, time.Hour, b.RequestsPerHour); d > wait {
			wait = d
		}
	}
	return wait
}

// waitFor returns how long until the oldest timestamp in the window
// expires, if ts is already at capacity; zero if there's room now.
func waitFor(ts []time.Time, now time.Time, span time.Duration, limit int) time.Duration {
	if len(ts) < limit {
		return 0
	}
	oldest := ts[len(ts)-limit]
	expiresAt := oldest.Add(span)
	if expiresAt.After(now) {
		return expiresAt.Sub(now)
	}
	return 0
}

func (w *window) record(now time.Time) {
	w.second = append(w.second, now)
	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)
}
