// Package ratelimit implements Component I: a per-key token bucket
// gate in front of writes and offer creation, grounded directly on
// gateway/middleware/ratelimit.go's per-key rate.Limiter map. Unlike
// the teacher's one-shot per-key cleanup goroutine (one 5-minute timer
// fired once per visitor, then discarded), this limiter runs a single
// background sweep that periodically evicts every expired entry —
// the spec calls for "storage is in-memory with a periodic sweep of
// expired entries", a shared sweep rather than one goroutine per key.
package ratelimit

import (
	"sync"
	"time"

	"saltdig/observability/metrics"

	"golang.org/x/time/rate"
)

// Preset names defined by the spec.
const (
	PresetRegister       = "register"
	PresetMessage        = "message"
	PresetPredictionOffer = "prediction_offer"
	PresetGeneral        = "general"
)

// Limit describes one preset's bucket shape: limit events per window.
type Limit struct {
	Count  int
	Window time.Duration
}

// Presets is the spec's fixed table of named rate limits.
var Presets = map[string]Limit{
	PresetRegister:        {Count: 2, Window: time.Hour},
	PresetMessage:         {Count: 10, Window: time.Minute},
	PresetPredictionOffer: {Count: 5, Window: time.Minute},
	PresetGeneral:         {Count: 100, Window: time.Minute},
}

// Result is the outcome of a Check call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type entry struct {
	limiter    *rate.Limiter
	lastTouch  time.Time
}

// Limiter is a keyed token-bucket gate. Each (preset, key) pair gets
// its own bucket, lazily created on first use.
type Limiter struct {
	mu       sync.Mutex
	presets  map[string]Limit
	buckets  map[string]*entry
	now      func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a Limiter using the supplied presets (Presets if nil) and
// starts its periodic sweep goroutine at the given interval.
func New(presets map[string]Limit, sweepInterval time.Duration) *Limiter {
	if presets == nil {
		presets = Presets
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	l := &Limiter{
		presets: presets,
		buckets: make(map[string]*entry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go l.sweepLoop(sweepInterval)
	return l
}

// Check consumes one token from the bucket identified by (preset,
// key), per spec §4.I: check(key, limit, window) → {allowed,
// remaining, retry_after}. An unknown preset always allows.
func (l *Limiter) Check(preset, key string) Result {
	limit, ok := l.presets[preset]
	if !ok {
		return Result{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bucketKey := preset + "|" + key
	e, ok := l.buckets[bucketKey]
	if !ok {
		perSecond := float64(limit.Count) / limit.Window.Seconds()
		e = &entry{limiter: rate.NewLimiter(rate.Limit(perSecond), limit.Count)}
		l.buckets[bucketKey] = e
	}

	now := l.now()
	e.lastTouch = now
	reservation := e.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		metrics.RateLimitRejectionsTotal.WithLabelValues(preset).Inc()
		return Result{Allowed: false, Remaining: 0, RetryAfter: limit.Window}
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.Cancel()
		metrics.RateLimitRejectionsTotal.WithLabelValues(preset).Inc()
		return Result{Allowed: false, Remaining: 0, RetryAfter: delay}
	}

	remaining := int(e.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining}
}

// Stop halts the background sweep goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep evicts every bucket untouched for longer than its own preset
// window, so a key that stops sending requests is eventually forgotten
// rather than retained forever.
func (l *Limiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for bucketKey, e := range l.buckets {
		preset := presetFromBucketKey(bucketKey)
		limit, ok := l.presets[preset]
		if !ok {
			delete(l.buckets, bucketKey)
			continue
		}
		if now.Sub(e.lastTouch) > limit.Window {
			delete(l.buckets, bucketKey)
		}
	}
}

func presetFromBucketKey(bucketKey string) string {
	for i := 0; i < len(bucketKey); i++ {
		if bucketKey[i] == '|' {
			return bucketKey[:i]
		}
	}
	return bucketKey
}
