package auth

import (
	"sync"
	"time"
)

// RateLimiter throttles login attempts per client IP and username. It
// complements the per-account lockout in Service, which ignores the IP.
type RateLimiter struct {
	mu       sync.Mutex
	attempts map[attemptKey]*attemptRecord
	cfg      RateLimitConfig
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type attemptKey struct {
	ip       string
	username string
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

type RateLimitConfig struct {
	MaxAttempts     int           // default 5
	WindowDuration  time.Duration // failures older than this are forgotten, default 15m
	LockoutDuration time.Duration // default 30m
	CleanupInterval time.Duration // default 5m
}

func (c *RateLimitConfig) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = 15 * time.Minute
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = 30 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
}

// NewRateLimiter starts a background sweep of expired records; call Stop
// to end it.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg.setDefaults()
	rl := &RateLimiter{
		attempts: make(map[attemptKey]*attemptRecord),
		cfg:      cfg,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow reports whether another attempt may be made and, if not, how long
// until the lockout ends.
func (rl *RateLimiter) Allow(ip, username string) (bool, time.Duration) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := attemptKey{ip, username}
	rec, ok := rl.attempts[key]
	switch {
	case !ok:
		return true, 0
	case now.Before(rec.lockedUntil):
		return false, rec.lockedUntil.Sub(now)
	case !rec.lockedUntil.IsZero():
		// Lockout served: start counting from scratch.
		delete(rl.attempts, key)
		return true, 0
	case now.Sub(rec.firstAttempt) > rl.cfg.WindowDuration:
		return true, 0
	case rec.count < rl.cfg.MaxAttempts:
		return true, 0
	}
	return false, rl.cfg.LockoutDuration
}

// RecordFailure counts a failed attempt and reports whether it triggered
// a lockout.
func (rl *RateLimiter) RecordFailure(ip, username string) bool {
	now := rl.now()
	key := attemptKey{ip, username}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[key]
	if !ok || now.Sub(rec.firstAttempt) > rl.cfg.WindowDuration {
		rec = &attemptRecord{firstAttempt: now}
		rl.attempts[key] = rec
	}
	rec.count++
	if rec.count >= rl.cfg.MaxAttempts {
		rec.lockedUntil = now.Add(rl.cfg.LockoutDuration)
		return true
	}
	return false
}

func (rl *RateLimiter) RecordSuccess(ip, username string) {
	rl.mu.Lock()
	delete(rl.attempts, attemptKey{ip, username})
	rl.mu.Unlock()
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) sweep() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, rec := range rl.attempts {
		if now.Sub(rec.firstAttempt) > rl.cfg.WindowDuration && !now.Before(rec.lockedUntil) {
			delete(rl.attempts, key)
		}
	}
}
