// Package ratelimit bounds how many phone-digit guesses a caller can make
// against share links. State is process-local: a mutex-guarded map of
// per-key attempt windows with exponential-backoff blocks. Limits reset on
// process restart and are not shared between instances.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts      = 5
	DefaultWindow           = time.Hour
	DefaultBlockDuration    = 15 * time.Minute
	DefaultMaxBlockDuration = 24 * time.Hour
)

type Config struct {
	MaxAttempts      int           `json:"max_attempts"`
	Window           time.Duration `json:"window"`
	BlockDuration    time.Duration `json:"block_duration"`
	MaxBlockDuration time.Duration `json:"max_block_duration"`
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:      DefaultMaxAttempts,
		Window:           DefaultWindow,
		BlockDuration:    DefaultBlockDuration,
		MaxBlockDuration: DefaultMaxBlockDuration,
	}
}

type entry struct {
	attempts     int
	firstAttempt time.Time
	lastAttempt  time.Time
	blockedUntil time.Time
}

// Status is the outcome of a limiter operation. The limiter never fails;
// every state is expressed here and the caller decides what to do with it.
type Status struct {
	Blocked           bool          `json:"blocked"`
	RemainingAttempts int           `json:"remaining_attempts"`
	ResetTime         time.Time     `json:"reset_time"`
	BlockDuration     time.Duration `json:"block_duration,omitempty"`
}

type Stats struct {
	TotalEntries   int    `json:"total_entries"`
	BlockedEntries int    `json:"blocked_entries"`
	Config         Config `json:"config"`
}

type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry
	now     func() time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = DefaultBlockDuration
	}
	if cfg.MaxBlockDuration < cfg.BlockDuration {
		cfg.MaxBlockDuration = DefaultMaxBlockDuration
	}
	return &Limiter{
		cfg:     cfg,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Key builds a limiter key scoped to an IP alone or to an IP+token pair.
// Verification endpoints use the token-scoped key so one IP's bad guesses
// on quotation A do not exhaust its budget on quotation B.
func Key(ip, token string) string {
	if token == "" {
		return ip
	}
	return fmt.Sprintf("%s:%s", ip, token)
}

// Check is a read-only view of the key's state. A stale entry (window
// elapsed, block elapsed) reads as clean; it is removed on the next write
// or sweep.
func (l *Limiter) Check(key string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statusLocked(key, l.now())
}

func (l *Limiter) statusLocked(key string, now time.Time) Status {
	e, ok := l.entries[key]
	if !ok {
		return Status{RemainingAttempts: l.cfg.MaxAttempts}
	}
	if !e.blockedUntil.IsZero() && now.Before(e.blockedUntil) {
		return Status{
			Blocked:       true,
			ResetTime:     e.blockedUntil,
			BlockDuration: e.blockedUntil.Sub(now),
		}
	}
	if now.Sub(e.firstAttempt) > l.cfg.Window {
		return Status{RemainingAttempts: l.cfg.MaxAttempts}
	}
	remaining := l.cfg.MaxAttempts - e.attempts
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		RemainingAttempts: remaining,
		ResetTime:         e.firstAttempt.Add(l.cfg.Window),
	}
}

// RecordFailed registers a failed verification attempt and returns the
// post-update status. The check, increment, and block decision happen under
// one mutex hold, so concurrent failures cannot race past the budget.
func (l *Limiter) RecordFailed(key string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if ok && !e.blockedUntil.IsZero() && now.Before(e.blockedUntil) {
		// Already blocked; the attempt is rejected without consuming budget.
		return Status{
			Blocked:       true,
			ResetTime:     e.blockedUntil,
			BlockDuration: e.blockedUntil.Sub(now),
		}
	}
	if !ok || now.Sub(e.firstAttempt) > l.cfg.Window {
		e = &entry{attempts: 1, firstAttempt: now, lastAttempt: now}
		l.entries[key] = e
	} else {
		e.attempts++
		e.lastAttempt = now
	}
	if e.attempts >= l.cfg.MaxAttempts {
		d := l.backoff(e.attempts)
		e.blockedUntil = now.Add(d)
		return Status{
			Blocked:       true,
			ResetTime:     e.blockedUntil,
			BlockDuration: d,
		}
	}
	return Status{
		RemainingAttempts: l.cfg.MaxAttempts - e.attempts,
		ResetTime:         e.firstAttempt.Add(l.cfg.Window),
	}
}

// backoff doubles the base block for every failure past the threshold,
// capped at MaxBlockDuration.
func (l *Limiter) backoff(attempts int) time.Duration {
	d := l.cfg.BlockDuration
	for i := attempts - l.cfg.MaxAttempts; i > 0; i-- {
		d *= 2
		if d >= l.cfg.MaxBlockDuration {
			return l.cfg.MaxBlockDuration
		}
	}
	return d
}

// RecordSuccess wipes the key outright, whatever state it was in.
func (l *Limiter) RecordSuccess(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Cleanup removes entries whose window and block have both lapsed and
// returns how many were dropped. Run periodically; the map has no TTL of
// its own.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if now.Sub(e.firstAttempt) <= l.cfg.Window {
			continue
		}
		if !e.blockedUntil.IsZero() && now.Before(e.blockedUntil) {
			continue
		}
		delete(l.entries, key)
		removed++
	}
	return removed
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	blocked := 0
	for _, e := range l.entries {
		if !e.blockedUntil.IsZero() && now.Before(e.blockedUntil) {
			blocked++
		}
	}
	return Stats{
		TotalEntries:   len(l.entries),
		BlockedEntries: blocked,
		Config:         l.cfg,
	}
}
