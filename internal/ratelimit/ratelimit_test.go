package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(start time.Time) (*Limiter, *time.Time) {
	now := start
	l := New(DefaultConfig())
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheck_CleanKey(t *testing.T) {
	l, _ := newTestLimiter(time.Now())
	status := l.Check("1.2.3.4")
	require.False(t, status.Blocked)
	require.Equal(t, DefaultMaxAttempts, status.RemainingAttempts)
}

func TestRecordFailed_CountsDown(t *testing.T) {
	l, _ := newTestLimiter(time.Now())
	key := Key("1.2.3.4", "tok")

	for i := 1; i < DefaultMaxAttempts; i++ {
		status := l.RecordFailed(key)
		require.False(t, status.Blocked, "attempt %d should not block", i)
		require.Equal(t, DefaultMaxAttempts-i, status.RemainingAttempts)
	}
}

func TestRecordFailed_BlocksAtThreshold(t *testing.T) {
	l, _ := newTestLimiter(time.Now())
	key := Key("1.2.3.4", "tok")

	var status Status
	for i := 0; i < DefaultMaxAttempts; i++ {
		status = l.RecordFailed(key)
	}
	require.True(t, status.Blocked)
	require.Equal(t, 0, status.RemainingAttempts)
	require.Equal(t, DefaultBlockDuration, status.BlockDuration)

	check := l.Check(key)
	require.True(t, check.Blocked)
	require.Equal(t, 0, check.RemainingAttempts)
	require.Greater(t, check.BlockDuration, time.Duration(0))
}

func TestRecordFailed_WhileBlockedDoesNotConsume(t *testing.T) {
	l, _ := newTestLimiter(time.Now())
	key := "1.2.3.4"
	for i := 0; i < DefaultMaxAttempts; i++ {
		l.RecordFailed(key)
	}
	status := l.RecordFailed(key)
	require.True(t, status.Blocked)
	require.Equal(t, DefaultBlockDuration, status.BlockDuration.Round(time.Second))
}

func TestWindowExpiry_ResetsCount(t *testing.T) {
	l, now := newTestLimiter(time.Now())
	key := "1.2.3.4"

	l.RecordFailed(key)
	*now = now.Add(DefaultWindow + time.Minute)

	status := l.RecordFailed(key)
	require.False(t, status.Blocked)
	require.Equal(t, DefaultMaxAttempts-1, status.RemainingAttempts)
}

func TestCheck_StaleEntryReadsClean(t *testing.T) {
	l, now := newTestLimiter(time.Now())
	key := "1.2.3.4"

	l.RecordFailed(key)
	*now = now.Add(DefaultWindow + time.Minute)

	status := l.Check(key)
	require.False(t, status.Blocked)
	require.Equal(t, DefaultMaxAttempts, status.RemainingAttempts)
}

func TestRecordSuccess_FullReset(t *testing.T) {
	l, _ := newTestLimiter(time.Now())
	key := "1.2.3.4"

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		l.RecordFailed(key)
	}
	l.RecordSuccess(key)

	status := l.Check(key)
	require.False(t, status.Blocked)
	require.Equal(t, DefaultMaxAttempts, status.RemainingAttempts)
}

func TestBlockExpiry_AllowsNewAttempts(t *testing.T) {
	l, now := newTestLimiter(time.Now())
	key := "1.2.3.4"

	for i := 0; i < DefaultMaxAttempts; i++ {
		l.RecordFailed(key)
	}
	*now = now.Add(DefaultBlockDuration + time.Second)

	status := l.Check(key)
	require.False(t, status.Blocked)
}

func TestBackoff_DoublesPerEpisode(t *testing.T) {
	l, now := newTestLimiter(time.Now())
	key := "1.2.3.4"

	var first Status
	for i := 0; i < DefaultMaxAttempts; i++ {
		first = l.RecordFailed(key)
	}
	require.True(t, first.Blocked)

	// Block lapses but the window is still open; the next failure continues
	// the count and the block doubles.
	*now = now.Add(DefaultBlockDuration + time.Second)
	second := l.RecordFailed(key)
	require.True(t, second.Blocked)
	require.Greater(t, second.BlockDuration, first.BlockDuration)
	require.Equal(t, 2*DefaultBlockDuration, second.BlockDuration)
}

func TestBackoff_CappedAtMax(t *testing.T) {
	l := New(DefaultConfig())
	require.Equal(t, DefaultBlockDuration, l.backoff(5))
	require.Equal(t, 30*time.Minute, l.backoff(6))
	require.Equal(t, time.Hour, l.backoff(7))
	require.Equal(t, DefaultMaxBlockDuration, l.backoff(12))
	require.Equal(t, DefaultMaxBlockDuration, l.backoff(50))
}

func TestCleanup_RemovesExpiredOnly(t *testing.T) {
	l, now := newTestLimiter(time.Now())

	l.RecordFailed("stale")
	*now = now.Add(30 * time.Minute)
	l.RecordFailed("active")
	for i := 0; i < DefaultMaxAttempts; i++ {
		l.RecordFailed("blocked")
	}

	// Past the stale entry's window, still inside the other two.
	*now = now.Add(45 * time.Minute)

	removed := l.Cleanup()
	require.Equal(t, 1, removed)

	stats := l.Stats()
	require.Equal(t, 2, stats.TotalEntries)
}

func TestStats(t *testing.T) {
	l, _ := newTestLimiter(time.Now())
	l.RecordFailed("a")
	for i := 0; i < DefaultMaxAttempts; i++ {
		l.RecordFailed("b")
	}

	stats := l.Stats()
	require.Equal(t, 2, stats.TotalEntries)
	require.Equal(t, 1, stats.BlockedEntries)
	require.Equal(t, DefaultMaxAttempts, stats.Config.MaxAttempts)
}

func TestKey(t *testing.T) {
	require.Equal(t, "1.2.3.4", Key("1.2.3.4", ""))
	require.Equal(t, "1.2.3.4:tok", Key("1.2.3.4", "tok"))
}
