// retry.go retries writes that hit transient SQLite errors.
//
// With WAL mode and a busy_timeout most contention is absorbed at the
// connection level, but a second railrush process (say, a `watch` next
// to a `run`) can still surface SQLITE_BUSY or SQLITE_LOCKED. Writes
// here are tiny singleton-row updates, so a short backoff is enough.
package identity

import (
	"math/rand"
	"strings"
	"time"
)

const (
	retryAttempts = 3
	retryBase     = 50 * time.Millisecond
)

// isTransientSQLiteErr matches the error shapes modernc.org/sqlite
// produces for lock contention.
func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"database is locked",
		"database table is locked",
		"(5)", // SQLITE_BUSY code
		"(6)", // SQLITE_LOCKED code
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryOnContention runs fn, retrying transient SQLite errors with
// exponential backoff plus jitter. Non-transient errors return
// immediately.
func retryOnContention(fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isTransientSQLiteErr(lastErr) {
			return lastErr
		}
		if attempt < retryAttempts {
			delay := retryBase << uint(attempt)
			delay += time.Duration(rand.Int63n(int64(retryBase)))
			time.Sleep(delay)
		}
	}
	return lastErr
}
