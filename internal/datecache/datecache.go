// Package datecache maintains a once-a-second-refreshed, pre-formatted
// HTTP-date string for the Date response header wire/h1 and wire/h2 stamp
// onto every final response that doesn't already set one. A background
// goroutine refreshes an atomic.Value instead of formatting time.Now() on
// every response.
package datecache

import (
	"net/http"
	"sync/atomic"
	"time"
)

var current atomic.Value

func init() {
	store(time.Now())
	go func() {
		for range time.Tick(time.Second) {
			store(time.Now())
		}
	}()
}

func store(t time.Time) {
	current.Store(t.UTC().Format(http.TimeFormat))
}

// Format returns the current HTTP-date string (RFC 7231 IMF-fixdate), at
// most a second stale.
func Format() string {
	return current.Load().(string)
}
