// Package storage persists postings and their scores. The source URL is the identity of a posting:
// saving an already known URL is counted as existing and leaves the stored row untouched.
package storage

import (
	"errors"
	"time"
)

// DefaultRetention is how long a posting stays active after it was scraped.
const DefaultRetention = 30 * 24 * time.Hour

var ErrNotFound = errors.New("posting not found")

// SaveResult counts the outcome of a save batch.
type SaveResult struct {
	Saved    int
	Existing int
}

// StaleBefore returns the cutoff for a retention window. A non-positive window falls back to the default.
func StaleBefore(now time.Time, retention time.Duration) time.Time {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return now.Add(-retention)
}
