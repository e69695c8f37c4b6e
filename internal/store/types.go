// Package store provides SQLite persistence for usage statistics and
// configuration snapshots.
package store

import "time"

// Counter is one persisted usage counter.
type Counter struct {
	Name      string
	Value     int64
	UpdatedAt time.Time
}

// Timing is one persisted timing aggregate.
type Timing struct {
	Name      string
	Count     int64
	Total     time.Duration
	Min       time.Duration
	Max       time.Duration
	UpdatedAt time.Time
}

// Average returns the mean duration, or zero when nothing was recorded.
func (t Timing) Average() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// ConfigSnapshot is a configuration as it was applied at some point.
type ConfigSnapshot struct {
	ID        int64
	Version   int
	CreatedAt time.Time
	Hash      [32]byte
	Data      string
	Reason    string
}
