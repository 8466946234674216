package domain

import "time"

// Household is one residential unit as seen in the household directory.
// The directory is owned by the surrounding portal; the rotation core only
// reads it.
type Household struct {
	// ID is the stable unit identifier, e.g. "102".
	ID string
	// MoveInDate is nil when the move-in date was never recorded.
	MoveInDate *time.Time
	// LeaderHistoryCount is the number of times the household served as a
	// building representative.
	LeaderHistoryCount int
}
