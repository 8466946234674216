package domain

import "time"

// RotationPolicy is one immutable, versioned description of the rotation
// rules. The priority and exclusion texts are advisory documentation shown
// to residents; the executable ranking and exclusion semantics are fixed in
// this package.
type RotationPolicy struct {
	// Version starts at 1 and only ever grows; past versions are never
	// edited.
	Version int
	// Priority lists the human-readable ranking rules in order.
	Priority []string
	// ExclusionConditions documents the A/B/C exclusion codes.
	ExclusionConditions []string
	// Reason records why this version replaced the previous one.
	Reason    string
	CreatedAt time.Time
}
