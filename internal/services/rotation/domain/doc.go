// Package domain holds the pure types and decision logic for the annual
// household-leadership rotation: exclusion codes, candidate ranking, and the
// status lifecycles for schedules and exemption requests. Nothing in this
// package touches storage or the clock directly; time is always an argument.
package domain
