// Package model defines the shared data structures of the ingestion service.
//
// RawCollection, NormalizedJobRecord and OperationLog all move through the
// same processing state machine:
//
//	PENDING ──► PROCESSING ──► COMPLETED
//	                 │
//	                 ├──► PARTIAL
//	                 └──► FAILED
//
// COMPLETED, PARTIAL and FAILED are terminal. A retry never reopens a
// terminal row; it creates a new unit of work.
package model

import "fmt"

// Status mirrors the processing_status enum in PostgreSQL.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusPartial    Status = "PARTIAL"
	StatusFailed     Status = "FAILED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusPartial, StatusFailed},
	// COMPLETED, PARTIAL and FAILED are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusPartial, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown processing status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for COMPLETED, PARTIAL and FAILED.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}
