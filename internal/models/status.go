package models

import "fmt"

// Status is the lifecycle stage of a document. The string values are stored
// verbatim in every status backend and returned by the HTTP API.
type Status string

const (
	StatusPending            Status = "PENDING"
	StatusOCRInProgress      Status = "OCR_IN_PROGRESS"
	StatusIndexingInProgress Status = "INDEXING_IN_PROGRESS"
	StatusCompleted          Status = "COMPLETED"
	StatusFailed             Status = "FAILED"
)

var transitions = map[Status][]Status{
	StatusPending:            {StatusOCRInProgress, StatusFailed},
	StatusOCRInProgress:      {StatusIndexingInProgress, StatusFailed},
	StatusIndexingInProgress: {StatusCompleted, StatusFailed},
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusOCRInProgress, StatusIndexingInProgress, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// NonTerminal lists the states a document can still leave.
func NonTerminal() []Status {
	return []Status{StatusPending, StatusOCRInProgress, StatusIndexingInProgress}
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an ErrConflict-wrapped error for moves the state
// machine does not allow.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: transition %s -> %s not allowed", ErrConflict, from, to)
	}
	return nil
}
