package request

import (
	"errors"
	"strings"
)

// Status is a rider-request status as stored in the `request_status` table.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusMatched   Status = "MATCHED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid request status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed request status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusOpen, StatusMatched, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusOpen:
		return next == StatusMatched || next == StatusCancelled

	case StatusMatched:
		return next == StatusCompleted || next == StatusCancelled

	case StatusCompleted, StatusCancelled:
		return false

	default:
		return false
	}
}

// Terminal indicates if the status is in a terminal state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}

// Joinable reports whether passengers may still join or leave.
func (status Status) Joinable() bool {
	return status == StatusOpen || status == StatusMatched
}
