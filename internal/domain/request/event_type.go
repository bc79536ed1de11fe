package request

import (
	"errors"
	"strings"
)

// EventType corresponds to the values in the `request_event_type` table.
type EventType string

const (
	EventRequestCreated   EventType = "REQUEST_CREATED"
	EventBidSubmitted     EventType = "BID_SUBMITTED"
	EventBidAccepted      EventType = "BID_ACCEPTED"
	EventBidRejected      EventType = "BID_REJECTED"
	EventPassengerJoined  EventType = "PASSENGER_JOINED"
	EventPassengerLeft    EventType = "PASSENGER_LEFT"
	EventSharesRecomputed EventType = "SHARES_RECOMPUTED"
	EventRequestCancelled EventType = "REQUEST_CANCELLED"
	EventRequestCompleted EventType = "REQUEST_COMPLETED"
)

var ErrInvalidEventType = errors.New("invalid request event type")

// ParseEventType normalizes (uppercases+trims) and validates an event type string.
func ParseEventType(input string) (EventType, error) {
	eventType := EventType(strings.ToUpper(strings.TrimSpace(input)))
	if eventType.Valid() {
		return eventType, nil
	}
	return "", ErrInvalidEventType
}

// Valid reports whether eventType is one of the allowed event type constants.
func (eventType EventType) Valid() bool {
	switch eventType {
	case EventRequestCreated,
		EventBidSubmitted,
		EventBidAccepted,
		EventBidRejected,
		EventPassengerJoined,
		EventPassengerLeft,
		EventSharesRecomputed,
		EventRequestCancelled,
		EventRequestCompleted:
		return true
	default:
		return false
	}
}

// String returns the string representation of the EventType.
func (eventType EventType) String() string {
	return string(eventType)
}
