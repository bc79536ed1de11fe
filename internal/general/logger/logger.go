package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// ----- Public wire types -----

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// LogEntry is the single-line JSON format written to stdout.
type LogEntry struct {
	Timestamp      string       `json:"timestamp"`                  // ISO 8601 format timestamp
	Level          string       `json:"level"`                      // DEBUG | INFO | ERROR
	Service        string       `json:"service"`                    // service name (e.g., marketplace-service)
	Action         string       `json:"action"`                     // event name (e.g., passenger_joined)
	Message        string       `json:"message"`                    // human-readable description
	Hostname       string       `json:"hostname"`                   // service hostname
	RequestID      string       `json:"request_id,omitempty"`       // correlation ID for tracing
	RiderRequestID string       `json:"rider_request_id,omitempty"` // marketplace aggregate id, when in scope
	Details        any          `json:"details,omitempty"`          // optional: extra fields (map or struct)
	Error          *ErrorObject `json:"error,omitempty"`            // optional: error details
}

// ----- Logger -----

type Logger struct {
	service  string
	hostname string
	mu       sync.Mutex
}

// New creates a structured logger for the given service.
func New(service string) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}

	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	return &Logger{service: service, hostname: hn}
}

// emit marshals and prints a single JSON line to stdout.
func (l *Logger) emit(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(e)
	if err == nil {
		fmt.Println(string(b))
		return
	}

	// retry once without Details (common source of marshal errors)
	e.Details = nil
	if b, err2 := json.Marshal(e); err2 == nil {
		fmt.Println(string(b))
		return
	}

	// keep logs JSON-shaped even when the entry itself cannot be encoded
	fallback := map[string]any{
		"timestamp": nowISO(),
		"level":     "ERROR",
		"service":   l.service,
		"action":    "logger_marshal_failed",
		"message":   "failed to encode log entry",
		"hostname":  l.hostname,
		"error": ErrorObject{
			Msg:   strings.TrimSpace(err.Error()),
			Stack: string(debug.Stack()),
		},
	}

	if fb, err := json.Marshal(fallback); err == nil {
		fmt.Println(string(fb))
	} else {
		fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
	}
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.emit(LogEntry{
		Timestamp:      nowISO(),
		Level:          "DEBUG",
		Service:        l.service,
		Action:         safeAction(action),
		Message:        strings.TrimSpace(msg),
		Hostname:       l.hostname,
		RequestID:      requestID(ctx),
		RiderRequestID: riderRequestID(ctx),
		Details:        details,
	})
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.emit(LogEntry{
		Timestamp:      nowISO(),
		Level:          "INFO",
		Service:        l.service,
		Action:         safeAction(action),
		Message:        strings.TrimSpace(msg),
		Hostname:       l.hostname,
		RequestID:      requestID(ctx),
		RiderRequestID: riderRequestID(ctx),
		Details:        details,
	})
}

// Error writes an ERROR line and attaches the error with a stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}

	l.emit(LogEntry{
		Timestamp:      nowISO(),
		Level:          "ERROR",
		Service:        l.service,
		Action:         safeAction(action),
		Message:        strings.TrimSpace(msg),
		Hostname:       l.hostname,
		RequestID:      requestID(ctx),
		RiderRequestID: riderRequestID(ctx),
		Details:        details,
		Error: &ErrorObject{
			Msg:   strings.TrimSpace(err.Error()),
			Stack: string(debug.Stack()),
		},
	})
}

// ----- Context plumbing -----

type ctxKey string

const (
	ctxKeyRequestID      ctxKey = "ridemarket_request_id"
	ctxKeyRiderRequestID ctxKey = "ridemarket_rider_request_id"
)

// WithRequestID returns a new context carrying the tracing request_id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithRiderRequestID returns a new context carrying the aggregate id so every
// log line inside one operation is tagged with it.
func (l *Logger) WithRiderRequestID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRiderRequestID, id)
}

func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

func riderRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKeyRiderRequestID).(string); ok {
		return v
	}
	return ""
}

// ----- Small utilities -----

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
