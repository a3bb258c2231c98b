// ABOUTME: Queued mutation envelope, lifecycle states and error taxonomy
// ABOUTME: Classifies replay failures into permission, network and server kinds
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"
)

type State string

const (
	StatePending State = "pending"
	StateSyncing State = "syncing"
	StateSynced  State = "synced"
	StateFailed  State = "failed"
)

type ErrorKind string

const (
	ErrorNone       ErrorKind = ""
	ErrorPermission ErrorKind = "permission"
	ErrorNetwork    ErrorKind = "network"
	ErrorServer     ErrorKind = "server"
)

// Mutation is a pending network operation held until it can be delivered.
type Mutation struct {
	ID            string            `json:"id"`
	Method        string            `json:"method"`
	Target        string            `json:"target"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Summary       string            `json:"summary,omitempty"`
	State         State             `json:"state"`
	Attempts      int               `json:"attempts"`
	LastError     string            `json:"last_error,omitempty"`
	ErrorKind     ErrorKind         `json:"error_kind,omitempty"`
	NextAttemptAt time.Time         `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (m Mutation) clone() Mutation {
	c := m
	if m.Payload != nil {
		c.Payload = append(json.RawMessage(nil), m.Payload...)
	}
	if m.Headers != nil {
		c.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			c.Headers[k] = v
		}
	}
	return c
}

// StatusCoder is implemented by transport errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Classify maps a replay error to the taxonomy shown to the user.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrorPermission
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return ErrorNetwork
		default:
			return ErrorServer
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorNetwork
	}
	return ErrorServer
}

// Message is the user-facing text for a failure kind.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorPermission:
		return "Permission denied: sign in again or check your access"
	case ErrorNetwork:
		return "Network unavailable or timed out: will retry when connected"
	case ErrorServer:
		return "Server error: the change was rejected"
	default:
		return ""
	}
}
