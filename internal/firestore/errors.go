package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"
	"google.golang.org/api/googleapi"

	"firesync/internal/auth"
)

// ErrorKind classifies transport failures.
type ErrorKind string

const (
	KindUnreachable     ErrorKind = "unreachable"
	KindUnauthorized    ErrorKind = "unauthorized"
	KindNotFound        ErrorKind = "not_found"
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindRemoteRejected  ErrorKind = "remote_rejected"
)

// Sentinels matched by errors.Is against a *TransportError of the same kind.
var (
	ErrUnreachable     = errors.New("document store unreachable")
	ErrUnauthorized    = errors.New("document store rejected the access token")
	ErrNotFound        = errors.New("document not found")
	ErrInvalidArgument = errors.New("invalid document path or body")
	ErrRemoteRejected  = errors.New("document store rejected the request")
)

var kindSentinels = map[ErrorKind]error{
	KindUnreachable:     ErrUnreachable,
	KindUnauthorized:    ErrUnauthorized,
	KindNotFound:        ErrNotFound,
	KindInvalidArgument: ErrInvalidArgument,
	KindRemoteRejected:  ErrRemoteRejected,
}

type TransportError struct {
	Kind       ErrorKind
	Op         string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("firestore %s %q: %s", e.Op, e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of a transport error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

func newError(kind ErrorKind, op, path string, err error) *TransportError {
	return &TransportError{Kind: kind, Op: op, Path: path, Err: err}
}

// kindForStatus maps an HTTP status code to an error kind.
func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized:
		return KindUnauthorized
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusBadRequest:
		return KindInvalidArgument
	case code == http.StatusRequestTimeout, code == http.StatusBadGateway,
		code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		return KindUnreachable
	default:
		return KindRemoteRejected
	}
}

// statusError builds an error from a non-2xx REST response body.
func statusError(op, path string, code int, body []byte) *TransportError {
	te := &TransportError{Kind: kindForStatus(code), Op: op, Path: path, StatusCode: code}

	var payload struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		te.Message = payload.Error.Message
		if payload.Error.Status != "" {
			te.Message = payload.Error.Status + ": " + te.Message
		}
	} else if len(body) > 0 {
		te.Message = truncate(string(body), 256)
	}
	return te
}

// classify turns any error raised while talking to the store into a
// *TransportError. Timeouts and connection failures are Unreachable.
func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return err
	}

	if errors.Is(err, auth.ErrCredential) || errors.Is(err, auth.ErrAuthExchange) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &TransportError{
			Kind:       kindForStatus(gerr.Code),
			Op:         op,
			Path:       path,
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Err:        err,
		}
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return newError(KindUnreachable, op, path, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindUnreachable, op, path, err)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return newError(KindUnreachable, op, path, err)
	}

	return newError(KindRemoteRejected, op, path, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
