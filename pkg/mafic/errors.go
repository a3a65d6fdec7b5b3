package mafic

import (
	"errors"
	"fmt"
)

// Error codes attached to wrapped transport errors.
const (
	ErrCodeConnectionFailed = "CONNECTION_FAILED"
	ErrCodeReconnectFailed  = "RECONNECT_FAILED"
	ErrCodeWebSocket        = "WEBSOCKET_ERROR"
	ErrCodeTimeout          = "TIMEOUT_ERROR"
	ErrCodeJSONParse        = "JSON_PARSE_ERROR"
	ErrCodeConfigInvalid    = "CONFIG_INVALID"
	ErrCodeUnknown          = "UNKNOWN_ERROR"
)

var (
	// ErrNodeAlreadyConnected is returned by Node.Connect when the node
	// already holds a live websocket.
	ErrNodeAlreadyConnected = errors.New("mafic: node is already connected")

	// ErrNoNodesAvailable is returned when the strategy pipeline narrows the
	// candidate set down to nothing.
	ErrNoNodesAvailable = errors.New("mafic: no nodes are available to handle this player")

	// ErrPlayerNotConnected is returned by mutating player calls issued
	// before the player has a node and live voice credentials.
	ErrPlayerNotConnected = errors.New("mafic: the player is not connected to a voice channel")

	// ErrRegistryNotInitialized is returned by NodeRegistry.CreateNode when
	// no host adapter was supplied.
	ErrRegistryNotInitialized = errors.New("mafic: node registry has no host adapter configured")
)

// VersionError is a fatal version mismatch with the audio server.
type VersionError struct {
	Version string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("mafic: unsupported server version %s (expected 3.7.x or 4.x.x)", e.Version)
}

// HTTPError is a non-2xx REST response from a node. Status-specific
// predicates cover the cases callers commonly branch on.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("mafic: HTTP %d: %s", e.Status, e.Message)
}

// IsBadRequest reports whether err is an HTTPError with status 400.
func IsBadRequest(err error) bool { return isHTTPStatus(err, 400) }

// IsUnauthorized reports whether err is an HTTPError with status 401.
func IsUnauthorized(err error) bool { return isHTTPStatus(err, 401) }

// IsNotFound reports whether err is an HTTPError with status 404.
func IsNotFound(err error) bool { return isHTTPStatus(err, 404) }

func isHTTPStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}

// TrackLoadError is returned when the node could not resolve a track query.
type TrackLoadError struct {
	Message  string
	Severity string
	Cause    string
}

func (e *TrackLoadError) Error() string {
	return fmt.Sprintf("mafic: the track could not be loaded: %s (%s error)", e.Message, e.Severity)
}

// MaficError wraps a transport-layer error with a code and context details,
// mostly for handing to error handlers and structured logs.
type MaficError struct {
	Message string
	Code    string
	Details map[string]any
	wrapped error
}

func NewMaficError(message, code string) *MaficError {
	return &MaficError{
		Message: message,
		Code:    code,
		Details: make(map[string]any),
	}
}

// WrapError wraps any error as a MaficError with the given code.
func WrapError(err error, code string) *MaficError {
	if err == nil {
		return nil
	}
	me := NewMaficError(err.Error(), code)
	me.wrapped = err
	return me
}

func (e *MaficError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *MaficError) Unwrap() error { return e.wrapped }

// AddDetail attaches a context value and returns the error for chaining.
func (e *MaficError) AddDetail(key string, value any) *MaficError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// IsErrorCode reports whether err carries the given MaficError code.
func IsErrorCode(err error, code string) bool {
	var me *MaficError
	return errors.As(err, &me) && me.Code == code
}

// IsRetryableError reports whether the error is a transient transport
// failure that the reconnect loop handles on its own.
func IsRetryableError(err error) bool {
	for _, code := range []string{
		ErrCodeConnectionFailed,
		ErrCodeReconnectFailed,
		ErrCodeWebSocket,
		ErrCodeTimeout,
	} {
		if IsErrorCode(err, code) {
			return true
		}
	}
	return false
}
