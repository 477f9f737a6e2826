package session

import "errors"

var (
	// ErrConnectionClosed marks a clean peer-initiated close. A subscribe
	// session treats it as normal end-of-stream; a publish session with
	// items remaining treats it as failure.
	ErrConnectionClosed = errors.New("session: connection closed by peer")

	// ErrConnection marks an abnormal open/send/receive failure. The
	// connection is always closed before this surfaces.
	ErrConnection = errors.New("session: connection error")

	// ErrTimeout marks the overall session deadline expiring. The
	// connection is always closed before this surfaces.
	ErrTimeout = errors.New("session: timeout")

	// ErrCaller marks a failure in caller-supplied code (delivery callback
	// or item source). Not retried, not suppressed.
	ErrCaller = errors.New("session: caller error")
)
