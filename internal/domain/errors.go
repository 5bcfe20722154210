package domain

import "fmt"

// ConnectionError indicates a transport-level failure: unreachable host,
// refused connection, or timeout. It is always propagated to the caller,
// never retried internally.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("connection to %s failed: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError wraps a transport failure for the given host.
func NewConnectionError(host string, err error) *ConnectionError {
	return &ConnectionError{Host: host, Err: err}
}

// DecodeError indicates that the device was reachable but the response did
// not match any known structure: a TCP frame too short or corrupt, or a
// payload matching no structural fingerprint. Field-level absence is not a
// decode error; it resolves to the documented default instead.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode failed: %s: %v", e.Reason, e.Err)
	}
	return "decode failed: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecodeError reports an unrecognized or malformed payload.
func NewDecodeError(reason string) *DecodeError {
	return &DecodeError{Reason: reason}
}

// NewDecodeErrorf reports an unrecognized or malformed payload with a
// formatted reason.
func NewDecodeErrorf(format string, args ...interface{}) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}
