// Package protocol implements the binary debug protocol spoken by the Lua
// server embedded in Metroid Dread. This file defines the error taxonomy used
// across the packet codec and the session engine.
package protocol

import (
	"errors"
	"fmt"
	"net"
)

// ErrNotConnected is returned by operations that require an open session.
var ErrNotConnected = errors.New("not connected to the remote server")

// ConnectionError indicates a socket-level failure while establishing or
// maintaining the TCP connection.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError indicates that a bounded wait was exceeded. Op names the
// operation that timed out (e.g. "handshake", "exec response").
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// FramingError indicates that received bytes violate the expected packet
// shape: a short read, an undecodable length, or a request number that does
// not match the locally tracked counter.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed packet: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed packet: %s", e.Reason)
}

func (e *FramingError) Unwrap() error { return e.Err }

// RemoteExecutionError reports that the server explicitly rejected a Lua
// snippet. It is an expected outcome of invalid user-supplied code and does
// not invalidate the session.
type RemoteExecutionError struct {
	Message string
}

func (e *RemoteExecutionError) Error() string {
	if e.Message == "" {
		return "remote lua execution failed"
	}
	return fmt.Sprintf("remote lua execution failed: %s", e.Message)
}

// ProtocolDesyncError indicates a packet tag arriving in a context where only
// another tag is valid, meaning the client and server no longer agree on the
// stream position. The session cannot be trusted afterwards.
type ProtocolDesyncError struct {
	Tag PacketType
}

func (e *ProtocolDesyncError) Error() string {
	return fmt.Sprintf("protocol desynchronization: unexpected packet %s", e.Tag)
}

// wrapIOError classifies a raw I/O failure from a read or write into the
// taxonomy above, preserving the underlying error for errors.Is/As.
func wrapIOError(op string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
