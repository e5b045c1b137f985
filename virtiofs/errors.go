package virtiofs

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Class identifies which of the driver's four recoverable error
// categories an Error belongs to. A fifth category, the interop quirk
// around trailing NULs in name payloads, is not an error at all — it is
// handled silently by raw.TrimToSingleNUL at the point a name is
// consumed.
type Class int

const (
	// ClassProtocol covers a message the driver cannot make sense of:
	// unknown opcode, inconsistent length, a reply whose unique differs
	// from its request's. The affected request fails with this class; a
	// completion that matches no in-flight request is logged and
	// dropped. The queue remains usable.
	ClassProtocol Class = iota

	// ClassDevice covers a reply that the device understood and
	// explicitly rejected: OutHeader.Status is non-zero. Surfaced to
	// the caller as an errno; never retried.
	ClassDevice

	// ClassResource covers a request the driver refused to submit at
	// all: the queue has no room, or the buffer is too small for the
	// encoded message. Surfaced immediately.
	ClassResource

	// ClassTransport covers a failure in the virtqueue/DMA plumbing
	// itself: a sync failure, a failed descriptor add. It is returned to
	// the request that hit it; the dispatcher neither retires the queue
	// nor resets the device on its own (see Dispatcher.Reset).
	ClassTransport
)

func (c Class) String() string {
	switch c {
	case ClassProtocol:
		return "protocol"
	case ClassDevice:
		return "device"
	case ClassResource:
		return "resource"
	case ClassTransport:
		return "transport"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Error wraps a failure with the class the error-handling design
// assigns it, so callers can branch with errors.As without parsing a
// message string.
type Error struct {
	Class Class
	Op    string // opcode name or subsystem, for logging
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("virtiofs: %s [%s]: %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(class Class, op string, err error) *Error {
	return &Error{Class: class, Op: op, Err: err}
}

var (
	// ErrQueueFull is a ClassResource error: the chosen queue's buffer
	// has no room for the encoded request.
	ErrQueueFull = errors.New("queue full")

	// ErrShortBuffer is a ClassResource error: the DMA buffer is
	// smaller than the encoded in+out segments require.
	ErrShortBuffer = errors.New("buffer too small for request")

	// ErrUniqueMismatch is a ClassProtocol error: the OutHeader.Unique
	// of a completed chain differs from the unique of the request that
	// chain carried. The dispatcher logs the mismatch and fails that
	// request with this error.
	ErrUniqueMismatch = errors.New("reply unique matches no in-flight request")

	// ErrShortReply is a ClassProtocol error: the device wrote fewer
	// bytes than an OutHeader, OutHeader.Length is below
	// sizeof(OutHeader) or runs past the end of the buffer, or the
	// payload is shorter than the opcode's fixed reply struct.
	ErrShortReply = errors.New("reply length inconsistent with header")

	// ErrUnknownOpcode is a ClassProtocol error: the opcode is not in
	// raw's opcode table.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrDeviceReset is returned to every in-flight waiter when
	// Dispatcher.Reset fails the queue set.
	ErrDeviceReset = errors.New("device reset in progress")

	// ErrNotInitialized is returned if an operation other than Init is
	// submitted, on any queue, before the INIT handshake completes.
	ErrNotInitialized = errors.New("INIT handshake has not completed")
)

// DeviceErrno wraps the numeric errno a device returned in
// OutHeader.Status (ClassDevice). unix.Errno already implements error
// and satisfies errors.Is against syscall.Errno values, so callers can
// write `errors.Is(err, unix.ENOENT)` directly.
func DeviceErrno(errno int32) error {
	if errno == 0 {
		return nil
	}
	n := errno
	if n < 0 {
		n = -n
	}
	return unix.Errno(n)
}
