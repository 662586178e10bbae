// VirtIO error taxonomy
// https://github.com/armvirt/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package verr defines the closed set of error kinds surfaced by the
// virtio transport, queue, block and fat32 packages, so that callers can
// distinguish failure modes with errors.Is rather than string matching.
package verr

import "fmt"

// Kind identifies a class of failure. The set is closed: callers may
// switch exhaustively over it.
type Kind int

const (
	// Unknown is the zero value and never produced deliberately.
	Unknown Kind = iota
	// DeviceNotFound means no MMIO slot matched the requested device id.
	DeviceNotFound
	// BadMagic means a slot's MAGIC register did not read 0x74726976.
	BadMagic
	// BadVersion means a slot's VERSION register was neither the legacy
	// nor the modern interface value.
	BadVersion
	// NegotiationRejected means the device cleared FEATURES_OK after
	// the driver set it.
	NegotiationRejected
	// QueueInitFailed means queue setup could not proceed; the wrapped Err
	// names the sub-reason ("queue_ready_timeout" or "queue_max_zero").
	QueueInitFailed
	// ProtocolViolation means the device behaved in a way the driver
	// contract does not allow (e.g. returned a descriptor id that does
	// not head an in-flight chain).
	ProtocolViolation
	// Timeout means a bounded wait loop (completion) exceeded its
	// iteration budget.
	Timeout
	// IoError mirrors the block device's VIRTIO_BLK_S_IOERR status.
	IoError
	// Unsupported mirrors the block device's VIRTIO_BLK_S_UNSUPP status.
	Unsupported
	// NotFound means a FAT32 directory scan completed without a match.
	NotFound
	// NoSpace means no free cluster was found during allocation.
	NoSpace
	// Exists means write_file was asked to overwrite an existing file.
	Exists
	// InvalidVolume means the boot sector failed validation.
	InvalidVolume
	// TooLarge means a file's recorded size exceeds the caller's buffer.
	TooLarge
)

func (k Kind) String() string {
	switch k {
	case DeviceNotFound:
		return "device not found"
	case BadMagic:
		return "bad magic"
	case BadVersion:
		return "bad version"
	case NegotiationRejected:
		return "negotiation rejected"
	case QueueInitFailed:
		return "queue init failed"
	case ProtocolViolation:
		return "protocol violation"
	case Timeout:
		return "timeout"
	case IoError:
		return "io error"
	case Unsupported:
		return "unsupported"
	case NotFound:
		return "not found"
	case NoSpace:
		return "no space"
	case Exists:
		return "already exists"
	case InvalidVolume:
		return "invalid volume"
	case TooLarge:
		return "too large"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with context, it is the concrete error type returned
// across all package boundaries in this driver stack.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, letting
// callers write errors.Is(err, verr.New(verr.NotFound, "", nil)) or more
// idiomatically errors.Is(err, verr.ErrNotFound) via the Kind sentinel
// values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error for op with the given kind, optionally
// wrapping a lower-level error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Sentinel kind-only errors, suitable as errors.Is comparison targets:
// errors.Is(err, verr.ErrNotFound).
var (
	ErrDeviceNotFound      = &Error{Kind: DeviceNotFound}
	ErrBadMagic            = &Error{Kind: BadMagic}
	ErrBadVersion          = &Error{Kind: BadVersion}
	ErrNegotiationRejected = &Error{Kind: NegotiationRejected}
	ErrQueueInitFailed     = &Error{Kind: QueueInitFailed}
	ErrProtocolViolation   = &Error{Kind: ProtocolViolation}
	ErrTimeout             = &Error{Kind: Timeout}
	ErrIoError             = &Error{Kind: IoError}
	ErrUnsupported         = &Error{Kind: Unsupported}
	ErrNotFound            = &Error{Kind: NotFound}
	ErrNoSpace             = &Error{Kind: NoSpace}
	ErrExists              = &Error{Kind: Exists}
	ErrInvalidVolume       = &Error{Kind: InvalidVolume}
	ErrTooLarge            = &Error{Kind: TooLarge}
)
