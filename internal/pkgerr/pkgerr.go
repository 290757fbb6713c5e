// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pkgerr implements the core's error taxonomy (§7): every error the
// driver returns across a module boundary carries one Kind, set once at the
// point the error is first raised and preserved through wrapping so callers
// can branch on "what category of failure is this" without parsing strings.
package pkgerr

import "github.com/pkg/errors"

// Kind classifies a failure the way §7 Error Handling Design does.
type Kind int

const (
	// Unknown is the zero value; it should never appear on an error this
	// package produced deliberately.
	Unknown Kind = iota

	// Configuration covers malformed or contradictory configuration
	// (bad I/O base, conflicting overrides).
	Configuration

	// Probe covers hardware not found, or found but not a recognized
	// chip at the expected location.
	Probe

	// Capability covers a requested feature the detected hardware or
	// execution environment cannot provide (e.g. DMA requested against
	// a PIO-only chip).
	Capability

	// HardwareTimeout covers a register or completion bit that never
	// reached its expected state within the allotted polling window.
	HardwareTimeout

	// TransientIO covers a recoverable single-operation failure (TX
	// collision, single corrupted RX descriptor) that does not imply
	// the device is unusable.
	TransientIO

	// ResourceExhaustion covers pool/handle/ring exhaustion: the
	// request was well-formed but no capacity remains.
	ResourceExhaustion

	// ProtocolMisuse covers a caller violating the public entry point's
	// contract (bad function code, handle not owned by caller, zero-length
	// buffer where one is required).
	ProtocolMisuse

	// InvariantViolation covers the orchestrator or dispatcher detecting
	// a state that should be impossible if every other module is correct
	// (e.g. a descriptor owned by both driver and device simultaneously).
	InvariantViolation
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Probe:
		return "probe"
	case Capability:
		return "capability"
	case HardwareTimeout:
		return "hardware-timeout"
	case TransientIO:
		return "transient-io"
	case ResourceExhaustion:
		return "resource-exhaustion"
	case ProtocolMisuse:
		return "protocol-misuse"
	case InvariantViolation:
		return "invariant-violation"
	default:
		return "unknown"
	}
}

// kinded wraps an error with a Kind, preserving the pkg/errors stack trace
// and Cause/Unwrap chain of the error it wraps.
type kinded struct {
	error
	kind Kind
}

// WithKind tags err with kind. If err is nil, WithKind returns nil. If err
// already carries a Kind, it is replaced — the innermost call to WithKind
// loses, mirroring how errors.Wrap lets the outermost message win.
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &kinded{error: err, kind: kind}
}

// Wrap annotates err with msg and tags it with kind in one step.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return WithKind(errors.Wrap(err, msg), kind)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return WithKind(errors.Wrapf(err, format, args...), kind)
}

func (k *kinded) Cause() error  { return k.error }
func (k *kinded) Unwrap() error { return k.error }

// KindOf walks err's cause chain and returns the first Kind attached to it,
// or Unknown if none of the chain was tagged.
func KindOf(err error) Kind {
	for err != nil {
		if k, ok := err.(*kinded); ok {
			return k.kind
		}

		type causer interface{ Cause() error }
		type unwrapper interface{ Unwrap() error }

		switch x := err.(type) {
		case causer:
			err = x.Cause()
		case unwrapper:
			err = x.Unwrap()
		default:
			return Unknown
		}
	}

	return Unknown
}

// Is reports whether err's chain carries kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
