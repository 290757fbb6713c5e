// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Adapted from the tamago runtime's exception.Throw (exception/exception.go):
// the same file/line-then-panic pattern, repurposed from a CPU trap handler
// into the core's last-resort reporter for violations of its own internal
// invariants (§8) — states that can only arise from a bug in the core
// itself, never from operator input or misbehaving hardware, and so are
// never worth a recoverable error return.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package exception reports violations of the core's internal invariants:
// conditions that indicate a bug in the core's own wiring rather than a
// condition an operator or a misbehaving NIC could trigger. Throw is never
// the right response to untrusted input, hardware timeouts, or
// configuration mistakes — those get a pkgerr.Kind and an error return. It
// exists only for "this should be impossible" assertions.
package exception

import "runtime"

// Throw reports an internal invariant violation at the caller's location and
// panics. why should name the specific invariant that was found broken.
func Throw(why string) {
	if pc, file, line, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			print(fn.Name(), " ", file, ":", line, ": ", why, "\n")
			panic("invariant violation: " + why)
		}
	}

	panic("invariant violation: " + why)
}
