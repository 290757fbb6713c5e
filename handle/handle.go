// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package handle implements the Handle Table (§3, §6): the map from an
// opaque application handle to its registered frame type, receiver
// callback, and device scope.
package handle

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/go3com/pktdrv/internal/pkgerr"
)

// Wildcard is the receive-all sentinel frame type (§3).
const Wildcard = -1

// MinHandles is the minimum concurrent handle count §6 requires ("At least
// 16 concurrent handles").
const MinHandles = 16

// Callback is invoked in back-half context with the owning handle and a
// received frame (§6 receiver callback convention, simplified to a single
// Go call instead of the two-phase register convention since no segmented
// far-call boundary exists here).
type Callback func(h ID, frame []byte)

// ID is an opaque handle identifier (§6: "Handle identifiers are opaque,
// allocated sequentially with reuse after release").
type ID int

// Entry is one Handle Table row (§3).
type Entry struct {
	FrameType int // 16-bit Ethernet type, or Wildcard
	Receiver  Callback
	Device    int // device index, or AnyDevice
	Flags     uint32
}

// AnyDevice means the handle matches frames from every attached device.
const AnyDevice = -1

// Table is the Handle Table. at most one handle may match (device, exact
// frame type); wildcard handles coexist with exact handles, and an exact
// match wins dispatch ties (§3 invariant).
type Table struct {
	mu      sync.Mutex
	entries map[ID]Entry
	next    ID
	cap     int
}

// NewTable returns an empty table sized for at least MinHandles entries.
func NewTable(capacity int) *Table {
	if capacity < MinHandles {
		capacity = MinHandles
	}

	return &Table{
		entries: make(map[ID]Entry),
		cap:     capacity,
	}
}

// Register adds an entry, enforcing the uniqueness invariant (§8 invariant
// 3) and the table capacity (§6 "no free handles").
func (t *Table) Register(e Entry) (ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.FrameType != Wildcard {
		for _, existing := range t.entries {
			if existing.Device == e.Device && existing.FrameType == e.FrameType {
				return 0, pkgerr.WithKind(errors.New("handle: type already in use"), pkgerr.ProtocolMisuse)
			}
		}
	}

	if len(t.entries) >= t.cap {
		return 0, pkgerr.WithKind(errors.New("handle: no free handles"), pkgerr.ResourceExhaustion)
	}

	id := t.allocID()
	t.entries[id] = e

	return id, nil
}

// allocID finds the lowest unused ID, implementing "reuse after release"
// (§6) rather than a monotonically increasing counter.
func (t *Table) allocID() ID {
	for id := ID(1); ; id++ {
		if _, taken := t.entries[id]; !taken {
			return id
		}
	}
}

// Release removes a handle (§6 function 3, "bad handle" error).
func (t *Table) Release(id ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[id]; !ok {
		return pkgerr.WithKind(errors.New("handle: bad handle"), pkgerr.ProtocolMisuse)
	}

	delete(t.entries, id)
	return nil
}

// Get returns the entry for id, used by operations that need the
// registration (get_address scoping, set_receive_mode's handle, etc).
func (t *Table) Get(id ID) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e, ok
}

// Len returns the number of active handles, used by round-trip tests
// asserting register+release returns the table to its starting state.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Dispatch resolves an incoming frame's Ethernet type (read by package
// frame) to the matching handle: exact match preferred, wildcard fallback,
// no match drops the frame (§4.4 "Handle dispatch", §8 boundary behavior).
func (t *Table) Dispatch(device int, frameType int) (ID, Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var wildcardID ID
	var wildcard Entry
	haveWildcard := false

	for id, e := range t.entries {
		if e.Device != AnyDevice && e.Device != device {
			continue
		}

		if e.FrameType == frameType {
			return id, e, true
		}

		if e.FrameType == Wildcard {
			wildcardID, wildcard, haveWildcard = id, e, true
		}
	}

	if haveWildcard {
		return wildcardID, wildcard, true
	}

	return 0, Entry{}, false
}
