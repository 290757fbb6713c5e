// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Adapted from the tamago soc/nxp/enet buffer descriptor ring
// (soc/nxp/enet/dma.go): the same fixed-size array of descriptors carrying
// an ownership bit and a length/status/address triple, generalized from a
// single SoC's legacy FEC descriptor layout to the driver-owned/device-owned
// ring C4 needs for any DMA-capable 3Com generation (§3 Descriptor Ring).
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ring implements the fixed-size descriptor ring shared between
// driver and device for DMA back-ends (§3, §4.4): producer/consumer indices,
// an ownership bit per entry, and the refill/reap bookkeeping C4 drives.
package ring

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/go3com/pktdrv/dma"
	"github.com/go3com/pktdrv/internal/pkgerr"
)

// Owner is the descriptor's ownership bit (§3: "owned-by-device /
// owned-by-driver").
type Owner int

const (
	OwnerDriver Owner = iota
	OwnerDevice
)

// Flag bits carried alongside ownership (§3).
type Flag uint8

const (
	FlagNone Flag = 0
	FlagEOF  Flag = 1 << iota
	FlagInterruptOnCompletion
	FlagError
)

// Descriptor is one ring entry (§3 Descriptor Ring).
type Descriptor struct {
	Owner Owner
	Flags Flag
	Len   int

	buf *dma.Descriptor
}

// Bytes returns the descriptor's backing DMA buffer, sized to Len.
func (d *Descriptor) Bytes() []byte {
	if d.buf == nil {
		return nil
	}
	return d.buf.Bytes[:d.Len]
}

// Phys returns the descriptor buffer's physical address, as presented to
// the device.
func (d *Descriptor) Phys() uint64 {
	if d.buf == nil {
		return 0
	}
	return d.buf.Phys
}

// Ring is a fixed power-of-two-sized descriptor ring (§3: "16 for earliest
// DMA generations; up to 64 for later").
type Ring struct {
	mu sync.Mutex

	entries  []*Descriptor
	size     int
	producer int
	consumer int

	pool *dma.Pool
	bufSize int
}

// New returns a ring of size entries (must be a power of two) with no
// buffers attached yet: PopulateReceive backs every entry with a bufSize-byte
// buffer from pool, and PostTransmit allocates one per posted frame.
func New(size, bufSize int, pool *dma.Pool) (*Ring, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, pkgerr.WithKind(errors.Errorf("ring: size %d is not a power of two", size), pkgerr.Configuration)
	}

	r := &Ring{
		entries: make([]*Descriptor, size),
		size:    size,
		pool:    pool,
		bufSize: bufSize,
	}

	return r, nil
}

// PopulateReceive fully populates the ring with driver-owned, device-mapped
// receive buffers (§4.4: "On attach, the ring is fully populated with
// driver-owned buffers, each mapped for device-to-CPU DMA").
func (r *Ring) PopulateReceive() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		d, err := r.pool.Alloc(r.bufSize, nil)
		if err != nil {
			return pkgerr.Wrap(err, pkgerr.ResourceExhaustion, "ring: populate receive")
		}

		// Freshly posted receive buffers are handed to the device —
		// it has work pending on them until it fills one and flips
		// ownership back (§3 invariant: "owned-by-device iff the
		// device has work pending on it").
		r.entries[i] = &Descriptor{Owner: OwnerDevice, Len: r.bufSize, buf: d}
	}

	return nil
}

// Size returns the ring's entry count.
func (r *Ring) Size() int { return r.size }

// At returns the descriptor at a given ring index (for tests asserting the
// ring ownership invariant directly).
func (r *Ring) At(i int) *Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[i%r.size]
}

// PostTransmit enqueues frame at the producer index, flips ownership to the
// device, and advances the producer index (§4.3 send: "populate the next
// transmit descriptor, flip its ownership to the device").
func (r *Ring) PostTransmit(frame []byte) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.producer % r.size
	d := r.entries[idx]

	if d != nil && d.Owner == OwnerDevice {
		return nil, pkgerr.WithKind(errors.New("ring: full"), pkgerr.ResourceExhaustion)
	}

	buf, err := r.pool.Alloc(len(frame), frame)
	if err != nil {
		return nil, pkgerr.Wrap(err, pkgerr.ResourceExhaustion, "ring: transmit allocation")
	}

	nd := &Descriptor{Owner: OwnerDevice, Flags: FlagEOF, Len: len(frame), buf: buf}
	r.entries[idx] = nd
	r.producer++

	return nd, nil
}

// ReapTransmit releases the descriptor at the consumer index once the
// device has signaled completion (flipped it back to driver ownership),
// advancing the consumer index. Returns false if the device still owns it.
func (r *Ring) ReapTransmit() (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.consumer % r.size
	d := r.entries[idx]

	if d == nil || d.Owner == OwnerDevice {
		return nil, false
	}

	r.pool.Free(d.buf)
	r.consumer++

	return d, true
}

// DrainReceive pops the descriptor at the consumer index if the device has
// released it (flipped to driver ownership), refills the slot with a fresh
// buffer, and advances the consumer index — mirroring §4.4's refill dance
// (a)-(e). The caller is responsible for copying/consuming Bytes() before
// the slot is reused; DrainReceive returns the drained descriptor's data
// copied out so the refill cannot race the consumer.
func (r *Ring) DrainReceive() (frame []byte, flags Flag, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Slots emptied by an earlier refill failure are skipped.
	for n := 0; n < r.size && r.entries[r.consumer%r.size] == nil; n++ {
		r.consumer++
	}

	idx := r.consumer % r.size
	d := r.entries[idx]

	if d == nil || d.Owner == OwnerDevice {
		return nil, 0, false
	}

	frame = append([]byte(nil), d.Bytes()...)
	flags = d.Flags

	fresh, err := r.pool.Alloc(r.bufSize, nil)
	if err != nil {
		// §4.4: "on refill failure the driver shrinks the effective
		// ring rather than stalling" — leave the slot empty; later
		// drains skip it.
		r.pool.Free(d.buf)
		r.entries[idx] = nil
		r.consumer++
		return frame, flags, true
	}

	r.pool.Free(d.buf)
	r.entries[idx] = &Descriptor{Owner: OwnerDevice, Len: r.bufSize, buf: fresh}
	r.consumer++

	return frame, flags, true
}

// MarkDeviceDone simulates the device completing a descriptor (used by
// loopback/test harnesses that stand in for real silicon): flips the
// descriptor at idx from device to driver ownership.
func (r *Ring) MarkDeviceDone(idx int, flags Flag) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.entries[idx%r.size]
	if d == nil {
		return
	}

	d.Owner = OwnerDriver
	d.Flags |= flags
}

// InUse reports how many descriptors are currently device-owned, used by
// the ring-ownership invariant test (§8 invariant 1).
func (r *Ring) InUse() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, d := range r.entries {
		if d != nil && d.Owner == OwnerDevice {
			n++
		}
	}
	return n
}
