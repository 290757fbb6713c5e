// First-fit memory allocator for DMA-safe buffers
// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Adapted from the usbarmory/tamago dma package's first-fit allocator
// (dma/block.go, dma/alloc.go, dma/region.go), generalized from "carve a
// slice out of bare physical memory" to "carve a slice out of a pool arena
// and report the physical address that arena offset would have in a real
// bus-master-addressable range" so the allocator is exercisable on a hosted
// OS without violating memory safety.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dma

// block is a free-list or used-list node: a span of the pool arena
// identified by its offset and size. res mirrors the teacher allocator's
// reserved-buffer flag; this package has no reserve path, so it is never
// set.
type block struct {
	off  uint
	size uint
	res  bool
}
