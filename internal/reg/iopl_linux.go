// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package reg

import "golang.org/x/sys/unix"

// EnableIOPrivilege raises the calling thread's I/O privilege level to 3,
// the prerequisite for PortBus's IN/OUT instructions to execute without
// faulting (§4.1, §4.5 stage 2 platform probe). Callers lacking CAP_SYS_RAWIO
// fall back to SimBus instead of treating this as fatal.
func EnableIOPrivilege() error {
	return unix.Iopl(3)
}
