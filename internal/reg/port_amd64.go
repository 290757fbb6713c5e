// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package reg

// In8, Out8, In16, Out16, In32 and Out32 issue raw x86 port I/O instructions
// (IN/OUT), defined in port_amd64.s. They back the ISA activation/read ports
// used by C1's ISA probe and the CONFIG_ADDRESS/CONFIG_DATA pair used by the
// PCI configuration-mechanism-one back end. A process needs I/O-privilege
// level 3 (iopl(3) on Linux) before these are legal; callers that cannot
// obtain it run the simulated Bus instead (see Bus in bus.go).
func In8(port uint16) (val uint8)
func Out8(port uint16, val uint8)
func In16(port uint16) (val uint16)
func Out16(port uint16, val uint16)
func In32(port uint16) (val uint32)
func Out32(port uint16, val uint32)
