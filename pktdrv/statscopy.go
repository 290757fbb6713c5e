// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pktdrv

import (
	"github.com/tiendc/go-deepcopy"

	"github.com/go3com/pktdrv/device"
)

// deepCopyStats clones a Device Record's live counters into a value the
// caller owns outright, so GetStatistics never hands back a pointer the
// back half could still be mutating underneath the application (§3 Device
// Record single-owner rule).
func deepCopyStats(dst, src *device.Stats) error {
	return deepcopy.Copy(dst, src)
}
