// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package device

// DefaultCapabilities returns the initial capability bit-set for a
// generation, populated at probe time before DMA policy is selected (§4.1:
// "a populated Device Record with generation tag and initial capability
// bit-set" and "Capability derivation: from generation, not from runtime
// feature polling"). A register bit that unambiguously exposes a feature
// (NWAY auto-negotiation on Cyclone and later) is still read at attach time
// and ORed in separately; this table only covers what the generation alone
// already implies.
func (g Generation) DefaultCapabilities() Capability {
	switch g {
	case ISAPIO10:
		return 0

	case ISABusmaster100:
		return CapBusMaster | Cap16MiBLimit

	case PCIVortex:
		return CapBusMaster | CapPermanentWindow1

	case PCIBoomerang:
		return CapBusMaster | CapPermanentWindow1 | CapHWChecksum

	case PCICyclone:
		return CapBusMaster | CapPermanentWindow1 | CapHWChecksum | CapLinkAutoNeg

	case PCITornado:
		return CapBusMaster | CapPermanentWindow1 | CapHWChecksum | CapLinkAutoNeg | CapScatterGather

	case CardBus, MiniPCI:
		return CapBusMaster | CapPermanentWindow1 | CapHWChecksum | CapLinkAutoNeg | CapScatterGather

	default:
		return 0
	}
}
