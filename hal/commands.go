// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hal

// Command register encodings shared by every EtherLink III generation
// (§4.3: windowed register file, command issued at the fixed command/status
// offset regardless of selected window).
const (
	cmdGlobalReset     = 0x0000
	cmdRxDisable       = 0x1800
	cmdRxEnable        = 0x2000
	cmdRxReset         = 0x2800
	cmdRxDiscardTop    = 0x4000
	cmdTxEnable        = 0x4800
	cmdTxDisable       = 0x5000
	cmdTxReset         = 0x5800
	cmdAckIntr         = 0x6800
	cmdSetIntrEnb      = 0x7000
	cmdSetStatusEnb    = 0x7800
	cmdSetRxFilter     = 0x8000
	cmdSetTxStartThresh = 0x9800
	cmdStatsEnable     = 0xa000
	cmdStatsDisable    = 0xa800
)

// Status register bits (§4.3 "interrupt_ack_and_classify").
const (
	stIntLatch       = 0x0001
	stAdapterFailure = 0x0002
	stTxComplete     = 0x0004
	stTxAvailable    = 0x0008
	stRxComplete     = 0x0010
	stRxEarly        = 0x0020
	stIntReq         = 0x0040
	stStatsFull      = 0x0080
	stLinkEvent      = 0x0100
	stCmdInProgress  = 0x1000

	statusIntMask = stAdapterFailure | stTxComplete | stTxAvailable |
		stRxComplete | stRxEarly | stStatsFull | stLinkEvent
)

// Receive filter bits for cmdSetRxFilter (§4.3 "set_receive_mode").
const (
	rxFilterIndividual = 0x01
	rxFilterMulticast  = 0x02
	rxFilterBroadcast  = 0x04
	rxFilterPromisc    = 0x08
)

// rxFilterFor translates the public ReceiveMode bitset to the chip's filter
// encoding (§6 function 0x14).
func rxFilterFor(mode uint8) uint8 {
	var f uint8

	const (
		rxOff = 1 << iota
		rxDirect
		rxBroadcast
		rxMulticastList
		rxAllMulticast
		rxPromiscuous
	)

	if mode&rxOff != 0 {
		return 0
	}
	if mode&rxDirect != 0 {
		f |= rxFilterIndividual
	}
	if mode&rxBroadcast != 0 {
		f |= rxFilterBroadcast
	}
	if mode&(rxMulticastList|rxAllMulticast) != 0 {
		f |= rxFilterMulticast
	}
	if mode&rxPromiscuous != 0 {
		f |= rxFilterPromisc
	}

	return f
}

// Window indices (§4.3: Vortex and later have a permanent window 1 for
// the FIFO/status bank; window 0 holds configuration/EEPROM; window 2
// holds the station address; window 3 holds the receive filter and media
// options; window 6 holds statistics counters).
const (
	winConfig    = 0
	winOperating = 1
	winAddress   = 2
	winFilter    = 3
	winStats     = 6
)
