// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package frame implements Ethernet frame validation and type-field
// extraction for C4's receive dispatch path (§4.4 "Handle dispatch"),
// built on google/gopacket's layer decoding rather than hand-rolling
// offset-12 parsing, the way the pack's network-facing examples parse
// wire frames.
package frame

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"

	"github.com/go3com/pktdrv/internal/pkgerr"
)

// MinLength and MaxLength bound what a frame length the public entry point
// will accept (§6 function 4, §8 boundary behaviors).
const (
	MinLength = 14
	MaxLength = 1518 // MTU, matching the enet-derived ring's MTU constant
)

// EthernetTypeOffset is the byte offset of the type/length field in an
// untagged Ethernet II frame (§4.4: "reads the Ethernet type at offset
// 12").
const EthernetTypeOffset = 12

// ValidateLength enforces §6 function 4's length bounds and §8's boundary
// behaviors ("Frame length below 14 bytes rejected... above MTU rejected").
func ValidateLength(n int) error {
	if n < MinLength {
		return pkgerr.WithKind(errors.Errorf("frame: length %d below minimum %d", n, MinLength), pkgerr.ProtocolMisuse)
	}
	if n > MaxLength {
		return pkgerr.WithKind(errors.Errorf("frame: length %d exceeds MTU %d", n, MaxLength), pkgerr.ProtocolMisuse)
	}
	return nil
}

// EtherType extracts the 16-bit type/length field used as the dispatch key
// into the handle table (§4.4, §3 "Frame type is a 16-bit Ethernet
// type/length discriminator").
func EtherType(data []byte) (int, error) {
	if err := ValidateLength(len(data)); err != nil {
		return 0, err
	}

	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return 0, pkgerr.WithKind(errors.New("frame: not a valid Ethernet II frame"), pkgerr.ProtocolMisuse)
	}

	return int(eth.EthernetType), nil
}

// Build assembles an Ethernet II frame from its header fields and payload,
// used by cmd/pktdrv-demo to build the frame it sends. The send path does
// not call it: pktdrv.SendPacket validates only the length (ValidateLength).
func Build(dst, src [6]byte, etherType uint16, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		DstMAC:       dst[:],
		SrcMAC:       src[:],
		EthernetType: layers.EthernetType(etherType),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: false}

	if err := gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(payload)); err != nil {
		return nil, pkgerr.Wrap(err, pkgerr.ProtocolMisuse, "frame: serialize")
	}

	out := buf.Bytes()

	if err := ValidateLength(len(out)); err != nil {
		return nil, err
	}

	return out, nil
}
