// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Adapted from the tamago arm/gic driver's acknowledge/classify/EOI idiom
// (arm/gic/gic.go): IAR-read-classifies-the-source, EOIR-write-acknowledges
// becomes, on this target, the 8259 Programmable Interrupt Controller pair's
// IRR/ISR read and OCW2 EOI command — cascaded for IRQ lines 8-15 exactly as
// the GLOSSARY describes ("master-plus-slave on cascaded IRQs").
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package intr implements C4's interrupt front-half/back-half split (§4.4):
// the 8259-cascade acknowledge/EOI primitive, and the bounded
// single-producer single-consumer work queue bridging hard-IRQ context to
// deferred back-half processing.
package intr

import "github.com/go3com/pktdrv/internal/reg"

// Standard 8259 PIC port pair (master and slave, cascaded on IRQ2).
const (
	MasterCommand = 0x20
	MasterData    = 0x21
	SlaveCommand  = 0xa0
	SlaveData     = 0xa1

	eoiCommand = 0x20
)

// Controller drives the 8259 master/slave PIC pair.
type Controller struct {
	Bus reg.Bus
}

// EOI sends the end-of-interrupt command matching irq: master-only for
// lines 0-7, master-plus-slave for lines 8-15 (§4.4 step 3, GLOSSARY "EOI").
func (c *Controller) EOI(irq int) {
	if irq >= 8 {
		c.Bus.Out8(SlaveCommand, eoiCommand)
	}
	c.Bus.Out8(MasterCommand, eoiCommand)
}

// Mask disables irq at the controller (§4.5 stage 14 is the inverse:
// Unmask).
func (c *Controller) Mask(irq int) {
	port, bit := dataPort(irq)
	cur := c.Bus.In8(port)
	c.Bus.Out8(port, cur|1<<bit)
}

// Unmask enables irq at the controller.
func (c *Controller) Unmask(irq int) {
	port, bit := dataPort(irq)
	cur := c.Bus.In8(port)
	c.Bus.Out8(port, cur&^(1<<bit))
}

func dataPort(irq int) (port uint16, bit uint) {
	if irq >= 8 {
		return SlaveData, uint(irq - 8)
	}
	return MasterData, uint(irq)
}
