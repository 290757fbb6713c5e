// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package metrics exports per-device counters mirroring §6 function 0x18's
// statistics structure via prometheus/client_golang, supplementing the
// spec's in-band "Get statistics" call with an out-of-band scrape endpoint
// for deployments that already run a Prometheus collector alongside the
// driver (§9 Design Notes' global-state singletons are the natural source
// for a registry of this shape).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go3com/pktdrv/device"
)

// Counters holds the CounterVec set, labeled by device index, backing the
// same fields as device.Stats.
type Counters struct {
	PacketsIn  *prometheus.CounterVec
	PacketsOut *prometheus.CounterVec
	BytesIn    *prometheus.CounterVec
	BytesOut   *prometheus.CounterVec
	ErrorsIn   *prometheus.CounterVec
	ErrorsOut  *prometheus.CounterVec
	Lost       *prometheus.CounterVec
	Collisions *prometheus.CounterVec
	CRCErrors  *prometheus.CounterVec
	Overruns   *prometheus.CounterVec
	Underruns  *prometheus.CounterVec
}

func vec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pktdrv",
		Name:      name,
		Help:      help,
	}, []string{"device"})
}

// NewCounters builds an unregistered counter set; call Register to attach
// it to a prometheus.Registerer.
func NewCounters() *Counters {
	return &Counters{
		PacketsIn:  vec("packets_in_total", "Frames delivered to a registered handle."),
		PacketsOut: vec("packets_out_total", "Frames successfully enqueued for transmit."),
		BytesIn:    vec("bytes_in_total", "Bytes received."),
		BytesOut:   vec("bytes_out_total", "Bytes transmitted."),
		ErrorsIn:   vec("errors_in_total", "Receive-side errors."),
		ErrorsOut:  vec("errors_out_total", "Transmit-side errors."),
		Lost:       vec("lost_total", "Frames dropped for lack of a matching handle or resource exhaustion."),
		Collisions: vec("collisions_total", "Transmit collisions."),
		CRCErrors:  vec("crc_errors_total", "Receive CRC errors."),
		Overruns:   vec("overruns_total", "Receive FIFO overruns."),
		Underruns:  vec("underruns_total", "Transmit FIFO underruns."),
	}
}

// Register attaches every counter to reg.
func (c *Counters) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.PacketsIn, c.PacketsOut, c.BytesIn, c.BytesOut,
		c.ErrorsIn, c.ErrorsOut, c.Lost, c.Collisions,
		c.CRCErrors, c.Overruns, c.Underruns,
	}

	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}

	return nil
}

// Observe copies a Device Record's live Stats snapshot into the labeled
// counters. Prometheus counters only move forward, so Observe adds the
// delta since the last observed total rather than setting an absolute
// value.
func (c *Counters) Observe(idx int, prev, cur device.Stats) {
	label := strconv.Itoa(idx)

	// A counter reset (cur < prev) wraps the uint64 subtraction into the
	// upper half of the range; such a delta is not added.
	add := func(v *prometheus.CounterVec, delta uint64) {
		if delta > 0 && delta < 1<<63 {
			v.WithLabelValues(label).Add(float64(delta))
		}
	}

	add(c.PacketsIn, cur.PacketsIn-prev.PacketsIn)
	add(c.PacketsOut, cur.PacketsOut-prev.PacketsOut)
	add(c.BytesIn, cur.BytesIn-prev.BytesIn)
	add(c.BytesOut, cur.BytesOut-prev.BytesOut)
	add(c.ErrorsIn, cur.ErrorsIn-prev.ErrorsIn)
	add(c.ErrorsOut, cur.ErrorsOut-prev.ErrorsOut)
	add(c.Lost, cur.Lost-prev.Lost)
	add(c.Collisions, cur.Collisions-prev.Collisions)
	add(c.CRCErrors, cur.CRCErrors-prev.CRCErrors)
	add(c.Overruns, cur.Overruns-prev.Overruns)
	add(c.Underruns, cur.Underruns-prev.Underruns)
}
