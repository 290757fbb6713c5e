// https://github.com/go3com/pktdrv
//
// Copyright (c) The pktdrv Authors
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package config implements §4.5 stage 3 ("Configuration extraction from
// external options source") and §6's "Configuration options source": a
// simple key=value list, with an optional YAML overlay for structured
// per-interface settings, plus a small boolean-expression override gate
// evaluated via govaluate for the force_busmaster / force_pio knobs that
// feed C2's gate 2 (§4.2).
package config

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/casbin/govaluate"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/go3com/pktdrv/internal/pkgerr"
)

// Interface holds the per-interface knobs §6 names: "I/O base per
// interface, IRQ per interface, forced speed, bus-master override".
type Interface struct {
	IOBase        uint16 `yaml:"io_base"`
	IRQ           int    `yaml:"irq"`
	ForcedSpeed   string `yaml:"forced_speed"`
	ForceBusmaster *bool `yaml:"force_busmaster"`
}

// Options is the fully parsed configuration consumed at stage 3.
type Options struct {
	LogLevel     string            `yaml:"log_level"`
	StaticRoutes []string          `yaml:"static_routes"`
	Interfaces   map[string]Interface `yaml:"interfaces"`

	// Overrides holds raw key=value overrides not otherwise modeled,
	// evaluated on demand via Bool.
	Overrides map[string]string
}

// Parse reads the canonical key=value options source (§6). Lines of the
// form "interfaces.<n>.<field>=value" populate the Interfaces map,
// log_level and static_routes populate their own fields, and every other key
// is stored verbatim in Overrides for Bool to evaluate.
func Parse(r io.Reader) (*Options, error) {
	opts := &Options{
		Interfaces: make(map[string]Interface),
		Overrides:  make(map[string]string),
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			return nil, pkgerr.WithKind(errors.Errorf("config: malformed line %q", line), pkgerr.Configuration)
		}

		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		opts.apply(key, val)
	}

	if err := sc.Err(); err != nil {
		return nil, pkgerr.Wrap(err, pkgerr.Configuration, "config: scan")
	}

	return opts, nil
}

func (o *Options) apply(key, val string) {
	switch key {
	case "log_level":
		o.LogLevel = val
		return
	case "static_routes":
		o.StaticRoutes = strings.Fields(val)
		return
	}

	if strings.HasPrefix(key, "interfaces.") {
		rest := strings.TrimPrefix(key, "interfaces.")
		parts := strings.SplitN(rest, ".", 2)
		if len(parts) == 2 {
			name, field := parts[0], parts[1]
			iface := o.Interfaces[name]
			applyInterfaceField(&iface, field, val)
			o.Interfaces[name] = iface
			return
		}
	}

	o.Overrides[key] = val
}

func applyInterfaceField(iface *Interface, field, val string) {
	switch field {
	case "io_base":
		if n, err := strconv.ParseUint(strings.TrimPrefix(val, "0x"), 16, 16); err == nil {
			iface.IOBase = uint16(n)
		}
	case "irq":
		if n, err := strconv.Atoi(val); err == nil {
			iface.IRQ = n
		}
	case "forced_speed":
		iface.ForcedSpeed = val
	case "force_busmaster":
		b := val == "yes" || val == "true" || val == "1"
		iface.ForceBusmaster = &b
	}
}

// ApplyYAMLOverlay merges a YAML document on top of opts, letting deployers
// express the same structured settings with nesting instead of dotted keys
// (§6 options source is explicitly "simple"; the overlay is an addition the
// core's stage 3 supports for richer deployments, not a replacement).
func (o *Options) ApplyYAMLOverlay(doc []byte) error {
	overlay := &Options{}

	if err := yaml.Unmarshal(doc, overlay); err != nil {
		return pkgerr.Wrap(err, pkgerr.Configuration, "config: parse YAML overlay")
	}

	if overlay.LogLevel != "" {
		o.LogLevel = overlay.LogLevel
	}
	if len(overlay.StaticRoutes) > 0 {
		o.StaticRoutes = overlay.StaticRoutes
	}
	for name, iface := range overlay.Interfaces {
		o.Interfaces[name] = iface
	}

	return nil
}

// Bool evaluates a boolean override expression against the raw Overrides
// map — e.g. "force_busmaster == 'yes' && not_virtualized" — using
// govaluate so deployments can express conditional overrides without the
// config package needing to know every possible condition in advance. This
// is the evaluator feeding C2 gate 2 (§4.2 "Configuration-override gate").
func (o *Options) Bool(expr string) (bool, error) {
	if expr == "" {
		return false, nil
	}

	evaluable, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return false, pkgerr.Wrap(err, pkgerr.Configuration, "config: compile override expression")
	}

	params := make(map[string]interface{}, len(o.Overrides))
	for k, v := range o.Overrides {
		if b, err := strconv.ParseBool(v); err == nil {
			params[k] = b
		} else {
			params[k] = v
		}
	}

	result, err := evaluable.Evaluate(params)
	if err != nil {
		return false, pkgerr.Wrap(err, pkgerr.Configuration, "config: evaluate override expression")
	}

	b, ok := result.(bool)
	if !ok {
		return false, pkgerr.WithKind(errors.Errorf("config: override expression %q is not boolean", expr), pkgerr.Configuration)
	}

	return b, nil
}
