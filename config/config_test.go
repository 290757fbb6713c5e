package config

import (
	"strings"
	"testing"
)

func TestParseKeyValueBasics(t *testing.T) {
	input := `
# comment line
log_level=debug
static_routes=10.0.0.1 10.0.0.2
interfaces.eth0.io_base=0x300
interfaces.eth0.irq=10
interfaces.eth0.forced_speed=100full
interfaces.eth0.force_busmaster=yes
force_pio=false
`

	opts, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if opts.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", opts.LogLevel)
	}
	if len(opts.StaticRoutes) != 2 {
		t.Fatalf("StaticRoutes = %v, want 2 entries", opts.StaticRoutes)
	}

	iface, ok := opts.Interfaces["eth0"]
	if !ok {
		t.Fatal("expected an eth0 interface entry")
	}
	if iface.IOBase != 0x300 {
		t.Fatalf("IOBase = 0x%x, want 0x300", iface.IOBase)
	}
	if iface.IRQ != 10 {
		t.Fatalf("IRQ = %d, want 10", iface.IRQ)
	}
	if iface.ForcedSpeed != "100full" {
		t.Fatalf("ForcedSpeed = %q, want 100full", iface.ForcedSpeed)
	}
	if iface.ForceBusmaster == nil || !*iface.ForceBusmaster {
		t.Fatal("expected ForceBusmaster = true")
	}

	if opts.Overrides["force_pio"] != "false" {
		t.Fatalf("Overrides[force_pio] = %q, want false", opts.Overrides["force_pio"])
	}
}

func TestParseMalformedLineErrors(t *testing.T) {
	if _, err := Parse(strings.NewReader("not_a_key_value_line")); err == nil {
		t.Fatal("expected an error on a malformed line")
	}
}

func TestApplyYAMLOverlayMergesInterfaces(t *testing.T) {
	opts, err := Parse(strings.NewReader("log_level=info\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	doc := []byte(`
log_level: trace
interfaces:
  eth1:
    io_base: 768
    irq: 11
`)

	if err := opts.ApplyYAMLOverlay(doc); err != nil {
		t.Fatalf("ApplyYAMLOverlay: %v", err)
	}

	if opts.LogLevel != "trace" {
		t.Fatalf("LogLevel after overlay = %q, want trace", opts.LogLevel)
	}

	iface, ok := opts.Interfaces["eth1"]
	if !ok {
		t.Fatal("expected eth1 from the YAML overlay")
	}
	if iface.IOBase != 768 {
		t.Fatalf("IOBase = %d, want 768", iface.IOBase)
	}
}

func TestBoolEvaluatesOverrideExpression(t *testing.T) {
	opts, err := Parse(strings.NewReader("force_pio=false\nforce_busmaster=true\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ok, err := opts.Bool("force_busmaster && !force_pio")
	if err != nil {
		t.Fatalf("Bool: %v", err)
	}
	if !ok {
		t.Fatal("expected the override expression to evaluate true")
	}
}

func TestBoolEmptyExpressionIsFalse(t *testing.T) {
	opts, _ := Parse(strings.NewReader(""))
	ok, err := opts.Bool("")
	if err != nil {
		t.Fatalf("Bool: %v", err)
	}
	if ok {
		t.Fatal("expected an empty expression to evaluate false")
	}
}

func TestBoolNonBooleanExpressionErrors(t *testing.T) {
	opts, _ := Parse(strings.NewReader("log_level=debug\n"))
	if _, err := opts.Bool("1 + 1"); err == nil {
		t.Fatal("expected an error for a non-boolean override expression")
	}
}
