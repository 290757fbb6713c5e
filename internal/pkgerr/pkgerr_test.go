package pkgerr

import (
	"testing"

	"github.com/pkg/errors"
)

func TestWithKindRoundTrip(t *testing.T) {
	base := errors.New("boom")
	err := WithKind(base, HardwareTimeout)

	if KindOf(err) != HardwareTimeout {
		t.Fatalf("KindOf = %v, want HardwareTimeout", KindOf(err))
	}
	if !Is(err, HardwareTimeout) {
		t.Fatal("Is(err, HardwareTimeout) = false")
	}
}

func TestWithKindNilIsNil(t *testing.T) {
	if WithKind(nil, Probe) != nil {
		t.Fatal("WithKind(nil, ...) should return nil")
	}
}

func TestWrapPreservesKindThroughAnnotation(t *testing.T) {
	err := Wrap(errors.New("underlying"), ResourceExhaustion, "allocating a buffer")

	if KindOf(err) != ResourceExhaustion {
		t.Fatalf("KindOf = %v, want ResourceExhaustion", KindOf(err))
	}
	if err.Error() != "allocating a buffer: underlying" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestKindOfUnknownForPlainError(t *testing.T) {
	if KindOf(errors.New("plain")) != Unknown {
		t.Fatal("expected Unknown for an error with no attached Kind")
	}
}

func TestKindOfNilIsUnknown(t *testing.T) {
	if KindOf(nil) != Unknown {
		t.Fatal("expected Unknown for a nil error")
	}
}

func TestStringNames(t *testing.T) {
	cases := map[Kind]string{
		Configuration:      "configuration",
		Probe:              "probe",
		Capability:         "capability",
		HardwareTimeout:    "hardware-timeout",
		TransientIO:        "transient-io",
		ResourceExhaustion: "resource-exhaustion",
		ProtocolMisuse:     "protocol-misuse",
		InvariantViolation: "invariant-violation",
		Unknown:            "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", k, got, want)
		}
	}
}
