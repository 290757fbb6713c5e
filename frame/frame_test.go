package frame

import "testing"

func TestValidateLengthBoundaries(t *testing.T) {
	if err := ValidateLength(MinLength - 1); err == nil {
		t.Fatal("expected rejection below minimum length")
	}
	if err := ValidateLength(MinLength); err != nil {
		t.Fatalf("ValidateLength(min): %v", err)
	}
	if err := ValidateLength(MaxLength); err != nil {
		t.Fatalf("ValidateLength(max): %v", err)
	}
	if err := ValidateLength(MaxLength + 1); err == nil {
		t.Fatal("expected rejection above MTU")
	}
}

func TestBuildThenEtherTypeRoundTrip(t *testing.T) {
	dst := [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	src := [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i)
	}

	out, err := Build(dst, src, 0x0800, payload)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	et, err := EtherType(out)
	if err != nil {
		t.Fatalf("EtherType: %v", err)
	}
	if et != 0x0800 {
		t.Fatalf("EtherType = 0x%x, want 0x0800", et)
	}
}

func TestEtherTypeRejectsShortFrame(t *testing.T) {
	if _, err := EtherType(make([]byte, 4)); err == nil {
		t.Fatal("expected rejection of a frame shorter than the Ethernet header")
	}
}

func TestEtherTypeAtExpectedOffset(t *testing.T) {
	data := make([]byte, 16)
	data[EthernetTypeOffset] = 0x08
	data[EthernetTypeOffset+1] = 0x06

	et, err := EtherType(data)
	if err != nil {
		t.Fatalf("EtherType: %v", err)
	}
	if et != 0x0806 {
		t.Fatalf("EtherType = 0x%x, want 0x0806", et)
	}
}
