package smp

import (
	"bytes"
	"testing"
)

func TestAddrRoundTrip(t *testing.T) {
	a, err := NewAddr("11:22:33:44:55:66", AddrPublic)
	if err != nil {
		t.Fatal(err)
	}

	if a.String() != "11:22:33:44:55:66" {
		t.Fatalf("string form: %s", a.String())
	}
	// wire form is little-endian
	if !bytes.Equal(a.Bytes(), []byte{0x66, 0x55, 0x44, 0x33, 0x22, 0x11}) {
		t.Fatalf("wire form: %x", a.Bytes())
	}

	wt := a.WithType()
	if len(wt) != 7 || wt[6] != byte(AddrPublic) {
		t.Fatalf("with-type form: %x", wt)
	}

	b, err := AddrFromBytes(a.Bytes(), AddrPublic)
	if err != nil {
		t.Fatal(err)
	}
	if b.String() != a.String() {
		t.Fatal("AddrFromBytes round trip failed")
	}
}

func TestAddrInvalid(t *testing.T) {
	if _, err := NewAddr("11:22:33", AddrPublic); err == nil {
		t.Fatal("accepted short address")
	}
	if _, err := NewAddr("zz:22:33:44:55:66", AddrPublic); err == nil {
		t.Fatal("accepted non-hex address")
	}
	if _, err := AddrFromBytes([]byte{1, 2, 3}, AddrPublic); err == nil {
		t.Fatal("accepted short byte form")
	}
}
