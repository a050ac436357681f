package pairing

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestECDHSharedSecret(t *testing.T) {
	k1, err := GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}
	k2, err := GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}

	s1, err := GenerateSecret(k1.private, k2.public)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := GenerateSecret(k2.private, k1.public)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(s1, s2) {
		t.Fatal("shared secrets differ")
	}
	if len(s1) != 32 {
		t.Fatalf("secret length %d", len(s1))
	}
}

func TestPublicKeyMarshalRoundTrip(t *testing.T) {
	k, err := GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}

	wire := MarshalPublicKeyXY(k.public)
	if len(wire) != 64 {
		t.Fatalf("wire length %d", len(wire))
	}

	pk, ok := UnmarshalPublicKey(wire)
	if !ok {
		t.Fatal("unmarshal failed")
	}
	if !bytes.Equal(MarshalPublicKeyXY(pk), wire) {
		t.Fatal("round trip mismatch")
	}
	if !bytes.Equal(MarshalPublicKeyX(k.public), wire[:32]) {
		t.Fatal("x coordinate mismatch")
	}
}

func TestUnmarshalDumpedKey(t *testing.T) {
	// key dumped from a real exchange
	hs := "c697669493e497655afb7be56e319d53d97a7d5e4b043cfb23c1978ea9433ea62a56c8fda27d8ed835b5af7a31574ad71aa06ee745bc85e36bfde05b66a28d7d"
	hb, err := hex.DecodeString(hs)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := UnmarshalPublicKey(hb); !ok {
		t.Fatal("unmarshal err")
	}
}

func TestUnmarshalRejectsOffCurve(t *testing.T) {
	if _, ok := UnmarshalPublicKey(make([]byte, 64)); ok {
		t.Fatal("accepted all-zero point")
	}
	if _, ok := UnmarshalPublicKey(make([]byte, 12)); ok {
		t.Fatal("accepted short key")
	}
}

func TestRejectReflectedPublicKey(t *testing.T) {
	k, err := GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}

	s := &Session{keys: k}
	if _, f := s.checkRemotePublicKey(MarshalPublicKeyXY(k.public)); f == nil {
		t.Fatal("accepted reflected public key")
	}

	other, err := GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}
	if _, f := s.checkRemotePublicKey(MarshalPublicKeyXY(other.public)); f != nil {
		t.Fatalf("rejected valid key: %v", f)
	}
}

func TestGenerateOOBData(t *testing.T) {
	oob, err := GenerateOOBData()
	if err != nil {
		t.Fatal(err)
	}

	pkx := MarshalPublicKeyX(oob.Keys.public)
	c, err := smpF4(pkx, pkx, oob.R, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(c, oob.C) {
		t.Fatal("oob confirm does not commit to the keypair")
	}
}
