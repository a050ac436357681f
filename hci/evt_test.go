package hci

import "testing"

func TestEncryptionChange(t *testing.T) {
	pkt := Event{EvtEncryptionChange, 4, 0x00, 0x40, 0x00, 0x01}
	if !pkt.Valid() {
		t.Fatal("valid packet rejected")
	}

	v := EncryptionChange(pkt.Payload())
	if !v.Valid() {
		t.Fatal("payload rejected")
	}
	if v.Status() != 0x00 || v.ConnectionHandle() != 0x0040 || v.EncryptionEnabled() != 0x01 {
		t.Fatalf("fields: %02x %04x %02x", v.Status(), v.ConnectionHandle(), v.EncryptionEnabled())
	}
}

func TestLELongTermKeyRequest(t *testing.T) {
	payload := []byte{0x40, 0x00, 8, 7, 6, 5, 4, 3, 2, 1, 0x34, 0x12}
	v := LELongTermKeyRequest(payload)
	if !v.Valid() {
		t.Fatal("payload rejected")
	}
	if v.ConnectionHandle() != 0x0040 {
		t.Fatalf("handle: %04x", v.ConnectionHandle())
	}
	if v.RandomNumber() != 0x0102030405060708 {
		t.Fatalf("rand: %016x", v.RandomNumber())
	}
	if v.EncryptionDiversifier() != 0x1234 {
		t.Fatalf("ediv: %04x", v.EncryptionDiversifier())
	}
}

func TestEventLengthMismatch(t *testing.T) {
	if (Event{EvtEncryptionChange, 5, 0x00, 0x40, 0x00, 0x01}).Valid() {
		t.Fatal("accepted wrong parameter length")
	}
	if (Event{EvtEncryptionChange}).Valid() {
		t.Fatal("accepted truncated event")
	}
}
