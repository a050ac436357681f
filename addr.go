package smp

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddrType is the Bluetooth address type byte as carried in SMP and
// HCI packets.
type AddrType byte

const (
	AddrPublic       AddrType = 0x00
	AddrRandomStatic AddrType = 0x01
)

// Addr is a Bluetooth device address together with its type. The bytes
// are held little-endian, the order they travel in SMP and HCI
// packets; String renders the familiar colon form.
type Addr struct {
	Type AddrType
	b    [6]byte
}

// NewAddr builds an Addr from the colon form "11:22:33:44:55:66",
// most significant byte first.
func NewAddr(s string, t AddrType) (Addr, error) {
	raw, err := hex.DecodeString(strings.Replace(strings.ToLower(s), ":", "", -1))
	if err != nil {
		return Addr{}, fmt.Errorf("invalid address %q: %v", s, err)
	}
	if len(raw) != 6 {
		return Addr{}, fmt.Errorf("invalid address %q: need 6 bytes, got %d", s, len(raw))
	}

	a := Addr{Type: t}
	for i := 0; i < 6; i++ {
		a.b[i] = raw[5-i]
	}
	return a, nil
}

// AddrFromBytes builds an Addr from 6 little-endian wire bytes.
func AddrFromBytes(b []byte, t AddrType) (Addr, error) {
	if len(b) != 6 {
		return Addr{}, fmt.Errorf("invalid address: need 6 bytes, got %d", len(b))
	}
	a := Addr{Type: t}
	copy(a.b[:], b)
	return a, nil
}

func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		a.b[5], a.b[4], a.b[3], a.b[2], a.b[1], a.b[0])
}

// Bytes returns the 6 address bytes little-endian.
func (a Addr) Bytes() []byte {
	out := make([]byte, 6)
	copy(out, a.b[:])
	return out
}

// WithType returns the 7-byte little-endian form used by f5 and f6:
// the address bytes followed by the type byte.
func (a Addr) WithType() []byte {
	return append(a.Bytes(), byte(a.Type))
}
