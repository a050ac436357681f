package pairing

import (
	"crypto/aes"
	"encoding/binary"
	"fmt"

	"github.com/aead/cmac"

	"github.com/blesec/smp/sliceops"
)

// The toolbox below takes and returns little-endian buffers, the order
// SMP uses on the wire. AES and AES-CMAC run most-significant-byte
// first, so every function swaps on entry and exit.

func aesCMAC(key, msg []byte) ([]byte, error) {
	mCipher, err := aes.NewCipher(sliceops.SwapBuf(key))
	if err != nil {
		return nil, err
	}

	mMac, err := cmac.New(mCipher)
	if err != nil {
		return nil, err
	}

	mMac.Write(sliceops.SwapBuf(msg))

	return sliceops.SwapBuf(mMac.Sum(nil)), nil
}

func aes128(key, msg []byte) ([]byte, error) {
	if len(key) != 16 || len(msg) != 16 {
		return nil, fmt.Errorf("length error")
	}

	mCipher, err := aes.NewCipher(sliceops.SwapBuf(key))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 16)
	mCipher.Encrypt(out, sliceops.SwapBuf(msg))
	return sliceops.SwapBuf(out), nil
}

// smpF4 [Vol 3, Part H, 2.2.6]: confirm value generation.
func smpF4(u, v, x []byte, z uint8) ([]byte, error) {
	if len(u) != 32 || len(v) != 32 || len(x) != 16 {
		return nil, fmt.Errorf("length error")
	}

	m := []byte{z}
	m = append(m, v...)
	m = append(m, u...)

	return aesCMAC(x, m)
}

// smpF5 [Vol 3, Part H, 2.2.7]: MacKey and LTK from the DHKey.
func smpF5(w, n1, n2, a1, a2 []byte) ([]byte, []byte, error) {
	switch {
	case len(w) != 32:
		return nil, nil, fmt.Errorf("length error w")
	case len(n1) != 16:
		return nil, nil, fmt.Errorf("length error n1")
	case len(n2) != 16:
		return nil, nil, fmt.Errorf("length error n2")
	case len(a1) != 7:
		return nil, nil, fmt.Errorf("length error a1")
	case len(a2) != 7:
		return nil, nil, fmt.Errorf("length error a2")
	}

	btle := []byte{0x65, 0x6c, 0x74, 0x62}
	salt := []byte{0xbe, 0x83, 0x60, 0x5a, 0xdb, 0x0b, 0x37, 0x60,
		0x38, 0xa5, 0xf5, 0xaa, 0x91, 0x83, 0x88, 0x6c}
	length := []byte{0x00, 0x01}

	t, err := aesCMAC(salt, w)
	if err != nil {
		return nil, nil, err
	}

	m := length
	m = append(m, a2...)
	m = append(m, a1...)
	m = append(m, n2...)
	m = append(m, n1...)
	m = append(m, btle...)
	m = append(m, 0x00)

	macKey, err := aesCMAC(t, m)
	if err != nil {
		return nil, nil, err
	}

	// counter 1 selects the LTK half
	m[52] = 0x01

	ltk, err := aesCMAC(t, m)
	if err != nil {
		return nil, nil, err
	}

	return macKey, ltk, nil
}

// smpF6 [Vol 3, Part H, 2.2.8]: DHKey check value.
func smpF6(w, n1, n2, r, ioCap, a1, a2 []byte) ([]byte, error) {
	if len(w) != 16 || len(n1) != 16 || len(n2) != 16 || len(r) != 16 || len(ioCap) != 3 || len(a1) != 7 || len(a2) != 7 {
		return nil, fmt.Errorf("length error")
	}

	m := append(cloned(a2), a1...)
	m = append(m, ioCap...)
	m = append(m, r...)
	m = append(m, n2...)
	m = append(m, n1...)

	return aesCMAC(w, m)
}

// smpG2 [Vol 3, Part H, 2.2.9]: numeric comparison value, already
// reduced to six digits.
func smpG2(u, v, x, y []byte) (uint32, error) {
	if len(u) != 32 || len(v) != 32 || len(x) != 16 || len(y) != 16 {
		return 0, fmt.Errorf("length error")
	}

	m := append(cloned(y), v...)
	m = append(m, u...)

	h, err := aesCMAC(x, m)
	if err != nil {
		return 0, err
	}

	out := binary.LittleEndian.Uint32(h[:4])
	return out % 1000000, nil
}

// smpC1 [Vol 3, Part H, 2.2.3]: legacy confirm value. preq and pres
// are the full 7-byte PDUs in wire order, addresses little-endian.
func smpC1(k, r, preq, pres []byte, iat, rat uint8, ia, ra []byte) ([]byte, error) {
	if len(k) != 16 || len(r) != 16 || len(preq) != 7 || len(pres) != 7 || len(ia) != 6 || len(ra) != 6 {
		return nil, fmt.Errorf("length error")
	}

	p1 := []byte{iat, rat}
	p1 = append(p1, preq...)
	p1 = append(p1, pres...)

	p2 := cloned(ra)
	p2 = append(p2, ia...)
	p2 = append(p2, 0x00, 0x00, 0x00, 0x00)

	inner, err := aes128(k, sliceops.XorBuf(r, p1))
	if err != nil {
		return nil, err
	}

	return aes128(k, sliceops.XorBuf(inner, p2))
}

// smpS1 [Vol 3, Part H, 2.2.4]: legacy STK from the two pairing
// randoms, least significant halves.
func smpS1(k, r1, r2 []byte) ([]byte, error) {
	if len(k) != 16 || len(r1) != 16 || len(r2) != 16 {
		return nil, fmt.Errorf("length error")
	}

	m := cloned(r2[:8])
	m = append(m, r1[:8]...)

	return aes128(k, m)
}

// smpH6 [Vol 3, Part H, 2.2.10]: key conversion with a 4-byte key ID.
func smpH6(w, keyID []byte) ([]byte, error) {
	if len(w) != 16 || len(keyID) != 4 {
		return nil, fmt.Errorf("length error")
	}

	return aesCMAC(w, keyID)
}

// smpAh [Vol 3, Part H, 2.2.2]: random address hash over a 3-byte
// prand.
func smpAh(irk, prand []byte) ([]byte, error) {
	if len(irk) != 16 || len(prand) != 3 {
		return nil, fmt.Errorf("length error")
	}

	m := cloned(prand)
	m = append(m, make([]byte, 13)...)

	out, err := aes128(irk, m)
	if err != nil {
		return nil, err
	}
	return out[:3], nil
}

// passkeyTK spreads a 6-digit passkey into the 128-bit little-endian
// form used as legacy TK and as SC ra/rb.
func passkeyTK(key uint32) []byte {
	tk := make([]byte, 16)
	binary.LittleEndian.PutUint32(tk[:4], key)
	return tk
}

func passkeyBit(key uint32, i int) byte {
	return 0x80 | byte((key>>uint(i))&1)
}
