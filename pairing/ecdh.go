package pairing

import (
	"bytes"
	"crypto"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	ecdh "github.com/wsddn/go-ecdh"

	"github.com/blesec/smp/sliceops"
)

// ECDHKeys is a session-local P-256 keypair. A fresh one is generated
// for every pairing attempt, except that the OOB model reuses the
// keypair the local OOB data was generated with.
type ECDHKeys struct {
	public  crypto.PublicKey
	private crypto.PrivateKey
}

func GenerateKeys() (*ECDHKeys, error) {
	var err error
	kp := ECDHKeys{}
	e := ecdh.NewEllipticECDH(elliptic.P256())

	kp.private, kp.public, err = e.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return &kp, nil
}

// UnmarshalPublicKey parses the 64-byte little-endian X||Y wire form.
// Points off the curve (the point at infinity included) fail here.
func UnmarshalPublicKey(b []byte) (crypto.PublicKey, bool) {
	if len(b) != 64 {
		return nil, false
	}

	e := ecdh.NewEllipticECDH(elliptic.P256())
	xs := sliceops.SwapBuf(b[:32])
	ys := sliceops.SwapBuf(b[32:])

	r := append([]byte{0x04}, xs...)
	r = append(r, ys...)

	return e.Unmarshal(r)
}

// MarshalPublicKeyXY renders the 64-byte little-endian X||Y wire form.
func MarshalPublicKeyXY(k crypto.PublicKey) []byte {
	e := ecdh.NewEllipticECDH(elliptic.P256())

	ba := e.Marshal(k)
	ba = ba[1:] // drop the uncompressed-point header
	x := sliceops.SwapBuf(ba[:32])
	y := sliceops.SwapBuf(ba[32:])

	return append(x, y...)
}

// MarshalPublicKeyX renders just the little-endian X coordinate, the
// form f4 and g2 consume.
func MarshalPublicKeyX(k crypto.PublicKey) []byte {
	e := ecdh.NewEllipticECDH(elliptic.P256())

	ba := e.Marshal(k)
	ba = ba[1:]

	return sliceops.SwapBuf(ba[:32])
}

// GenerateSecret computes the little-endian DHKey.
func GenerateSecret(prv crypto.PrivateKey, pub crypto.PublicKey) ([]byte, error) {
	e := ecdh.NewEllipticECDH(elliptic.P256())
	b, err := e.GenerateSharedSecret(prv, pub)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("bad shared secret length %d", len(b))
	}

	return sliceops.SwapBuf(b), nil
}

// checkRemotePublicKey guards against a peer reflecting our own public
// key back (CVE-2020-26558) and against off-curve points.
func (s *Session) checkRemotePublicKey(wire []byte) (crypto.PublicKey, *Failure) {
	local := MarshalPublicKeyXY(s.keys.public)
	if bytes.Equal(local, wire) {
		return nil, newFailureCode(ReasonDHKeyCheckFailed, "remote public key matches local public key")
	}

	pub, ok := UnmarshalPublicKey(wire)
	if !ok {
		return nil, newFailureCode(ReasonDHKeyCheckFailed, "remote public key not on curve")
	}

	return pub, nil
}
