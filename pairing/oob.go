package pairing

import "crypto/rand"

// OOBData is the random/confirm pair carried over the out-of-band
// channel for LE Secure Connections. Locally generated data keeps the
// keypair that produced it, so the session that later runs the OOB
// model presents the public key the confirm commits to.
type OOBData struct {
	R []byte // 16 bytes
	C []byte // 16 bytes

	Keys *ECDHKeys
}

// GenerateOOBData produces the material to hand to the peer over the
// out-of-band channel: C = f4(PKx, PKx, r, 0).
func GenerateOOBData() (*OOBData, error) {
	keys, err := GenerateKeys()
	if err != nil {
		return nil, err
	}

	r := make([]byte, 16)
	if _, err := rand.Read(r); err != nil {
		return nil, err
	}

	pkx := MarshalPublicKeyX(keys.public)
	c, err := smpF4(pkx, pkx, r, 0)
	if err != nil {
		return nil, err
	}

	return &OOBData{R: r, C: c, Keys: keys}, nil
}
