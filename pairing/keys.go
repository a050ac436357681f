package pairing

import "github.com/blesec/smp"

// DistributedKeys is the bonding material the peer handed over in
// Phase 3. Nil slices mean the corresponding key was not distributed:
// its mask bit was not negotiated or, for LTK, the pairing used Secure
// Connections.
type DistributedKeys struct {
	LTK  []byte
	EDIV uint16
	Rand uint64

	IRK          []byte
	IdentityAddr *smp.Addr

	CSRK []byte
}

// Result is the successful outcome of a session. For Secure
// Connections LTK is the f5-derived key both sides hold; for legacy
// pairing it is the peer-distributed LTK, or nil when the Enc mask was
// not negotiated.
type Result struct {
	LTK           []byte
	SecureConn    bool
	Authenticated bool

	PeerKeys DistributedKeys
}
