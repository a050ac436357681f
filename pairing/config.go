package pairing

import (
	"fmt"

	"github.com/blesec/smp"
	"github.com/blesec/smp/hci"
)

// Role is the link-layer role of the local device for this session.
// The Central is always the pairing initiator.
type Role byte

const (
	RoleCentral Role = iota
	RolePeripheral
)

// UIAction tags an answer delivered through Session.OnUIAction.
type UIAction byte

const (
	UIPairingAccepted UIAction = iota
	UIConfirmYesNo
	UIPasskey
)

// UI receives prompt and display pushes from the session. Answers come
// back asynchronously via Session.OnUIAction; implementations must not
// block.
type UI interface {
	// PromptPairingAccept asks whether a remotely initiated pairing
	// may proceed. Answer: UIPairingAccepted with value 1 (yes) or 0.
	PromptPairingAccept()

	// PromptNumericComparison shows the six-digit value and asks for
	// yes/no. Answer: UIConfirmYesNo with value 1 or 0.
	PromptNumericComparison(value uint32)

	// PromptPasskey asks the user to type the passkey shown on the
	// peer. Answer: UIPasskey with the 0..999999 value.
	PromptPasskey()

	// DisplayPasskey shows the passkey the peer's user must type.
	DisplayPasskey(passkey uint32)
}

// Config carries everything a session needs up front. All fields are
// read-only once the session starts.
type Config struct {
	Role       Role
	ConnHandle uint16

	LocalAddr  smp.Addr
	RemoteAddr smp.Addr

	IOCap       byte
	AuthReq     byte
	MaxKeySize  byte
	InitKeyDist byte
	RespKeyDist byte

	// RemotelyInitiated marks a session triggered by the peer; the UI
	// is asked to accept before any PDU goes out.
	RemotelyInitiated bool

	// InitialCommand optionally holds the raw PAIRING_REQUEST that
	// triggered a peripheral session.
	InitialCommand []byte

	// LocalOOB is the r/C pair we handed to the peer out of band;
	// RemoteOOB is the pair received from it. LegacyOOBKey is the
	// 16-byte legacy TK from the OOB channel.
	LocalOOB     *OOBData
	RemoteOOB    *OOBData
	LegacyOOBKey []byte

	// Identity and signing material distributed in Phase 3 when the
	// negotiated masks ask for it. Nil fields are generated randomly.
	IRK          []byte
	IdentityAddr *smp.Addr
	CSRK         []byte

	// WritePDU enqueues one SMP PDU on the L2CAP security channel.
	WritePDU func([]byte) (int, error)

	LESecurity hci.LESecurity
	UI         UI

	Logger smp.Logger
}

func (c *Config) validate() error {
	switch {
	case c.WritePDU == nil:
		return fmt.Errorf("pairing: config needs WritePDU")
	case c.LESecurity == nil:
		return fmt.Errorf("pairing: config needs LESecurity")
	case c.UI == nil:
		return fmt.Errorf("pairing: config needs UI")
	case c.IOCap >= ioCapReservedStart:
		return fmt.Errorf("pairing: reserved io capability 0x%02x", c.IOCap)
	case c.MaxKeySize < minKeySize || c.MaxKeySize > maxKeySize:
		return fmt.Errorf("pairing: max key size %d out of range", c.MaxKeySize)
	}
	return nil
}

func (c *Config) oobFlag() byte {
	if c.RemoteOOB != nil || len(c.LegacyOOBKey) == 16 {
		return oobDataPresent
	}
	return oobDataAbsent
}
