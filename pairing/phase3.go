package pairing

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/blesec/smp"
)

// phase3 distributes bonding keys per the negotiated masks. The
// responder transmits first; in SC mode the Enc set is suppressed in
// both directions since the LTK already exists on both sides.
func (s *Session) phase3() (*DistributedKeys, *Failure) {
	sendMask := s.respKD
	recvMask := s.initKD
	if s.isCentral() {
		sendMask, recvMask = s.initKD, s.respKD
	}
	if s.secure {
		sendMask &^= KeyDistEnc
		recvMask &^= KeyDistEnc
	}

	if s.isCentral() {
		keys, f := s.receiveKeys(recvMask)
		if f != nil {
			return nil, f
		}
		if f := s.sendKeys(sendMask); f != nil {
			return nil, f
		}
		return keys, nil
	}

	if f := s.sendKeys(sendMask); f != nil {
		return nil, f
	}
	return s.receiveKeys(recvMask)
}

// sendKeys transmits our share in the fixed order Enc, Id, Sign. The
// Link bit never distributes anything here.
func (s *Session) sendKeys(mask byte) *Failure {
	if mask&KeyDistEnc != 0 {
		ltk, f := rand16()
		if f != nil {
			return f
		}
		var idb [10]byte
		if _, err := rand.Read(idb[:]); err != nil {
			return newFailure("rng: %v", err)
		}
		ediv := binary.LittleEndian.Uint16(idb[0:2])
		randVal := binary.LittleEndian.Uint64(idb[2:10])

		if f := s.sendCmd(&EncryptionInformation{LTK: ltk}); f != nil {
			return f
		}
		if f := s.sendCmd(&CentralIdentification{EDIV: ediv, Rand: randVal}); f != nil {
			return f
		}
	}

	if mask&KeyDistID != 0 {
		irk := s.cfg.IRK
		if len(irk) != 16 {
			var f *Failure
			if irk, f = rand16(); f != nil {
				return f
			}
		}
		addr := s.cfg.LocalAddr
		if s.cfg.IdentityAddr != nil {
			addr = *s.cfg.IdentityAddr
		}

		if f := s.sendCmd(&IdentityInformation{IRK: irk}); f != nil {
			return f
		}
		if f := s.sendCmd(&IdentityAddressInformation{AddrType: byte(addr.Type), Addr: addr.Bytes()}); f != nil {
			return f
		}
	}

	if mask&KeyDistSign != 0 {
		csrk := s.cfg.CSRK
		if len(csrk) != 16 {
			var f *Failure
			if csrk, f = rand16(); f != nil {
				return f
			}
		}
		if f := s.sendCmd(&SigningInformation{CSRK: csrk}); f != nil {
			return f
		}
	}

	return nil
}

// receiveKeys collects the peer's share in the same fixed order. Any
// other PDU in between is a protocol violation.
func (s *Session) receiveKeys(mask byte) (*DistributedKeys, *Failure) {
	out := &DistributedKeys{}

	if mask&KeyDistEnc != 0 {
		cmd, f := s.waitPDU(codeEncryptionInformation)
		if f != nil {
			return nil, f
		}
		out.LTK = cmd.(*EncryptionInformation).LTK

		cmd, f = s.waitPDU(codeCentralIdentification)
		if f != nil {
			return nil, f
		}
		ci := cmd.(*CentralIdentification)
		out.EDIV, out.Rand = ci.EDIV, ci.Rand
	}

	if mask&KeyDistID != 0 {
		cmd, f := s.waitPDU(codeIdentityInformation)
		if f != nil {
			return nil, f
		}
		out.IRK = cmd.(*IdentityInformation).IRK

		cmd, f = s.waitPDU(codeIdentityAddrInformation)
		if f != nil {
			return nil, f
		}
		ia := cmd.(*IdentityAddressInformation)
		addr, err := smp.AddrFromBytes(ia.Addr, smp.AddrType(ia.AddrType))
		if err != nil {
			return nil, newFailure("identity address: %v", err)
		}
		out.IdentityAddr = &addr
	}

	if mask&KeyDistSign != 0 {
		cmd, f := s.waitPDU(codeSigningInformation)
		if f != nil {
			return nil, f
		}
		out.CSRK = cmd.(*SigningInformation).CSRK
	}

	return out, nil
}
