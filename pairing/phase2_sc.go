package pairing

import "bytes"

func (s *Session) ourX() []byte {
	return MarshalPublicKeyX(s.keys.public)
}

func (s *Session) peerX() []byte {
	return MarshalPublicKeyX(s.remotePub)
}

func (s *Session) isCentral() bool {
	return s.cfg.Role == RoleCentral
}

// phase2SecureConnections runs the SC authentication flow and returns
// the truncated LTK.
func (s *Session) phase2SecureConnections() ([]byte, *Failure) {
	if f := s.exchangePublicKeys(); f != nil {
		return nil, f
	}

	dhkey, err := GenerateSecret(s.keys.private, s.remotePub)
	if err != nil {
		return nil, newFailureCode(ReasonDHKeyCheckFailed, "dhkey: %v", err)
	}

	na, nb, ra, rb, f := s.scStage1()
	if f != nil {
		return nil, f
	}

	return s.scStage2(dhkey, na, nb, ra, rb)
}

// exchangePublicKeys generates (or, for the OOB model, reuses) the
// local keypair and swaps PAIRING_PUBLIC_KEY PDUs, initiator first.
func (s *Session) exchangePublicKeys() *Failure {
	if s.model == AssociationOutOfBand && s.cfg.LocalOOB != nil && s.cfg.LocalOOB.Keys != nil {
		// the keypair the local OOB confirm commits to
		s.keys = s.cfg.LocalOOB.Keys
	} else {
		keys, err := GenerateKeys()
		if err != nil {
			return newFailure("keypair generation: %v", err)
		}
		s.keys = keys
	}

	local := &PairingPublicKey{Key: MarshalPublicKeyXY(s.keys.public)}

	if s.isCentral() {
		if f := s.sendCmd(local); f != nil {
			return f
		}
	}

	cmd, f := s.waitPDU(codePairingPublicKey)
	if f != nil {
		return f
	}
	pub, f := s.checkRemotePublicKey(cmd.(*PairingPublicKey).Key)
	if f != nil {
		return f
	}
	s.remotePub = pub

	if !s.isCentral() {
		if f := s.sendCmd(local); f != nil {
			return f
		}
	}

	return nil
}

func (s *Session) scStage1() (na, nb, ra, rb []byte, f *Failure) {
	switch s.model {
	case AssociationJustWorks, AssociationNumericComparison:
		na, nb, f = s.scConfirmExchange()
		if f != nil {
			return nil, nil, nil, nil, f
		}
		if s.model == AssociationNumericComparison {
			if f = s.scNumericCheck(na, nb); f != nil {
				return nil, nil, nil, nil, f
			}
		}
		return na, nb, make([]byte, 16), make([]byte, 16), nil

	case AssociationPasskeyInitiatorDisplays, AssociationPasskeyResponderDisplays, AssociationPasskeyBothInput:
		return s.scPasskeyEntry()

	case AssociationOutOfBand:
		return s.scOutOfBand()
	}

	return nil, nil, nil, nil, newFailure("no stage 1 flow for model %v", s.model)
}

// scConfirmExchange is the shared Just Works / Numeric Comparison
// commitment: Cb = f4(PKbx, PKax, Nb, 0) from the responder, nonce
// swap, then the initiator checks the commitment.
func (s *Session) scConfirmExchange() (na, nb []byte, f *Failure) {
	if s.isCentral() {
		confirm, f := s.waitPairingConfirm()
		if f != nil {
			return nil, nil, f
		}

		na, f = rand16()
		if f != nil {
			return nil, nil, f
		}
		if f := s.sendCmd(&PairingRandom{Value: na}); f != nil {
			return nil, nil, f
		}

		rnd, f := s.waitPairingRandom()
		if f != nil {
			return nil, nil, f
		}
		nb = rnd.Value

		calc, err := smpF4(s.peerX(), s.ourX(), nb, 0)
		if err != nil {
			return nil, nil, newFailure("f4: %v", err)
		}
		if !bytes.Equal(calc, confirm.Value) {
			return nil, nil, newFailureCode(ReasonConfirmValueFailed, "confirm mismatch")
		}
		return na, nb, nil
	}

	nb, f = rand16()
	if f != nil {
		return nil, nil, f
	}
	cb, err := smpF4(s.ourX(), s.peerX(), nb, 0)
	if err != nil {
		return nil, nil, newFailure("f4: %v", err)
	}
	if f := s.sendCmd(&PairingConfirm{Value: cb}); f != nil {
		return nil, nil, f
	}

	rnd, f := s.waitPairingRandom()
	if f != nil {
		return nil, nil, f
	}
	na = rnd.Value

	if f := s.sendCmd(&PairingRandom{Value: nb}); f != nil {
		return nil, nil, f
	}
	return na, nb, nil
}

func (s *Session) scNumericCheck(na, nb []byte) *Failure {
	pkax, pkbx := s.ourX(), s.peerX()
	if !s.isCentral() {
		pkax, pkbx = pkbx, pkax
	}

	v, err := smpG2(pkax, pkbx, na, nb)
	if err != nil {
		return newFailure("g2: %v", err)
	}

	s.cfg.UI.PromptNumericComparison(v)
	yes, f := s.waitUIConfirm()
	if f != nil {
		return f
	}
	if !yes {
		return newFailureCode(ReasonNumericComparisonFailed, "user rejected numeric comparison")
	}
	return nil
}

func (s *Session) weDisplayPasskey() bool {
	switch s.model {
	case AssociationPasskeyInitiatorDisplays:
		return s.isCentral()
	case AssociationPasskeyResponderDisplays:
		return !s.isCentral()
	}
	return false
}

func (s *Session) keypressNegotiated() bool {
	return s.req.AuthReq&AuthReqKeypress != 0 && s.rsp.AuthReq&AuthReqKeypress != 0
}

// obtainPasskey either invents and displays the passkey or asks the
// user to type the one shown on the peer. Shared with legacy passkey
// entry.
func (s *Session) obtainPasskey() (uint32, *Failure) {
	if s.weDisplayPasskey() {
		pk, f := randPasskey()
		if f != nil {
			return 0, f
		}
		s.cfg.UI.DisplayPasskey(pk)
		return pk, nil
	}

	keypress := s.keypressNegotiated()
	if keypress {
		if f := s.sendCmd(&KeypressNotification{Type: KeypressEntryStarted}); f != nil {
			return 0, f
		}
	}

	s.cfg.UI.PromptPasskey()
	pk, f := s.waitUIPasskey()
	if f != nil {
		return 0, f
	}

	if keypress {
		if f := s.sendCmd(&KeypressNotification{Type: KeypressEntryCompleted}); f != nil {
			return 0, f
		}
	}
	return pk, nil
}

// scPasskeyEntry runs the 20 commit/reveal rounds, one per passkey
// bit. The nonces of the final round feed stage 2.
func (s *Session) scPasskeyEntry() (na, nb, ra, rb []byte, f *Failure) {
	pk, f := s.obtainPasskey()
	if f != nil {
		return nil, nil, nil, nil, f
	}

	r := passkeyTK(pk)
	ra, rb = r, cloned(r)

	for i := 0; i < passkeyIterationCount; i++ {
		ri := passkeyBit(pk, i)

		localNonce, f := rand16()
		if f != nil {
			return nil, nil, nil, nil, f
		}
		localConfirm, err := smpF4(s.ourX(), s.peerX(), localNonce, ri)
		if err != nil {
			return nil, nil, nil, nil, newFailure("f4: %v", err)
		}

		var remoteNonce []byte
		if s.isCentral() {
			if f := s.sendCmd(&PairingConfirm{Value: localConfirm}); f != nil {
				return nil, nil, nil, nil, f
			}
			remoteConfirm, f := s.waitPairingConfirm()
			if f != nil {
				return nil, nil, nil, nil, f
			}
			if f := s.sendCmd(&PairingRandom{Value: localNonce}); f != nil {
				return nil, nil, nil, nil, f
			}
			rnd, f := s.waitPairingRandom()
			if f != nil {
				return nil, nil, nil, nil, f
			}
			remoteNonce = rnd.Value

			if f := s.checkPasskeyConfirm(remoteConfirm.Value, remoteNonce, ri, i); f != nil {
				return nil, nil, nil, nil, f
			}
			na, nb = localNonce, remoteNonce
		} else {
			remoteConfirm, f := s.waitPairingConfirm()
			if f != nil {
				return nil, nil, nil, nil, f
			}
			if f := s.sendCmd(&PairingConfirm{Value: localConfirm}); f != nil {
				return nil, nil, nil, nil, f
			}
			rnd, f := s.waitPairingRandom()
			if f != nil {
				return nil, nil, nil, nil, f
			}
			remoteNonce = rnd.Value

			if f := s.checkPasskeyConfirm(remoteConfirm.Value, remoteNonce, ri, i); f != nil {
				return nil, nil, nil, nil, f
			}
			if f := s.sendCmd(&PairingRandom{Value: localNonce}); f != nil {
				return nil, nil, nil, nil, f
			}
			na, nb = remoteNonce, localNonce
		}
	}

	return na, nb, ra, rb, nil
}

func (s *Session) checkPasskeyConfirm(confirm, nonce []byte, ri byte, round int) *Failure {
	calc, err := smpF4(s.peerX(), s.ourX(), nonce, ri)
	if err != nil {
		return newFailure("f4: %v", err)
	}
	if !bytes.Equal(calc, confirm) {
		return newFailureCode(ReasonConfirmValueFailed, "passkey confirm mismatch at round %d", round)
	}
	return nil
}

// scOutOfBand verifies the peer's out-of-band commitment when we hold
// it, then swaps fresh nonces.
func (s *Session) scOutOfBand() (na, nb, ra, rb []byte, f *Failure) {
	if s.cfg.RemoteOOB != nil {
		calc, err := smpF4(s.peerX(), s.peerX(), s.cfg.RemoteOOB.R, 0)
		if err != nil {
			return nil, nil, nil, nil, newFailure("f4: %v", err)
		}
		if !bytes.Equal(calc, s.cfg.RemoteOOB.C) {
			return nil, nil, nil, nil, newFailureCode(ReasonConfirmValueFailed, "oob confirm mismatch")
		}
	}

	localR := make([]byte, 16)
	if s.cfg.LocalOOB != nil {
		localR = cloned(s.cfg.LocalOOB.R)
	}
	remoteR := make([]byte, 16)
	if s.cfg.RemoteOOB != nil {
		remoteR = cloned(s.cfg.RemoteOOB.R)
	}

	if s.isCentral() {
		ra, rb = localR, remoteR

		na, f = rand16()
		if f != nil {
			return nil, nil, nil, nil, f
		}
		if f := s.sendCmd(&PairingRandom{Value: na}); f != nil {
			return nil, nil, nil, nil, f
		}
		rnd, f := s.waitPairingRandom()
		if f != nil {
			return nil, nil, nil, nil, f
		}
		nb = rnd.Value
	} else {
		ra, rb = remoteR, localR

		rnd, f := s.waitPairingRandom()
		if f != nil {
			return nil, nil, nil, nil, f
		}
		na = rnd.Value

		nb, f = rand16()
		if f != nil {
			return nil, nil, nil, nil, f
		}
		if f := s.sendCmd(&PairingRandom{Value: nb}); f != nil {
			return nil, nil, nil, nil, f
		}
	}

	return na, nb, ra, rb, nil
}

// scStage2 derives MacKey and LTK with f5, swaps the f6 DHKey checks
// (initiator first) and truncates the LTK to the negotiated size.
func (s *Session) scStage2(dhkey, na, nb, ra, rb []byte) ([]byte, *Failure) {
	a := s.cfg.LocalAddr.WithType()
	b := s.cfg.RemoteAddr.WithType()
	if !s.isCentral() {
		a, b = b, a
	}

	macKey, ltk, err := smpF5(dhkey, na, nb, a, b)
	if err != nil {
		return nil, newFailure("f5: %v", err)
	}

	ioCapA := []byte{s.req.IOCap, s.req.OOBFlag, s.req.AuthReq}
	ioCapB := []byte{s.rsp.IOCap, s.rsp.OOBFlag, s.rsp.AuthReq}

	ea, err := smpF6(macKey, na, nb, rb, ioCapA, a, b)
	if err != nil {
		return nil, newFailure("f6: %v", err)
	}
	eb, err := smpF6(macKey, nb, na, ra, ioCapB, a, b)
	if err != nil {
		return nil, newFailure("f6: %v", err)
	}

	if s.isCentral() {
		if f := s.sendCmd(&PairingDHKeyCheck{Value: ea}); f != nil {
			return nil, f
		}
		cmd, f := s.waitPDU(codePairingDHKeyCheck)
		if f != nil {
			return nil, f
		}
		if !bytes.Equal(cmd.(*PairingDHKeyCheck).Value, eb) {
			return nil, newFailureCode(ReasonDHKeyCheckFailed, "dhkey check mismatch")
		}
	} else {
		cmd, f := s.waitPDU(codePairingDHKeyCheck)
		if f != nil {
			return nil, f
		}
		if !bytes.Equal(cmd.(*PairingDHKeyCheck).Value, ea) {
			return nil, newFailureCode(ReasonDHKeyCheckFailed, "dhkey check mismatch")
		}
		if f := s.sendCmd(&PairingDHKeyCheck{Value: eb}); f != nil {
			return nil, f
		}
	}

	return s.truncateKey(ltk), nil
}

// truncateKey zeroes the high bytes down to the negotiated key size,
// after full derivation.
func (s *Session) truncateKey(k []byte) []byte {
	out := cloned(k)
	for i := int(s.keySize); i < len(out); i++ {
		out[i] = 0
	}
	return out
}
