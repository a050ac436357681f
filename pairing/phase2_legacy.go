package pairing

import "bytes"

// phase2Legacy runs the legacy TK/confirm/random flow and returns the
// truncated STK.
func (s *Session) phase2Legacy() ([]byte, *Failure) {
	tk, f := s.legacyTK()
	if f != nil {
		return nil, f
	}
	return s.legacyStage2(tk)
}

// legacyTK derives the temporary key for the negotiated model.
func (s *Session) legacyTK() ([]byte, *Failure) {
	switch s.model {
	case AssociationJustWorks:
		return make([]byte, 16), nil

	case AssociationPasskeyInitiatorDisplays, AssociationPasskeyResponderDisplays, AssociationPasskeyBothInput:
		pk, f := s.obtainPasskey()
		if f != nil {
			return nil, f
		}
		return passkeyTK(pk), nil

	case AssociationOutOfBand:
		if len(s.cfg.LegacyOOBKey) != 16 {
			return nil, newFailureCode(ReasonOOBNotAvailable, "legacy oob key not available")
		}
		return cloned(s.cfg.LegacyOOBKey), nil
	}

	return nil, newFailure("no legacy stage 1 flow for model %v", s.model)
}

// legacyStage2 swaps c1 confirms and randoms, verifies the peer's
// commitment and derives STK = s1(TK, Srand, Mrand).
func (s *Session) legacyStage2(tk []byte) ([]byte, *Failure) {
	preq := s.req.Marshal()
	pres := s.rsp.Marshal()

	ia := s.cfg.LocalAddr
	ra := s.cfg.RemoteAddr
	if !s.isCentral() {
		ia, ra = ra, ia
	}
	iat, rat := byte(ia.Type), byte(ra.Type)

	c1local := func(r []byte) ([]byte, *Failure) {
		out, err := smpC1(tk, r, preq, pres, iat, rat, ia.Bytes(), ra.Bytes())
		if err != nil {
			return nil, newFailure("c1: %v", err)
		}
		return out, nil
	}

	localRand, f := rand16()
	if f != nil {
		return nil, f
	}
	localConfirm, f := c1local(localRand)
	if f != nil {
		return nil, f
	}

	var mrand, srand []byte
	if s.isCentral() {
		if f := s.sendCmd(&PairingConfirm{Value: localConfirm}); f != nil {
			return nil, f
		}
		remoteConfirm, f := s.waitPairingConfirm()
		if f != nil {
			return nil, f
		}

		if f := s.sendCmd(&PairingRandom{Value: localRand}); f != nil {
			return nil, f
		}
		rnd, f := s.waitPairingRandom()
		if f != nil {
			return nil, f
		}

		calc, f := c1local(rnd.Value)
		if f != nil {
			return nil, f
		}
		if !bytes.Equal(calc, remoteConfirm.Value) {
			return nil, newFailureCode(ReasonConfirmValueFailed, "sconfirm mismatch")
		}
		mrand, srand = localRand, rnd.Value
	} else {
		remoteConfirm, f := s.waitPairingConfirm()
		if f != nil {
			return nil, f
		}
		if f := s.sendCmd(&PairingConfirm{Value: localConfirm}); f != nil {
			return nil, f
		}

		rnd, f := s.waitPairingRandom()
		if f != nil {
			return nil, f
		}
		calc, f := c1local(rnd.Value)
		if f != nil {
			return nil, f
		}
		if !bytes.Equal(calc, remoteConfirm.Value) {
			return nil, newFailureCode(ReasonConfirmValueFailed, "mconfirm mismatch")
		}

		if f := s.sendCmd(&PairingRandom{Value: localRand}); f != nil {
			return nil, f
		}
		mrand, srand = rnd.Value, localRand
	}

	stk, err := smpS1(tk, srand, mrand)
	if err != nil {
		return nil, newFailure("s1: %v", err)
	}
	return s.truncateKey(stk), nil
}
