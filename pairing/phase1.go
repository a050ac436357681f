package pairing

// AssociationModel is the Phase 2 authentication method negotiated by
// the feature exchange.
type AssociationModel int

const (
	AssociationJustWorks AssociationModel = iota
	AssociationNumericComparison
	// initiator displays the passkey, responder types it
	AssociationPasskeyInitiatorDisplays
	// responder displays the passkey, initiator types it
	AssociationPasskeyResponderDisplays
	// both sides type a user-chosen passkey
	AssociationPasskeyBothInput
	AssociationOutOfBand
)

var associationModelStrings = map[AssociationModel]string{
	AssociationJustWorks:                "just works",
	AssociationNumericComparison:        "numeric comparison",
	AssociationPasskeyInitiatorDisplays: "passkey entry (initiator displays)",
	AssociationPasskeyResponderDisplays: "passkey entry (responder displays)",
	AssociationPasskeyBothInput:         "passkey entry (both input)",
	AssociationOutOfBand:                "out of band",
}

func (m AssociationModel) String() string {
	if s, ok := associationModelStrings[m]; ok {
		return s
	}
	return "unknown"
}

func (m AssociationModel) isPasskey() bool {
	switch m {
	case AssociationPasskeyInitiatorDisplays, AssociationPasskeyResponderDisplays, AssociationPasskeyBothInput:
		return true
	}
	return false
}

// Core spec v5.x Vol 3, Part H, 2.3.5.1, Tables 2.7 and 2.8.
// Indexed [responder io cap][initiator io cap], like the wire order of
// the exchange.
var ioCapsTableSC = [5][5]AssociationModel{
	{AssociationJustWorks, AssociationJustWorks, AssociationPasskeyResponderDisplays, AssociationJustWorks, AssociationPasskeyResponderDisplays},
	{AssociationJustWorks, AssociationNumericComparison, AssociationPasskeyResponderDisplays, AssociationJustWorks, AssociationNumericComparison},
	{AssociationPasskeyInitiatorDisplays, AssociationPasskeyInitiatorDisplays, AssociationPasskeyBothInput, AssociationJustWorks, AssociationPasskeyInitiatorDisplays},
	{AssociationJustWorks, AssociationJustWorks, AssociationJustWorks, AssociationJustWorks, AssociationJustWorks},
	{AssociationPasskeyInitiatorDisplays, AssociationNumericComparison, AssociationPasskeyResponderDisplays, AssociationJustWorks, AssociationNumericComparison},
}

var ioCapsTableLegacy = [5][5]AssociationModel{
	{AssociationJustWorks, AssociationJustWorks, AssociationPasskeyResponderDisplays, AssociationJustWorks, AssociationPasskeyResponderDisplays},
	{AssociationJustWorks, AssociationJustWorks, AssociationPasskeyResponderDisplays, AssociationJustWorks, AssociationPasskeyResponderDisplays},
	{AssociationPasskeyInitiatorDisplays, AssociationPasskeyInitiatorDisplays, AssociationPasskeyBothInput, AssociationJustWorks, AssociationPasskeyInitiatorDisplays},
	{AssociationJustWorks, AssociationJustWorks, AssociationJustWorks, AssociationJustWorks, AssociationJustWorks},
	{AssociationPasskeyInitiatorDisplays, AssociationPasskeyInitiatorDisplays, AssociationPasskeyResponderDisplays, AssociationJustWorks, AssociationPasskeyInitiatorDisplays},
}

// associationModel is a pure function of the exchanged feature PDUs.
func associationModel(req *PairingRequest, rsp *PairingResponse, secure bool) AssociationModel {
	if secure {
		if req.OOBFlag == oobDataPresent || rsp.OOBFlag == oobDataPresent {
			return AssociationOutOfBand
		}
	} else if req.OOBFlag == oobDataPresent && rsp.OOBFlag == oobDataPresent {
		return AssociationOutOfBand
	}

	if req.AuthReq&AuthReqMITM == 0 && rsp.AuthReq&AuthReqMITM == 0 {
		return AssociationJustWorks
	}

	init := req.IOCap
	resp := rsp.IOCap
	// reserved values act as NoInputNoOutput
	if init >= ioCapReservedStart {
		init = IOCapNoInputNoOutput
	}
	if resp >= ioCapReservedStart {
		resp = IOCapNoInputNoOutput
	}

	if secure {
		return ioCapsTableSC[resp][init]
	}
	return ioCapsTableLegacy[resp][init]
}

func minKey(a, b byte) byte {
	if a < b {
		return a
	}
	return b
}

// phase1 runs the feature exchange and fixes the association model,
// the negotiated key size and the key distribution masks.
func (s *Session) phase1() *Failure {
	if s.cfg.Role == RoleCentral {
		// CT2 always cleared; cross-transport derivation is not ours
		req := &PairingRequest{
			IOCap:       s.cfg.IOCap,
			OOBFlag:     s.cfg.oobFlag(),
			AuthReq:     s.cfg.AuthReq &^ AuthReqCT2,
			MaxKeySize:  minKey(s.cfg.MaxKeySize, maxKeySize),
			InitKeyDist: s.cfg.InitKeyDist,
			RespKeyDist: s.cfg.RespKeyDist,
		}
		if f := s.sendCmd(req); f != nil {
			return f
		}
		s.req = req

		cmd, f := s.waitPDU(codePairingResponse)
		if f != nil {
			return f
		}
		s.rsp = cmd.(*PairingResponse)
	} else {
		var cmd Command
		if len(s.cfg.InitialCommand) > 0 {
			var err error
			cmd, err = Decode(s.cfg.InitialCommand)
			if err != nil {
				return newFailureCode(ReasonInvalidParameters, "malformed initial command: %v", err)
			}
			if cmd.Code() != codePairingRequest {
				return newFailure("initial command is %s, not PAIRING_REQUEST", codeText(cmd.Code()))
			}
		} else {
			var f *Failure
			cmd, f = s.waitPDU(codePairingRequest)
			if f != nil {
				return f
			}
		}
		s.req = cmd.(*PairingRequest)

		// offer only what was requested
		rsp := &PairingResponse{
			IOCap:       s.cfg.IOCap,
			OOBFlag:     s.cfg.oobFlag(),
			AuthReq:     s.cfg.AuthReq &^ AuthReqCT2,
			MaxKeySize:  minKey(s.cfg.MaxKeySize, maxKeySize),
			InitKeyDist: s.req.InitKeyDist & s.cfg.InitKeyDist,
			RespKeyDist: s.req.RespKeyDist & s.cfg.RespKeyDist,
		}
		if f := s.sendCmd(rsp); f != nil {
			return f
		}
		s.rsp = rsp
	}

	if s.req.MaxKeySize > maxKeySize || s.rsp.MaxKeySize > maxKeySize {
		return newFailureCode(ReasonInvalidParameters, "max key size beyond 16")
	}
	s.keySize = minKey(s.req.MaxKeySize, s.rsp.MaxKeySize)
	if s.keySize < minKeySize {
		return newFailureCode(ReasonEncryptionKeySize, "negotiated key size %d below minimum", s.keySize)
	}

	s.secure = s.req.AuthReq&AuthReqSC != 0 && s.rsp.AuthReq&AuthReqSC != 0
	s.initKD = s.req.InitKeyDist & s.rsp.InitKeyDist
	s.respKD = s.req.RespKeyDist & s.rsp.RespKeyDist
	s.model = associationModel(s.req, s.rsp, s.secure)

	// a side that insists on MITM cannot settle for an unauthenticated
	// model
	if s.cfg.AuthReq&AuthReqMITM != 0 && s.model == AssociationJustWorks {
		return newFailureCode(ReasonAuthenticationRequired, "mitm required but io capabilities only allow just works")
	}

	s.log.Infof("feature exchange done: model=%v secure=%v keySize=%d", s.model, s.secure, s.keySize)
	return nil
}
