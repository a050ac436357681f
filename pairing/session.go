package pairing

import (
	"crypto"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"

	"github.com/blesec/smp"
	"github.com/blesec/smp/hci"
)

type eventType int

const (
	evtExit eventType = iota
	evtPDU
	evtHCI
	evtUI
)

type event struct {
	typ eventType

	pdu []byte
	hci []byte

	uiAction UIAction
	uiValue  uint32
}

// Session is one in-flight pairing attempt. A single worker goroutine
// owns all protocol state and consumes a serialized event stream; the
// On* producers only enqueue. The session ends when the worker yields
// a Result or a *Failure.
type Session struct {
	cfg Config
	log smp.Logger

	events chan event

	// worker-local state below; nothing outside the worker touches it
	keys      *ECDHKeys
	remotePub crypto.PublicKey

	req     *PairingRequest
	rsp     *PairingResponse
	model   AssociationModel
	secure  bool
	keySize byte
	initKD  byte
	respKD  byte

	// one-slot buffer for a PAIRING_CONFIRM that raced the passkey
	// prompt
	cachedConfirm *PairingConfirm

	timeout time.Duration

	done   chan struct{}
	result *Result
	fail   *Failure
}

// NewSession validates the config and starts the worker immediately.
func NewSession(cfg Config) (*Session, error) {
	return newSession(cfg, pairingTimeout)
}

func newSession(cfg Config, timeout time.Duration) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = smp.GetLogger()
	}

	s := &Session{
		cfg:     cfg,
		log:     log.ChildLogger(map[string]interface{}{"smpConn": cfg.ConnHandle}),
		events:  make(chan event, 16),
		timeout: timeout,
		done:    make(chan struct{}),
	}

	go s.run()
	return s, nil
}

// OnPeerPDU hands an inbound SMP PDU (CID 0x0006 payload) to the
// session. Safe from any goroutine.
func (s *Session) OnPeerPDU(b []byte) {
	s.push(event{typ: evtPDU, pdu: cloned(b)})
}

// OnHCIEvent hands a raw HCI event packet (event code, length,
// parameters) to the session. Safe from any goroutine.
func (s *Session) OnHCIEvent(b []byte) {
	s.push(event{typ: evtHCI, hci: cloned(b)})
}

// OnUIAction delivers a user answer to an earlier prompt. Safe from
// any goroutine.
func (s *Session) OnUIAction(action UIAction, value uint32) {
	s.push(event{typ: evtUI, uiAction: action, uiValue: value})
}

// SendExit aborts the pairing. Idempotent; events arriving after the
// worker finished are dropped.
func (s *Session) SendExit() {
	s.push(event{typ: evtExit})
}

func (s *Session) push(e event) {
	select {
	case s.events <- e:
	default:
		s.log.Warnf("event queue full, dropping event type %d", e.typ)
	}
}

// Done is closed when the worker has finished either way.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result blocks until the session ends and returns its outcome.
func (s *Session) Result() (*Result, error) {
	<-s.done
	if s.fail != nil {
		return nil, s.fail
	}
	return s.result, nil
}

func (s *Session) run() {
	res, f := s.pairingMain()
	if f != nil {
		if f.silent {
			s.log.Infof("pairing aborted: %v", f)
		} else {
			s.log.Errorf("pairing failed: %v", f)
		}
		if !f.remote && !f.silent {
			code := f.Code
			if code == ReasonNone {
				code = ReasonUnspecified
			}
			if sf := s.sendCmd(&PairingFailed{Reason: code}); sf != nil {
				s.log.Warnf("could not report failure to peer: %v", sf)
			}
		}
		s.fail = f
		close(s.done)
		return
	}

	s.log.Infof("pairing complete, secure=%v model=%v", res.SecureConn, s.model)
	s.result = res
	close(s.done)
}

// pairingMain runs the phases strictly in order.
func (s *Session) pairingMain() (*Result, *Failure) {
	if s.cfg.RemotelyInitiated {
		s.cfg.UI.PromptPairingAccept()
		if f := s.waitUIAccept(); f != nil {
			return nil, f
		}
	}

	if f := s.phase1(); f != nil {
		return nil, f
	}

	var key []byte
	var f *Failure
	if s.secure {
		key, f = s.phase2SecureConnections()
	} else {
		key, f = s.phase2Legacy()
	}
	if f != nil {
		return nil, f
	}

	if f := s.startEncryption(key); f != nil {
		return nil, f
	}

	keys, f := s.phase3()
	if f != nil {
		return nil, f
	}

	res := &Result{
		SecureConn:    s.secure,
		Authenticated: s.model != AssociationJustWorks,
		PeerKeys:      *keys,
	}
	if s.secure {
		res.LTK = key
	} else {
		res.LTK = keys.LTK
	}
	return res, nil
}

func (s *Session) sendCmd(c Command) *Failure {
	if _, err := s.cfg.WritePDU(c.Marshal()); err != nil {
		// the channel is gone, nothing further can be reported
		return &Failure{
			Reason: errors.Wrap(err, "send "+codeText(c.Code())).Error(),
			silent: true,
		}
	}
	return nil
}

func (s *Session) waitEvent() event {
	select {
	case e := <-s.events:
		return e
	case <-time.After(s.timeout):
		s.log.Warnf("wait timed out after %v", s.timeout)
		return event{typ: evtExit}
	}
}

// waitPDU blocks for the next event and requires it to be the given
// SMP command. An inbound PAIRING_FAILED surfaces its reason code
// as-is; keypress notifications are logged and skipped.
func (s *Session) waitPDU(code byte) (Command, *Failure) {
	for {
		e := s.waitEvent()
		switch e.typ {
		case evtExit:
			return nil, exitFailure("was expecting " + codeText(code) + ", got exit or timeout")
		case evtHCI:
			return nil, newFailure("was expecting %s, received HCI event instead", codeText(code))
		case evtUI:
			return nil, newFailure("was expecting %s, received UI action instead", codeText(code))
		case evtPDU:
			cmd, err := Decode(e.pdu)
			if err != nil {
				return nil, newFailureCode(ReasonInvalidParameters, "malformed PDU: %v", err)
			}
			if pf, ok := cmd.(*PairingFailed); ok {
				return nil, remoteFailure(pf.Reason)
			}
			if _, ok := cmd.(*KeypressNotification); ok && code != codeKeypressNotification {
				s.log.Debugf("keypress notification during %s wait", codeText(code))
				continue
			}
			if cmd.Code() != code {
				return nil, newFailure("was expecting %s, received %s instead",
					codeText(code), codeText(cmd.Code()))
			}
			return cmd, nil
		}
	}
}

// waitPairingConfirm drains the cached out-of-order confirm first.
func (s *Session) waitPairingConfirm() (*PairingConfirm, *Failure) {
	if s.cachedConfirm != nil {
		c := s.cachedConfirm
		s.cachedConfirm = nil
		return c, nil
	}

	cmd, f := s.waitPDU(codePairingConfirm)
	if f != nil {
		return nil, f
	}
	return cmd.(*PairingConfirm), nil
}

func (s *Session) waitPairingRandom() (*PairingRandom, *Failure) {
	cmd, f := s.waitPDU(codePairingRandom)
	if f != nil {
		return nil, f
	}
	return cmd.(*PairingRandom), nil
}

func (s *Session) waitUIAccept() *Failure {
	e := s.waitEvent()
	if e.typ == evtUI && e.uiAction == UIPairingAccepted && e.uiValue != 0 {
		return nil
	}
	// declined or anything else: tear down without a PDU
	return exitFailure("pairing not accepted")
}

func (s *Session) waitUIConfirm() (bool, *Failure) {
	e := s.waitEvent()
	switch e.typ {
	case evtExit:
		return false, exitFailure("was expecting UI confirmation, got exit or timeout")
	case evtUI:
		if e.uiAction == UIConfirmYesNo {
			return e.uiValue != 0, nil
		}
	case evtPDU:
		// a peer abort can land while the user is deciding
		if cmd, err := Decode(e.pdu); err == nil {
			if pf, ok := cmd.(*PairingFailed); ok {
				return false, remoteFailure(pf.Reason)
			}
		}
	}
	return false, newFailure("was expecting UI confirmation, received something else")
}

// waitUIPasskey waits for the user-entered passkey. A PAIRING_CONFIRM
// may legitimately arrive first (the peer finished its confirm before
// our user typed); exactly one is parked for the next confirm wait.
func (s *Session) waitUIPasskey() (uint32, *Failure) {
	e := s.waitEvent()

	for e.typ == evtPDU {
		cmd, err := Decode(e.pdu)
		if err != nil {
			return 0, newFailureCode(ReasonInvalidParameters, "malformed PDU: %v", err)
		}
		if pf, ok := cmd.(*PairingFailed); ok {
			return 0, remoteFailure(pf.Reason)
		}
		if _, ok := cmd.(*KeypressNotification); ok {
			e = s.waitEvent()
			continue
		}
		pc, ok := cmd.(*PairingConfirm)
		if !ok {
			return 0, newFailure("was waiting for passkey, received %s instead", codeText(cmd.Code()))
		}
		if s.cachedConfirm != nil {
			return 0, newFailure("second early PAIRING_CONFIRM during passkey wait")
		}
		s.cachedConfirm = pc
		e = s.waitEvent()
	}

	if e.typ == evtExit {
		return 0, exitFailure("was expecting passkey entry, got exit or timeout")
	}
	if e.typ == evtUI && e.uiAction == UIPasskey {
		if e.uiValue > passkeyMax {
			return 0, newFailureCode(ReasonPasskeyEntryFailed, "passkey %d out of range", e.uiValue)
		}
		return e.uiValue, nil
	}
	return 0, newFailureCode(ReasonPasskeyEntryFailed, "was expecting passkey entry, received something else")
}

func (s *Session) waitHCIEvent() (hci.Event, *Failure) {
	e := s.waitEvent()
	if e.typ == evtExit {
		return nil, exitFailure("was expecting HCI event, got exit or timeout")
	}
	if e.typ != evtHCI {
		return nil, newFailure("was expecting HCI event, received something else")
	}

	pkt := hci.Event(e.hci)
	if !pkt.Valid() {
		return nil, newFailure("received invalid HCI event")
	}
	return pkt, nil
}

func (s *Session) waitEncryptionChanged() *Failure {
	pkt, f := s.waitHCIEvent()
	if f != nil {
		return f
	}

	switch pkt.Code() {
	case hci.EvtEncryptionChange:
		v := hci.EncryptionChange(pkt.Payload())
		if !v.Valid() {
			return newFailure("invalid Encryption Change event")
		}
		if v.Status() != 0x00 || v.EncryptionEnabled() == 0x00 {
			return newFailure("encryption failed, status 0x%02x", v.Status())
		}
		return nil

	case hci.EvtEncryptionKeyRefreshComplete:
		v := hci.EncryptionKeyRefreshComplete(pkt.Payload())
		if !v.Valid() {
			return newFailure("invalid Encryption Key Refresh Complete event")
		}
		if v.Status() != 0x00 {
			return newFailure("key refresh failed, status 0x%02x", v.Status())
		}
		return nil
	}

	return newFailure("was expecting Encryption Change or Key Refresh Complete, received event 0x%02x", pkt.Code())
}

func (s *Session) waitLTKRequest() (hci.LELongTermKeyRequest, *Failure) {
	pkt, f := s.waitHCIEvent()
	if f != nil {
		return nil, f
	}

	if pkt.Code() != hci.EvtLEMeta {
		return nil, newFailure("was expecting LE meta event, received event 0x%02x", pkt.Code())
	}
	payload := pkt.Payload()
	if len(payload) < 1 || payload[0] != hci.SubeventLELongTermKeyRequest {
		return nil, newFailure("was expecting LE Long Term Key Request")
	}

	v := hci.LELongTermKeyRequest(payload[1:])
	if !v.Valid() {
		return nil, newFailure("invalid LE Long Term Key Request event")
	}
	return v, nil
}

func rand16() ([]byte, *Failure) {
	r := make([]byte, 16)
	if _, err := rand.Read(r); err != nil {
		return nil, newFailure("rng: %v", err)
	}
	return r, nil
}

func randPasskey() (uint32, *Failure) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, newFailure("rng: %v", err)
	}
	return binary.LittleEndian.Uint32(b[:]) % (passkeyMax + 1), nil
}
