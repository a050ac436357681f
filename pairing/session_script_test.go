package pairing

import (
	"bytes"
	"testing"
	"time"

	"github.com/blesec/smp"
)

// Scripted-peer tests: the test plays the remote device on the raw
// wire against a single live session.

func nextPDU(t *testing.T, out chan []byte) Command {
	t.Helper()
	select {
	case b := <-out:
		cmd, err := Decode(b)
		if err != nil {
			t.Fatalf("session sent malformed PDU: %v", err)
		}
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("session sent no PDU")
	}
	return nil
}

func expectNoPDU(t *testing.T, out chan []byte) {
	t.Helper()
	select {
	case b := <-out:
		cmd, _ := Decode(b)
		t.Fatalf("unexpected PDU %s", codeText(cmd.Code()))
	case <-time.After(300 * time.Millisecond):
	}
}

type nopLE struct{}

func (nopLE) StartEncryption(uint16, uint64, uint16, []byte) error { return nil }

func (nopLE) LongTermKeyRequestReply(uint16, []byte) error { return nil }

type nopUI struct{}

func (nopUI) PromptPairingAccept()           {}
func (nopUI) PromptNumericComparison(uint32) {}
func (nopUI) PromptPasskey()                 {}
func (nopUI) DisplayPasskey(uint32)          {}

func scriptedCentralConfig(t *testing.T, out chan []byte) Config {
	return Config{
		Role:       RoleCentral,
		ConnHandle: 0x0040,
		LocalAddr:  testAddr(t, "c0:11:22:33:44:55", smp.AddrRandomStatic),
		RemoteAddr: testAddr(t, "00:66:77:88:99:aa", smp.AddrPublic),
		IOCap:      IOCapNoInputNoOutput,
		AuthReq:    AuthReqBond | AuthReqSC,
		MaxKeySize: 16,
		WritePDU: func(b []byte) (int, error) {
			out <- cloned(b)
			return len(b), nil
		},
		LESecurity: nopLE{},
		UI:         nopUI{},
	}
}

func TestConfirmMismatchSendsSinglePairingFailed(t *testing.T) {
	out := make(chan []byte, 32)
	sess, err := newSession(scriptedCentralConfig(t, out), testTimeout)
	if err != nil {
		t.Fatal(err)
	}

	req, ok := nextPDU(t, out).(*PairingRequest)
	if !ok {
		t.Fatal("first PDU is not a pairing request")
	}
	sess.OnPeerPDU((&PairingResponse{
		IOCap:       IOCapNoInputNoOutput,
		AuthReq:     AuthReqBond | AuthReqSC,
		MaxKeySize:  16,
		InitKeyDist: req.InitKeyDist,
		RespKeyDist: req.RespKeyDist,
	}).Marshal())

	pub, ok := nextPDU(t, out).(*PairingPublicKey)
	if !ok {
		t.Fatal("expected the session's public key")
	}
	centralX := pub.Key[:32]

	peerKeys, err := GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}
	sess.OnPeerPDU((&PairingPublicKey{Key: MarshalPublicKeyXY(peerKeys.public)}).Marshal())

	nb, f := rand16()
	if f != nil {
		t.Fatal(f)
	}
	cb, err := smpF4(MarshalPublicKeyX(peerKeys.public), centralX, nb, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range cb {
		cb[i] ^= 0xff
	}
	sess.OnPeerPDU((&PairingConfirm{Value: cb}).Marshal())

	if _, ok := nextPDU(t, out).(*PairingRandom); !ok {
		t.Fatal("expected the session's pairing random")
	}
	sess.OnPeerPDU((&PairingRandom{Value: nb}).Marshal())

	failed, ok := nextPDU(t, out).(*PairingFailed)
	if !ok {
		t.Fatal("expected pairing failed")
	}
	if failed.Reason != ReasonConfirmValueFailed {
		t.Fatalf("reason: got %v", failed.Reason)
	}
	expectNoPDU(t, out)

	_, err = sess.Result()
	rf, ok := err.(*Failure)
	if !ok || rf.Code != ReasonConfirmValueFailed || rf.Remote() {
		t.Fatalf("result: %v", err)
	}
}

func TestKeySizeBelowMinimum(t *testing.T) {
	out := make(chan []byte, 32)
	sess, err := newSession(scriptedCentralConfig(t, out), testTimeout)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := nextPDU(t, out).(*PairingRequest); !ok {
		t.Fatal("first PDU is not a pairing request")
	}
	sess.OnPeerPDU((&PairingResponse{
		IOCap:      IOCapNoInputNoOutput,
		AuthReq:    AuthReqBond | AuthReqSC,
		MaxKeySize: 6,
	}).Marshal())

	failed, ok := nextPDU(t, out).(*PairingFailed)
	if !ok {
		t.Fatal("expected pairing failed")
	}
	if failed.Reason != ReasonEncryptionKeySize {
		t.Fatalf("reason: got %v", failed.Reason)
	}

	_, err = sess.Result()
	rf, ok := err.(*Failure)
	if !ok || rf.Code != ReasonEncryptionKeySize {
		t.Fatalf("result: %v", err)
	}
}

func TestTimeoutSendsNothing(t *testing.T) {
	out := make(chan []byte, 32)
	sess, err := newSession(scriptedCentralConfig(t, out), 150*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := nextPDU(t, out).(*PairingRequest); !ok {
		t.Fatal("first PDU is not a pairing request")
	}

	// the peer never answers
	_, err = sess.Result()
	rf, ok := err.(*Failure)
	if !ok || !rf.Timeout() {
		t.Fatalf("result: %v", err)
	}
	expectNoPDU(t, out)
}

func TestSendExitIdempotent(t *testing.T) {
	out := make(chan []byte, 32)
	sess, err := newSession(scriptedCentralConfig(t, out), testTimeout)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := nextPDU(t, out).(*PairingRequest); !ok {
		t.Fatal("first PDU is not a pairing request")
	}

	sess.SendExit()
	sess.SendExit()

	_, err = sess.Result()
	rf, ok := err.(*Failure)
	if !ok || !rf.Timeout() {
		t.Fatalf("result: %v", err)
	}
	expectNoPDU(t, out)

	// a second observer sees the same terminal state
	if _, err2 := sess.Result(); err2 != err {
		t.Fatal("result changed between calls")
	}
}

type declineUI struct {
	ready   chan struct{}
	session func() *Session
}

func (u *declineUI) PromptPairingAccept() {
	<-u.ready
	u.session().OnUIAction(UIPairingAccepted, 0)
}

func (u *declineUI) PromptNumericComparison(uint32) {}
func (u *declineUI) PromptPasskey()                 {}
func (u *declineUI) DisplayPasskey(uint32)          {}

func TestRemotelyInitiatedDecline(t *testing.T) {
	out := make(chan []byte, 32)
	ready := make(chan struct{})
	ui := &declineUI{ready: ready}

	reqWire := (&PairingRequest{
		IOCap:      IOCapNoInputNoOutput,
		AuthReq:    AuthReqBond | AuthReqSC,
		MaxKeySize: 16,
	}).Marshal()

	cfg := Config{
		Role:              RolePeripheral,
		ConnHandle:        0x0040,
		LocalAddr:         testAddr(t, "00:66:77:88:99:aa", smp.AddrPublic),
		RemoteAddr:        testAddr(t, "c0:11:22:33:44:55", smp.AddrRandomStatic),
		IOCap:             IOCapNoInputNoOutput,
		AuthReq:           AuthReqBond | AuthReqSC,
		MaxKeySize:        16,
		RemotelyInitiated: true,
		InitialCommand:    reqWire,
		WritePDU: func(b []byte) (int, error) {
			out <- cloned(b)
			return len(b), nil
		},
		LESecurity: nopLE{},
		UI:         ui,
	}

	sess, err := newSession(cfg, testTimeout)
	if err != nil {
		t.Fatal(err)
	}
	ui.session = func() *Session { return sess }
	close(ready)

	_, err = sess.Result()
	rf, ok := err.(*Failure)
	if !ok || !rf.Timeout() {
		t.Fatalf("result: %v", err)
	}
	// a declined prompt aborts without a single PDU
	expectNoPDU(t, out)
}

type displayUI struct {
	displayed chan uint32
}

func (u *displayUI) PromptPairingAccept()           {}
func (u *displayUI) PromptNumericComparison(uint32) {}
func (u *displayUI) PromptPasskey()                 {}

func (u *displayUI) DisplayPasskey(passkey uint32) {
	u.displayed <- passkey
}

type scriptLE struct {
	session func() *Session
	keyCh   chan []byte
}

func (l *scriptLE) StartEncryption(uint16, uint64, uint16, []byte) error {
	return nil
}

func (l *scriptLE) LongTermKeyRequestReply(handle uint16, key []byte) error {
	l.keyCh <- cloned(key)
	l.session().OnHCIEvent(encryptionChangeEvent(handle, 0x00, 0x01))
	return nil
}

func TestLegacyPasskeyPeripheral(t *testing.T) {
	out := make(chan []byte, 32)
	displayed := make(chan uint32, 1)
	le := &scriptLE{keyCh: make(chan []byte, 1)}

	centralAddr := testAddr(t, "c0:11:22:33:44:55", smp.AddrRandomStatic)
	localAddr := testAddr(t, "00:66:77:88:99:aa", smp.AddrPublic)

	reqWire := (&PairingRequest{
		IOCap:      IOCapKeyboardOnly,
		AuthReq:    AuthReqBond | AuthReqMITM,
		MaxKeySize: 16,
	}).Marshal()

	cfg := Config{
		Role:           RolePeripheral,
		ConnHandle:     0x0040,
		LocalAddr:      localAddr,
		RemoteAddr:     centralAddr,
		IOCap:          IOCapDisplayOnly,
		AuthReq:        AuthReqBond | AuthReqMITM,
		MaxKeySize:     16,
		InitialCommand: reqWire,
		WritePDU: func(b []byte) (int, error) {
			out <- cloned(b)
			return len(b), nil
		},
		LESecurity: le,
		UI:         &displayUI{displayed: displayed},
	}

	sess, err := newSession(cfg, testTimeout)
	if err != nil {
		t.Fatal(err)
	}
	le.session = func() *Session { return sess }

	rsp, ok := nextPDU(t, out).(*PairingResponse)
	if !ok {
		t.Fatal("expected pairing response")
	}

	var pk uint32
	select {
	case pk = <-displayed:
	case <-time.After(2 * time.Second):
		t.Fatal("no passkey displayed")
	}

	tk := passkeyTK(pk)
	mrand, f := rand16()
	if f != nil {
		t.Fatal(f)
	}
	mconfirm, err := smpC1(tk, mrand, reqWire, rsp.Marshal(),
		byte(centralAddr.Type), byte(localAddr.Type), centralAddr.Bytes(), localAddr.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	sess.OnPeerPDU((&PairingConfirm{Value: mconfirm}).Marshal())

	sconfirm, ok := nextPDU(t, out).(*PairingConfirm)
	if !ok {
		t.Fatal("expected sconfirm")
	}
	sess.OnPeerPDU((&PairingRandom{Value: mrand}).Marshal())

	srand, ok := nextPDU(t, out).(*PairingRandom)
	if !ok {
		t.Fatal("expected srand")
	}
	check, err := smpC1(tk, srand.Value, reqWire, rsp.Marshal(),
		byte(centralAddr.Type), byte(localAddr.Type), centralAddr.Bytes(), localAddr.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(check, sconfirm.Value) {
		t.Fatal("sconfirm does not verify")
	}

	stk, err := smpS1(tk, srand.Value, mrand)
	if err != nil {
		t.Fatal(err)
	}

	sess.OnHCIEvent(ltkRequestEvent(cfg.ConnHandle))
	select {
	case key := <-le.keyCh:
		if !bytes.Equal(key, stk) {
			t.Fatal("peripheral replied with a different STK")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no LTK reply")
	}

	res, err := sess.Result()
	if err != nil {
		t.Fatal(err)
	}
	if res.SecureConn || !res.Authenticated {
		t.Fatalf("secure=%v authenticated=%v", res.SecureConn, res.Authenticated)
	}
	if res.LTK != nil {
		t.Fatal("no LTK should be present without Enc distribution")
	}
}
