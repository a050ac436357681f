package main

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	smp "github.com/blesec/smp"
	"github.com/blesec/smp/bond"
	"github.com/blesec/smp/hci"
	"github.com/blesec/smp/pairing"
)

// smppair pairs two in-process sessions against each other over an
// in-memory link: a quick way to exercise the full state machine and
// eyeball the derived keys without a controller.

func main() {
	app := cli.NewApp()
	app.Name = "smppair"
	app.Usage = "run a loopback SMP pairing between two in-process sessions"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "mode",
			Value: "justworks",
			Usage: "association model: justworks, numeric, passkey, oob",
		},
		cli.BoolFlag{
			Name:  "legacy",
			Usage: "use legacy pairing instead of secure connections",
		},
		cli.StringFlag{
			Name:  "bond-file",
			Usage: "commit the resulting bonds to this JSON file",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "debug logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// link is the fake controller pair: PDUs cross over directly, LE
// security commands turn into the HCI events the other side waits for.
type link struct {
	// closed once both sessions exist; PDUs hold until then
	ready chan struct{}

	central    *pairing.Session
	peripheral *pairing.Session

	centralKey []byte
}

func (l *link) StartEncryption(handle uint16, randVal uint64, ediv uint16, key []byte) error {
	l.centralKey = append([]byte(nil), key...)

	evt := make([]byte, 15)
	evt[0] = hci.EvtLEMeta
	evt[1] = 13
	evt[2] = hci.SubeventLELongTermKeyRequest
	binary.LittleEndian.PutUint16(evt[3:5], handle)
	binary.LittleEndian.PutUint64(evt[5:13], randVal)
	binary.LittleEndian.PutUint16(evt[13:15], ediv)
	l.peripheral.OnHCIEvent(evt)
	return nil
}

func (l *link) LongTermKeyRequestReply(handle uint16, key []byte) error {
	status := byte(0x00)
	if !equal(l.centralKey, key) {
		status = 0x06 // PIN or Key Missing
	}

	evt := []byte{hci.EvtEncryptionChange, 4, status, 0, 0, 1}
	binary.LittleEndian.PutUint16(evt[3:5], handle)
	evt[5] = 1
	if status != 0 {
		evt[5] = 0
	}
	l.central.OnHCIEvent(evt)
	l.peripheral.OnHCIEvent(evt)
	return nil
}

func equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// autoUI answers every prompt for its session: accepts, confirms, and
// relays the displayed passkey through the shared channel.
type autoUI struct {
	session **pairing.Session
	passkey chan uint32
}

func (u *autoUI) PromptPairingAccept() {
	(*u.session).OnUIAction(pairing.UIPairingAccepted, 1)
}

func (u *autoUI) PromptNumericComparison(value uint32) {
	(*u.session).OnUIAction(pairing.UIConfirmYesNo, 1)
}

func (u *autoUI) PromptPasskey() {
	s := *u.session
	go func() {
		s.OnUIAction(pairing.UIPasskey, <-u.passkey)
	}()
}

func (u *autoUI) DisplayPasskey(passkey uint32) {
	u.passkey <- passkey
}

func run(c *cli.Context) error {
	if c.Bool("verbose") {
		l := logrus.New()
		l.SetLevel(logrus.DebugLevel)
		smp.SetLogger(&leveledLogger{l.WithFields(nil)})
	}

	authReq := byte(pairing.AuthReqBond | pairing.AuthReqSC)
	if c.Bool("legacy") {
		authReq &^= pairing.AuthReqSC
	}

	centralIOCap := byte(pairing.IOCapNoInputNoOutput)
	peripheralIOCap := byte(pairing.IOCapNoInputNoOutput)

	centralCfg := pairing.Config{}
	peripheralCfg := pairing.Config{}

	switch c.String("mode") {
	case "justworks":
	case "numeric":
		centralIOCap = pairing.IOCapDisplayYesNo
		peripheralIOCap = pairing.IOCapDisplayYesNo
		authReq |= pairing.AuthReqMITM
	case "passkey":
		centralIOCap = pairing.IOCapDisplayOnly
		peripheralIOCap = pairing.IOCapKeyboardOnly
		authReq |= pairing.AuthReqMITM
	case "oob":
		if c.Bool("legacy") {
			tk := make([]byte, 16)
			if _, err := rand.Read(tk); err != nil {
				return err
			}
			centralCfg.LegacyOOBKey = tk
			peripheralCfg.LegacyOOBKey = tk
		} else {
			centralOOB, err := pairing.GenerateOOBData()
			if err != nil {
				return err
			}
			peripheralOOB, err := pairing.GenerateOOBData()
			if err != nil {
				return err
			}
			centralCfg.LocalOOB, centralCfg.RemoteOOB = centralOOB, peripheralOOB
			peripheralCfg.LocalOOB, peripheralCfg.RemoteOOB = peripheralOOB, centralOOB
		}
	default:
		return fmt.Errorf("unknown mode %q", c.String("mode"))
	}

	centralAddr, err := smp.NewAddr("c0:11:22:33:44:55", smp.AddrRandomStatic)
	if err != nil {
		return err
	}
	peripheralAddr, err := smp.NewAddr("c0:66:77:88:99:aa", smp.AddrRandomStatic)
	if err != nil {
		return err
	}

	l := &link{ready: make(chan struct{})}
	passkey := make(chan uint32, 1)

	centralCfg.Role = pairing.RoleCentral
	centralCfg.ConnHandle = 0x0040
	centralCfg.LocalAddr = centralAddr
	centralCfg.RemoteAddr = peripheralAddr
	centralCfg.IOCap = centralIOCap
	centralCfg.AuthReq = authReq
	centralCfg.MaxKeySize = 16
	centralCfg.InitKeyDist = pairing.KeyDistEnc | pairing.KeyDistID | pairing.KeyDistSign
	centralCfg.RespKeyDist = pairing.KeyDistEnc | pairing.KeyDistID | pairing.KeyDistSign
	centralCfg.WritePDU = func(b []byte) (int, error) {
		<-l.ready
		l.peripheral.OnPeerPDU(b)
		return len(b), nil
	}
	centralCfg.LESecurity = l
	centralCfg.UI = &autoUI{session: &l.central, passkey: passkey}

	peripheralCfg.Role = pairing.RolePeripheral
	peripheralCfg.ConnHandle = 0x0040
	peripheralCfg.LocalAddr = peripheralAddr
	peripheralCfg.RemoteAddr = centralAddr
	peripheralCfg.IOCap = peripheralIOCap
	peripheralCfg.AuthReq = authReq
	peripheralCfg.MaxKeySize = 16
	peripheralCfg.InitKeyDist = centralCfg.InitKeyDist
	peripheralCfg.RespKeyDist = centralCfg.RespKeyDist
	peripheralCfg.WritePDU = func(b []byte) (int, error) {
		<-l.ready
		l.central.OnPeerPDU(b)
		return len(b), nil
	}
	peripheralCfg.LESecurity = l
	peripheralCfg.UI = &autoUI{session: &l.peripheral, passkey: passkey}

	// the peripheral must be listening before the request lands
	l.peripheral, err = pairing.NewSession(peripheralCfg)
	if err != nil {
		return err
	}
	l.central, err = pairing.NewSession(centralCfg)
	if err != nil {
		return err
	}
	close(l.ready)

	centralRes, err := l.central.Result()
	if err != nil {
		return fmt.Errorf("central: %v", err)
	}
	peripheralRes, err := l.peripheral.Result()
	if err != nil {
		return fmt.Errorf("peripheral: %v", err)
	}

	fmt.Printf("central LTK:     %s\n", hex.EncodeToString(centralRes.LTK))
	fmt.Printf("peripheral LTK:  %s\n", hex.EncodeToString(peripheralRes.LTK))
	fmt.Printf("secure=%v authenticated=%v\n", centralRes.SecureConn, centralRes.Authenticated)

	if path := c.String("bond-file"); path != "" {
		mgr := bond.NewManager(path)
		if err := mgr.Save(bond.FromResult(peripheralAddr, centralRes)); err != nil {
			return err
		}
		if err := mgr.Save(bond.FromResult(centralAddr, peripheralRes)); err != nil {
			return err
		}
		fmt.Printf("bonds written to %s\n", path)
	}

	return nil
}

// leveledLogger adapts a logrus entry to the smp.Logger surface.
type leveledLogger struct {
	*logrus.Entry
}

func (l *leveledLogger) ChildLogger(ff map[string]interface{}) smp.Logger {
	return &leveledLogger{l.Entry.WithFields(ff)}
}
