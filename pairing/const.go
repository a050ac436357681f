package pairing

import "time"

// SMP opcodes [Vol 3, Part H, 3.3].
const (
	codePairingRequest          = 0x01
	codePairingResponse         = 0x02
	codePairingConfirm          = 0x03
	codePairingRandom           = 0x04
	codePairingFailed           = 0x05
	codeEncryptionInformation   = 0x06
	codeCentralIdentification   = 0x07
	codeIdentityInformation     = 0x08
	codeIdentityAddrInformation = 0x09
	codeSigningInformation      = 0x0a
	codeSecurityRequest         = 0x0b
	codePairingPublicKey        = 0x0c
	codePairingDHKeyCheck       = 0x0d
	codeKeypressNotification    = 0x0e
)

// AuthReq bits.
const (
	AuthReqBond     = 0x01
	AuthReqMITM     = 0x04
	AuthReqSC       = 0x08
	AuthReqKeypress = 0x10
	AuthReqCT2      = 0x20
)

// Key distribution bits. Link is parsed but never acted on here.
const (
	KeyDistEnc  = 0x01
	KeyDistID   = 0x02
	KeyDistSign = 0x04
	KeyDistLink = 0x08
)

// IO capability values [Vol 3, Part H, 3.5.1].
const (
	IOCapDisplayOnly     = 0x00
	IOCapDisplayYesNo    = 0x01
	IOCapKeyboardOnly    = 0x02
	IOCapNoInputNoOutput = 0x03
	IOCapKeyboardDisplay = 0x04

	ioCapReservedStart = 0x05
)

const (
	oobDataAbsent  = 0x00
	oobDataPresent = 0x01
)

// Keypress notification types [Vol 3, Part H, 3.5.8].
const (
	KeypressEntryStarted   = 0x00
	KeypressEntryCompleted = 0x04
)

const (
	minKeySize = 7
	maxKeySize = 16

	passkeyIterationCount = 20
	passkeyMax            = 999999
)

// Per-wait timeout [Vol 3, Part H, 3.4]; a single expired wait aborts
// the whole session.
const pairingTimeout = 30 * time.Second
