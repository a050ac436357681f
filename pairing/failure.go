package pairing

import "fmt"

// ReasonCode is an SMP Pairing Failed reason [Vol 3, Part H, 3.5.5,
// Table 3.7].
type ReasonCode byte

const (
	ReasonNone                     ReasonCode = 0x00
	ReasonPasskeyEntryFailed       ReasonCode = 0x01
	ReasonOOBNotAvailable          ReasonCode = 0x02
	ReasonAuthenticationRequired   ReasonCode = 0x03
	ReasonConfirmValueFailed       ReasonCode = 0x04
	ReasonPairingNotSupported      ReasonCode = 0x05
	ReasonEncryptionKeySize        ReasonCode = 0x06
	ReasonCommandNotSupported      ReasonCode = 0x07
	ReasonUnspecified              ReasonCode = 0x08
	ReasonRepeatedAttempts         ReasonCode = 0x09
	ReasonInvalidParameters        ReasonCode = 0x0a
	ReasonDHKeyCheckFailed         ReasonCode = 0x0b
	ReasonNumericComparisonFailed  ReasonCode = 0x0c
	ReasonBREDRPairingInProgress   ReasonCode = 0x0d
	ReasonCrossTransportNotAllowed ReasonCode = 0x0e
)

var reasonText = []string{
	"reserved",
	"passkey entry failed",
	"oob not available",
	"authentication requirements",
	"confirm value failed",
	"pairing not supported",
	"encryption key size",
	"command not supported",
	"unspecified reason",
	"repeated attempts",
	"invalid parameters",
	"dhkey check failed",
	"numeric comparison failed",
	"BR/EDR pairing in progress",
	"cross-transport key derivation not allowed",
}

func (r ReasonCode) String() string {
	if int(r) < len(reasonText) {
		return reasonText[r]
	}
	return fmt.Sprintf("reason 0x%02x", byte(r))
}

// Failure is the single error type the session reports. Code carries
// the SMP reason when one applies; remote marks an inbound
// PAIRING_FAILED (never echoed back); silent marks exits, timeouts,
// declined prompts and failed PDU writes, which are never reported over
// the wire.
type Failure struct {
	Reason string
	Code   ReasonCode

	remote bool
	silent bool
}

func (f *Failure) Error() string {
	if f.Code != ReasonNone {
		return fmt.Sprintf("%s (%s)", f.Reason, f.Code)
	}
	return f.Reason
}

// Remote reports whether the failure was signalled by the peer via
// PAIRING_FAILED.
func (f *Failure) Remote() bool { return f.remote }

// Timeout reports whether the failure is in the local silent category
// (exit, timeout, declined prompt, failed PDU write), which never
// travels on the wire.
func (f *Failure) Timeout() bool { return f.silent }

func newFailure(format string, args ...interface{}) *Failure {
	return &Failure{Reason: fmt.Sprintf(format, args...)}
}

func newFailureCode(code ReasonCode, format string, args ...interface{}) *Failure {
	return &Failure{Reason: fmt.Sprintf(format, args...), Code: code}
}

func remoteFailure(code ReasonCode) *Failure {
	return &Failure{Reason: "peer sent pairing failed: " + code.String(), Code: code, remote: true}
}

func exitFailure(reason string) *Failure {
	return &Failure{Reason: reason, silent: true}
}
