package pairing

import (
	"encoding/binary"
	"fmt"
)

// Command is a decoded SMP PDU. Marshal always reproduces the exact
// wire form, code byte included.
type Command interface {
	Code() byte
	Marshal() []byte
}

type PairingRequest struct {
	IOCap       byte
	OOBFlag     byte
	AuthReq     byte
	MaxKeySize  byte
	InitKeyDist byte
	RespKeyDist byte
}

func (p *PairingRequest) Code() byte { return codePairingRequest }

func (p *PairingRequest) Marshal() []byte {
	return []byte{codePairingRequest, p.IOCap, p.OOBFlag, p.AuthReq, p.MaxKeySize, p.InitKeyDist, p.RespKeyDist}
}

type PairingResponse struct {
	IOCap       byte
	OOBFlag     byte
	AuthReq     byte
	MaxKeySize  byte
	InitKeyDist byte
	RespKeyDist byte
}

func (p *PairingResponse) Code() byte { return codePairingResponse }

func (p *PairingResponse) Marshal() []byte {
	return []byte{codePairingResponse, p.IOCap, p.OOBFlag, p.AuthReq, p.MaxKeySize, p.InitKeyDist, p.RespKeyDist}
}

type PairingConfirm struct {
	Value []byte // 16 bytes
}

func (p *PairingConfirm) Code() byte { return codePairingConfirm }

func (p *PairingConfirm) Marshal() []byte {
	return append([]byte{codePairingConfirm}, p.Value...)
}

type PairingRandom struct {
	Value []byte // 16 bytes
}

func (p *PairingRandom) Code() byte { return codePairingRandom }

func (p *PairingRandom) Marshal() []byte {
	return append([]byte{codePairingRandom}, p.Value...)
}

type PairingFailed struct {
	Reason ReasonCode
}

func (p *PairingFailed) Code() byte { return codePairingFailed }

func (p *PairingFailed) Marshal() []byte {
	return []byte{codePairingFailed, byte(p.Reason)}
}

type EncryptionInformation struct {
	LTK []byte // 16 bytes
}

func (p *EncryptionInformation) Code() byte { return codeEncryptionInformation }

func (p *EncryptionInformation) Marshal() []byte {
	return append([]byte{codeEncryptionInformation}, p.LTK...)
}

type CentralIdentification struct {
	EDIV uint16
	Rand uint64
}

func (p *CentralIdentification) Code() byte { return codeCentralIdentification }

func (p *CentralIdentification) Marshal() []byte {
	out := make([]byte, 11)
	out[0] = codeCentralIdentification
	binary.LittleEndian.PutUint16(out[1:3], p.EDIV)
	binary.LittleEndian.PutUint64(out[3:11], p.Rand)
	return out
}

type IdentityInformation struct {
	IRK []byte // 16 bytes
}

func (p *IdentityInformation) Code() byte { return codeIdentityInformation }

func (p *IdentityInformation) Marshal() []byte {
	return append([]byte{codeIdentityInformation}, p.IRK...)
}

type IdentityAddressInformation struct {
	AddrType byte
	Addr     []byte // 6 bytes little-endian
}

func (p *IdentityAddressInformation) Code() byte { return codeIdentityAddrInformation }

func (p *IdentityAddressInformation) Marshal() []byte {
	out := append([]byte{codeIdentityAddrInformation, p.AddrType}, p.Addr...)
	return out
}

type SigningInformation struct {
	CSRK []byte // 16 bytes
}

func (p *SigningInformation) Code() byte { return codeSigningInformation }

func (p *SigningInformation) Marshal() []byte {
	return append([]byte{codeSigningInformation}, p.CSRK...)
}

type SecurityRequest struct {
	AuthReq byte
}

func (p *SecurityRequest) Code() byte { return codeSecurityRequest }

func (p *SecurityRequest) Marshal() []byte {
	return []byte{codeSecurityRequest, p.AuthReq}
}

type PairingPublicKey struct {
	Key []byte // X || Y, 64 bytes little-endian
}

func (p *PairingPublicKey) Code() byte { return codePairingPublicKey }

func (p *PairingPublicKey) Marshal() []byte {
	return append([]byte{codePairingPublicKey}, p.Key...)
}

type PairingDHKeyCheck struct {
	Value []byte // 16 bytes
}

func (p *PairingDHKeyCheck) Code() byte { return codePairingDHKeyCheck }

func (p *PairingDHKeyCheck) Marshal() []byte {
	return append([]byte{codePairingDHKeyCheck}, p.Value...)
}

type KeypressNotification struct {
	Type byte
}

func (p *KeypressNotification) Code() byte { return codeKeypressNotification }

func (p *KeypressNotification) Marshal() []byte {
	return []byte{codeKeypressNotification, p.Type}
}

var pduLengths = map[byte]int{
	codePairingRequest:          7,
	codePairingResponse:         7,
	codePairingConfirm:          17,
	codePairingRandom:           17,
	codePairingFailed:           2,
	codeEncryptionInformation:   17,
	codeCentralIdentification:   11,
	codeIdentityInformation:     17,
	codeIdentityAddrInformation: 8,
	codeSigningInformation:      17,
	codeSecurityRequest:         2,
	codePairingPublicKey:        65,
	codePairingDHKeyCheck:       17,
	codeKeypressNotification:    2,
}

var codeNames = map[byte]string{
	codePairingRequest:          "PAIRING_REQUEST",
	codePairingResponse:         "PAIRING_RESPONSE",
	codePairingConfirm:          "PAIRING_CONFIRM",
	codePairingRandom:           "PAIRING_RANDOM",
	codePairingFailed:           "PAIRING_FAILED",
	codeEncryptionInformation:   "ENCRYPTION_INFORMATION",
	codeCentralIdentification:   "CENTRAL_IDENTIFICATION",
	codeIdentityInformation:     "IDENTITY_INFORMATION",
	codeIdentityAddrInformation: "IDENTITY_ADDRESS_INFORMATION",
	codeSigningInformation:      "SIGNING_INFORMATION",
	codeSecurityRequest:         "SECURITY_REQUEST",
	codePairingPublicKey:        "PAIRING_PUBLIC_KEY",
	codePairingDHKeyCheck:       "PAIRING_DH_KEY_CHECK",
	codeKeypressNotification:    "KEYPRESS_NOTIFICATION",
}

func codeText(code byte) string {
	if s, ok := codeNames[code]; ok {
		return s
	}
	return fmt.Sprintf("opcode 0x%02x", code)
}

func cloned(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Decode parses one SMP PDU. Lengths are exact: short and oversized
// bodies are both rejected.
func Decode(b []byte) (Command, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty SMP PDU")
	}

	code := b[0]
	want, ok := pduLengths[code]
	if !ok {
		return nil, fmt.Errorf("unknown SMP %s", codeText(code))
	}
	if len(b) != want {
		return nil, fmt.Errorf("%s: invalid length %d, want %d", codeText(code), len(b), want)
	}

	in := b[1:]
	switch code {
	case codePairingRequest:
		return &PairingRequest{in[0], in[1], in[2], in[3], in[4], in[5]}, nil
	case codePairingResponse:
		return &PairingResponse{in[0], in[1], in[2], in[3], in[4], in[5]}, nil
	case codePairingConfirm:
		return &PairingConfirm{Value: cloned(in)}, nil
	case codePairingRandom:
		return &PairingRandom{Value: cloned(in)}, nil
	case codePairingFailed:
		return &PairingFailed{Reason: ReasonCode(in[0])}, nil
	case codeEncryptionInformation:
		return &EncryptionInformation{LTK: cloned(in)}, nil
	case codeCentralIdentification:
		return &CentralIdentification{
			EDIV: binary.LittleEndian.Uint16(in[0:2]),
			Rand: binary.LittleEndian.Uint64(in[2:10]),
		}, nil
	case codeIdentityInformation:
		return &IdentityInformation{IRK: cloned(in)}, nil
	case codeIdentityAddrInformation:
		return &IdentityAddressInformation{AddrType: in[0], Addr: cloned(in[1:])}, nil
	case codeSigningInformation:
		return &SigningInformation{CSRK: cloned(in)}, nil
	case codeSecurityRequest:
		return &SecurityRequest{AuthReq: in[0]}, nil
	case codePairingPublicKey:
		return &PairingPublicKey{Key: cloned(in)}, nil
	case codePairingDHKeyCheck:
		return &PairingDHKeyCheck{Value: cloned(in)}, nil
	case codeKeypressNotification:
		return &KeypressNotification{Type: in[0]}, nil
	}
	return nil, fmt.Errorf("unknown SMP %s", codeText(code))
}
