package hci

import "encoding/binary"

// Event codes consumed by the pairing core.
const (
	EvtEncryptionChange             = 0x08
	EvtEncryptionKeyRefreshComplete = 0x30
	EvtLEMeta                       = 0x3e

	SubeventLELongTermKeyRequest = 0x05
)

// Event is a raw HCI event packet: event code, parameter length, then
// parameters.
type Event []byte

func (e Event) Valid() bool {
	return len(e) >= 2 && len(e) == 2+int(e[1])
}

func (e Event) Code() byte { return e[0] }

func (e Event) Payload() []byte { return e[2:] }

// EncryptionChange is the parameter block of an Encryption Change
// event [Vol 4, Part E, 7.7.8].
type EncryptionChange []byte

func (e EncryptionChange) Valid() bool { return len(e) == 4 }

func (e EncryptionChange) Status() uint8 { return e[0] }

func (e EncryptionChange) ConnectionHandle() uint16 {
	return binary.LittleEndian.Uint16(e[1:3])
}

func (e EncryptionChange) EncryptionEnabled() uint8 { return e[3] }

// EncryptionKeyRefreshComplete is the parameter block of an Encryption
// Key Refresh Complete event [Vol 4, Part E, 7.7.39].
type EncryptionKeyRefreshComplete []byte

func (e EncryptionKeyRefreshComplete) Valid() bool { return len(e) == 3 }

func (e EncryptionKeyRefreshComplete) Status() uint8 { return e[0] }

func (e EncryptionKeyRefreshComplete) ConnectionHandle() uint16 {
	return binary.LittleEndian.Uint16(e[1:3])
}

// LELongTermKeyRequest is the parameter block of the LE Long Term Key
// Request subevent, after the subevent code [Vol 4, Part E, 7.7.65.5].
type LELongTermKeyRequest []byte

func (e LELongTermKeyRequest) Valid() bool { return len(e) == 12 }

func (e LELongTermKeyRequest) ConnectionHandle() uint16 {
	return binary.LittleEndian.Uint16(e[0:2])
}

func (e LELongTermKeyRequest) RandomNumber() uint64 {
	return binary.LittleEndian.Uint64(e[2:10])
}

func (e LELongTermKeyRequest) EncryptionDiversifier() uint16 {
	return binary.LittleEndian.Uint16(e[10:12])
}
