package hci

// LESecurity submits LE security commands to the controller. The
// pairing core only ever issues these two; command status handling
// stays with the owning stack.
type LESecurity interface {
	// StartEncryption issues LE Start Encryption [Vol 4, Part E,
	// 7.8.24]. The key is 16 bytes little-endian.
	StartEncryption(connHandle uint16, rand uint64, ediv uint16, key []byte) error

	// LongTermKeyRequestReply answers an LE Long Term Key Request
	// subevent [Vol 4, Part E, 7.8.25].
	LongTermKeyRequestReply(connHandle uint16, key []byte) error
}
