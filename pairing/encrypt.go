package pairing

import "github.com/pkg/errors"

// startEncryption hands the phase 2 key to the controller. The central
// submits LE Start Encryption (Rand and EDIV zero, the key was derived
// this session); the peripheral waits for the controller's LTK request
// and answers it. Both then wait for the link to actually encrypt.
func (s *Session) startEncryption(key []byte) *Failure {
	if s.isCentral() {
		if err := s.cfg.LESecurity.StartEncryption(s.cfg.ConnHandle, 0, 0, key); err != nil {
			return newFailure("%v", errors.Wrap(err, "le start encryption"))
		}
		return s.waitEncryptionChanged()
	}

	req, f := s.waitLTKRequest()
	if f != nil {
		return f
	}
	if req.ConnectionHandle() != s.cfg.ConnHandle {
		return newFailure("ltk request for handle 0x%04x, session is 0x%04x",
			req.ConnectionHandle(), s.cfg.ConnHandle)
	}

	if err := s.cfg.LESecurity.LongTermKeyRequestReply(s.cfg.ConnHandle, key); err != nil {
		return newFailure("%v", errors.Wrap(err, "le long term key request reply"))
	}
	return s.waitEncryptionChanged()
}
