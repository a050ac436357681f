package bond

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/blesec/smp"
	"github.com/blesec/smp/pairing"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Info is one committed bond. Key material is held raw; the file form
// is hex.
type Info struct {
	Addr smp.Addr

	LTK  []byte
	EDIV uint16
	Rand uint64

	IRK  []byte
	CSRK []byte

	SecureConn    bool
	Authenticated bool
}

// FromResult converts a finished session into the bond to commit for
// the peer. The caller decides whether to commit at all; the session
// never does.
func FromResult(peer smp.Addr, res *pairing.Result) Info {
	info := Info{
		Addr:          peer,
		LTK:           res.LTK,
		EDIV:          res.PeerKeys.EDIV,
		Rand:          res.PeerKeys.Rand,
		IRK:           res.PeerKeys.IRK,
		CSRK:          res.PeerKeys.CSRK,
		SecureConn:    res.SecureConn,
		Authenticated: res.Authenticated,
	}
	if res.PeerKeys.IdentityAddr != nil {
		info.Addr = *res.PeerKeys.IdentityAddr
	}
	return info
}

type fileBonds struct {
	Bonds []fileBond `json:"bonds"`
}

type fileBond struct {
	Address       string `json:"address"`
	AddressType   byte   `json:"addressType"`
	LongTermKey   string `json:"longTermKey"`
	EDiv          uint16 `json:"ediv"`
	Rand          uint64 `json:"rand"`
	IdentityKey   string `json:"identityResolvingKey,omitempty"`
	SigningKey    string `json:"signingKey,omitempty"`
	SecureConn    bool   `json:"secureConnections"`
	Authenticated bool   `json:"authenticated"`
}

// Manager persists bonds to a single JSON file, guarded for concurrent
// sessions.
type Manager struct {
	path string
	lock sync.RWMutex
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) load() (*fileBonds, error) {
	data, err := ioutil.ReadFile(m.path)
	if os.IsNotExist(err) {
		return &fileBonds{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bond file: %v", err)
	}

	bonds := &fileBonds{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, bonds); err != nil {
			return nil, fmt.Errorf("parse bond file: %v", err)
		}
	}
	return bonds, nil
}

func (m *Manager) store(bonds *fileBonds) error {
	out, err := json.Marshal(bonds)
	if err != nil {
		return fmt.Errorf("marshal bonds: %v", err)
	}
	if err := ioutil.WriteFile(m.path, out, 0600); err != nil {
		return fmt.Errorf("write bond file: %v", err)
	}
	return nil
}

func (m *Manager) Save(info Info) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	bonds, err := m.load()
	if err != nil {
		return err
	}

	fb := fileBond{
		Address:       info.Addr.String(),
		AddressType:   byte(info.Addr.Type),
		LongTermKey:   hex.EncodeToString(info.LTK),
		EDiv:          info.EDIV,
		Rand:          info.Rand,
		IdentityKey:   hex.EncodeToString(info.IRK),
		SigningKey:    hex.EncodeToString(info.CSRK),
		SecureConn:    info.SecureConn,
		Authenticated: info.Authenticated,
	}

	for i, b := range bonds.Bonds {
		if b.Address == fb.Address {
			bonds.Bonds[i] = fb
			return m.store(bonds)
		}
	}
	bonds.Bonds = append(bonds.Bonds, fb)
	return m.store(bonds)
}

func (m *Manager) Find(addr smp.Addr) (*Info, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	bonds, err := m.load()
	if err != nil {
		return nil, err
	}

	for _, b := range bonds.Bonds {
		if b.Address != addr.String() {
			continue
		}

		ltk, err := hex.DecodeString(b.LongTermKey)
		if err != nil {
			return nil, fmt.Errorf("corrupt bond for %s: %v", b.Address, err)
		}
		irk, err := hex.DecodeString(b.IdentityKey)
		if err != nil {
			return nil, fmt.Errorf("corrupt bond for %s: %v", b.Address, err)
		}
		csrk, err := hex.DecodeString(b.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("corrupt bond for %s: %v", b.Address, err)
		}

		return &Info{
			Addr:          addr,
			LTK:           ltk,
			EDIV:          b.EDiv,
			Rand:          b.Rand,
			IRK:           irk,
			CSRK:          csrk,
			SecureConn:    b.SecureConn,
			Authenticated: b.Authenticated,
		}, nil
	}

	return nil, fmt.Errorf("no bond for %s", addr)
}

func (m *Manager) Exists(addr smp.Addr) bool {
	_, err := m.Find(addr)
	return err == nil
}

func (m *Manager) Delete(addr smp.Addr) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	bonds, err := m.load()
	if err != nil {
		return err
	}

	for i, b := range bonds.Bonds {
		if b.Address == addr.String() {
			bonds.Bonds = append(bonds.Bonds[:i], bonds.Bonds[i+1:]...)
			return m.store(bonds)
		}
	}
	return fmt.Errorf("no bond for %s", addr)
}
