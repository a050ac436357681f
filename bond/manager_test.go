package bond

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/blesec/smp"
	"github.com/blesec/smp/pairing"
)

func testAddr(t *testing.T, s string) smp.Addr {
	t.Helper()
	a, err := smp.NewAddr(s, smp.AddrPublic)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestSaveFindDelete(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "bonds.json"))
	addr := testAddr(t, "11:22:33:44:55:66")

	ltk := bytes.Repeat([]byte{0xa5}, 16)
	irk := bytes.Repeat([]byte{0x5a}, 16)

	info := Info{
		Addr:          addr,
		LTK:           ltk,
		EDIV:          0x1234,
		Rand:          0x0102030405060708,
		IRK:           irk,
		SecureConn:    true,
		Authenticated: true,
	}
	if err := mgr.Save(info); err != nil {
		t.Fatal(err)
	}
	if !mgr.Exists(addr) {
		t.Fatal("bond not found after save")
	}

	got, err := mgr.Find(addr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.LTK, ltk) || !bytes.Equal(got.IRK, irk) {
		t.Fatal("key material did not round-trip")
	}
	if got.EDIV != info.EDIV || got.Rand != info.Rand {
		t.Fatal("ediv/rand did not round-trip")
	}
	if !got.SecureConn || !got.Authenticated {
		t.Fatal("flags did not round-trip")
	}

	if err := mgr.Delete(addr); err != nil {
		t.Fatal(err)
	}
	if mgr.Exists(addr) {
		t.Fatal("bond still present after delete")
	}
}

func TestSaveOverwrites(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "bonds.json"))
	addr := testAddr(t, "11:22:33:44:55:66")

	if err := mgr.Save(Info{Addr: addr, LTK: bytes.Repeat([]byte{0x01}, 16)}); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Save(Info{Addr: addr, LTK: bytes.Repeat([]byte{0x02}, 16)}); err != nil {
		t.Fatal(err)
	}

	got, err := mgr.Find(addr)
	if err != nil {
		t.Fatal(err)
	}
	if got.LTK[0] != 0x02 {
		t.Fatal("save did not overwrite")
	}
}

func TestFromResultPrefersIdentityAddress(t *testing.T) {
	connAddr := testAddr(t, "0a:0b:0c:0d:0e:0f")
	idAddr := testAddr(t, "11:22:33:44:55:66")

	res := &pairing.Result{
		LTK:        bytes.Repeat([]byte{0x07}, 16),
		SecureConn: true,
		PeerKeys: pairing.DistributedKeys{
			IRK:          bytes.Repeat([]byte{0x08}, 16),
			IdentityAddr: &idAddr,
		},
	}

	info := FromResult(connAddr, res)
	if info.Addr.String() != idAddr.String() {
		t.Fatalf("bond keyed by %v, want identity address", info.Addr)
	}
	if !bytes.Equal(info.LTK, res.LTK) {
		t.Fatal("ltk not carried over")
	}
}
