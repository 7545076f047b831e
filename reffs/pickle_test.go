package reffs_test

import (
	"bytes"
	"os"
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/sbu-fsl/RefFS/reffs"
)

func TestPickle(t *testing.T) { RunTests(t) }

type PickleTest struct {
	store *reffs.Store
}

func init() { RegisterTestSuite(&PickleTest{}) }

func (t *PickleTest) SetUp(ti *TestInfo) {
	t.store = reffs.NewStore(reffs.Options{TotalBlocks: 1 << 16, TotalInodes: 1 << 12})
}

// PickleIsDeterministic checks the byte-equality law from spec §8:
// pickling the same state twice yields identical bytes.
func (t *PickleTest) PickleIsDeterministic() {
	_, hid, err := t.store.CreateFile(reffs.RootInodeID, "f", 0o644, 0, 0)
	AssertEq(nil, err)
	_, err = t.store.WriteFile(hid, []byte("payload"), 0)
	AssertEq(nil, err)
	AssertEq(nil, t.store.SetXattr(reffs.RootInodeID, "user.a", []byte("1"), reffs.XattrSetDefault, 0))

	var first, second bytes.Buffer
	AssertEq(nil, t.store.Pickle(&first))
	AssertEq(nil, t.store.Pickle(&second))

	ExpectEq(first.Len(), second.Len())
	ExpectTrue(bytes.Equal(first.Bytes(), second.Bytes()))
}

// LoadRejectsCorruptBody checks spec §4.7's "rejects a corrupt or
// foreign file without mutating the live filesystem": a body byte that
// no longer matches the header's digest.
func (t *PickleTest) LoadRejectsCorruptBody() {
	_, _, err := t.store.CreateFile(reffs.RootInodeID, "f", 0o644, 0, 0)
	AssertEq(nil, err)

	var buf bytes.Buffer
	AssertEq(nil, t.store.Pickle(&buf))

	corrupt := buf.Bytes()
	corrupt[40] ^= 0xff // flip a body byte without touching the digest

	err = t.store.Load(bytes.NewReader(corrupt))
	ExpectEq(reffs.ErrProtocol, err)

	// The live filesystem must be untouched by the rejected load.
	_, err = t.store.LookUpInode(reffs.RootInodeID, "f")
	ExpectEq(nil, err)
}

func (t *PickleTest) LoadFromFileRoundTrip() {
	_, hid, err := t.store.CreateFile(reffs.RootInodeID, "f", 0o644, 0, 0)
	AssertEq(nil, err)
	_, err = t.store.WriteFile(hid, []byte("abc"), 0)
	AssertEq(nil, err)

	tmp, err := os.CreateTemp("", "reffs-pickle-*.bin")
	AssertEq(nil, err)
	path := tmp.Name()
	AssertEq(nil, tmp.Close())
	defer os.Remove(path)

	AssertEq(nil, t.store.PickleToFile(path))

	loaded := reffs.NewStore(reffs.Options{TotalBlocks: 1 << 16, TotalInodes: 1 << 12})
	AssertEq(nil, loaded.LoadFromFile(path))

	entry, err := loaded.LookUpInode(reffs.RootInodeID, "f")
	AssertEq(nil, err)
	ExpectEq(3, entry.Attributes.Size)
}
