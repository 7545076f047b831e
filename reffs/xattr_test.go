package reffs_test

import (
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/sbu-fsl/RefFS/reffs"
)

func TestXattr(t *testing.T) { RunTests(t) }

type XattrTest struct {
	store *reffs.Store
	ino   reffs.InodeID
}

func init() { RegisterTestSuite(&XattrTest{}) }

func (t *XattrTest) SetUp(ti *TestInfo) {
	t.store = reffs.NewStore(reffs.Options{TotalBlocks: 1 << 16, TotalInodes: 1 << 12})
	entry, _, err := t.store.CreateFile(reffs.RootInodeID, "f", 0o644, 0, 0)
	AssertEq(nil, err)
	t.ino = entry.Child
}

func (t *XattrTest) SetThenGet() {
	AssertEq(nil, t.store.SetXattr(t.ino, "user.a", []byte("hello"), reffs.XattrSetDefault, 0))

	got, err := t.store.GetXattr(t.ino, "user.a", 16, 0)
	AssertEq(nil, err)
	ExpectEq("hello", string(got))
}

func (t *XattrTest) CreateFlagRejectsExisting() {
	AssertEq(nil, t.store.SetXattr(t.ino, "user.a", []byte("1"), reffs.XattrSetDefault, 0))
	err := t.store.SetXattr(t.ino, "user.a", []byte("2"), reffs.XattrSetCreate, 0)
	ExpectEq(reffs.ErrExists, err)
}

func (t *XattrTest) ReplaceFlagRejectsMissing() {
	err := t.store.SetXattr(t.ino, "user.missing", []byte("1"), reffs.XattrSetReplace, 0)
	ExpectEq(reffs.ErrNoData, err)
}

func (t *XattrTest) GetTooSmallBufferIsERANGE() {
	AssertEq(nil, t.store.SetXattr(t.ino, "user.a", []byte("0123456789"), reffs.XattrSetDefault, 0))
	_, err := t.store.GetXattr(t.ino, "user.a", 4, 0)
	ExpectEq(reffs.ErrRange, err)
}

func (t *XattrTest) RemoveThenGetIsENODATA() {
	AssertEq(nil, t.store.SetXattr(t.ino, "user.a", []byte("x"), reffs.XattrSetDefault, 0))
	AssertEq(nil, t.store.RemoveXattr(t.ino, "user.a"))

	_, err := t.store.GetXattr(t.ino, "user.a", 16, 0)
	ExpectEq(reffs.ErrNoData, err)
}

func (t *XattrTest) ListConcatenatesNamesNulSeparated() {
	AssertEq(nil, t.store.SetXattr(t.ino, "user.a", []byte("1"), reffs.XattrSetDefault, 0))
	AssertEq(nil, t.store.SetXattr(t.ino, "user.b", []byte("2"), reffs.XattrSetDefault, 0))

	buf, err := t.store.ListXattr(t.ino, 0)
	AssertEq(nil, err)
	wantLen := len("user.a\x00") + len("user.b\x00")
	ExpectEq(wantLen, len(buf))

	full, err := t.store.ListXattr(t.ino, wantLen)
	AssertEq(nil, err)
	ExpectEq(wantLen, len(full))
}
