package reffs_test

import (
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/sbu-fsl/RefFS/reffs"
)

func TestStore(t *testing.T) { RunTests(t) }

type StoreTest struct {
	store *reffs.Store
}

func init() { RegisterTestSuite(&StoreTest{}) }

func (t *StoreTest) SetUp(ti *TestInfo) {
	t.store = reffs.NewStore(reffs.Options{TotalBlocks: 16, TotalInodes: 16})
}

////////////////////////////////////////////////////////////////////////
// Basic directory/file lifecycle
////////////////////////////////////////////////////////////////////////

func (t *StoreTest) MkDirThenLookUp() {
	entry, err := t.store.MkDir(reffs.RootInodeID, "sub", 0o755, 1, 2)
	AssertEq(nil, err)

	looked, err := t.store.LookUpInode(reffs.RootInodeID, "sub")
	AssertEq(nil, err)
	ExpectEq(entry.Child, looked.Child)
	ExpectEq(2, looked.Attributes.Nlink)
	ExpectEq(uint32(1), looked.Attributes.Uid)
}

func (t *StoreTest) MkDirBumpsParentNlink() {
	rootAttrsBefore, err := t.store.GetInodeAttributes(reffs.RootInodeID)
	AssertEq(nil, err)

	_, err = t.store.MkDir(reffs.RootInodeID, "sub", 0o755, 0, 0)
	AssertEq(nil, err)

	rootAttrsAfter, err := t.store.GetInodeAttributes(reffs.RootInodeID)
	AssertEq(nil, err)
	ExpectEq(rootAttrsBefore.Nlink+1, rootAttrsAfter.Nlink)
}

func (t *StoreTest) RmDirRequiresEmpty() {
	entry, err := t.store.MkDir(reffs.RootInodeID, "sub", 0o755, 0, 0)
	AssertEq(nil, err)
	_, err = t.store.MkDir(entry.Child, "nested", 0o755, 0, 0)
	AssertEq(nil, err)

	err = t.store.RmDir(reffs.RootInodeID, "sub")
	ExpectEq(reffs.ErrNotEmpty, err)

	AssertEq(nil, t.store.RmDir(entry.Child, "nested"))
	AssertEq(nil, t.store.RmDir(reffs.RootInodeID, "sub"))

	_, err = t.store.LookUpInode(reffs.RootInodeID, "sub")
	ExpectEq(reffs.ErrNotFound, err)
}

func (t *StoreTest) RmDirOfRootIsRefused() {
	// "." resolves to the directory itself; RmDir rejects that with
	// EINVAL before ever reaching the emptiness check (spec §4.3: reject
	// if name resolves to parent itself, preventing removal of ".").
	err := t.store.RmDir(reffs.RootInodeID, ".")
	ExpectEq(reffs.ErrInvalid, err)
}

////////////////////////////////////////////////////////////////////////
// Truncate boundary behaviour
////////////////////////////////////////////////////////////////////////

func (t *StoreTest) TruncateToZeroPreservesInode() {
	entry, hid, err := t.store.CreateFile(reffs.RootInodeID, "f", 0o644, 0, 0)
	AssertEq(nil, err)

	_, err = t.store.WriteFile(hid, []byte("hello"), 0)
	AssertEq(nil, err)

	_, err = t.store.SetInodeAttributes(entry.Child, reffs.SetAttrRequest{
		Mask: reffs.SetAttrMask{Size: true},
		Size: 0,
	})
	AssertEq(nil, err)

	attrs, err := t.store.GetInodeAttributes(entry.Child)
	AssertEq(nil, err)
	ExpectEq(0, attrs.Size)

	buf := make([]byte, 5)
	n, err := t.store.ReadFile(hid, buf, 0)
	AssertEq(nil, err)
	ExpectEq(0, n)
}

func (t *StoreTest) AppendAtExactSizeIsPureAppend() {
	_, hid, err := t.store.CreateFile(reffs.RootInodeID, "f", 0o644, 0, 0)
	AssertEq(nil, err)

	n, err := t.store.WriteFile(hid, []byte("abc"), 0)
	AssertEq(nil, err)
	AssertEq(3, n)

	n, err = t.store.WriteFile(hid, []byte("def"), 3)
	AssertEq(nil, err)
	AssertEq(3, n)

	buf := make([]byte, 6)
	got, err := t.store.ReadFile(hid, buf, 0)
	AssertEq(nil, err)
	ExpectEq("abcdef", string(buf[:got]))
}

////////////////////////////////////////////////////////////////////////
// Space accounting / ENOSPC
////////////////////////////////////////////////////////////////////////

func (t *StoreTest) WriteBeyondBudgetFailsWithENOSPC() {
	_, hid, err := t.store.CreateFile(reffs.RootInodeID, "big", 0o644, 0, 0)
	AssertEq(nil, err)

	huge := make([]byte, 16*512+1)
	_, err = t.store.WriteFile(hid, huge, 0)
	ExpectEq(reffs.ErrNoSpace, err)
}

func (t *StoreTest) StatFSAccounting() {
	before, err := t.store.StatFS()
	AssertEq(nil, err)

	_, hid, err := t.store.CreateFile(reffs.RootInodeID, "f", 0o644, 0, 0)
	AssertEq(nil, err)
	_, err = t.store.WriteFile(hid, make([]byte, 1024), 0)
	AssertEq(nil, err)

	after, err := t.store.StatFS()
	AssertEq(nil, err)

	ExpectEq(before.BlocksFree-2, after.BlocksFree)
	ExpectEq(before.InodesFree-1, after.InodesFree)
}

////////////////////////////////////////////////////////////////////////
// lookup_count / forget
////////////////////////////////////////////////////////////////////////

func (t *StoreTest) DoubleForgetSaturates() {
	entry, err := t.store.MkDir(reffs.RootInodeID, "d", 0o755, 0, 0)
	AssertEq(nil, err)

	// MkDir bumped lookupCount to 1 via replyEntry.
	AssertEq(nil, t.store.RmDir(reffs.RootInodeID, "d"))

	// The directory is unreachable by name (nlink==0) but still held by
	// one outstanding kernel reference; forgetting more than that once
	// must not panic or underflow, matching spec §8's forget-saturation
	// law.
	AssertEq(nil, t.store.ForgetInode(entry.Child, 5))
	AssertEq(nil, t.store.ForgetInode(entry.Child, 5))
}

func (t *StoreTest) ForgetDestroysUnlinkedInode() {
	statBefore, err := t.store.StatFS()
	AssertEq(nil, err)

	entry, hid, err := t.store.CreateFile(reffs.RootInodeID, "f", 0o644, 0, 0)
	AssertEq(nil, err)
	AssertEq(nil, t.store.ReleaseFileHandle(hid))

	// One reference from CreateFile's own replyEntry.
	AssertEq(nil, t.store.Unlink(reffs.RootInodeID, "f"))

	_, err = t.store.GetInodeAttributes(entry.Child)
	AssertEq(nil, err) // still alive: lookupCount == 1

	AssertEq(nil, t.store.ForgetInode(entry.Child, 1))

	_, err = t.store.GetInodeAttributes(entry.Child)
	ExpectEq(reffs.ErrNotFound, err)

	statAfter, err := t.store.StatFS()
	AssertEq(nil, err)
	ExpectEq(statBefore.InodesFree, statAfter.InodesFree)
}

////////////////////////////////////////////////////////////////////////
// Access control
////////////////////////////////////////////////////////////////////////

func (t *StoreTest) AccessDeniesWrongOwner() {
	entry, err := t.store.MkDir(reffs.RootInodeID, "d", 0o700, 42, 42)
	AssertEq(nil, err)

	AssertEq(nil, t.store.Access(entry.Child, reffs.OK_R, 42, 42))

	err = t.store.Access(entry.Child, reffs.OK_R, 99, 99)
	ExpectEq(reffs.ErrAccess, err)
}

////////////////////////////////////////////////////////////////////////
// Name length
////////////////////////////////////////////////////////////////////////

func (t *StoreTest) NameTooLongIsRejected() {
	longName := make([]byte, 256)
	for i := range longName {
		longName[i] = 'a'
	}

	_, err := t.store.MkDir(reffs.RootInodeID, string(longName), 0o755, 0, 0)
	ExpectEq(reffs.ErrNameTooLong, err)
}
