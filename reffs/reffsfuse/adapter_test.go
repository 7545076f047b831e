package reffsfuse

import (
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/sbu-fsl/RefFS/reffs"
)

func TestAdapter(t *testing.T) { RunTests(t) }

// fakeInvalidator records InvalidateInode/InvalidateEntry calls instead
// of pushing them at a kernel connection, the way a *fuse.MountedFileSystem
// would. Modeled on the fake server types gcsfuse's own fs tests use in
// place of a real mount.
type fakeInvalidator struct {
	inodes []fuseops.InodeID
}

func (f *fakeInvalidator) InvalidateInode(inode fuseops.InodeID, offset int64, length int64) error {
	f.inodes = append(f.inodes, inode)
	return nil
}

func (f *fakeInvalidator) InvalidateEntry(parent fuseops.InodeID, name string) error {
	return nil
}

type AdapterTest struct {
	store   *reffs.Store
	adapter *Adapter
	inv     *fakeInvalidator
}

func init() { RegisterTestSuite(&AdapterTest{}) }

func (t *AdapterTest) SetUp(ti *TestInfo) {
	t.store = reffs.NewStore(reffs.Options{TotalBlocks: 1 << 20, TotalInodes: 1 << 16})
	t.adapter = New(t.store)
	t.inv = &fakeInvalidator{}
	t.adapter.SetInvalidator(t.inv)
}

func (t *AdapterTest) LookUpInodeFillsEntry() {
	mkdir := &fuseops.MkDirOp{
		Parent: fuseops.RootInodeID,
		Name:   "d",
		Mode:   0o755,
	}
	AssertEq(nil, t.adapter.MkDir(mkdir))

	op := &fuseops.LookUpInodeOp{
		Parent: fuseops.RootInodeID,
		Name:   "d",
	}
	err := t.adapter.LookUpInode(op)
	AssertEq(nil, err)
	ExpectEq(mkdir.Entry.Child, op.Entry.Child)
}

func (t *AdapterTest) LookUpInodeMissingNameReturnsError() {
	op := &fuseops.LookUpInodeOp{
		Parent: fuseops.RootInodeID,
		Name:   "nope",
	}
	err := t.adapter.LookUpInode(op)
	ExpectNe(nil, err)
}

func (t *AdapterTest) CreateFileThenReadWriteRoundTrips() {
	create := &fuseops.CreateFileOp{
		Parent: fuseops.RootInodeID,
		Name:   "f",
		Mode:   0o644,
	}
	AssertEq(nil, t.adapter.CreateFile(create))

	write := &fuseops.WriteFileOp{
		Handle: create.Handle,
		Data:   []byte("hello"),
		Offset: 0,
	}
	AssertEq(nil, t.adapter.WriteFile(write))

	read := &fuseops.ReadFileOp{
		Handle: create.Handle,
		Offset: 0,
		Size:   5,
	}
	AssertEq(nil, t.adapter.ReadFile(read))
	ExpectEq("hello", string(read.Data))
}

func (t *AdapterTest) ReadDirEmitsDotAndDotDot() {
	open := &fuseops.OpenDirOp{Inode: fuseops.RootInodeID}
	AssertEq(nil, t.adapter.OpenDir(open))

	read := &fuseops.ReadDirOp{
		Handle: open.Handle,
		Offset: 0,
		Size:   4096,
	}
	AssertEq(nil, t.adapter.ReadDir(read))
	ExpectTrue(len(read.Data) > 0)
}

func (t *AdapterTest) InvalidateForRestorePushesEveryTouchedInode() {
	t.adapter.InvalidateForRestore([]reffs.InodeID{2, 3, 5})
	ExpectThat(t.inv.inodes, ElementsAre(
		fuseops.InodeID(2), fuseops.InodeID(3), fuseops.InodeID(5)))
}

func (t *AdapterTest) InvalidateForRestoreNoopWithoutInvalidator() {
	bare := New(t.store)
	bare.InvalidateForRestore([]reffs.InodeID{1})
}
