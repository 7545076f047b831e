package reffs_test

import (
	"bytes"
	"reflect"
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/sbu-fsl/RefFS/reffs"
)

func TestScenarios(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type ScenariosTest struct {
	store *reffs.Store
}

func init() { RegisterTestSuite(&ScenariosTest{}) }

func (t *ScenariosTest) SetUp(ti *TestInfo) {
	t.store = reffs.NewStore(reffs.Options{TotalBlocks: 1 << 20, TotalInodes: 1 << 16})
}

// create is a small helper composing CreateFile the way a kernel's
// open(O_CREAT) would, returning the new file's inode and an open
// handle over it.
func (t *ScenariosTest) create(name string) (reffs.InodeID, reffs.HandleID) {
	entry, hid, err := t.store.CreateFile(reffs.RootInodeID, name, 0o644, 0, 0)
	AssertEq(nil, err)
	return entry.Child, hid
}

func (t *ScenariosTest) writeAt(hid reffs.HandleID, data string, off int64) {
	n, err := t.store.WriteFile(hid, []byte(data), off)
	AssertEq(nil, err)
	AssertEq(len(data), n)
}

func (t *ScenariosTest) readAll(hid reffs.HandleID, n int) []byte {
	buf := make([]byte, n)
	got, err := t.store.ReadFile(hid, buf, 0)
	AssertEq(nil, err)
	return buf[:got]
}

////////////////////////////////////////////////////////////////////////
// S1 — Hole zero-fill
////////////////////////////////////////////////////////////////////////

func (t *ScenariosTest) S1_HoleZeroFill() {
	_, hid := t.create("a")
	t.writeAt(hid, "xyz", 10)

	got := t.readAll(hid, 13)
	want := append(bytes.Repeat([]byte{0}, 10), 'x', 'y', 'z')
	ExpectTrue(reflect.DeepEqual(got, want), "got %v, want %v", got, want)

	entry, err := t.store.LookUpInode(reffs.RootInodeID, "a")
	AssertEq(nil, err)
	ExpectEq(13, entry.Attributes.Size)
}

////////////////////////////////////////////////////////////////////////
// S2 — Checkpoint/restore
////////////////////////////////////////////////////////////////////////

func (t *ScenariosTest) S2_CheckpointRestore() {
	_, fHid := t.create("f")
	t.writeAt(fHid, "AAA", 0)

	AssertEq(nil, t.store.Checkpoint(42))

	t.writeAt(fHid, "BBB", 0)
	_, _, err := t.store.CreateFile(reffs.RootInodeID, "g", 0o644, 0, 0)
	AssertEq(nil, err)

	_, err = t.store.Restore(42)
	AssertEq(nil, err)

	// Restore drops every open handle, so read "/f" through a fresh one.
	fEntry, err := t.store.LookUpInode(reffs.RootInodeID, "f")
	AssertEq(nil, err)
	fHid2, err := t.store.OpenFile(fEntry.Child)
	AssertEq(nil, err)
	got := t.readAll(fHid2, 3)
	ExpectEq("AAA", string(got))

	_, err = t.store.LookUpInode(reffs.RootInodeID, "g")
	ExpectEq(reffs.ErrNotFound, err)
}

////////////////////////////////////////////////////////////////////////
// S3 — Rename replace
////////////////////////////////////////////////////////////////////////

func (t *ScenariosTest) S3_RenameReplace() {
	statBefore, err := t.store.StatFS()
	AssertEq(nil, err)

	_, aHid := t.create("a")
	t.writeAt(aHid, "one", 0)
	bIno, bHid := t.create("b")
	t.writeAt(bHid, "two", 0)

	AssertEq(nil, t.store.Rename(reffs.RootInodeID, "a", reffs.RootInodeID, "b"))

	_, err = t.store.LookUpInode(reffs.RootInodeID, "a")
	ExpectEq(reffs.ErrNotFound, err)

	entry, err := t.store.LookUpInode(reffs.RootInodeID, "b")
	AssertEq(nil, err)

	bHid2, err := t.store.OpenFile(entry.Child)
	AssertEq(nil, err)
	got := t.readAll(bHid2, 3)
	ExpectEq("one", string(got))

	// The old "/b" inode was unlinked by the rename and is no longer
	// reachable by name; it is freed once the kernel forgets the one
	// reference CreateFile's entry reply gave it.
	AssertEq(nil, t.store.ReleaseFileHandle(aHid))
	AssertEq(nil, t.store.ReleaseFileHandle(bHid))
	AssertEq(nil, t.store.ReleaseFileHandle(bHid2))
	AssertEq(nil, t.store.ForgetInode(bIno, 1))

	statAfter, err := t.store.StatFS()
	AssertEq(nil, err)
	ExpectEq(statBefore.InodesFree, statAfter.InodesFree+1)
}

////////////////////////////////////////////////////////////////////////
// S4 — Hard link count
////////////////////////////////////////////////////////////////////////

func (t *ScenariosTest) S4_HardLinkCount() {
	xEntry, xHid := t.create("x")

	_, err := t.store.Link(reffs.RootInodeID, "y", xEntry)
	AssertEq(nil, err)

	attrs, err := t.store.GetInodeAttributes(xEntry)
	AssertEq(nil, err)
	ExpectEq(2, attrs.Nlink)

	AssertEq(nil, t.store.Unlink(reffs.RootInodeID, "x"))

	attrs, err = t.store.GetInodeAttributes(xEntry)
	AssertEq(nil, err)
	ExpectEq(1, attrs.Nlink)

	yEntry, err := t.store.LookUpInode(reffs.RootInodeID, "y")
	AssertEq(nil, err)

	yHid, err := t.store.OpenFile(yEntry.Child)
	AssertEq(nil, err)
	_, err = t.store.ReadFile(yHid, make([]byte, 1), 0)
	ExpectEq(nil, err)

	t.store.ReleaseFileHandle(xHid)
	t.store.ReleaseFileHandle(yHid)
}

////////////////////////////////////////////////////////////////////////
// S5 — Pickle round trip
////////////////////////////////////////////////////////////////////////

func (t *ScenariosTest) S5_PickleRoundTrip() {
	dEntry, err := t.store.MkDir(reffs.RootInodeID, "d", 0o755, 0, 0)
	AssertEq(nil, err)
	_, err = t.store.MkDir(dEntry.Child, "sub", 0o755, 0, 0)
	AssertEq(nil, err)

	for _, name := range []string{"f1", "f2", "f3"} {
		_, hid, err := t.store.CreateFile(reffs.RootInodeID, name, 0o644, 0, 0)
		AssertEq(nil, err)
		t.writeAt(hid, "contents-"+name, 0)
		AssertEq(nil, t.store.ReleaseFileHandle(hid))
	}

	_, err = t.store.Symlink(reffs.RootInodeID, "link", "/f1", 0, 0)
	AssertEq(nil, err)

	f1Entry, err := t.store.LookUpInode(reffs.RootInodeID, "f1")
	AssertEq(nil, err)
	for i := 0; i < 4; i++ {
		name := "user.attr" + string(rune('0'+i))
		AssertEq(nil, t.store.SetXattr(f1Entry.Child, name, []byte("v"), reffs.XattrSetDefault, 0))
	}

	AssertEq(nil, t.store.Checkpoint(7))

	var buf bytes.Buffer
	AssertEq(nil, t.store.Pickle(&buf))

	loaded := reffs.NewStore(reffs.Options{TotalBlocks: 1 << 20, TotalInodes: 1 << 16})
	AssertEq(nil, loaded.Load(bytes.NewReader(buf.Bytes())))

	entry, err := loaded.LookUpInode(reffs.RootInodeID, "f1")
	AssertEq(nil, err)
	hid, err := loaded.OpenFile(entry.Child)
	AssertEq(nil, err)
	got := make([]byte, len("contents-f1"))
	n, err := loaded.ReadFile(hid, got, 0)
	AssertEq(nil, err)
	ExpectEq("contents-f1", string(got[:n]))

	_, err = loaded.Restore(7)
	AssertEq(nil, err)
}

////////////////////////////////////////////////////////////////////////
// S6 — Concurrent readdir under mutation
////////////////////////////////////////////////////////////////////////

func (t *ScenariosTest) S6_ConcurrentReaddirUnderMutation() {
	dEntry, err := t.store.MkDir(reffs.RootInodeID, "dir", 0o755, 0, 0)
	AssertEq(nil, err)

	names := make([]string, 10)
	for i := 0; i < 10; i++ {
		name := string(rune('a' + i))
		names[i] = name
		_, _, err := t.store.CreateFile(dEntry.Child, name, 0o644, 0, 0)
		AssertEq(nil, err)
	}

	hid, err := t.store.OpenDir(dEntry.Child)
	AssertEq(nil, err)

	first, err := t.store.ReadDir(hid, 5)
	AssertEq(nil, err)

	// Mutate the directory between batches: remove index 3's name,
	// add a new one.
	AssertEq(nil, t.store.Unlink(dEntry.Child, names[3]))
	_, _, err = t.store.CreateFile(dEntry.Child, "newname", 0o644, 0, 0)
	AssertEq(nil, err)

	second, err := t.store.ReadDir(hid, 20)
	AssertEq(nil, err)

	seen := map[string]bool{}
	for _, e := range append(first, second...) {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		seen[e.Name] = true
	}
	ExpectEq(10, len(seen))
	for _, n := range names {
		ExpectTrue(seen[n])
	}
	ExpectFalse(seen["newname"])

	AssertEq(nil, t.store.ReleaseDirHandle(hid))

	freshHid, err := t.store.OpenDir(dEntry.Child)
	AssertEq(nil, err)
	fresh, err := t.store.ReadDir(freshHid, 20)
	AssertEq(nil, err)

	freshSeen := map[string]bool{}
	for _, e := range fresh {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		freshSeen[e.Name] = true
	}
	ExpectEq(10, len(freshSeen))
	ExpectTrue(freshSeen["newname"])
	ExpectFalse(freshSeen[names[3]])
}
