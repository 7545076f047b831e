package reffsfuse

import (
	"testing"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/sbu-fsl/RefFS/reffs"
)

func TestConvert(t *testing.T) { RunTests(t) }

type ConvertTest struct {
}

func init() { RegisterTestSuite(&ConvertTest{}) }

func (t *ConvertTest) ToFuseAttrsCopiesFields() {
	now := time.Now()
	in := reffs.InodeAttributes{
		Size:      123,
		Nlink:     2,
		Mode:      0o644,
		Uid:       7,
		Gid:       8,
		Atime:     now,
		Mtime:     now,
		Ctime:     now,
		Birthtime: now,
	}

	out := toFuseAttrs(in)
	ExpectEq(in.Size, out.Size)
	ExpectEq(in.Nlink, out.Nlink)
	ExpectEq(in.Mode, out.Mode)
	ExpectEq(in.Uid, out.Uid)
	ExpectEq(in.Gid, out.Gid)
	ExpectTrue(in.Birthtime.Equal(out.Crtime))
}

func (t *ConvertTest) ToFuseEntryCarriesChildAndGeneration() {
	entry := reffs.ChildInodeEntry{
		Child:      42,
		Generation: 3,
		Attributes: reffs.InodeAttributes{Size: 1},
	}

	out := toFuseEntry(entry)
	ExpectEq(fuseops.InodeID(42), out.Child)
	ExpectEq(fuseops.GenerationNumber(3), out.Generation)
	ExpectEq(uint64(1), out.Attributes.Size)
}

func (t *ConvertTest) ToFuseDirentTypeMapsEveryKind() {
	ExpectEq(fuseutil.DT_Directory, toFuseDirentType(reffs.KindDir))
	ExpectEq(fuseutil.DT_Link, toFuseDirentType(reffs.KindSymlink))
	ExpectEq(fuseutil.DT_File, toFuseDirentType(reffs.KindFile))
	ExpectEq(fuseutil.DT_Unknown, toFuseDirentType(reffs.KindSpecial))
}
