package reffsfuse

import (
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/sbu-fsl/RefFS/reffs"
)

// toFuseAttrs converts the store's InodeAttributes to the shape
// fuseops.*Op reply fields expect.
func toFuseAttrs(a reffs.InodeAttributes) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:   a.Size,
		Nlink:  a.Nlink,
		Mode:   a.Mode,
		Uid:    a.Uid,
		Gid:    a.Gid,
		Atime:  a.Atime,
		Mtime:  a.Mtime,
		Ctime:  a.Ctime,
		Crtime: a.Birthtime,
	}
}

func toFuseEntry(e reffs.ChildInodeEntry) fuseops.ChildInodeEntry {
	return fuseops.ChildInodeEntry{
		Child:                fuseops.InodeID(e.Child),
		Generation:           fuseops.GenerationNumber(e.Generation),
		Attributes:           toFuseAttrs(e.Attributes),
		AttributesExpiration: e.AttributesExpiration,
		EntryExpiration:      e.EntryExpiration,
	}
}

func toFuseDirentType(k reffs.Kind) fuseutil.DirentType {
	switch k {
	case reffs.KindDir:
		return fuseutil.DT_Directory
	case reffs.KindSymlink:
		return fuseutil.DT_Link
	case reffs.KindFile:
		return fuseutil.DT_File
	default:
		return fuseutil.DT_Unknown
	}
}
