package reffs

import (
	"os"
	"time"
)

// blockSize is the fixed block unit used for the blocks/size accounting
// invariant in spec §3(3) and §8(3). The original source fixes this at
// 512 bytes (common.h); RefFS keeps the value but not the name.
const blockSize = 512

// ceilBlocks returns ceil(size / blockSize).
func ceilBlocks(size uint64) uint64 {
	return (size + blockSize - 1) / blockSize
}

// InodeAttributes mirrors the fields of struct inode relevant to FUSE
// (spec §3 "Inode (common fields)"), shaped after the teacher's
// fuseops.InodeAttributes (file_system.go).
type InodeAttributes struct {
	Size   uint64
	Blocks uint64 // in 512-byte units; Blocks == ceilBlocks(Size) for files/symlinks
	Mode   os.FileMode
	Nlink  uint32
	Uid    uint32
	Gid    uint32

	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Birthtime time.Time
}

// ChildInodeEntry is returned by operations that hand the kernel a new or
// refreshed name->inode binding (LookUp, MkDir, CreateFile, Symlink,
// Link, Mknod). Mirrors the teacher's fuseops.ChildInodeEntry.
type ChildInodeEntry struct {
	Child                InodeID
	Generation           GenerationNumber
	Attributes           InodeAttributes
	AttributesExpiration time.Time
	EntryExpiration      time.Time
}

// attrCacheTTL is the attribute-cache timeout named in spec §4.2
// ("reply_attr: ... attribute-cache timeout 1.0s").
const attrCacheTTL = 1 * time.Second
