package reffs

import (
	"os"
	"time"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// Kind tags the variant payload an inode carries (spec §9: "tagged union,
// not multiple inheritance" — no AnyInode, no virtual inheritance; a
// common header plus one of four payloads selected by this tag).
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindSpecial
)

// SpecialTag distinguishes the variants of a "special" inode (spec §3).
type SpecialTag int

const (
	SpecialNone SpecialTag = iota
	SpecialCharDev
	SpecialBlockDev
	SpecialFifo
	SpecialSock
)

// AccessMask mirrors access(2)'s mode bits.
type AccessMask uint32

const (
	OK_F AccessMask = 0
	OK_X AccessMask = 1 << 0
	OK_W AccessMask = 1 << 1
	OK_R AccessMask = 1 << 2
)

// inode is the common header shared by every filesystem object (spec
// §3 "Inode (common fields)"), grounded on the teacher's samples/memfs
// inode struct, generalized to hold a tagged variant payload instead of
// assuming "file or directory" and to add the lookup-count/xattr/mark
// fields spec.md requires. Reads and writes of the metadata triple and
// of a file's buffer are serialized by metaMu; the xattr map has its own
// lock (xattrMu, inside xattrs); a directory payload has a further,
// independent lock on its entry vector (see directory.go). This mirrors
// spec §4.2's "each inode holds two reader-writer locks" plus §4.3's
// "each directory has its own RW lock ... orthogonal to the inode's
// metadata lock".
type inode struct {
	id    InodeID
	clock timeutil.Clock

	metaMu syncutil.InvariantMutex // GUARDED_BY: attrs, lookupCount, markedForDeletion, symlink target, special tag/dev, file buffer

	attrs             InodeAttributes // GUARDED_BY(metaMu)
	generation        GenerationNumber
	lookupCount       uint64 // GUARDED_BY(metaMu)
	markedForDeletion bool   // GUARDED_BY(metaMu)

	kind    Kind
	file    *filePayload    // non-nil iff kind == KindFile
	dir     *directory      // non-nil iff kind == KindDir
	target  string          // GUARDED_BY(metaMu); valid iff kind == KindSymlink
	special specialPayload  // valid iff kind == KindSpecial

	xattrs *xattrStore
}

type specialPayload struct {
	Tag SpecialTag
	Dev uint64
}

// newInode allocates an inode of the given kind with the supplied initial
// attributes. Time fields in attrs are overwritten with clock.Now().
func newInode(id InodeID, clock timeutil.Clock, kind Kind, attrs InodeAttributes) *inode {
	now := clock.Now()
	attrs.Atime = now
	attrs.Mtime = now
	attrs.Ctime = now
	attrs.Birthtime = now

	in := &inode{
		id:     id,
		clock:  clock,
		attrs:  attrs,
		kind:   kind,
		xattrs: newXattrStore(),
	}
	in.metaMu = syncutil.NewInvariantMutex(in.checkInvariants)

	switch kind {
	case KindFile:
		in.file = newFilePayload()
	case KindDir:
		in.dir = newDirectory(id)
	}

	return in
}

func (in *inode) checkInvariants() {
	// INVARIANT (spec §3): blocks == ceil(size/512) for files and symlinks,
	// and for directories where size is the synthetic metadata size.
	if want := ceilBlocks(in.attrs.Size); in.attrs.Blocks != want {
		panic("block count mismatch")
	}
	if in.markedForDeletion && in.attrs.Nlink != 0 {
		panic("markedForDeletion set with nonzero nlink")
	}
}

func (in *inode) isDir() bool     { return in.kind == KindDir }
func (in *inode) isFile() bool    { return in.kind == KindFile }
func (in *inode) isSymlink() bool { return in.kind == KindSymlink }
func (in *inode) isSpecial() bool { return in.kind == KindSpecial }

// snapshotAttrs returns a copy of the current attributes under the shared
// lock, used by reply_entry / reply_attr (spec §4.2).
func (in *inode) snapshotAttrs() InodeAttributes {
	in.metaMu.RLock()
	defer in.metaMu.RUnlock()
	return in.attrs
}

// replyEntry bumps lookupCount and returns a ChildInodeEntry, implementing
// the "every successful reply that includes a fuse_entry_param increments
// [lookup_count] by 1" rule from spec §9 open question 2 and invariant 5.
func (in *inode) replyEntry(childID InodeID) ChildInodeEntry {
	in.metaMu.Lock()
	defer in.metaMu.Unlock()

	in.lookupCount++
	now := in.clock.Now()

	return ChildInodeEntry{
		Child:                childID,
		Generation:           in.generation,
		Attributes:           in.attrs,
		AttributesExpiration: now.Add(attrCacheTTL),
		EntryExpiration:      now.Add(attrCacheTTL),
	}
}

// replyAttr returns a snapshot of attributes plus their cache expiration,
// without touching lookupCount (GetInodeAttributes does not mint a new
// kernel reference).
func (in *inode) replyAttr() (InodeAttributes, time.Time) {
	in.metaMu.RLock()
	defer in.metaMu.RUnlock()
	return in.attrs, in.clock.Now().Add(attrCacheTTL)
}

// SetAttrMask selects which fields of a SetAttr call are present.
type SetAttrMask struct {
	Mode  bool
	Uid   bool
	Gid   bool
	Size  bool
	Atime bool
	Mtime bool
	Ctime bool
}

// SetAttrRequest carries the new values for the fields named in Mask.
type SetAttrRequest struct {
	Mask       SetAttrMask
	Mode       os.FileMode
	Uid        uint32
	Gid        uint32
	Size       uint64
	Atime      time.Time
	Mtime      time.Time
	Ctime      time.Time
	HasHandle  bool // true if the size change accompanies an open file handle
}

// setAttr implements set_attr (spec §4.2). size is honoured for regular
// files only; EISDIR for directories, EINVAL for anything else or when a
// size change arrives alongside an open handle it cannot apply directly.
func (in *inode) setAttr(req SetAttrRequest) (InodeAttributes, error) {
	in.metaMu.Lock()
	defer in.metaMu.Unlock()

	if req.Mask.Size {
		switch {
		case in.kind == KindDir:
			return in.attrs, ErrIsDir
		case in.kind != KindFile:
			return in.attrs, ErrInvalid
		case req.HasHandle:
			return in.attrs, ErrInvalid
		default:
			in.file.truncateLocked(req.Size)
			in.attrs.Size = req.Size
			in.attrs.Blocks = ceilBlocks(req.Size)
		}
	}

	if req.Mask.Mode {
		in.attrs.Mode = req.Mode
	}
	if req.Mask.Uid {
		in.attrs.Uid = req.Uid
	}
	if req.Mask.Gid {
		in.attrs.Gid = req.Gid
	}
	if req.Mask.Atime {
		in.attrs.Atime = req.Atime
	}
	if req.Mask.Mtime {
		in.attrs.Mtime = req.Mtime
	}

	in.attrs.Ctime = in.clock.Now()

	return in.attrs, nil
}

// forget implements forget(n) (spec §4.2): decrement lookupCount by n,
// saturating at zero, and report whether the inode is now eligible for
// destruction (nlink==0 && lookupCount==0).
func (in *inode) forget(n uint64) (eligible bool) {
	in.metaMu.Lock()
	defer in.metaMu.Unlock()

	if n > in.lookupCount {
		in.lookupCount = 0
	} else {
		in.lookupCount -= n
	}

	return in.attrs.Nlink == 0 && in.lookupCount == 0
}

// linkCountDelta adjusts Nlink by delta and marks the inode for deletion
// if it drops to zero while still referenced by the kernel.
func (in *inode) linkCountDelta(delta int32) {
	in.metaMu.Lock()
	defer in.metaMu.Unlock()

	if delta < 0 {
		in.attrs.Nlink -= uint32(-delta)
	} else {
		in.attrs.Nlink += uint32(delta)
	}
	in.attrs.Ctime = in.clock.Now()

	if in.attrs.Nlink == 0 && in.lookupCount > 0 {
		in.markedForDeletion = true
	}
}

func (in *inode) nlink() uint32 {
	in.metaMu.RLock()
	defer in.metaMu.RUnlock()
	return in.attrs.Nlink
}

func (in *inode) lookupCountSnapshot() uint64 {
	in.metaMu.RLock()
	defer in.metaMu.RUnlock()
	return in.lookupCount
}

// access implements the standard 3-tier owner/group/other permission
// check on the stored mode (spec §4.2). Only the primary GID is
// considered, matching the spec's explicit simplification.
func (in *inode) access(mask AccessMask, uid, gid uint32) error {
	if mask == OK_F {
		return nil
	}

	in.metaMu.RLock()
	perm := in.attrs.Mode.Perm()
	ownerUid := in.attrs.Uid
	ownerGid := in.attrs.Gid
	in.metaMu.RUnlock()

	var bits os.FileMode
	switch {
	case uid == ownerUid:
		bits = perm >> 6 & 0o7
	case gid == ownerGid:
		bits = perm >> 3 & 0o7
	default:
		bits = perm & 0o7
	}

	want := os.FileMode(mask) & 0o7
	if bits&want != want {
		return ErrAccess
	}
	return nil
}
