package reffs

import (
	"sync"

	"github.com/jacobsa/timeutil"
)

// Options configures a new Store (spec §3 "Filesystem-wide state").
type Options struct {
	TotalBlocks uint64
	TotalInodes uint64
	Clock       timeutil.Clock // if nil, timeutil.RealClock() is used
}

// handle is the record behind an opaque HandleID returned by OpenFile or
// OpenDir (spec §4.4 "file handles" / §4.5 "directory handles"). Handles
// are bookkeeping only; all actual data lives on the inode they name.
type handle struct {
	ino    InodeID
	isDir  bool
	cursor *dirCursor // non-nil iff isDir
}

// Store is the façade the FUSE adapter drives (spec §4.1 C4): one method
// per filesystem operation, each acquiring locks in this fixed order —
// barrier, rename mutex, the
// directories involved, the inode table, the per-inode metadata lock,
// the per-inode xattr lock, the stat lock, the readdir-state lock —
// never the reverse, to make the lock discipline deadlock-free by
// construction (spec §4.2). Grounded on the teacher's samples/memfs
// memFS type: one struct wrapping a table and a stat block, with a
// method per fuseops.*Op.
type Store struct {
	clock timeutil.Clock

	// barrier is the checkpoint/restore engine's synchronization point
	// (spec §4.1 C6, §9 design note): every ordinary operation holds it
	// for read for its duration; Checkpoint and Restore hold it for
	// write, guaranteeing no façade method observes a store mid-clone.
	barrier sync.RWMutex

	// renameMu serializes concurrent Rename calls so that the two (or
	// four, when source and destination directories differ) directory
	// locks a rename must hold are always acquired in a single
	// total order (spec §4.2 "a dedicated rename mutex, held for the
	// duration of the whole rename, in addition to the per-directory
	// locks").
	renameMu sync.Mutex

	table *inodeTable
	stat  *volumeStat

	readdir *readdirManager

	handlesMu sync.Mutex
	handles   map[HandleID]*handle
	nextHdl   HandleID

	snapshots *snapshotStore
}

// NewStore constructs a fresh filesystem containing only the root
// directory (spec §4.1: "construction installs a root directory with
// inode ID 1").
func NewStore(opts Options) *Store {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock()
	}

	s := &Store{
		clock:     clock,
		table:     newInodeTable(clock),
		stat:      newVolumeStat(opts.TotalBlocks, opts.TotalInodes),
		readdir:   newReaddirManager(),
		handles:   make(map[HandleID]*handle),
		snapshots: newSnapshotStore(),
	}

	root := s.table.installRoot(InodeAttributes{
		Mode:  0o755 | dirModeBit,
		Nlink: 2,
	})
	root.dir.setParent(RootInodeID)
	s.stat.applyDelta(int64(ceilBlocks(0)))

	return s
}

// dirModeBit is os.ModeDir, repeated here rather than importing "os" into
// every call site that builds an initial mode.
const dirModeBit = 1 << 31 // equals os.ModeDir

func (s *Store) allocHandle(h *handle) HandleID {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()
	s.nextHdl++
	id := s.nextHdl
	s.handles[id] = h
	return id
}

func (s *Store) lookupHandle(id HandleID) (*handle, error) {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()
	h, ok := s.handles[id]
	if !ok {
		return nil, ErrInvalid
	}
	return h, nil
}

func (s *Store) dropHandle(id HandleID) {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()
	delete(s.handles, id)
}

// getDir resolves id to an inode and asserts it is a directory.
func (s *Store) getDir(id InodeID) (*inode, error) {
	in, err := s.table.get(id)
	if err != nil {
		return nil, err
	}
	if !in.isDir() {
		return nil, ErrNotDir
	}
	return in, nil
}

// ---------------------------------------------------------------------
// Lookup / attributes
// ---------------------------------------------------------------------

// LookUpInode implements lookup(parent, name) (spec §4.2).
func (s *Store) LookUpInode(parent InodeID, name string) (ChildInodeEntry, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	if len(name) > maxNameLen {
		return ChildInodeEntry{}, ErrNameTooLong
	}

	parentIn, err := s.getDir(parent)
	if err != nil {
		return ChildInodeEntry{}, err
	}

	childID, ok := parentIn.dir.lookup(name)
	if !ok {
		return ChildInodeEntry{}, ErrNotFound
	}

	child, err := s.table.get(childID)
	if err != nil {
		return ChildInodeEntry{}, err
	}

	return child.replyEntry(childID), nil
}

// GetInodeAttributes implements get_attr (spec §4.2).
func (s *Store) GetInodeAttributes(id InodeID) (InodeAttributes, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.table.get(id)
	if err != nil {
		return InodeAttributes{}, err
	}
	attrs, _ := in.replyAttr()
	return attrs, nil
}

// SetInodeAttributes implements set_attr (spec §4.2).
func (s *Store) SetInodeAttributes(id InodeID, req SetAttrRequest) (InodeAttributes, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.table.get(id)
	if err != nil {
		return InodeAttributes{}, err
	}

	if req.Mask.Size {
		in.metaMu.RLock()
		oldBlocks := int64(in.attrs.Blocks)
		in.metaMu.RUnlock()
		newBlocks := int64(ceilBlocks(req.Size))
		if err := s.stat.applyDelta(newBlocks - oldBlocks); err != nil {
			return InodeAttributes{}, err
		}
	}

	return in.setAttr(req)
}

func (s *Store) ForgetInode(id InodeID, n uint64) error {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.table.get(id)
	if err != nil {
		// Forget has no reply; forgetting an inode already destroyed by
		// an earlier forget is a no-op, like any saturated forget.
		return nil
	}
	if id == RootInodeID {
		in.forget(n)
		return nil
	}

	if eligible := in.forget(n); eligible {
		s.destroyInode(in)
	}
	return nil
}

// destroyInode releases an inode's blocks back to the volume budget and
// frees its table slot. Callers must already hold s.barrier.
func (s *Store) destroyInode(in *inode) {
	in.metaMu.RLock()
	blocks := int64(in.attrs.Blocks)
	in.metaMu.RUnlock()

	s.stat.applyDelta(-blocks)
	s.table.release(in.id)
}

func (s *Store) Access(id InodeID, mask AccessMask, uid, gid uint32) error {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.table.get(id)
	if err != nil {
		return err
	}
	return in.access(mask, uid, gid)
}

func (s *Store) StatFS() (StatfsInfo, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	return s.stat.info(s.table.count()), nil
}
