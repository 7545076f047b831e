package reffs

import (
	"sync"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// inodeSnapshot is a deep, pointer-free copy of one inode, shared by the
// checkpoint engine (this file) and the on-disk pickle codec
// (pickle.go): both need exactly the same "freeze this inode" and "bring
// this inode back to life" operations, one in memory and one through a
// byte encoding.
type inodeSnapshot struct {
	kind              Kind
	attrs             InodeAttributes
	generation        GenerationNumber
	lookupCount       uint64
	markedForDeletion bool

	fileData      []byte
	dirParent     InodeID
	dirEntries    []dirEntry
	symlinkTarget string
	special       specialPayload

	xattrs map[string][]byte
}

// snapshotInode freezes a live inode. Checkpoint calls it holding
// s.barrier for write; Pickle calls it holding s.barrier only for read,
// so ordinary operations are not excluded while a pickle is taken.
func snapshotInode(in *inode) *inodeSnapshot {
	in.metaMu.RLock()
	sn := &inodeSnapshot{
		kind:              in.kind,
		attrs:             in.attrs,
		generation:        in.generation,
		lookupCount:       in.lookupCount,
		markedForDeletion: in.markedForDeletion,
	}
	switch in.kind {
	case KindFile:
		sn.fileData = in.file.snapshotLocked()
	case KindSymlink:
		sn.symlinkTarget = in.target
	case KindSpecial:
		sn.special = in.special
	}
	in.metaMu.RUnlock()

	if in.kind == KindDir {
		sn.dirEntries = in.dir.childrenSnapshot()
		sn.dirParent = in.dir.parentID()
	}

	sn.xattrs = in.xattrs.snapshot()
	return sn
}

// reconstructInode is the inverse of snapshotInode: build a live inode,
// detached from any table, from a frozen snapshot.
func reconstructInode(id InodeID, clock timeutil.Clock, sn *inodeSnapshot) *inode {
	in := &inode{
		id:                id,
		clock:             clock,
		attrs:             sn.attrs,
		kind:              sn.kind,
		generation:        sn.generation,
		lookupCount:       sn.lookupCount,
		markedForDeletion: sn.markedForDeletion,
		xattrs:            restoreXattrs(sn.xattrs),
	}
	in.metaMu = syncutil.NewInvariantMutex(in.checkInvariants)

	switch sn.kind {
	case KindFile:
		in.file = restoreFilePayload(sn.fileData)
	case KindDir:
		in.dir = restoreDirectory(id, sn.dirParent, sn.dirEntries)
	case KindSymlink:
		in.target = sn.symlinkTarget
	case KindSpecial:
		in.special = sn.special
	}

	return in
}

// storeSnapshot is a frozen copy of the whole filesystem (spec §4.1 C6:
// "checkpoint/restore engine; snapshot keyed by 64-bit token, deep
// clone"). tableLen/gens let Restore reconstruct the exact same slot
// layout, including the generation numbers of slots that were free at
// checkpoint time, rather than only the live inodes.
type storeSnapshot struct {
	tableLen uint64
	gens     []GenerationNumber
	inodes   map[InodeID]*inodeSnapshot
	usedBlocks uint64
}

// snapshotStore is the process-wide token->snapshot table. It has its
// own lock, separate from everything in store.go: checkpoints are rare
// and large, and must never be on the hot path's lock graph.
type snapshotStore struct {
	mu   sync.Mutex
	byTok map[uint64]*storeSnapshot
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{byTok: make(map[uint64]*storeSnapshot)}
}

// Checkpoint implements the checkpoint ioctl (spec §4.7): freeze the
// entire filesystem under the given caller-supplied token. Checkpoint is
// a barrier writer: every in-flight façade call has already returned,
// and none can start, until it completes (spec §9 design note).
func (s *Store) Checkpoint(token uint64) error {
	s.barrier.Lock()
	defer s.barrier.Unlock()

	s.snapshots.mu.Lock()
	_, exists := s.snapshots.byTok[token]
	s.snapshots.mu.Unlock()
	if exists {
		return ErrExists
	}

	snap := &storeSnapshot{
		tableLen:   s.table.capacity(),
		gens:       s.table.exportGens(),
		inodes:     make(map[InodeID]*inodeSnapshot),
		usedBlocks: s.stat.snapshotUsedBlocks(),
	}

	for _, id := range s.table.liveIDs() {
		in, err := s.table.get(id)
		if err != nil {
			continue
		}
		snap.inodes[id] = snapshotInode(in)
	}

	s.snapshots.mu.Lock()
	s.snapshots.byTok[token] = snap
	s.snapshots.mu.Unlock()

	return nil
}

// Restore implements the restore ioctl (spec §4.7): replace the live
// filesystem with a previously checkpointed state. It returns the union
// of inode IDs that were live immediately before and immediately after
// the restore, which the FUSE adapter uses to invalidate the kernel's
// cached data for each of those inodes; it issues no per-name entry
// invalidations (spec §9: "kernel cache invalidation on restore"); anything not in that set never
// existed on either side of the restore and needs no invalidation.
func (s *Store) Restore(token uint64) ([]InodeID, error) {
	s.snapshots.mu.Lock()
	snap, ok := s.snapshots.byTok[token]
	s.snapshots.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	s.barrier.Lock()
	defer s.barrier.Unlock()

	before := s.table.liveIDs()

	newTable := newInodeTable(s.clock)
	newTable.slots = make([]*inode, snap.tableLen)
	newTable.gens = make([]GenerationNumber, snap.tableLen)
	copy(newTable.gens, snap.gens)

	for id := uint64(2); id < snap.tableLen; id++ {
		if _, live := snap.inodes[InodeID(id)]; !live {
			newTable.free = append(newTable.free, InodeID(id))
		}
	}
	for id, sn := range snap.inodes {
		newTable.slots[id] = reconstructInode(id, s.clock, sn)
	}

	s.table = newTable
	s.stat.setUsedBlocksAbsolute(snap.usedBlocks)

	s.handlesMu.Lock()
	s.handles = make(map[HandleID]*handle)
	s.handlesMu.Unlock()
	s.readdir = newReaddirManager()

	after := s.table.liveIDs()

	touched := make(map[InodeID]struct{}, len(before)+len(after))
	for _, id := range before {
		touched[id] = struct{}{}
	}
	for _, id := range after {
		touched[id] = struct{}{}
	}

	out := make([]InodeID, 0, len(touched))
	for id := range touched {
		out = append(out, id)
	}
	return out, nil
}
