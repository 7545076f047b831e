package reffs

import (
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// inodeTable is the process-wide inode arena (spec §4.1 C3: "vector of
// inode slots plus a free-slot queue; InodeID is an index, not a
// pointer"). Every cross-reference elsewhere in the package (directory
// entries, symlink targets are strings but device nodes, checkpoints,
// pickled files) names inodes by InodeID and resolves through this table,
// which is what makes deep-cloning the whole filesystem for checkpoint
// and pickle a matter of cloning one flat structure (spec §9 design
// note). Slot 0 is never assigned; slot 1 is always the root.
type inodeTable struct {
	mu    syncutil.InvariantMutex
	clock timeutil.Clock

	slots []*inode          // GUARDED_BY(mu); slots[0] is always nil
	free  []InodeID         // GUARDED_BY(mu); recyclable slot indices, excluding 0 and 1
	gens  []GenerationNumber // GUARDED_BY(mu); parallel to slots
}

func newInodeTable(clock timeutil.Clock) *inodeTable {
	t := &inodeTable{
		clock: clock,
		slots: make([]*inode, 2), // index 0: unused, index 1: root
		gens:  make([]GenerationNumber, 2),
	}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *inodeTable) checkInvariants() {
	if t.slots[0] != nil {
		panic("slot 0 must never be assigned")
	}
	if len(t.slots) != len(t.gens) {
		panic("slots/gens length mismatch")
	}
}

// allocate reserves a slot (reusing a freed one if available) and installs
// a freshly constructed inode of the given kind, carrying the slot's
// current generation number; release has already bumped it if the slot
// was previously occupied (spec §9's NFS-style generation bump on reuse).
func (t *inodeTable) allocate(kind Kind, attrs InodeAttributes) *inode {
	t.mu.Lock()
	defer t.mu.Unlock()

	var id InodeID
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		id = InodeID(len(t.slots))
		t.slots = append(t.slots, nil)
		t.gens = append(t.gens, 0)
	}

	in := newInode(id, t.clock, kind, attrs)
	in.generation = t.gens[id]
	t.slots[id] = in

	return in
}

// installRoot is used exactly once, at filesystem construction, to put
// the root directory into slot 1 with its fixed ID.
func (t *inodeTable) installRoot(attrs InodeAttributes) *inode {
	t.mu.Lock()
	defer t.mu.Unlock()

	root := newInode(RootInodeID, t.clock, KindDir, attrs)
	t.slots[RootInodeID] = root
	return root
}

// get resolves id to its live inode, or reports ErrNotFound.
func (t *inodeTable) get(id InodeID) (*inode, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id == 0 || int(id) >= len(t.slots) || t.slots[id] == nil {
		return nil, ErrNotFound
	}
	return t.slots[id], nil
}

// release returns id to the free-slot queue, bumping its generation
// number so a stale ID pointed at the same slot is recognizably stale.
func (t *inodeTable) release(id InodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id == 0 || int(id) >= len(t.slots) || t.slots[id] == nil {
		return
	}
	t.slots[id] = nil
	t.gens[id]++
	t.free = append(t.free, id)
}

// liveIDs returns every currently occupied slot's InodeID, in ascending
// order, used by the checkpoint engine and the pickle codec to walk the
// whole arena deterministically.
func (t *inodeTable) liveIDs() []InodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]InodeID, 0, len(t.slots))
	for id, in := range t.slots {
		if in != nil {
			out = append(out, InodeID(id))
		}
	}
	return out
}

// count returns the number of live inodes, for statfs's f_files accounting.
func (t *inodeTable) count() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var n uint64
	for _, in := range t.slots {
		if in != nil {
			n++
		}
	}
	return n
}

// capacity returns the current slot count (live, free and the reserved
// slot 0), recorded as tableLen by the checkpoint engine and the pickle
// codec so the slot layout can be rebuilt exactly.
func (t *inodeTable) capacity() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint64(len(t.slots))
}

// exportGens returns a copy of the per-slot generation counters, used by
// the checkpoint engine (snapshot.go) and the pickle codec (pickle.go) to
// preserve generation numbers of currently-free slots across a
// restore/load.
func (t *inodeTable) exportGens() []GenerationNumber {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]GenerationNumber, len(t.gens))
	copy(out, t.gens)
	return out
}
