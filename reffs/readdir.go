package reffs

import (
	"math/rand"

	"github.com/jacobsa/syncutil"
)

// dirCursor is a single in-flight readdir walk: a snapshot of the
// directory's children taken at opendir time plus a position within it
// (spec §4.5: "stable iteration under concurrent mutation" — entries
// added or removed after the snapshot never appear in, or vanish from,
// an already-open listing). "." and ".." are synthesized at positions 0
// and 1 ahead of the real children.
type dirCursor struct {
	key      uint32
	owner    InodeID
	parent   InodeID
	children []dirEntry
	pos      int
}

// readdirManager is the process-wide cursor table, C5 in spec §4.1, kept
// behind its own lock (the last lock in the fixed acquisition order,
// spec §4.2) so that allocating or retiring a cursor never contends with
// any per-inode or per-directory work.
type readdirManager struct {
	mu      syncutil.InvariantMutex
	cursors map[uint32]*dirCursor // GUARDED_BY(mu)
}

func newReaddirManager() *readdirManager {
	m := &readdirManager{cursors: make(map[uint32]*dirCursor)}
	m.mu = syncutil.NewInvariantMutex(m.checkInvariants)
	return m
}

func (m *readdirManager) checkInvariants() {
	for key, c := range m.cursors {
		if c.key != key {
			panic("readdir cursor key mismatch")
		}
	}
}

// newCursor snapshots dir's children and registers a cursor for them
// under a fresh random key (spec §4.5: "opaque cookie, a 32-bit session
// key in the upper bits"). Collisions are vanishingly unlikely for any
// plausible number of concurrently open directory handles, and are
// resolved by simply drawing again.
func (m *readdirManager) newCursor(dir *inode) *dirCursor {
	snapshot := dir.dir.childrenSnapshot()
	parent := dir.dir.parentID()

	m.mu.Lock()
	defer m.mu.Unlock()

	var key uint32
	for {
		key = rand.Uint32()
		if key == 0 {
			continue
		}
		if _, taken := m.cursors[key]; !taken {
			break
		}
	}

	c := &dirCursor{key: key, owner: dir.id, parent: parent, children: snapshot}
	m.cursors[key] = c
	return c
}

func (m *readdirManager) release(c *dirCursor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cursors, c.key)
}

// next returns up to count entries starting at the cursor's current
// position, synthesizing "." and ".." ahead of the real children, and
// advances the cursor. Offsets combine the session key in the upper 32
// bits with the position in the lower 32 bits. Incoming offsets are not
// decoded: the read position comes from the cursor bound to the handle
// at OpenDir time, so a cookie replayed against a different handle is
// neither looked up nor rejected.
func (m *readdirManager) next(c *dirCursor, count int) ([]DirEntry, error) {
	if count <= 0 {
		return nil, nil
	}

	total := len(c.children) + 2 // "." and ".."
	out := make([]DirEntry, 0, count)

	for len(out) < count && c.pos < total {
		var e DirEntry
		switch c.pos {
		case 0:
			e = DirEntry{Offset: cursorOffset(c.key, c.pos+1), Inode: c.owner, Name: ".", Type: KindDir}
		case 1:
			e = DirEntry{Offset: cursorOffset(c.key, c.pos+1), Inode: c.parent, Name: "..", Type: KindDir}
		default:
			// Type is left zero-valued here; the caller (Store.ReadDir)
			// resolves it against the live inode table, since a cursor has
			// no table access of its own.
			child := c.children[c.pos-2]
			e = DirEntry{Offset: cursorOffset(c.key, c.pos+1), Inode: child.Ino, Name: child.Name}
		}
		out = append(out, e)
		c.pos++
	}

	return out, nil
}

func cursorOffset(key uint32, pos int) DirOffset {
	return DirOffset(uint64(key)<<32 | uint64(uint32(pos)))
}
