package reffs

import "github.com/jacobsa/syncutil"

// dirEntry is one name->inode binding. "." and ".." are synthesized by
// the store rather than stored here (spec §3: a directory "logically"
// contains them, but RefFS only materializes real children, the way the
// teacher's memfs sample does).
type dirEntry struct {
	Name string
	Ino  InodeID
}

// directory is the listing variant of an inode (spec §3: "Directory:
// ordered set of (name, inode) children"). It carries its own lock,
// independent of the owning inode's metadata lock (spec §4.3: "each
// directory has its own RW lock guarding its entry list, orthogonal to
// the inode's metadata lock"), so that a reader walking one directory's
// children never blocks on an unrelated attribute update, and so that
// the rename protocol (store.go) can take two directory locks together
// without also taking their inodes' metadata locks.
type directory struct {
	self InodeID

	mu       syncutil.InvariantMutex
	parent   InodeID    // GUARDED_BY(mu)
	entries  []dirEntry // GUARDED_BY(mu); order is insertion order
	byName   map[string]int
}

func newDirectory(self InodeID) *directory {
	d := &directory{
		self:   self,
		parent: self, // root is its own parent until told otherwise (supplemented feature)
		byName: make(map[string]int),
	}
	d.mu = syncutil.NewInvariantMutex(d.checkInvariants)
	return d
}

func (d *directory) checkInvariants() {
	if len(d.byName) != len(d.entries) {
		panic("directory index out of sync with entry list")
	}
	for name, idx := range d.byName {
		if idx < 0 || idx >= len(d.entries) || d.entries[idx].Name != name {
			panic("directory index corrupt for " + name)
		}
	}
}

func (d *directory) setParent(parent InodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.parent = parent
}

func (d *directory) parentID() InodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.parent
}

// lookup resolves name to a child inode ID. "." resolves to self and
// ".." to the directory's parent (spec §4.2 lookup edge cases).
func (d *directory) lookup(name string) (InodeID, bool) {
	switch name {
	case ".":
		return d.self, true
	case "..":
		d.mu.RLock()
		defer d.mu.RUnlock()
		return d.parent, true
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.byName[name]
	if !ok {
		return 0, false
	}
	return d.entries[idx].Ino, true
}

// addChild binds name to ino, failing with EEXIST if the name is taken
// (spec §4.2: create/mkdir/symlink/link/mknod all require the name be
// absent in the parent).
func (d *directory) addChild(name string, ino InodeID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byName[name]; ok {
		return ErrExists
	}

	d.byName[name] = len(d.entries)
	d.entries = append(d.entries, dirEntry{Name: name, Ino: ino})
	return nil
}

// removeChild unbinds name, failing with ENOENT if absent.
func (d *directory) removeChild(name string) (InodeID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx, ok := d.byName[name]
	if !ok {
		return 0, ErrNotFound
	}
	ino := d.entries[idx].Ino

	d.entries = append(d.entries[:idx], d.entries[idx+1:]...)
	delete(d.byName, name)
	for i := idx; i < len(d.entries); i++ {
		d.byName[d.entries[i].Name] = i
	}

	return ino, nil
}

// rebindChild implements the replacing half of rename: point name at a
// new inode ID in place (used when a rename target already exists and
// is being replaced, spec §4.2 rename semantics).
func (d *directory) rebindChild(name string, ino InodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx, ok := d.byName[name]; ok {
		d.entries[idx].Ino = ino
	}
}

// isEmpty reports whether the directory has any real children (spec
// §4.2: rmdir requires the target contain only "." and "..").
func (d *directory) isEmpty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries) == 0
}

// childrenSnapshot returns a stable, ordered copy of the entry list, used
// by readdir.go to build a cursor that outlives concurrent mutation of
// the live directory (spec §4.5).
func (d *directory) childrenSnapshot() []dirEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]dirEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

func restoreDirectory(self, parent InodeID, entries []dirEntry) *directory {
	d := newDirectory(self)
	d.parent = parent
	for _, e := range entries {
		d.byName[e.Name] = len(d.entries)
		d.entries = append(d.entries, e)
	}
	return d
}
