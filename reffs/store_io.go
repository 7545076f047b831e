package reffs

// OpenFile implements open (spec §4.2): mint a handle over an existing
// regular file. RefFS does not model O_TRUNC/O_APPEND flag semantics
// itself; callers apply SetInodeAttributes for truncation the way the
// kernel's VFS layer already does before handing RefFS the open.
func (s *Store) OpenFile(id InodeID) (HandleID, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.table.get(id)
	if err != nil {
		return 0, err
	}
	if !in.isFile() {
		return 0, ErrInvalid
	}

	return s.allocHandle(&handle{ino: id}), nil
}

// ReleaseFileHandle implements release (spec §4.2).
func (s *Store) ReleaseFileHandle(hid HandleID) error {
	s.dropHandle(hid)
	return nil
}

// ReadFile implements read (spec §4.2). atime is updated unconditionally
// on every read (supplemented feature: no relatime).
func (s *Store) ReadFile(hid HandleID, p []byte, off int64) (int, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	h, err := s.lookupHandle(hid)
	if err != nil {
		return 0, err
	}
	in, err := s.table.get(h.ino)
	if err != nil {
		return 0, err
	}

	in.metaMu.Lock()
	n := in.file.readLocked(p, off)
	in.attrs.Atime = s.clock.Now()
	in.metaMu.Unlock()

	return n, nil
}

// WriteFile implements write (spec §4.2), including the hole-on-sparse-
// write and block-growth-with-ENOSPC edge cases.
func (s *Store) WriteFile(hid HandleID, p []byte, off int64) (int, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	h, err := s.lookupHandle(hid)
	if err != nil {
		return 0, err
	}
	in, err := s.table.get(h.ino)
	if err != nil {
		return 0, err
	}

	in.metaMu.Lock()
	defer in.metaMu.Unlock()

	oldBlocks := int64(in.attrs.Blocks)
	newSize := uint64(off) + uint64(len(p))
	if newSize < in.attrs.Size {
		newSize = in.attrs.Size
	}
	newBlocks := int64(ceilBlocks(newSize))

	if delta := newBlocks - oldBlocks; delta > 0 {
		if err := s.stat.applyDelta(delta); err != nil {
			return 0, err
		}
	}

	in.attrs.Size = in.file.writeLocked(p, off)
	in.attrs.Blocks = ceilBlocks(in.attrs.Size)
	now := s.clock.Now()
	in.attrs.Mtime = now
	in.attrs.Ctime = now

	return len(p), nil
}

// OpenDir implements opendir (spec §4.5): mint a handle carrying a fresh
// readdir cursor over a stable snapshot of the directory's children.
func (s *Store) OpenDir(id InodeID) (HandleID, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.getDir(id)
	if err != nil {
		return 0, err
	}

	cursor := s.readdir.newCursor(in)
	return s.allocHandle(&handle{ino: id, isDir: true, cursor: cursor}), nil
}

// DirEntry is one entry returned by ReadDir, mirroring fuseutil.Dirent.
type DirEntry struct {
	Offset DirOffset
	Inode  InodeID
	Name   string
	Type   Kind
}

// ReadDir implements readdir (spec §4.5): resume from the cursor's
// current position and return up to the requested count of entries,
// synthesizing "." and ".." at the front of a fresh cursor.
func (s *Store) ReadDir(hid HandleID, count int) ([]DirEntry, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	h, err := s.lookupHandle(hid)
	if err != nil {
		return nil, err
	}
	if !h.isDir {
		return nil, ErrNotDir
	}

	entries, err := s.readdir.next(h.cursor, count)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Name == "." || entries[i].Name == ".." {
			continue
		}
		if child, err := s.table.get(entries[i].Inode); err == nil {
			entries[i].Type = child.kind
		}
	}
	return entries, nil
}

// ReleaseDirHandle implements releasedir (spec §4.5).
func (s *Store) ReleaseDirHandle(hid HandleID) error {
	s.barrier.RLock()
	h, err := s.lookupHandle(hid)
	s.barrier.RUnlock()
	if err == nil && h.cursor != nil {
		s.readdir.release(h.cursor)
	}
	s.dropHandle(hid)
	return nil
}

// ---------------------------------------------------------------------
// Extended attributes
// ---------------------------------------------------------------------

func (s *Store) SetXattr(id InodeID, name string, value []byte, flags XattrSetFlags, position uint32) error {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.table.get(id)
	if err != nil {
		return err
	}
	return in.xattrs.Set(name, value, flags, position)
}

func (s *Store) GetXattr(id InodeID, name string, size int, position uint32) ([]byte, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.table.get(id)
	if err != nil {
		return nil, err
	}
	return in.xattrs.Get(name, size, position)
}

func (s *Store) ListXattr(id InodeID, size int) ([]byte, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.table.get(id)
	if err != nil {
		return nil, err
	}
	return in.xattrs.List(size)
}

func (s *Store) RemoveXattr(id InodeID, name string) error {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.table.get(id)
	if err != nil {
		return err
	}
	return in.xattrs.Remove(name)
}
