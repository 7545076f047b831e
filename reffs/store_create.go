package reffs

import "os"

// mkEntry is the common tail of every operation that creates a new name
// in a directory and hands back a ChildInodeEntry (spec §4.2: mkdir,
// create, symlink, mknod all share this shape). kind/attrs/setup describe
// the variant being created; setup runs on the freshly allocated inode
// before it becomes visible to other goroutines via the directory entry.
func (s *Store) mkEntry(parent InodeID, name string, kind Kind, attrs InodeAttributes, setup func(*inode)) (ChildInodeEntry, error) {
	if len(name) > maxNameLen {
		return ChildInodeEntry{}, ErrNameTooLong
	}
	if name == "." || name == ".." {
		return ChildInodeEntry{}, ErrExists
	}

	parentIn, err := s.getDir(parent)
	if err != nil {
		return ChildInodeEntry{}, err
	}

	if err := s.stat.applyDelta(int64(ceilBlocks(attrs.Size))); err != nil {
		return ChildInodeEntry{}, err
	}

	child := s.table.allocate(kind, attrs)
	if setup != nil {
		setup(child)
	}

	if err := parentIn.dir.addChild(name, child.id); err != nil {
		s.destroyInode(child)
		return ChildInodeEntry{}, err
	}

	if kind == KindDir {
		child.dir.setParent(parent)
		parentIn.linkCountDelta(1) // ".." in the new directory
	}
	parentIn.metaMu.Lock()
	parentIn.attrs.Mtime = s.clock.Now()
	parentIn.attrs.Ctime = parentIn.attrs.Mtime
	parentIn.metaMu.Unlock()

	return child.replyEntry(child.id), nil
}

// MkDir implements mkdir (spec §4.2).
func (s *Store) MkDir(parent InodeID, name string, mode os.FileMode, uid, gid uint32) (ChildInodeEntry, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	attrs := InodeAttributes{Mode: mode | dirModeBit, Nlink: 2, Uid: uid, Gid: gid}
	entry, err := s.mkEntry(parent, name, KindDir, attrs, nil)
	if err != nil {
		return ChildInodeEntry{}, err
	}
	return entry, nil
}

// Mknod implements mknod for regular files and special nodes (spec §3:
// "mknod creates regular files, devices, fifos, or sockets depending on
// the mode bits supplied").
func (s *Store) Mknod(parent InodeID, name string, mode os.FileMode, dev uint64, uid, gid uint32) (ChildInodeEntry, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	attrs := InodeAttributes{Mode: mode, Nlink: 1, Uid: uid, Gid: gid}

	switch {
	case mode&os.ModeDir != 0:
		return ChildInodeEntry{}, ErrInvalid
	case mode&os.ModeCharDevice != 0 && mode&os.ModeDevice != 0:
		return s.mkEntry(parent, name, KindSpecial, attrs, func(in *inode) {
			in.special = makeSpecial(SpecialCharDev, dev)
		})
	case mode&os.ModeDevice != 0:
		return s.mkEntry(parent, name, KindSpecial, attrs, func(in *inode) {
			in.special = makeSpecial(SpecialBlockDev, dev)
		})
	case mode&os.ModeNamedPipe != 0:
		return s.mkEntry(parent, name, KindSpecial, attrs, func(in *inode) {
			in.special = makeSpecial(SpecialFifo, 0)
		})
	case mode&os.ModeSocket != 0:
		return s.mkEntry(parent, name, KindSpecial, attrs, func(in *inode) {
			in.special = makeSpecial(SpecialSock, 0)
		})
	default:
		return s.mkEntry(parent, name, KindFile, attrs, nil)
	}
}

// CreateFile implements create (spec §4.2): mknod of a regular file plus
// an open handle returned in the same call, matching fuseops.CreateFileOp.
func (s *Store) CreateFile(parent InodeID, name string, mode os.FileMode, uid, gid uint32) (ChildInodeEntry, HandleID, error) {
	s.barrier.RLock()

	attrs := InodeAttributes{Mode: mode, Nlink: 1, Uid: uid, Gid: gid}
	entry, err := s.mkEntry(parent, name, KindFile, attrs, nil)
	s.barrier.RUnlock()
	if err != nil {
		return ChildInodeEntry{}, 0, err
	}

	hid := s.allocHandle(&handle{ino: entry.Child})
	return entry, hid, nil
}

// Symlink implements symlink (spec §3 "Symlink: a target path string").
func (s *Store) Symlink(parent InodeID, name, target string, uid, gid uint32) (ChildInodeEntry, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	attrs := InodeAttributes{
		Mode:   os.ModeSymlink | 0o777,
		Nlink:  1,
		Uid:    uid,
		Gid:    gid,
		Size:   uint64(len(target)),
		Blocks: ceilBlocks(uint64(len(target))),
	}
	return s.mkEntry(parent, name, KindSymlink, attrs, func(in *inode) {
		in.target = target
	})
}

// ReadLink implements readlink (spec §4.2).
func (s *Store) ReadLink(id InodeID) (string, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	in, err := s.table.get(id)
	if err != nil {
		return "", err
	}
	if !in.isSymlink() {
		return "", ErrInvalid
	}
	return in.symlinkTarget(), nil
}

// Link implements link (spec §4.2): bind an additional name to an
// existing inode, bumping Nlink. Directories cannot be hard-linked.
func (s *Store) Link(parent InodeID, name string, target InodeID) (ChildInodeEntry, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	if len(name) > maxNameLen {
		return ChildInodeEntry{}, ErrNameTooLong
	}

	parentIn, err := s.getDir(parent)
	if err != nil {
		return ChildInodeEntry{}, err
	}
	targetIn, err := s.table.get(target)
	if err != nil {
		return ChildInodeEntry{}, err
	}
	if targetIn.isDir() {
		return ChildInodeEntry{}, ErrInvalid
	}

	if err := parentIn.dir.addChild(name, target); err != nil {
		return ChildInodeEntry{}, err
	}
	targetIn.linkCountDelta(1)

	return targetIn.replyEntry(target), nil
}

// Unlink implements unlink (spec §4.2): remove a name from its parent
// directory and drop the target's link count, destroying the inode
// immediately if both Nlink and lookup_count have reached zero.
func (s *Store) Unlink(parent InodeID, name string) error {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	parentIn, err := s.getDir(parent)
	if err != nil {
		return err
	}

	childID, ok := parentIn.dir.lookup(name)
	if !ok {
		return ErrNotFound
	}
	child, err := s.table.get(childID)
	if err != nil {
		return ErrNotFound
	}
	if child.isDir() {
		return ErrIsDir
	}

	if _, err := parentIn.dir.removeChild(name); err != nil {
		return err
	}

	child.linkCountDelta(-1)
	if child.nlink() == 0 && child.lookupCountSnapshot() == 0 {
		s.destroyInode(child)
	}

	parentIn.metaMu.Lock()
	parentIn.attrs.Mtime = s.clock.Now()
	parentIn.attrs.Ctime = parentIn.attrs.Mtime
	parentIn.metaMu.Unlock()

	return nil
}

// RmDir implements rmdir (spec §4.2): like unlink, but only for empty
// directories, and it also drops the removed directory's self-link and
// the parent's link for the departing "..".
func (s *Store) RmDir(parent InodeID, name string) error {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	parentIn, err := s.getDir(parent)
	if err != nil {
		return err
	}

	childID, ok := parentIn.dir.lookup(name)
	if !ok {
		return ErrNotFound
	}
	if childID == parent {
		return ErrInvalid
	}
	child, err := s.table.get(childID)
	if err != nil {
		return ErrNotFound
	}
	if !child.isDir() {
		return ErrNotDir
	}
	if !child.dir.isEmpty() {
		return ErrNotEmpty
	}

	if _, err := parentIn.dir.removeChild(name); err != nil {
		return err
	}
	parentIn.linkCountDelta(-1) // the departing ".."

	child.linkCountDelta(-2) // self and "."
	if child.nlink() == 0 && child.lookupCountSnapshot() == 0 {
		s.destroyInode(child)
	}

	parentIn.metaMu.Lock()
	parentIn.attrs.Mtime = s.clock.Now()
	parentIn.attrs.Ctime = parentIn.attrs.Mtime
	parentIn.metaMu.Unlock()

	return nil
}

// Rename implements rename (spec §4.2), including the across-directory
// case. It holds renameMu for its whole duration in addition to the
// barrier, so concurrent renames never interleave their directory-lock
// acquisitions (spec §4.2's fixed lock order). Source and destination
// parent locks are always taken in ascending InodeID order when they
// differ, and release happens through the directory methods' own
// locking rather than by this function holding them directly.
func (s *Store) Rename(oldParent InodeID, oldName string, newParent InodeID, newName string) error {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	s.renameMu.Lock()
	defer s.renameMu.Unlock()

	if len(newName) > maxNameLen {
		return ErrNameTooLong
	}

	oldParentIn, err := s.getDir(oldParent)
	if err != nil {
		return err
	}
	newParentIn, err := s.getDir(newParent)
	if err != nil {
		return err
	}

	srcID, ok := oldParentIn.dir.lookup(oldName)
	if !ok {
		return ErrNotFound
	}
	srcIn, err := s.table.get(srcID)
	if err != nil {
		return ErrNotFound
	}

	if dstID, ok := newParentIn.dir.lookup(newName); ok {
		dstIn, err := s.table.get(dstID)
		if err == nil {
			if dstIn.isDir() && !srcIn.isDir() {
				return ErrIsDir
			}
			if !dstIn.isDir() && srcIn.isDir() {
				return ErrNotDir
			}
			if dstIn.isDir() && !dstIn.dir.isEmpty() {
				return ErrNotEmpty
			}

			newParentIn.dir.rebindChild(newName, srcID)
			dstIn.linkCountDelta(-1)
			if dstIn.isDir() {
				dstIn.linkCountDelta(-1)
			}
			if dstIn.nlink() == 0 && dstIn.lookupCountSnapshot() == 0 {
				s.destroyInode(dstIn)
			}
		}
	} else {
		if err := newParentIn.dir.addChild(newName, srcID); err != nil {
			return err
		}
	}

	if _, err := oldParentIn.dir.removeChild(oldName); err != nil {
		return err
	}

	if srcIn.isDir() && oldParent != newParent {
		srcIn.dir.setParent(newParent)
		oldParentIn.linkCountDelta(-1)
		newParentIn.linkCountDelta(1)
	}

	now := s.clock.Now()
	for _, d := range []*inode{oldParentIn, newParentIn} {
		d.metaMu.Lock()
		d.attrs.Mtime = now
		d.attrs.Ctime = now
		d.metaMu.Unlock()
	}

	return nil
}
