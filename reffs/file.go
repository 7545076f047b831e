package reffs

// filePayload is the byte-storage variant of an inode (spec §3: "File:
// byte contents, variable length"). All access goes through the owning
// inode's metaMu; the struct itself holds no lock of its own (spec §4.2
// groups file I/O under the same metadata lock as size/mtime updates,
// since every write changes both together).
type filePayload struct {
	data []byte
}

func newFilePayload() *filePayload {
	return &filePayload{}
}

// readLocked returns up to len(p) bytes starting at off, the way pread(2)
// does: reads past EOF return 0 bytes and no error.
func (f *filePayload) readLocked(p []byte, off int64) (n int) {
	if off < 0 || off >= int64(len(f.data)) {
		return 0
	}
	n = copy(p, f.data[off:])
	return n
}

// writeLocked writes p at off, zero-filling any hole between the current
// end of file and off (spec §3 edge case: "writing past EOF creates a
// hole, read back as zero bytes"). Returns the new file size.
func (f *filePayload) writeLocked(p []byte, off int64) (newSize uint64) {
	end := off + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[off:end], p)
	return uint64(len(f.data))
}

// truncateLocked grows (zero-filling) or shrinks the buffer to size,
// implementing the size-changing half of set_attr (spec §4.2).
func (f *filePayload) truncateLocked(size uint64) {
	switch {
	case size == uint64(len(f.data)):
		return
	case size < uint64(len(f.data)):
		f.data = f.data[:size]
	default:
		grown := make([]byte, size)
		copy(grown, f.data)
		f.data = grown
	}
}

// snapshotLocked returns a deep copy of the buffer, for the checkpoint
// engine and the pickle codec.
func (f *filePayload) snapshotLocked() []byte {
	cp := make([]byte, len(f.data))
	copy(cp, f.data)
	return cp
}

func restoreFilePayload(data []byte) *filePayload {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &filePayload{data: cp}
}
