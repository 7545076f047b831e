package reffs

import "github.com/jacobsa/syncutil"

// maxXattrNameLen bounds xattr key length (spec §3: "bounded-length
// string"). Linux's XATTR_NAME_MAX is 255; RefFS uses the same figure.
const maxXattrNameLen = 255

// xattrStore is the per-inode extended-attribute table, guarded by its
// own lock (spec §4.2: "each inode holds two reader-writer locks — one
// for the metadata triple ... and one for the xattr map").
type xattrStore struct {
	mu   syncutil.InvariantMutex
	vals map[string][]byte // GUARDED_BY(mu)
}

func newXattrStore() *xattrStore {
	x := &xattrStore{vals: make(map[string][]byte)}
	x.mu = syncutil.NewInvariantMutex(x.checkInvariants)
	return x
}

func (x *xattrStore) checkInvariants() {
	for name := range x.vals {
		if len(name) == 0 || len(name) > maxXattrNameLen {
			panic("xattr name out of bounds: " + name)
		}
	}
}

// XattrSetFlags mirrors the kernel's setxattr(2) flags.
type XattrSetFlags int

const (
	XattrSetDefault XattrSetFlags = iota
	XattrSetCreate                // XATTR_CREATE: fail if name exists
	XattrSetReplace                // XATTR_REPLACE: fail if name absent
)

// Set implements set_xattr (spec §4.2).
func (x *xattrStore) Set(name string, value []byte, flags XattrSetFlags, position uint32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(name) == 0 || len(name) > maxXattrNameLen {
		return ErrRange
	}

	existing, ok := x.vals[name]
	switch flags {
	case XattrSetCreate:
		if ok {
			return ErrExists
		}
	case XattrSetReplace:
		if !ok {
			return ErrNoData
		}
	}

	end := int(position) + len(value)
	var buf []byte
	if int(position) <= len(existing) {
		buf = make([]byte, maxInt(end, len(existing)))
		copy(buf, existing)
	} else {
		buf = make([]byte, end)
		copy(buf, existing)
	}
	copy(buf[position:], value)
	x.vals[name] = buf

	return nil
}

// Get implements get_xattr (spec §4.2). size == 0 requests the length
// only; otherwise up to size bytes starting at position are returned.
func (x *xattrStore) Get(name string, size int, position uint32) ([]byte, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	val, ok := x.vals[name]
	if !ok {
		return nil, ErrNoData
	}

	if size == 0 {
		return make([]byte, len(val)), nil // length carried in len(); caller reads len()
	}

	if int(position) > len(val) {
		return nil, ErrRange
	}
	avail := val[position:]
	if len(avail) > size {
		return nil, ErrRange
	}

	out := make([]byte, len(avail))
	copy(out, avail)
	return out, nil
}

// Len returns the stored length of name, for size==0 queries.
func (x *xattrStore) Len(name string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	val, ok := x.vals[name]
	if !ok {
		return 0, ErrNoData
	}
	return len(val), nil
}

// List implements list_xattr (spec §4.2): concatenation of "name\0" for
// every stored name. size == 0 requests the length only.
func (x *xattrStore) List(size int) ([]byte, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	total := 0
	for name := range x.vals {
		total += len(name) + 1
	}

	if size == 0 {
		return make([]byte, total), nil
	}
	if total > size {
		return nil, ErrRange
	}

	buf := make([]byte, 0, total)
	for name := range x.vals {
		buf = append(buf, name...)
		buf = append(buf, 0)
	}
	return buf, nil
}

// Remove implements remove_xattr (spec §4.2).
func (x *xattrStore) Remove(name string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.vals[name]; !ok {
		return ErrNoData
	}
	delete(x.vals, name)
	return nil
}

// snapshot returns a deep copy of the xattr table, used by the checkpoint
// engine (C6) and the pickle codec (C7).
func (x *xattrStore) snapshot() map[string][]byte {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string][]byte, len(x.vals))
	for k, v := range x.vals {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

func restoreXattrs(vals map[string][]byte) *xattrStore {
	x := newXattrStore()
	for k, v := range vals {
		cp := make([]byte, len(v))
		copy(cp, v)
		x.vals[k] = cp
	}
	return x
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
