// Package fuzz runs randomized operation sequences against a reffs.Store
// and, after every step, checks the statfs bounds and that every name in
// its model still resolves to the same inode, the way the
// teacher's samples/memfs/posix_test.go runs a fixed operation sequence
// and asserts POSIX semantics, generalized here to a randomized sequence
// so a single run exercises many more interleavings of create, write,
// rename, and unlink than a hand-written scenario ever would.
package fuzz

import (
	"fmt"
	"math/rand"

	"github.com/sbu-fsl/RefFS/reffs"
)

// liveEntry is the fuzzer's model of one name currently present in the
// filesystem root, kept in sync with the store so invariants can be
// checked against it after every step.
type liveEntry struct {
	name string
	ino  reffs.InodeID
	dir  bool
}

// Runner drives a sequence of randomized operations against a fresh
// store and reports the first invariant violation it finds, if any.
type Runner struct {
	store *reffs.Store
	rng   *rand.Rand
	live  []liveEntry
	next  int
}

// NewRunner builds a Runner over a fresh store seeded for determinism;
// the same seed always produces the same operation sequence, so a
// failure is reproducible by re-running with the same seed.
func NewRunner(seed int64) *Runner {
	return &Runner{
		store: reffs.NewStore(reffs.Options{TotalBlocks: 1 << 16, TotalInodes: 1 << 12}),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Run executes steps randomized operations, running checkInvariants
// after each one, and returns the first error encountered
// (nil if all steps and all invariant checks passed).
func (r *Runner) Run(steps int) error {
	if err := r.checkInvariants(); err != nil {
		return fmt.Errorf("initial state: %w", err)
	}
	for i := 0; i < steps; i++ {
		if err := r.step(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if err := r.checkInvariants(); err != nil {
			return fmt.Errorf("step %d invariant check: %w", i, err)
		}
	}
	return nil
}

func (r *Runner) freshName() string {
	name := fmt.Sprintf("n%d", r.next)
	r.next++
	return name
}

func (r *Runner) pickLive() (liveEntry, bool) {
	if len(r.live) == 0 {
		return liveEntry{}, false
	}
	return r.live[r.rng.Intn(len(r.live))], true
}

func (r *Runner) removeLive(name string) {
	for i, e := range r.live {
		if e.name == name {
			r.live = append(r.live[:i], r.live[i+1:]...)
			return
		}
	}
}

// step performs one randomly chosen operation. Operations that would
// fail for benign reasons (e.g. writing past the block budget, renaming
// onto a directory) are allowed to return an error from the store
// without that counting as a fuzzer failure; only a mismatch between
// the model and the store's observable state is reported.
func (r *Runner) step() error {
	choice := r.rng.Intn(7)
	if len(r.live) == 0 {
		choice = 0 // nothing to operate on yet but create
	}

	switch choice {
	case 0: // create a file
		name := r.freshName()
		entry, _, err := r.store.CreateFile(reffs.RootInodeID, name, 0o644, 0, 0)
		if err != nil {
			return nil
		}
		r.live = append(r.live, liveEntry{name: name, ino: entry.Child})

	case 1: // mkdir
		name := r.freshName()
		entry, err := r.store.MkDir(reffs.RootInodeID, name, 0o755, 0, 0)
		if err != nil {
			return nil
		}
		r.live = append(r.live, liveEntry{name: name, ino: entry.Child, dir: true})

	case 2: // write some bytes to a live file
		e, ok := r.pickLive()
		if !ok || e.dir {
			return nil
		}
		hid, err := r.store.OpenFile(e.ino)
		if err != nil {
			return nil
		}
		defer r.store.ReleaseFileHandle(hid)
		buf := make([]byte, 1+r.rng.Intn(256))
		r.rng.Read(buf)
		off := int64(r.rng.Intn(4096))
		if _, err := r.store.WriteFile(hid, buf, off); err != nil {
			return nil
		}

	case 3: // read back and sanity-check the size
		e, ok := r.pickLive()
		if !ok || e.dir {
			return nil
		}
		attrs, err := r.store.GetInodeAttributes(e.ino)
		if err != nil {
			return fmt.Errorf("GetInodeAttributes(%d) for tracked live file: %w", e.ino, err)
		}
		hid, err := r.store.OpenFile(e.ino)
		if err != nil {
			return nil
		}
		defer r.store.ReleaseFileHandle(hid)
		buf := make([]byte, attrs.Size)
		n, err := r.store.ReadFile(hid, buf, 0)
		if err != nil && attrs.Size > 0 {
			return fmt.Errorf("ReadFile(%d): %w", e.ino, err)
		}
		if uint64(n) > attrs.Size {
			return fmt.Errorf("ReadFile(%d) returned %d bytes, more than reported size %d", e.ino, n, attrs.Size)
		}

	case 4: // set an xattr
		e, ok := r.pickLive()
		if !ok {
			return nil
		}
		if err := r.store.SetXattr(e.ino, "user.fuzz", []byte("v"), reffs.XattrSetDefault, 0); err != nil {
			return nil
		}

	case 5: // rename one live entry over a fresh name
		e, ok := r.pickLive()
		if !ok {
			return nil
		}
		newName := r.freshName()
		if err := r.store.Rename(reffs.RootInodeID, e.name, reffs.RootInodeID, newName); err != nil {
			return nil
		}
		r.removeLive(e.name)
		r.live = append(r.live, liveEntry{name: newName, ino: e.ino, dir: e.dir})

	case 6: // unlink or rmdir a live entry
		e, ok := r.pickLive()
		if !ok {
			return nil
		}
		var err error
		if e.dir {
			err = r.store.RmDir(reffs.RootInodeID, e.name)
		} else {
			err = r.store.Unlink(reffs.RootInodeID, e.name)
		}
		if err != nil {
			return nil
		}
		r.removeLive(e.name)
	}
	return nil
}

// checkInvariants re-derives everything the model claims to know from
// the store and fails loudly on any mismatch.
func (r *Runner) checkInvariants() error {
	info, err := r.store.StatFS()
	if err != nil {
		return fmt.Errorf("StatFS: %w", err)
	}
	if info.BlocksFree > info.Blocks {
		return fmt.Errorf("BlocksFree %d exceeds Blocks %d", info.BlocksFree, info.Blocks)
	}
	if info.InodesFree > info.Inodes {
		return fmt.Errorf("InodesFree %d exceeds Inodes %d", info.InodesFree, info.Inodes)
	}
	if info.BlocksAvailable != info.BlocksFree {
		return fmt.Errorf("BlocksAvailable %d != BlocksFree %d", info.BlocksAvailable, info.BlocksFree)
	}

	for _, e := range r.live {
		entry, err := r.store.LookUpInode(reffs.RootInodeID, e.name)
		if err != nil {
			return fmt.Errorf("LookUpInode(root, %q) for tracked entry: %w", e.name, err)
		}
		if entry.Child != e.ino {
			return fmt.Errorf("LookUpInode(root, %q) = inode %d, model expected %d", e.name, entry.Child, e.ino)
		}
		if _, err := r.store.GetInodeAttributes(e.ino); err != nil {
			return fmt.Errorf("GetInodeAttributes(%d) for tracked %q: %w", e.ino, e.name, err)
		}
	}
	return nil
}
