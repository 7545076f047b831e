package reffs

import "github.com/jacobsa/syncutil"

// maxNameLen bounds a single path component (spec §3 "bounded-length
// string"; supplemented from original_source's statvfs.f_namemax=255).
const maxNameLen = 255

// StatfsInfo mirrors the fields of struct statvfs that RefFS tracks
// (spec §4.6 "statfs"), shaped after the teacher's fuseops.StatFSOp
// reply fields.
type StatfsInfo struct {
	BlockSize       uint32
	Blocks          uint64
	BlocksFree      uint64
	BlocksAvailable uint64
	Inodes          uint64
	InodesFree      uint64
	MaxNameLen      uint32
}

// volumeStat tracks the global block and inode budget configured at
// mount time (spec §3 "Filesystem-wide state: total block budget, total
// inode budget, block size"). It has its own lock (spec §4.2's lock
// list: "a lock for filesystem-wide usage counters"), acquired after
// every per-inode lock and before nothing else, to avoid contending with
// the hot per-inode paths.
type volumeStat struct {
	mu syncutil.InvariantMutex

	totalBlocks uint64 // GUARDED_BY(mu)
	usedBlocks  uint64 // GUARDED_BY(mu)
	totalInodes uint64 // GUARDED_BY(mu)
}

func newVolumeStat(totalBlocks, totalInodes uint64) *volumeStat {
	v := &volumeStat{totalBlocks: totalBlocks, totalInodes: totalInodes}
	v.mu = syncutil.NewInvariantMutex(v.checkInvariants)
	return v
}

func (v *volumeStat) checkInvariants() {
	if v.usedBlocks > v.totalBlocks {
		panic("used blocks exceeds total blocks")
	}
}

// hasSpaceFor reports whether delta additional blocks fit in the budget.
// delta may be negative when a write or truncate shrinks a file.
func (v *volumeStat) hasSpaceFor(delta int64) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if delta <= 0 {
		return true
	}
	return v.usedBlocks+uint64(delta) <= v.totalBlocks
}

// applyDelta commits a block-count change after the caller has already
// mutated the owning file's buffer under its own lock. Shrinking never
// fails; growing fails (leaving state unchanged) if it would exceed the
// total budget, implementing ENOSPC (spec §3 edge case, §8(3)).
func (v *volumeStat) applyDelta(delta int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if delta > 0 && v.usedBlocks+uint64(delta) > v.totalBlocks {
		return ErrNoSpace
	}
	if delta < 0 {
		shrink := uint64(-delta)
		if shrink > v.usedBlocks {
			v.usedBlocks = 0
		} else {
			v.usedBlocks -= shrink
		}
	} else {
		v.usedBlocks += uint64(delta)
	}
	return nil
}

func (v *volumeStat) snapshotUsedBlocks() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.usedBlocks
}

// setUsedBlocksAbsolute is used by restore/load to reinstate a previously
// recorded usage figure directly, bypassing the delta/ENOSPC checks that
// only make sense for live mutation.
func (v *volumeStat) setUsedBlocksAbsolute(used uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.usedBlocks = used
}

func (v *volumeStat) info(inodesUsed uint64) StatfsInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()

	free := v.totalBlocks - v.usedBlocks
	var inodesFree uint64
	if v.totalInodes > inodesUsed {
		inodesFree = v.totalInodes - inodesUsed
	}

	return StatfsInfo{
		BlockSize:       blockSize,
		Blocks:          v.totalBlocks,
		BlocksFree:      free,
		BlocksAvailable: free,
		Inodes:          v.totalInodes,
		InodesFree:      inodesFree,
		MaxNameLen:      maxNameLen,
	}
}
