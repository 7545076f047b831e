package reffs

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/sbu-fsl/RefFS/reffs/falloc"
)

// Pickle/Load implement the on-disk snapshot codec (spec §4.7 C7): a
// deterministic byte layout (so pickling the same state twice yields
// byte-identical output, a property pickle_test.go checks) guarded
// by a SHA-256 integrity header, grounded on the same freeze/thaw pair
// the in-memory checkpoint engine uses (snapshot.go), so the two
// subsystems cannot drift apart in what "the state of the filesystem"
// means.
const (
	pickleMagic   = "RFFS"
	pickleVersion = 1
)

// Pickle writes the entire filesystem to w. It takes the barrier for
// read, like any other façade operation: a concurrent Checkpoint or
// Restore is excluded, but ordinary traffic is not.
func (s *Store) Pickle(w io.Writer) error {
	s.barrier.RLock()
	body, err := s.encodeBody()
	s.barrier.RUnlock()
	if err != nil {
		return err
	}

	digest := sha256.Sum256(body)

	var header [8 + 32]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(body)))
	copy(header[8:], digest[:])

	if _, err := w.Write(header[:]); err != nil {
		return ErrMsgSize
	}
	if _, err := w.Write(body); err != nil {
		return ErrMsgSize
	}
	return nil
}

// Load replaces the live filesystem with the state encoded in r,
// verifying the SHA-256 header before touching any live state (spec
// §4.7: "Load ... rejects a corrupt or foreign file without mutating the
// live filesystem").
func (s *Store) Load(r io.Reader) error {
	var header [8 + 32]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return ErrMsgSize
	}
	size := binary.LittleEndian.Uint64(header[:8])
	wantDigest := header[8:]

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return ErrMsgSize
	}

	gotDigest := sha256.Sum256(body)
	if !bytes.Equal(gotDigest[:], wantDigest) {
		return ErrProtocol
	}

	live, snaps, err := decodeBody(body)
	if err != nil {
		return err
	}

	s.barrier.Lock()
	defer s.barrier.Unlock()

	newTable := newInodeTable(s.clock)
	newTable.slots = make([]*inode, live.tableLen)
	newTable.gens = make([]GenerationNumber, live.tableLen)
	copy(newTable.gens, live.gens)
	for id := uint64(2); id < live.tableLen; id++ {
		if _, ok := live.inodes[InodeID(id)]; !ok {
			newTable.free = append(newTable.free, InodeID(id))
		}
	}
	for id, sn := range live.inodes {
		newTable.slots[id] = reconstructInode(id, s.clock, sn)
	}

	s.table = newTable
	s.stat.setUsedBlocksAbsolute(live.usedBlocks)

	s.handlesMu.Lock()
	s.handles = make(map[HandleID]*handle)
	s.handlesMu.Unlock()
	s.readdir = newReaddirManager()

	s.snapshots.mu.Lock()
	s.snapshots.byTok = snaps
	s.snapshots.mu.Unlock()

	return nil
}

// PickleToFile writes the whole filesystem to a fresh file at path,
// preallocating its space up front (reffs/falloc) since its final size
// is known as soon as the body is encoded.
func (s *Store) PickleToFile(path string) error {
	s.barrier.RLock()
	body, err := s.encodeBody()
	s.barrier.RUnlock()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return ErrInvalid
	}
	defer f.Close()

	// Preallocation is an optimization; a filesystem that refuses it (e.g.
	// FAT on some platforms) should not block the pickle itself.
	_ = falloc.Preallocate(f, int64(8+32+len(body)))

	digest := sha256.Sum256(body)
	var header [8 + 32]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(body)))
	copy(header[8:], digest[:])

	if _, err := f.Write(header[:]); err != nil {
		return ErrMsgSize
	}
	if _, err := f.Write(body); err != nil {
		return ErrMsgSize
	}
	return nil
}

// LoadFromFile is the inverse of PickleToFile.
func (s *Store) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return ErrInvalid
	}
	defer f.Close()
	return s.Load(f)
}

// liveSnapshot freezes the whole live filesystem into a storeSnapshot,
// the same value shape Checkpoint produces, so encodeStoreSnapshot can
// serialize the live state and every retained checkpoint identically.
func (s *Store) liveSnapshot() *storeSnapshot {
	snap := &storeSnapshot{
		tableLen:   s.table.capacity(),
		gens:       s.table.exportGens(),
		usedBlocks: s.stat.snapshotUsedBlocks(),
		inodes:     make(map[InodeID]*inodeSnapshot),
	}
	for _, id := range s.table.liveIDs() {
		in, err := s.table.get(id)
		if err != nil {
			continue
		}
		snap.inodes[id] = snapshotInode(in)
	}
	return snap
}

// encodeStoreSnapshot writes one storeSnapshot (live state or a single
// retained checkpoint) in the layout spec §4.7 calls "statvfs, num_inodes,
// repeat: inode record" — used for both the body's live section and for
// each entry in the trailing snapshots section, so a retained checkpoint
// round-trips through Pickle/Load exactly like the live state does.
func encodeStoreSnapshot(buf *bytes.Buffer, snap *storeSnapshot) {
	writeU64(buf, snap.usedBlocks)
	writeU64(buf, snap.tableLen)

	for _, g := range snap.gens {
		writeU64(buf, uint64(g))
	}

	ids := make([]InodeID, 0, len(snap.inodes))
	for id := range snap.inodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	writeU64(buf, uint64(len(ids)))
	for _, id := range ids {
		writeU64(buf, uint64(id))
		encodeInodeSnapshot(buf, snap.inodes[id])
	}
}

func decodeStoreSnapshot(r *bytes.Reader) (*storeSnapshot, error) {
	usedBlocks, err := readU64(r)
	if err != nil {
		return nil, ErrMsgSize
	}
	tableLen, err := readU64(r)
	if err != nil {
		return nil, ErrMsgSize
	}

	gens := make([]GenerationNumber, tableLen)
	for i := range gens {
		g, err := readU64(r)
		if err != nil {
			return nil, ErrMsgSize
		}
		gens[i] = GenerationNumber(g)
	}

	count, err := readU64(r)
	if err != nil {
		return nil, ErrMsgSize
	}

	snap := &storeSnapshot{
		tableLen:   tableLen,
		gens:       gens,
		usedBlocks: usedBlocks,
		inodes:     make(map[InodeID]*inodeSnapshot, count),
	}

	for i := uint64(0); i < count; i++ {
		id, err := readU64(r)
		if err != nil {
			return nil, ErrMsgSize
		}
		sn, err := decodeInodeSnapshot(r)
		if err != nil {
			return nil, err
		}
		snap.inodes[InodeID(id)] = sn
	}

	return snap, nil
}

func (s *Store) encodeBody() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(pickleMagic)
	buf.WriteByte(pickleVersion)

	encodeStoreSnapshot(&buf, s.liveSnapshot())

	s.snapshots.mu.Lock()
	toks := make([]uint64, 0, len(s.snapshots.byTok))
	for tok := range s.snapshots.byTok {
		toks = append(toks, tok)
	}
	sort.Slice(toks, func(i, j int) bool { return toks[i] < toks[j] })

	writeU64(&buf, uint64(len(toks)))
	for _, tok := range toks {
		writeU64(&buf, tok)
		encodeStoreSnapshot(&buf, s.snapshots.byTok[tok])
	}
	s.snapshots.mu.Unlock()

	return buf.Bytes(), nil
}

// decodeBody parses a pickled body into the live state plus every
// retained checkpoint (spec §4.7: "u64 num_snapshots; repeat: key,
// inodes, deleted, statvfs"), so Load can install both in one step.
func decodeBody(body []byte) (*storeSnapshot, map[uint64]*storeSnapshot, error) {
	r := bytes.NewReader(body)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != pickleMagic {
		return nil, nil, ErrInvalid
	}
	version, err := readByte(r)
	if err != nil || version != pickleVersion {
		return nil, nil, ErrInvalid
	}

	live, err := decodeStoreSnapshot(r)
	if err != nil {
		return nil, nil, err
	}

	numSnaps, err := readU64(r)
	if err != nil {
		return nil, nil, ErrMsgSize
	}

	snaps := make(map[uint64]*storeSnapshot, numSnaps)
	for i := uint64(0); i < numSnaps; i++ {
		tok, err := readU64(r)
		if err != nil {
			return nil, nil, ErrMsgSize
		}
		snap, err := decodeStoreSnapshot(r)
		if err != nil {
			return nil, nil, err
		}
		snaps[tok] = snap
	}

	return live, snaps, nil
}

func encodeInodeSnapshot(buf *bytes.Buffer, sn *inodeSnapshot) {
	buf.WriteByte(byte(sn.kind))

	writeU64(buf, sn.attrs.Size)
	writeU64(buf, sn.attrs.Blocks)
	writeU32(buf, uint32(sn.attrs.Mode))
	writeU32(buf, sn.attrs.Nlink)
	writeU32(buf, sn.attrs.Uid)
	writeU32(buf, sn.attrs.Gid)
	writeTime(buf, sn.attrs.Atime)
	writeTime(buf, sn.attrs.Mtime)
	writeTime(buf, sn.attrs.Ctime)
	writeTime(buf, sn.attrs.Birthtime)

	writeU64(buf, uint64(sn.generation))
	writeU64(buf, sn.lookupCount)
	if sn.markedForDeletion {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	switch sn.kind {
	case KindFile:
		writeBytes(buf, sn.fileData)
	case KindDir:
		writeU64(buf, uint64(sn.dirParent))
		writeU64(buf, uint64(len(sn.dirEntries)))
		for _, e := range sn.dirEntries {
			writeString(buf, e.Name)
			writeU64(buf, uint64(e.Ino))
		}
	case KindSymlink:
		writeString(buf, sn.symlinkTarget)
	case KindSpecial:
		buf.WriteByte(byte(sn.special.Tag))
		writeU64(buf, sn.special.Dev)
	}

	writeU64(buf, uint64(len(sn.xattrs)))
	names := make([]string, 0, len(sn.xattrs))
	for name := range sn.xattrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeString(buf, name)
		writeBytes(buf, sn.xattrs[name])
	}
}

func decodeInodeSnapshot(r *bytes.Reader) (*inodeSnapshot, error) {
	kindByte, err := readByte(r)
	if err != nil {
		return nil, ErrMsgSize
	}
	sn := &inodeSnapshot{kind: Kind(kindByte), xattrs: make(map[string][]byte)}

	var e error
	sn.attrs.Size, e = readU64(r)
	if e != nil {
		return nil, ErrMsgSize
	}
	sn.attrs.Blocks, e = readU64(r)
	if e != nil {
		return nil, ErrMsgSize
	}
	mode, e := readU32(r)
	if e != nil {
		return nil, ErrMsgSize
	}
	sn.attrs.Mode = modeFromU32(mode)
	if sn.attrs.Nlink, e = readU32(r); e != nil {
		return nil, ErrMsgSize
	}
	if sn.attrs.Uid, e = readU32(r); e != nil {
		return nil, ErrMsgSize
	}
	if sn.attrs.Gid, e = readU32(r); e != nil {
		return nil, ErrMsgSize
	}
	if sn.attrs.Atime, e = readTime(r); e != nil {
		return nil, ErrMsgSize
	}
	if sn.attrs.Mtime, e = readTime(r); e != nil {
		return nil, ErrMsgSize
	}
	if sn.attrs.Ctime, e = readTime(r); e != nil {
		return nil, ErrMsgSize
	}
	if sn.attrs.Birthtime, e = readTime(r); e != nil {
		return nil, ErrMsgSize
	}

	gen, e := readU64(r)
	if e != nil {
		return nil, ErrMsgSize
	}
	sn.generation = GenerationNumber(gen)

	sn.lookupCount, e = readU64(r)
	if e != nil {
		return nil, ErrMsgSize
	}
	mfd, e := readByte(r)
	if e != nil {
		return nil, ErrMsgSize
	}
	sn.markedForDeletion = mfd != 0

	switch sn.kind {
	case KindFile:
		sn.fileData, e = readBytes(r)
	case KindDir:
		var parent uint64
		parent, e = readU64(r)
		if e != nil {
			return nil, ErrMsgSize
		}
		sn.dirParent = InodeID(parent)
		var n uint64
		n, e = readU64(r)
		if e != nil {
			return nil, ErrMsgSize
		}
		sn.dirEntries = make([]dirEntry, n)
		for i := range sn.dirEntries {
			name, err := readString(r)
			if err != nil {
				return nil, ErrMsgSize
			}
			ino, err := readU64(r)
			if err != nil {
				return nil, ErrMsgSize
			}
			sn.dirEntries[i] = dirEntry{Name: name, Ino: InodeID(ino)}
		}
	case KindSymlink:
		sn.symlinkTarget, e = readString(r)
	case KindSpecial:
		tag, err := readByte(r)
		if err != nil {
			return nil, ErrMsgSize
		}
		dev, err := readU64(r)
		if err != nil {
			return nil, ErrMsgSize
		}
		sn.special = specialPayload{Tag: SpecialTag(tag), Dev: dev}
	default:
		return nil, ErrInvalid
	}
	if e != nil {
		return nil, ErrMsgSize
	}

	xcount, e := readU64(r)
	if e != nil {
		return nil, ErrMsgSize
	}
	for i := uint64(0); i < xcount; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, ErrMsgSize
		}
		val, err := readBytes(r)
		if err != nil {
			return nil, ErrMsgSize
		}
		sn.xattrs[name] = val
	}

	return sn, nil
}
