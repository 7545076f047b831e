// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package reffsops is a stable vocabulary of request/response shapes, one
// per filesystem operation, independent of whatever version of
// github.com/jacobsa/fuse/fuseops is linked in. reffsfuse converts each
// incoming fuseops.Op into the corresponding type here, drives
// reffs.Store with it, and converts the result back; reffs itself never
// imports this package, so the core store stays usable without pulling in
// any FUSE dependency at all. Shaped directly after fuseops.ops.go (the
// OpHeader/typed-struct-per-op pattern), extended with the operations
// (mknod, link, rename, readlink, xattr, statfs) that a general-purpose
// filesystem needs beyond what a read-mostly gateway like gcsfuse
// exposes.
package reffsops

import (
	"os"
	"time"

	"github.com/jacobsa/reqtrace"
	"github.com/sbu-fsl/RefFS/reffs"
)

// OpHeader carries the fields common to every operation (spec §4.2: pid,
// uid, gid accompany every call for access-control decisions).
type OpHeader struct {
	Uid uint32
	Gid uint32
	Pid uint32

	// TraceReport, if non-nil, is called with the op's error (nil on
	// success) when it completes, wiring reqtrace's per-op span reporting
	// (github.com/jacobsa/reqtrace) into the adapter without reffsops
	// itself depending on any particular tracer backend.
	TraceReport reqtrace.ReportFunc
}

// reportTrace closes out the op's reqtrace span, if one was started, the
// same way fuseops.commonOp.Respond calls o.report(err) after a FUSE op
// finishes. Every Xxx Op's Execute calls this itself so reffsfuse need
// not remember to.
func (h OpHeader) reportTrace(err error) {
	if h.TraceReport != nil {
		h.TraceReport(err)
	}
}

type LookUpInodeOp struct {
	Header OpHeader
	Parent reffs.InodeID
	Name   string
	Entry  reffs.ChildInodeEntry
}

type GetInodeAttributesOp struct {
	Header               OpHeader
	Inode                reffs.InodeID
	Attributes           reffs.InodeAttributes
	AttributesExpiration time.Time
}

type SetInodeAttributesOp struct {
	Header OpHeader
	Inode  reffs.InodeID
	Size   *uint64
	Mode   *os.FileMode
	Uid    *uint32
	Gid    *uint32
	Atime  *time.Time
	Mtime  *time.Time

	Attributes           reffs.InodeAttributes
	AttributesExpiration time.Time
}

type ForgetInodeOp struct {
	Header OpHeader
	Inode  reffs.InodeID
	N      uint64
}

type MkDirOp struct {
	Header OpHeader
	Parent reffs.InodeID
	Name   string
	Mode   os.FileMode
	Entry  reffs.ChildInodeEntry
}

type MkNodOp struct {
	Header OpHeader
	Parent reffs.InodeID
	Name   string
	Mode   os.FileMode
	Rdev   uint32
	Entry  reffs.ChildInodeEntry
}

type CreateFileOp struct {
	Header  OpHeader
	Parent  reffs.InodeID
	Name    string
	Mode    os.FileMode
	Entry   reffs.ChildInodeEntry
	Handle  reffs.HandleID
}

type CreateSymlinkOp struct {
	Header OpHeader
	Parent reffs.InodeID
	Name   string
	Target string
	Entry  reffs.ChildInodeEntry
}

type CreateLinkOp struct {
	Header OpHeader
	Parent reffs.InodeID
	Name   string
	Target reffs.InodeID
	Entry  reffs.ChildInodeEntry
}

type ReadSymlinkOp struct {
	Header OpHeader
	Inode  reffs.InodeID
	Target string
}

type RenameOp struct {
	Header    OpHeader
	OldParent reffs.InodeID
	OldName   string
	NewParent reffs.InodeID
	NewName   string
}

type RmDirOp struct {
	Header OpHeader
	Parent reffs.InodeID
	Name   string
}

type UnlinkOp struct {
	Header OpHeader
	Parent reffs.InodeID
	Name   string
}

type OpenDirOp struct {
	Header OpHeader
	Inode  reffs.InodeID
	Handle reffs.HandleID
}

type ReadDirOp struct {
	Header OpHeader
	Inode  reffs.InodeID
	Handle reffs.HandleID

	// Offset mirrors fuseops.ReadDirOp.Offset for fidelity with the wire
	// op; Execute does not consult it, since the store's own dirCursor
	// (bound to Handle at OpenDir time) already tracks read position.
	Offset  reffs.DirOffset
	MaxSize int

	// Entries is filled in by Execute; reffsfuse is responsible for
	// encoding them into the wire buffer fuseops.ReadDirOp.Data expects
	// (via fuseutil.AppendDirent), since that encoding is FUSE-specific
	// and reffsops never imports fuseutil.
	Entries []reffs.DirEntry
}

type ReleaseDirHandleOp struct {
	Header OpHeader
	Handle reffs.HandleID
}

type OpenFileOp struct {
	Header OpHeader
	Inode  reffs.InodeID
	Handle reffs.HandleID
}

type ReadFileOp struct {
	Header    OpHeader
	Inode     reffs.InodeID
	Handle    reffs.HandleID
	Offset    int64
	Dst       []byte
	BytesRead int
}

type WriteFileOp struct {
	Header  OpHeader
	Inode   reffs.InodeID
	Handle  reffs.HandleID
	Offset  int64
	Data    []byte
}

type FlushFileOp struct {
	Header OpHeader
	Inode  reffs.InodeID
	Handle reffs.HandleID
}

type ReleaseFileHandleOp struct {
	Header OpHeader
	Handle reffs.HandleID
}

type StatFSOp struct {
	Header OpHeader
	Info   reffs.StatfsInfo
}

type AccessOp struct {
	Header OpHeader
	Inode  reffs.InodeID
	Mask   reffs.AccessMask
}

type SetXattrOp struct {
	Header   OpHeader
	Inode    reffs.InodeID
	Name     string
	Value    []byte
	Flags    reffs.XattrSetFlags
	Position uint32
}

type GetXattrOp struct {
	Header   OpHeader
	Inode    reffs.InodeID
	Name     string
	Dst      []byte
	Position uint32
	BytesRead int
}

type ListXattrOp struct {
	Header    OpHeader
	Inode     reffs.InodeID
	Dst       []byte
	BytesRead int
}

type RemoveXattrOp struct {
	Header OpHeader
	Inode  reffs.InodeID
	Name   string
}

// Checkpoint/restore/pickle/load are not conventional VFS operations —
// they arrive over the mount's control socket rather than through
// fuseutil.FileSystem (spec §4.7) — but are driven through Execute the
// same way every other op in this package is, by cmd/mount_reffs's
// controlServer.dispatch rather than by reffsfuse.Adapter.
type CheckpointOp struct {
	Header OpHeader
	Token  uint64
}

type RestoreOp struct {
	Header    OpHeader
	Token     uint64
	Invalidate []reffs.InodeID
}

type PickleOp struct {
	Header OpHeader
	Path   string
}

type LoadOp struct {
	Header OpHeader
	Path   string
}
