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

// Package reffsfuse is the FUSE low-level protocol adapter: it implements
// fuseutil.FileSystem (one method per fuseops.*Op, each returning the
// error to report) by translating each op into the matching reffsops.Op,
// calling its Execute against reffs.Store, and converting the result back
// into the fuseops reply fields, the way gcsfuse's fs.fileSystem drives
// its inode package from FUSE ops. fuseutil.NewFileSystemServer wraps the
// Adapter into the Server fuse.Mount wants and takes care of calling
// op.Respond itself. This is the only package in this module that
// imports github.com/jacobsa/fuse; neither reffs nor reffsops ever does,
// so the store stays usable (and testable) without a kernel or a mount
// in sight.
package reffsfuse

import (
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/sbu-fsl/RefFS/reffs"
	"github.com/sbu-fsl/RefFS/reffs/reffsops"
)

// Invalidator is the subset of *fuse.MountedFileSystem's API the adapter
// needs to push checkpoint-restore cache invalidation down to the kernel
// (spec §9: "kernel cache invalidation on restore"). It is satisfied by
// *fuse.MountedFileSystem in a running mount; tests can supply a fake.
type Invalidator interface {
	InvalidateInode(inode fuseops.InodeID, offset int64, length int64) error
	InvalidateEntry(parent fuseops.InodeID, name string) error
}

// Adapter implements fuseutil.FileSystem over a reffs.Store.
type Adapter struct {
	fuseutil.NotImplementedFileSystem

	store       *reffs.Store
	invalidator Invalidator
}

// New builds an Adapter over store. Kernel cache invalidation after a
// restore needs a live kernel connection, supplied with SetInvalidator
// once a mount exists; until then InvalidateForRestore does nothing.
func New(store *reffs.Store) *Adapter {
	return &Adapter{store: store}
}

func (a *Adapter) SetInvalidator(inv Invalidator) {
	a.invalidator = inv
}

func header(h fuseops.OpHeader) reffsops.OpHeader {
	return reffsops.OpHeader{Uid: h.Uid, Gid: h.Gid, Pid: h.Pid}
}

func (a *Adapter) Init(op *fuseops.InitOp) (err error) {
	return
}

func (a *Adapter) LookUpInode(op *fuseops.LookUpInodeOp) (err error) {
	o := reffsops.LookUpInodeOp{Header: header(op.Header), Parent: reffs.InodeID(op.Parent), Name: op.Name}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Entry = toFuseEntry(o.Entry)
	return
}

func (a *Adapter) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) (err error) {
	o := reffsops.GetInodeAttributesOp{Header: header(op.Header), Inode: reffs.InodeID(op.Inode)}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Attributes = toFuseAttrs(o.Attributes)
	return
}

func (a *Adapter) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) (err error) {
	o := reffsops.SetInodeAttributesOp{
		Header: header(op.Header),
		Inode:  reffs.InodeID(op.Inode),
		Size:   op.Size,
		Mode:   op.Mode,
		Atime:  op.Atime,
		Mtime:  op.Mtime,
	}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Attributes = toFuseAttrs(o.Attributes)
	return
}

func (a *Adapter) ForgetInode(op *fuseops.ForgetInodeOp) (err error) {
	o := reffsops.ForgetInodeOp{Header: header(op.Header), Inode: reffs.InodeID(op.Inode), N: uint64(op.N)}
	err = o.Execute(a.store)
	return
}

func (a *Adapter) MkDir(op *fuseops.MkDirOp) (err error) {
	o := reffsops.MkDirOp{
		Header: header(op.Header),
		Parent: reffs.InodeID(op.Parent),
		Name:   op.Name,
		Mode:   op.Mode,
	}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Entry = toFuseEntry(o.Entry)
	return
}

func (a *Adapter) MkNode(op *fuseops.MkNodeOp) (err error) {
	o := reffsops.MkNodOp{
		Header: header(op.Header),
		Parent: reffs.InodeID(op.Parent),
		Name:   op.Name,
		Mode:   op.Mode,
	}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Entry = toFuseEntry(o.Entry)
	return
}

func (a *Adapter) CreateFile(op *fuseops.CreateFileOp) (err error) {
	o := reffsops.CreateFileOp{
		Header: header(op.Header),
		Parent: reffs.InodeID(op.Parent),
		Name:   op.Name,
		Mode:   op.Mode,
	}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Entry = toFuseEntry(o.Entry)
	op.Handle = fuseops.HandleID(o.Handle)
	return
}

func (a *Adapter) CreateSymlink(op *fuseops.CreateSymlinkOp) (err error) {
	o := reffsops.CreateSymlinkOp{
		Header: header(op.Header),
		Parent: reffs.InodeID(op.Parent),
		Name:   op.Name,
		Target: op.Target,
	}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Entry = toFuseEntry(o.Entry)
	return
}

func (a *Adapter) CreateLink(op *fuseops.CreateLinkOp) (err error) {
	o := reffsops.CreateLinkOp{
		Header: header(op.Header),
		Parent: reffs.InodeID(op.Parent),
		Name:   op.Name,
		Target: reffs.InodeID(op.Target),
	}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Entry = toFuseEntry(o.Entry)
	return
}

func (a *Adapter) ReadSymlink(op *fuseops.ReadSymlinkOp) (err error) {
	o := reffsops.ReadSymlinkOp{Header: header(op.Header), Inode: reffs.InodeID(op.Inode)}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Target = o.Target
	return
}

func (a *Adapter) Rename(op *fuseops.RenameOp) (err error) {
	o := reffsops.RenameOp{
		Header:    header(op.Header),
		OldParent: reffs.InodeID(op.OldParent),
		OldName:   op.OldName,
		NewParent: reffs.InodeID(op.NewParent),
		NewName:   op.NewName,
	}
	err = o.Execute(a.store)
	return
}

func (a *Adapter) RmDir(op *fuseops.RmDirOp) (err error) {
	o := reffsops.RmDirOp{Header: header(op.Header), Parent: reffs.InodeID(op.Parent), Name: op.Name}
	err = o.Execute(a.store)
	return
}

func (a *Adapter) Unlink(op *fuseops.UnlinkOp) (err error) {
	o := reffsops.UnlinkOp{Header: header(op.Header), Parent: reffs.InodeID(op.Parent), Name: op.Name}
	err = o.Execute(a.store)
	return
}

func (a *Adapter) OpenDir(op *fuseops.OpenDirOp) (err error) {
	o := reffsops.OpenDirOp{Header: header(op.Header), Inode: reffs.InodeID(op.Inode)}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Handle = fuseops.HandleID(o.Handle)
	return
}

func (a *Adapter) ReadDir(op *fuseops.ReadDirOp) (err error) {
	o := reffsops.ReadDirOp{
		Header:  header(op.Header),
		Inode:   reffs.InodeID(op.Inode),
		Handle:  reffs.HandleID(op.Handle),
		Offset:  reffs.DirOffset(op.Offset),
		MaxSize: op.Size,
	}
	if err = o.Execute(a.store); err != nil {
		return
	}

	for _, e := range o.Entries {
		wn := fuseutil.AppendDirent(op.Data, fuseutil.Dirent{
			Offset: fuseops.DirOffset(e.Offset),
			Inode:  fuseops.InodeID(e.Inode),
			Name:   e.Name,
			Type:   toFuseDirentType(e.Type),
		})
		if len(wn) > op.Size {
			break
		}
		op.Data = wn
	}
	return
}

func (a *Adapter) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) (err error) {
	o := reffsops.ReleaseDirHandleOp{Header: header(op.Header), Handle: reffs.HandleID(op.Handle)}
	err = o.Execute(a.store)
	return
}

func (a *Adapter) OpenFile(op *fuseops.OpenFileOp) (err error) {
	o := reffsops.OpenFileOp{Header: header(op.Header), Inode: reffs.InodeID(op.Inode)}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.Handle = fuseops.HandleID(o.Handle)
	return
}

func (a *Adapter) ReadFile(op *fuseops.ReadFileOp) (err error) {
	o := reffsops.ReadFileOp{
		Header: header(op.Header),
		Handle: reffs.HandleID(op.Handle),
		Offset: op.Offset,
		Dst:    make([]byte, op.Size),
	}
	err = o.Execute(a.store)
	op.Data = o.Dst[:o.BytesRead]
	return
}

func (a *Adapter) WriteFile(op *fuseops.WriteFileOp) (err error) {
	o := reffsops.WriteFileOp{
		Header: header(op.Header),
		Handle: reffs.HandleID(op.Handle),
		Offset: op.Offset,
		Data:   op.Data,
	}
	err = o.Execute(a.store)
	return
}

func (a *Adapter) SyncFile(op *fuseops.SyncFileOp) (err error) {
	return
}

func (a *Adapter) FlushFile(op *fuseops.FlushFileOp) (err error) {
	o := reffsops.FlushFileOp{Header: header(op.Header), Handle: reffs.HandleID(op.Handle)}
	err = o.Execute(a.store)
	return
}

func (a *Adapter) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) (err error) {
	o := reffsops.ReleaseFileHandleOp{Header: header(op.Header), Handle: reffs.HandleID(op.Handle)}
	err = o.Execute(a.store)
	return
}

func (a *Adapter) StatFS(op *fuseops.StatFSOp) (err error) {
	o := reffsops.StatFSOp{Header: header(op.Header)}
	if err = o.Execute(a.store); err != nil {
		return
	}
	op.BlockSize = o.Info.BlockSize
	op.Blocks = o.Info.Blocks
	op.BlocksFree = o.Info.BlocksFree
	op.BlocksAvailable = o.Info.BlocksAvailable
	op.Inodes = o.Info.Inodes
	op.InodesFree = o.Info.InodesFree
	return
}

func (a *Adapter) SetXattr(op *fuseops.SetXattrOp) (err error) {
	o := reffsops.SetXattrOp{
		Header: header(op.Header),
		Inode:  reffs.InodeID(op.Inode),
		Name:   op.Name,
		Value:  op.Value,
		Flags:  reffs.XattrSetFlags(op.Flags),
	}
	err = o.Execute(a.store)
	return
}

func (a *Adapter) GetXattr(op *fuseops.GetXattrOp) (err error) {
	o := reffsops.GetXattrOp{
		Header: header(op.Header),
		Inode:  reffs.InodeID(op.Inode),
		Name:   op.Name,
		Dst:    op.Dst,
	}
	err = o.Execute(a.store)
	op.BytesRead = o.BytesRead
	return
}

func (a *Adapter) ListXattr(op *fuseops.ListXattrOp) (err error) {
	o := reffsops.ListXattrOp{Header: header(op.Header), Inode: reffs.InodeID(op.Inode), Dst: op.Dst}
	err = o.Execute(a.store)
	op.BytesRead = o.BytesRead
	return
}

func (a *Adapter) RemoveXattr(op *fuseops.RemoveXattrOp) (err error) {
	o := reffsops.RemoveXattrOp{Header: header(op.Header), Inode: reffs.InodeID(op.Inode), Name: op.Name}
	err = o.Execute(a.store)
	return
}

func (a *Adapter) Destroy() {}

// InvalidateForRestore pushes invalidate_inode/invalidate_entry down for
// every inode touched by a checkpoint restore (spec §9). It is best
// called right after reffs.Store.Restore returns its touched-ID list;
// per-name entry invalidation isn't attempted since a restored inode's
// former parent/name pairing may no longer exist, so whole-inode
// invalidation is used uniformly, at the cost of being slightly more
// aggressive than strictly necessary.
func (a *Adapter) InvalidateForRestore(touched []reffs.InodeID) {
	if a.invalidator == nil {
		return
	}
	for _, id := range touched {
		a.invalidator.InvalidateInode(fuseops.InodeID(id), 0, 0)
	}
}
