package reffsops

import (
	"github.com/sbu-fsl/RefFS/reffs"
)

// Execute runs the looked-up-entry op against store, filling in Entry
// on success. reffsfuse builds one of these from an incoming
// fuseops.LookUpInodeOp, calls Execute, and converts Entry back.
func (op *LookUpInodeOp) Execute(s *reffs.Store) (err error) {
	op.Entry, err = s.LookUpInode(op.Parent, op.Name)
	op.Header.reportTrace(err)
	return
}

func (op *GetInodeAttributesOp) Execute(s *reffs.Store) (err error) {
	op.Attributes, err = s.GetInodeAttributes(op.Inode)
	op.Header.reportTrace(err)
	return
}

func (op *SetInodeAttributesOp) Execute(s *reffs.Store) (err error) {
	req := reffs.SetAttrRequest{}
	if op.Size != nil {
		req.Mask.Size = true
		req.Size = *op.Size
	}
	if op.Mode != nil {
		req.Mask.Mode = true
		req.Mode = *op.Mode
	}
	if op.Atime != nil {
		req.Mask.Atime = true
		req.Atime = *op.Atime
	}
	if op.Mtime != nil {
		req.Mask.Mtime = true
		req.Mtime = *op.Mtime
	}
	op.Attributes, err = s.SetInodeAttributes(op.Inode, req)
	op.Header.reportTrace(err)
	return
}

func (op *ForgetInodeOp) Execute(s *reffs.Store) (err error) {
	err = s.ForgetInode(op.Inode, op.N)
	op.Header.reportTrace(err)
	return
}

func (op *MkDirOp) Execute(s *reffs.Store) (err error) {
	op.Entry, err = s.MkDir(op.Parent, op.Name, op.Mode, op.Header.Uid, op.Header.Gid)
	op.Header.reportTrace(err)
	return
}

func (op *MkNodOp) Execute(s *reffs.Store) (err error) {
	op.Entry, err = s.Mknod(op.Parent, op.Name, op.Mode, uint64(op.Rdev), op.Header.Uid, op.Header.Gid)
	op.Header.reportTrace(err)
	return
}

func (op *CreateFileOp) Execute(s *reffs.Store) (err error) {
	op.Entry, op.Handle, err = s.CreateFile(op.Parent, op.Name, op.Mode, op.Header.Uid, op.Header.Gid)
	op.Header.reportTrace(err)
	return
}

func (op *CreateSymlinkOp) Execute(s *reffs.Store) (err error) {
	op.Entry, err = s.Symlink(op.Parent, op.Name, op.Target, op.Header.Uid, op.Header.Gid)
	op.Header.reportTrace(err)
	return
}

func (op *CreateLinkOp) Execute(s *reffs.Store) (err error) {
	op.Entry, err = s.Link(op.Parent, op.Name, op.Target)
	op.Header.reportTrace(err)
	return
}

func (op *ReadSymlinkOp) Execute(s *reffs.Store) (err error) {
	op.Target, err = s.ReadLink(op.Inode)
	op.Header.reportTrace(err)
	return
}

func (op *RenameOp) Execute(s *reffs.Store) (err error) {
	err = s.Rename(op.OldParent, op.OldName, op.NewParent, op.NewName)
	op.Header.reportTrace(err)
	return
}

func (op *RmDirOp) Execute(s *reffs.Store) (err error) {
	err = s.RmDir(op.Parent, op.Name)
	op.Header.reportTrace(err)
	return
}

func (op *UnlinkOp) Execute(s *reffs.Store) (err error) {
	err = s.Unlink(op.Parent, op.Name)
	op.Header.reportTrace(err)
	return
}

func (op *OpenDirOp) Execute(s *reffs.Store) (err error) {
	op.Handle, err = s.OpenDir(op.Inode)
	op.Header.reportTrace(err)
	return
}

func (op *ReadDirOp) Execute(s *reffs.Store) (err error) {
	op.Entries, err = s.ReadDir(op.Handle, op.MaxSize)
	op.Header.reportTrace(err)
	return
}

func (op *ReleaseDirHandleOp) Execute(s *reffs.Store) (err error) {
	err = s.ReleaseDirHandle(op.Handle)
	op.Header.reportTrace(err)
	return
}

func (op *OpenFileOp) Execute(s *reffs.Store) (err error) {
	op.Handle, err = s.OpenFile(op.Inode)
	op.Header.reportTrace(err)
	return
}

func (op *ReadFileOp) Execute(s *reffs.Store) (err error) {
	op.BytesRead, err = s.ReadFile(op.Handle, op.Dst, op.Offset)
	op.Header.reportTrace(err)
	return
}

func (op *WriteFileOp) Execute(s *reffs.Store) (err error) {
	_, err = s.WriteFile(op.Handle, op.Data, op.Offset)
	op.Header.reportTrace(err)
	return
}

func (op *FlushFileOp) Execute(s *reffs.Store) (err error) {
	op.Header.reportTrace(nil)
	return
}

func (op *ReleaseFileHandleOp) Execute(s *reffs.Store) (err error) {
	err = s.ReleaseFileHandle(op.Handle)
	op.Header.reportTrace(err)
	return
}

func (op *StatFSOp) Execute(s *reffs.Store) (err error) {
	op.Info, err = s.StatFS()
	op.Header.reportTrace(err)
	return
}

func (op *AccessOp) Execute(s *reffs.Store) (err error) {
	err = s.Access(op.Inode, op.Mask, op.Header.Uid, op.Header.Gid)
	op.Header.reportTrace(err)
	return
}

func (op *SetXattrOp) Execute(s *reffs.Store) (err error) {
	err = s.SetXattr(op.Inode, op.Name, op.Value, op.Flags, op.Position)
	op.Header.reportTrace(err)
	return
}

func (op *GetXattrOp) Execute(s *reffs.Store) (err error) {
	val, err := s.GetXattr(op.Inode, op.Name, len(op.Dst), op.Position)
	if err != nil {
		op.Header.reportTrace(err)
		return
	}
	if len(op.Dst) == 0 {
		op.BytesRead = len(val)
	} else {
		op.BytesRead = copy(op.Dst, val)
	}
	op.Header.reportTrace(err)
	return
}

func (op *ListXattrOp) Execute(s *reffs.Store) (err error) {
	val, err := s.ListXattr(op.Inode, len(op.Dst))
	if err != nil {
		op.Header.reportTrace(err)
		return
	}
	if len(op.Dst) == 0 {
		op.BytesRead = len(val)
	} else {
		op.BytesRead = copy(op.Dst, val)
	}
	op.Header.reportTrace(err)
	return
}

func (op *RemoveXattrOp) Execute(s *reffs.Store) (err error) {
	err = s.RemoveXattr(op.Inode, op.Name)
	op.Header.reportTrace(err)
	return
}

func (op *CheckpointOp) Execute(s *reffs.Store) (err error) {
	err = s.Checkpoint(op.Token)
	op.Header.reportTrace(err)
	return
}

func (op *RestoreOp) Execute(s *reffs.Store) (err error) {
	op.Invalidate, err = s.Restore(op.Token)
	op.Header.reportTrace(err)
	return
}

func (op *PickleOp) Execute(s *reffs.Store) (err error) {
	err = s.PickleToFile(op.Path)
	op.Header.reportTrace(err)
	return
}

func (op *LoadOp) Execute(s *reffs.Store) (err error) {
	err = s.LoadFromFile(op.Path)
	op.Header.reportTrace(err)
	return
}
