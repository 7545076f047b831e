package reffs

import "syscall"

// Error taxonomy (spec §7). RefFS returns these directly as the error
// result of Store methods, the way the teacher's FileSystem methods
// return fuse.ENOENT, fuse.ENOTEMPTY, etc. (errors.go) rather than a
// wrapped error type: syscall.Errno already implements error, and the
// FUSE adapter needs exactly this value to answer the kernel.
const (
	ErrNotFound     = syscall.ENOENT
	ErrNotDir       = syscall.ENOTDIR
	ErrIsDir        = syscall.EISDIR
	ErrInvalid      = syscall.EINVAL
	ErrExists       = syscall.EEXIST
	ErrNotEmpty     = syscall.ENOTEMPTY
	ErrNoSpace      = syscall.ENOSPC
	ErrNoMemory     = syscall.ENOMEM
	ErrRange        = syscall.ERANGE
	ErrTooBig       = syscall.E2BIG
	ErrNoData       = syscall.ENODATA
	ErrMsgSize      = syscall.EMSGSIZE
	ErrProtocol     = syscall.EPROTO
	ErrAccess       = syscall.EACCES
	ErrNameTooLong  = syscall.ENAMETOOLONG
)
