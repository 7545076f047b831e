// Package ioctlcodec defines the wire encoding for the four control
// operations RefFS exposes (spec §4.7): checkpoint, restore, pickle,
// load. The encoding is the same shape a FUSE ioctl(2) passthrough
// would use (a fixed header plus a length-prefixed path), but the
// pinned jacobsa/fuse snapshot this module builds against has no
// IoctlOp in its low-level API, so cmd/mount_reffs carries these frames
// over a Unix domain control socket next to the mount point instead
// (see cmd/mount_reffs/ctlserver.go). Keeping the wire format
// transport-independent means a future IoctlOp-capable dependency could
// reuse it unchanged.
package ioctlcodec

import "encoding/binary"

// Magic is the first byte of every RefFS control request (replies carry
// no magic byte), a cheap guard against a stray ioctl from an unrelated tool being
// misinterpreted as a checkpoint/restore/pickle/load command.
const Magic = '1'

// Cmd identifies which of the four control operations a request names.
type Cmd uint8

const (
	CmdCheckpoint Cmd = iota + 1
	CmdRestore
	CmdPickle
	CmdLoad
)

// Request is the fixed-size payload RefFS expects on the ioctl's input
// buffer. Token is meaningful for Checkpoint/Restore; Path is meaningful
// for Pickle/Load, encoded as a length-prefixed byte string immediately
// following the fixed header.
type Request struct {
	Magic byte
	Cmd   Cmd
	Token uint64
	Path  string
}

// MaxPathLen bounds the path RefFS will accept in a Pickle/Load request;
// cmd/mount_reffs's control server bounds each incoming frame at
// MaxPathLen+64 bytes.
const MaxPathLen = 4096

// Encode serializes req for transmission as an ioctl input buffer.
func Encode(req Request) []byte {
	pathBytes := []byte(req.Path)
	buf := make([]byte, 2+8+2+len(pathBytes))

	buf[0] = Magic
	buf[1] = byte(req.Cmd)
	binary.LittleEndian.PutUint64(buf[2:10], req.Token)
	binary.LittleEndian.PutUint16(buf[10:12], uint16(len(pathBytes)))
	copy(buf[12:], pathBytes)

	return buf
}

// Decode parses an ioctl input buffer previously produced by Encode.
func Decode(buf []byte) (Request, error) {
	if len(buf) < 12 {
		return Request{}, ErrShortBuffer
	}
	if buf[0] != Magic {
		return Request{}, ErrBadMagic
	}

	req := Request{Magic: buf[0], Cmd: Cmd(buf[1])}
	req.Token = binary.LittleEndian.Uint64(buf[2:10])

	pathLen := int(binary.LittleEndian.Uint16(buf[10:12]))
	if pathLen > MaxPathLen || len(buf) < 12+pathLen {
		return Request{}, ErrShortBuffer
	}
	req.Path = string(buf[12 : 12+pathLen])

	return req, nil
}

// Reply is the fixed-size payload RefFS writes back to the ioctl's
// output buffer: a POSIX-style status plus, for Restore, the count of
// inodes the caller should expect the kernel to have invalidated.
type Reply struct {
	Status         int32
	InvalidatedIDs uint64
}

func EncodeReply(rep Reply) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rep.Status))
	binary.LittleEndian.PutUint64(buf[4:12], rep.InvalidatedIDs)
	return buf
}

func DecodeReply(buf []byte) (Reply, error) {
	if len(buf) < 12 {
		return Reply{}, ErrShortBuffer
	}
	return Reply{
		Status:         int32(binary.LittleEndian.Uint32(buf[0:4])),
		InvalidatedIDs: binary.LittleEndian.Uint64(buf[4:12]),
	}, nil
}
