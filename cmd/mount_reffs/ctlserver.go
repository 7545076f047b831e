package main

import (
	"encoding/binary"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/sbu-fsl/RefFS/reffs"
	"github.com/sbu-fsl/RefFS/reffs/ioctlcodec"
	"github.com/sbu-fsl/RefFS/reffs/reffsfuse"
	"github.com/sbu-fsl/RefFS/reffs/reffsops"
)

// errnoOf extracts the POSIX errno backing a reffs error, falling back
// to EIO for anything that isn't one of the syscall.Errno values reffs
// itself defines (errno.go).
func errnoOf(err error) syscall.Errno {
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	return syscall.EIO
}

// controlServer serves the checkpoint/restore/pickle/load control
// operations (spec §4.7) over a Unix domain socket placed next to the
// mount point, since the pinned jacobsa/fuse snapshot's low-level API
// has no IoctlOp to carry them through the mount itself. Frames on the
// wire are ioctlcodec.Request/Reply values, each prefixed by a
// uint32 length so they can be read off a stream socket.
type controlServer struct {
	listener net.Listener
	store    *reffs.Store
	adapter  *reffsfuse.Adapter
}

func controlSocketPath(mountPoint string) string {
	return mountPoint + ".ctl.sock"
}

func newControlServer(mountPoint string, store *reffs.Store, adapter *reffsfuse.Adapter) (*controlServer, error) {
	path := controlSocketPath(mountPoint)
	os.Remove(path)

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	return &controlServer{listener: l, store: store, adapter: adapter}, nil
}

func (c *controlServer) Close() error {
	err := c.listener.Close()
	os.Remove(c.listener.Addr().String())
	return err
}

// Serve accepts control connections until the listener is closed. Each
// connection carries exactly one request/reply pair, the way a one-shot
// ioctl call would.
func (c *controlServer) Serve() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		go c.handle(conn)
	}
}

func (c *controlServer) handle(conn net.Conn) {
	defer conn.Close()

	req, err := readFrame(conn)
	if err != nil {
		return
	}

	decoded, err := ioctlcodec.Decode(req)
	if err != nil {
		writeFrame(conn, ioctlcodec.EncodeReply(ioctlcodec.Reply{Status: -int32(errnoOf(reffs.ErrInvalid))}))
		return
	}

	reply := c.dispatch(decoded)
	writeFrame(conn, ioctlcodec.EncodeReply(reply))
}

// dispatch drives reffs.Store through the same reffsops.Xxx Op/Execute
// path the FUSE adapter uses for every other operation (reffsfuse
// adapter.go), rather than calling Store methods directly, so checkpoint/
// restore/pickle/load get the same reqtrace reporting and DTO decoupling
// as the rest of the filesystem's operations.
func (c *controlServer) dispatch(req ioctlcodec.Request) ioctlcodec.Reply {
	switch req.Cmd {
	case ioctlcodec.CmdCheckpoint:
		op := reffsops.CheckpointOp{Token: req.Token}
		if err := op.Execute(c.store); err != nil {
			return ioctlcodec.Reply{Status: -int32(errnoOf(err))}
		}
		return ioctlcodec.Reply{}

	case ioctlcodec.CmdRestore:
		op := reffsops.RestoreOp{Token: req.Token}
		if err := op.Execute(c.store); err != nil {
			return ioctlcodec.Reply{Status: -int32(errnoOf(err))}
		}
		c.adapter.InvalidateForRestore(op.Invalidate)
		return ioctlcodec.Reply{InvalidatedIDs: uint64(len(op.Invalidate))}

	case ioctlcodec.CmdPickle:
		op := reffsops.PickleOp{Path: req.Path}
		if err := op.Execute(c.store); err != nil {
			return ioctlcodec.Reply{Status: -int32(errnoOf(err))}
		}
		return ioctlcodec.Reply{}

	case ioctlcodec.CmdLoad:
		op := reffsops.LoadOp{Path: req.Path}
		if err := op.Execute(c.store); err != nil {
			return ioctlcodec.Reply{Status: -int32(errnoOf(err))}
		}
		return ioctlcodec.Reply{}

	default:
		return ioctlcodec.Reply{Status: -int32(errnoOf(reffs.ErrInvalid))}
	}
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > ioctlcodec.MaxPathLen+64 {
		return nil, io.ErrShortBuffer
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(w io.Writer, buf []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(buf)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}
