package reffs

import (
	"bytes"
	"encoding/binary"
	"os"
	"time"
)

// Small fixed-width and length-prefixed primitive encoders/decoders
// shared by pickle.go. Kept separate from the encoding logic itself so
// the wire layout's building blocks read like a vocabulary rather than
// being interleaved with the per-field decisions that use them.

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeTime(buf *bytes.Buffer, t time.Time) {
	writeU64(buf, uint64(t.UnixNano()))
}

func writeBytes(buf *bytes.Buffer, p []byte) {
	writeU64(buf, uint64(len(p)))
	buf.Write(p)
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := readFullReader(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFullReader(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readByte(r *bytes.Reader) (byte, error) {
	return r.ReadByte()
}

func readTime(r *bytes.Reader) (time.Time, error) {
	v, err := readU64(r)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, int64(v)).UTC(), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	if uint64(r.Len()) < n {
		return nil, ErrMsgSize
	}
	out := make([]byte, n)
	if _, err := readFullReader(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readFullReader(r *bytes.Reader, p []byte) (int, error) {
	n, err := r.Read(p)
	if err != nil {
		return n, err
	}
	if n != len(p) {
		return n, ErrMsgSize
	}
	return n, nil
}

func modeFromU32(v uint32) os.FileMode {
	return os.FileMode(v)
}
