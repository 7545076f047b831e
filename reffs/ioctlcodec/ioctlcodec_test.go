package ioctlcodec_test

import (
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/sbu-fsl/RefFS/reffs/ioctlcodec"
)

func TestIoctlCodec(t *testing.T) { RunTests(t) }

type IoctlCodecTest struct {
}

func init() { RegisterTestSuite(&IoctlCodecTest{}) }

func (t *IoctlCodecTest) RequestRoundTrip() {
	req := ioctlcodec.Request{
		Magic: ioctlcodec.Magic,
		Cmd:   ioctlcodec.CmdCheckpoint,
		Token: 42,
	}

	got, err := ioctlcodec.Decode(ioctlcodec.Encode(req))
	AssertEq(nil, err)
	ExpectEq(req.Magic, got.Magic)
	ExpectEq(req.Cmd, got.Cmd)
	ExpectEq(req.Token, got.Token)
	ExpectEq("", got.Path)
}

func (t *IoctlCodecTest) RequestRoundTripWithPath() {
	req := ioctlcodec.Request{
		Magic: ioctlcodec.Magic,
		Cmd:   ioctlcodec.CmdPickle,
		Path:  "/tmp/snapshot.bin",
	}

	got, err := ioctlcodec.Decode(ioctlcodec.Encode(req))
	AssertEq(nil, err)
	ExpectEq(req.Cmd, got.Cmd)
	ExpectEq(req.Path, got.Path)
}

func (t *IoctlCodecTest) DecodeRejectsShortBuffer() {
	_, err := ioctlcodec.Decode([]byte{1, 2, 3})
	ExpectEq(ioctlcodec.ErrShortBuffer, err)
}

func (t *IoctlCodecTest) DecodeRejectsBadMagic() {
	buf := ioctlcodec.Encode(ioctlcodec.Request{Magic: ioctlcodec.Magic, Cmd: ioctlcodec.CmdLoad})
	buf[0] = 'X'

	_, err := ioctlcodec.Decode(buf)
	ExpectEq(ioctlcodec.ErrBadMagic, err)
}

func (t *IoctlCodecTest) ReplyRoundTrip() {
	rep := ioctlcodec.Reply{Status: -5, InvalidatedIDs: 7}

	got, err := ioctlcodec.DecodeReply(ioctlcodec.EncodeReply(rep))
	AssertEq(nil, err)
	ExpectEq(rep.Status, got.Status)
	ExpectEq(rep.InvalidatedIDs, got.InvalidatedIDs)
}
