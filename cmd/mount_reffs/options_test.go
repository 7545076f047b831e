package main

import (
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestOptions(t *testing.T) { RunTests(t) }

type OptionsTest struct {
}

func init() { RegisterTestSuite(&OptionsTest{}) }

func (t *OptionsTest) DefaultsWhenEmpty() {
	opts, err := parseMountOptions("")
	AssertEq(nil, err)
	ExpectEq(uint64(1<<30), opts.Size)
	ExpectEq(uint64(1<<20), opts.Inodes)
}

func (t *OptionsTest) ParsesSizeSuffixes() {
	cases := map[string]uint64{
		"size=1K": 1 << 10,
		"size=2M": 2 << 20,
		"size=3G": 3 << 30,
		"size=1T": 1 << 40,
	}
	for opt, want := range cases {
		opts, err := parseMountOptions(opt)
		AssertEq(nil, err)
		ExpectEq(want, opts.Size)
	}
}

func (t *OptionsTest) ParsesInodesAndSubtype() {
	opts, err := parseMountOptions("inodes=100,subtype=testfs")
	AssertEq(nil, err)
	ExpectEq(uint64(100), opts.Inodes)
	ExpectEq("testfs", opts.Subtype)
}

func (t *OptionsTest) RejectsUnknownOption() {
	_, err := parseMountOptions("bogus=1")
	ExpectNe(nil, err)
}

func (t *OptionsTest) RejectsMalformedSize() {
	_, err := parseMountOptions("size=notanumber")
	ExpectNe(nil, err)
}
