package fuzz

import (
	"reflect"
	"testing"

	. "github.com/jacobsa/ogletest"
)

func TestFuzz(t *testing.T) { RunTests(t) }

type FuzzTest struct {
}

func init() { RegisterTestSuite(&FuzzTest{}) }

// RandomSequencesPreserveInvariants runs several independently-seeded
// randomized operation sequences and requires every step, and the
// checkInvariants pass after it, to succeed in each one.
func (t *FuzzTest) RandomSequencesPreserveInvariants() {
	for seed := int64(0); seed < 8; seed++ {
		r := NewRunner(seed)
		err := r.Run(500)
		ExpectEq(nil, err)
	}
}

// ReproducibleFailureIsDeterministic confirms that two runners built
// from the same seed produce byte-identical operation sequences, so any
// invariant violation a future run turns up is reproducible just by
// recording the seed.
func (t *FuzzTest) ReproducibleFailureIsDeterministic() {
	r1 := NewRunner(42)
	err1 := r1.Run(200)

	r2 := NewRunner(42)
	err2 := r2.Run(200)

	ExpectEq(err1, err2)
	ExpectTrue(reflect.DeepEqual(r1.live, r2.live), "got %v, want %v", r2.live, r1.live)
}
