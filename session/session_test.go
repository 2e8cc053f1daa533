package session

import (
	"math"
	"testing"

	"github.com/jmorganca/llamagrammar/grammar"
)

type fakeVocab struct {
	pieces [][]byte
	eog    map[int32]bool
}

func (v *fakeVocab) Piece(id int32) []byte {
	if id < 0 || int(id) >= len(v.pieces) {
		return nil
	}
	return v.pieces[id]
}

func (v *fakeVocab) IsEndOfGeneration(id int32) bool {
	return v.eog[id]
}

func compile(t *testing.T, src string) *grammar.RuleTable {
	t.Helper()
	rt, err := grammar.Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q) error = %v", src, err)
	}
	return rt
}

func TestInitStartsActiveWithNoTriggers(t *testing.T) {
	rt := compile(t, `root ::= "a"`)
	sess, err := Init(rt, &fakeVocab{}, Options{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !sess.trig.Active() {
		t.Errorf("session is dormant with no triggers configured, want active")
	}
	if sess.AllowsEndOfGeneration() {
		t.Errorf("AllowsEndOfGeneration() = true before any input, want false")
	}
}

func TestAcceptStringWalksLiteral(t *testing.T) {
	rt := compile(t, `root ::= "ab"`)
	sess, err := Init(rt, &fakeVocab{}, Options{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := sess.AcceptString("ab"); err != nil {
		t.Fatalf("AcceptString(\"ab\") error = %v", err)
	}
	if !sess.AllowsEndOfGeneration() {
		t.Errorf("AllowsEndOfGeneration() = false after consuming the whole literal")
	}
}

func TestAcceptStringRejectsWrongText(t *testing.T) {
	rt := compile(t, `root ::= "ab"`)
	sess, err := Init(rt, &fakeVocab{}, Options{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := sess.AcceptString("z"); err == nil {
		t.Fatalf("AcceptString(\"z\") error = nil, want a parse error")
	}
	if stacks := sess.Stacks(); len(stacks) != 0 {
		t.Errorf("Stacks() after a rejected accept = %v, want empty (dead configuration)", stacks)
	}
	if sess.AllowsEndOfGeneration() {
		t.Errorf("AllowsEndOfGeneration() = true after a rejected accept, want false")
	}
}

func TestApplyMasksNonMatchingCandidates(t *testing.T) {
	rt := compile(t, `root ::= "cat" | "car"`)
	vb := &fakeVocab{pieces: [][]byte{[]byte("cat"), []byte("dog"), []byte("car")}}
	sess, err := Init(rt, vb, Options{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ids := []int32{0, 1, 2}
	logits := []float32{1, 1, 1}
	if err := sess.Apply(logits, ids); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !math.IsInf(float64(logits[1]), -1) {
		t.Errorf("logits[1] (dog) = %v, want -Inf", logits[1])
	}
	if math.IsInf(float64(logits[0]), -1) || math.IsInf(float64(logits[2]), -1) {
		t.Errorf("logits = %v, want cat and car both left unmasked", logits)
	}
}

func TestApplyMasksLeadingNULPieces(t *testing.T) {
	rt := compile(t, `root ::= [a-z]*`)
	vb := &fakeVocab{pieces: [][]byte{[]byte("x"), []byte("\x00y")}}
	sess, err := Init(rt, vb, Options{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ids := []int32{0, 1}
	logits := []float32{1, 1}
	if err := sess.Apply(logits, ids); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !math.IsInf(float64(logits[1]), -1) {
		t.Errorf("logits[1] (leading-NUL piece) = %v, want -Inf", logits[1])
	}
	if math.IsInf(float64(logits[0]), -1) {
		t.Errorf("logits[0] = %v, want unmasked", logits[0])
	}
}

func TestApplyIsNoopWhileDormant(t *testing.T) {
	rt := compile(t, `root ::= "cat"`)
	vb := &fakeVocab{pieces: [][]byte{[]byte("cat"), []byte("dog")}}
	sess, err := Init(rt, vb, Options{TriggerTokenIDs: []int32{99}})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ids := []int32{0, 1}
	logits := []float32{1, 1}
	if err := sess.Apply(logits, ids); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if math.IsInf(float64(logits[0]), -1) || math.IsInf(float64(logits[1]), -1) {
		t.Errorf("Apply() masked logits while dormant: %v", logits)
	}
}

func TestAcceptRoutesThroughTriggerThenGrammar(t *testing.T) {
	rt := compile(t, `root ::= "ok"`)
	vb := &fakeVocab{pieces: [][]byte{[]byte("preamble"), []byte("ok")}}
	sess, err := Init(rt, vb, Options{TriggerTokenIDs: []int32{0}})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := sess.Accept(0); err != nil {
		t.Fatalf("Accept(trigger token) error = %v", err)
	}
	if sess.AllowsEndOfGeneration() {
		t.Fatalf("AllowsEndOfGeneration() = true right after activation, before any grammar text")
	}

	if err := sess.Accept(1); err != nil {
		t.Fatalf("Accept(\"ok\") error = %v", err)
	}
	if !sess.AllowsEndOfGeneration() {
		t.Errorf("AllowsEndOfGeneration() = false after the grammar's literal was consumed")
	}
}

func TestAcceptEndOfGenerationRejectedMidParse(t *testing.T) {
	rt := compile(t, `root ::= "ab"`)
	vb := &fakeVocab{pieces: [][]byte{[]byte("a"), []byte("<eos>")}, eog: map[int32]bool{1: true}}
	sess, err := Init(rt, vb, Options{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := sess.Accept(0); err != nil {
		t.Fatalf("Accept(\"a\") error = %v", err)
	}
	if err := sess.Accept(1); err == nil {
		t.Fatalf("Accept(eos) error = nil mid-parse, want a contract violation")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	rt := compile(t, `root ::= "a" "b"`)
	sess, err := Init(rt, &fakeVocab{}, Options{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := sess.AcceptString("a"); err != nil {
		t.Fatalf("AcceptString(\"a\") error = %v", err)
	}

	clone := sess.Clone()
	if err := clone.AcceptString("b"); err != nil {
		t.Fatalf("clone.AcceptString(\"b\") error = %v", err)
	}
	if clone.AllowsEndOfGeneration() == sess.AllowsEndOfGeneration() {
		t.Errorf("clone and original diverged in acceptance but not in AllowsEndOfGeneration")
	}
}
