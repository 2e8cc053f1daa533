package trigger

import (
	"errors"
	"testing"

	"github.com/jmorganca/llamagrammar/grammar"
)

func TestNoTriggersStartsActive(t *testing.T) {
	tr, err := New(nil, nil, 1024)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !tr.Active() {
		t.Errorf("Active() = false, want true when no triggers are configured")
	}
}

func TestTokenTriggerActivatesExactly(t *testing.T) {
	tr, err := New([]int32{42}, nil, 1024)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Active() {
		t.Fatalf("Active() = true before any token seen")
	}

	res, err := tr.Accept(7, "hello")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if res.Activated || tr.Active() {
		t.Fatalf("non-trigger token activated the grammar")
	}

	res, err = tr.Accept(42, "<tool>")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if !res.Activated || !tr.Active() {
		t.Fatalf("trigger token id did not activate the grammar")
	}
	if res.Text != "" {
		t.Errorf("Text = %q, want empty for a token-id trigger", res.Text)
	}
}

func TestRegexTriggerActivatesOnWholeBufferMatch(t *testing.T) {
	tr, err := New(nil, []string{`.*<tool>(.*)`}, 1024)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := tr.Accept(1, "some preamble ")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if res.Activated {
		t.Fatalf("activated before the trigger phrase appeared")
	}

	res, err = tr.Accept(2, "<tool>{\"a\":1}")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if !res.Activated {
		t.Fatalf("did not activate once the whole buffer matched the trigger pattern")
	}
	if res.Text != `{"a":1}` {
		t.Errorf("Text = %q, want the capture group contents", res.Text)
	}
}

func TestRegexTriggerRequiresWholeBufferMatch(t *testing.T) {
	// The pattern matches the substring "<tool>" at the start of
	// "<tool>extra" but not the whole buffer; whole-buffer semantics
	// mean it must not fire.
	tr, err := New(nil, []string{`<tool>`}, 1024)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := tr.Accept(1, "<tool>extra")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if res.Activated {
		t.Fatalf("activated on a pattern that only matches a substring, not the whole buffer")
	}
}

func TestBufferOverflowIsParseProgressError(t *testing.T) {
	tr, err := New(nil, []string{`never-matches-anything-at-all`}, 4)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = tr.Accept(1, "abcdefgh")
	if err == nil {
		t.Fatalf("Accept() error = nil, want a buffer overflow error")
	}
	var gerr *grammar.Error
	if !errors.As(err, &gerr) || gerr.Kind != grammar.ParseProgress {
		t.Errorf("Accept() error = %v, want a ParseProgress error", err)
	}
}
