// Package trigger implements lazy grammar activation: a grammar stays
// dormant, imposing no constraint on sampling, until either an exact
// trigger token is emitted or a trigger regex matches the buffer of
// text accumulated since generation started.
package trigger

import (
	"regexp"

	"github.com/jmorganca/llamagrammar/grammar"
)

// Result reports what a call to Accept did.
type Result struct {
	// Activated is true the moment a trigger fires. The grammar core
	// should switch from dormant to active on this same call.
	Activated bool
	// Text is what should be fed into the grammar's normal accept path
	// once activated: empty for an exact token-id trigger (the trigger
	// token itself is not grammar text), or the portion of the
	// buffered text starting at the first non-empty capturing group
	// (or the match start, if none) for a regex trigger.
	Text string
}

// Trigger holds the set of conditions that wake a dormant grammar.
type Trigger struct {
	tokenIDs  map[int32]bool
	patterns  []*regexp.Regexp
	buffer    []byte
	active    bool
	maxBuffer int
}

// New compiles patterns and returns a Trigger. A Trigger configured
// with no token ids and no patterns starts active, since there is
// nothing to wait for.
func New(tokenIDs []int32, patterns []string, maxBuffer int) (*Trigger, error) {
	tr := &Trigger{
		tokenIDs:  make(map[int32]bool, len(tokenIDs)),
		maxBuffer: maxBuffer,
	}
	for _, id := range tokenIDs {
		tr.tokenIDs[id] = true
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, &grammar.Error{Kind: grammar.BadRegex, Offset: -1, Message: err.Error()}
		}
		tr.patterns = append(tr.patterns, re)
	}
	tr.active = len(tr.tokenIDs) == 0 && len(tr.patterns) == 0
	return tr, nil
}

// Active reports whether the grammar has already woken up.
func (tr *Trigger) Active() bool {
	return tr.active
}

// Clone returns an independent copy of tr with its own copy of the
// buffer and the same active state; the token ids and compiled patterns
// are shared.
func (tr *Trigger) Clone() *Trigger {
	c := &Trigger{
		tokenIDs:  tr.tokenIDs, // read-only, shared safely
		patterns:  tr.patterns, // read-only, shared safely
		buffer:    append([]byte(nil), tr.buffer...),
		active:    tr.active,
		maxBuffer: tr.maxBuffer,
	}
	return c
}

// Accept feeds one generated token to the trigger while it is dormant.
// It is a no-op once the trigger has already activated; callers should
// check Active before calling Accept on the hot path.
func (tr *Trigger) Accept(id int32, piece string) (Result, error) {
	if tr.active {
		return Result{}, nil
	}

	if tr.tokenIDs[id] {
		tr.active = true
		tr.buffer = nil
		return Result{Activated: true}, nil
	}

	tr.buffer = append(tr.buffer, piece...)

	for _, re := range tr.patterns {
		loc := re.FindSubmatchIndex(tr.buffer)
		if loc == nil || loc[0] != 0 || loc[1] != len(tr.buffer) {
			continue
		}
		start := loc[0]
		for g := 1; g*2+1 < len(loc); g++ {
			if loc[g*2] < 0 {
				continue
			}
			if loc[g*2+1] > loc[g*2] {
				start = loc[g*2]
				break
			}
		}
		text := string(tr.buffer[start:])
		tr.active = true
		tr.buffer = nil
		return Result{Activated: true, Text: text}, nil
	}

	if tr.maxBuffer > 0 && len(tr.buffer) > tr.maxBuffer {
		return Result{}, &grammar.Error{
			Kind:    grammar.ParseProgress,
			Offset:  -1,
			Message: "trigger buffer exceeded its maximum size without any trigger firing",
		}
	}

	return Result{}, nil
}
