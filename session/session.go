// Package session drives a compiled grammar over a live decoding loop:
// masking a candidate batch's logits down to what the grammar permits
// next, and advancing the parse state as the host accepts tokens.
package session

import (
	"fmt"
	"math"

	"github.com/jmorganca/llamagrammar/envconfig"
	"github.com/jmorganca/llamagrammar/filter"
	"github.com/jmorganca/llamagrammar/grammar"
	"github.com/jmorganca/llamagrammar/logutil"
	"github.com/jmorganca/llamagrammar/pda"
	"github.com/jmorganca/llamagrammar/trigger"
	"github.com/jmorganca/llamagrammar/utf8stream"
)

// Session is a single, mutable, non-thread-safe walk over a compiled
// grammar. It owns no I/O and blocks on nothing; every method returns
// as soon as it's done. Clone gives an independent Session that can be
// driven from a different goroutine with no synchronization between
// the two, since neither ever touches the other's state again.
type Session struct {
	rt        *grammar.RuleTable
	vocab     Vocabulary
	frontier  []pda.Stack
	partial   utf8stream.Partial
	trig      *trigger.Trigger
	maxStacks int
}

// Vocabulary is the subset of vocab.Vocabulary a Session needs; kept
// as a local interface so this package doesn't force every caller to
// import vocab just to satisfy a parameter type.
type Vocabulary interface {
	Piece(id int32) []byte
	IsEndOfGeneration(id int32) bool
}

// Options configures lazy activation. A Session with no trigger ids
// and no trigger patterns is active immediately.
type Options struct {
	TriggerTokenIDs []int32
	TriggerPatterns []string
}

// Init compiles nothing itself; it seeds a session from an
// already-compiled grammar.
func Init(rt *grammar.RuleTable, vb Vocabulary, opts Options) (*Session, error) {
	seed, err := pda.Seed(rt)
	if err != nil {
		return nil, err
	}
	if seed.Len() > envconfig.MaxStacks {
		return nil, stackExplosionErr(seed.Len())
	}

	trig, err := trigger.New(opts.TriggerTokenIDs, opts.TriggerPatterns, envconfig.MaxTriggerBuffer)
	if err != nil {
		return nil, err
	}

	logutil.Trace("session initialized", "stacks", seed.Len(), "active", trig.Active())
	return &Session{
		rt:        rt,
		vocab:     vb,
		frontier:  seed.Stacks(),
		trig:      trig,
		maxStacks: envconfig.MaxStacks,
	}, nil
}

// Clone returns an independent Session that can continue generation
// down a different branch without affecting s.
func (s *Session) Clone() *Session {
	frontier := make([]pda.Stack, len(s.frontier))
	for i, st := range s.frontier {
		frontier[i] = st.Clone()
	}
	return &Session{
		rt:        s.rt,
		vocab:     s.vocab,
		frontier:  frontier,
		partial:   s.partial,
		trig:      s.trig.Clone(),
		maxStacks: s.maxStacks,
	}
}

// Stacks returns the session's current parse frontier for inspection
// or debug printing. Callers must not mutate the returned stacks.
func (s *Session) Stacks() []pda.Stack {
	return s.frontier
}

// AllowsEndOfGeneration reports whether ending generation right now
// would be a valid parse.
func (s *Session) AllowsEndOfGeneration() bool {
	return stackSetHasEmpty(s.frontier)
}

// Apply masks logits in place: entries for ids the grammar cannot
// accept next are set to negative infinity. logits and ids must be
// the same length. Apply is a no-op while the session is still
// dormant, waiting for a trigger.
func (s *Session) Apply(logits []float32, ids []int32) error {
	if !s.trig.Active() {
		return nil
	}
	if len(logits) != len(ids) {
		return fmt.Errorf("session: len(logits)=%d != len(ids)=%d", len(logits), len(ids))
	}

	allowEOG := s.AllowsEndOfGeneration()

	var candidates []filter.Candidate
	indexByID := make(map[int32]int, len(ids))
	for i, id := range ids {
		if s.vocab.IsEndOfGeneration(id) {
			if !allowEOG {
				logits[i] = float32(math.Inf(-1))
			}
			continue
		}
		piece := s.vocab.Piece(id)
		if len(piece) == 0 || piece[0] == 0 {
			logits[i] = float32(math.Inf(-1))
			continue
		}
		candidates = append(candidates, filter.Candidate{ID: id, Piece: piece})
		indexByID[id] = i
	}

	rejected := filter.Reject(s.rt, s.frontier, candidates, s.partial)
	for id, idx := range indexByID {
		if rejected[id] {
			logits[idx] = float32(math.Inf(-1))
		}
	}
	return nil
}

// Accept advances the session by one sampled token id.
func (s *Session) Accept(id int32) error {
	piece := string(s.vocab.Piece(id))

	if !s.trig.Active() {
		res, err := s.trig.Accept(id, piece)
		if err != nil {
			return err
		}
		if !res.Activated {
			return nil
		}
		logutil.Trace("grammar activated", "token", id)
		if res.Text == "" {
			return nil
		}
		return s.AcceptString(res.Text)
	}

	if s.vocab.IsEndOfGeneration(id) {
		if !s.AllowsEndOfGeneration() {
			return &grammar.Error{
				Kind:    grammar.ContractViolation,
				Offset:  -1,
				Message: "end-of-generation token accepted while no parse stack was empty",
			}
		}
		return nil
	}

	return s.AcceptString(piece)
}

// AcceptString advances the session by literal text, bypassing the
// vocabulary and the trigger state machine. It is exported for
// hosts driving the grammar over something other than a token id.
func (s *Session) AcceptString(piece string) error {
	points, tail := utf8stream.Decode([]byte(piece), s.partial)
	for _, p := range points[:len(points)-1] {
		next, err := pda.AcceptCodePoint(s.rt, s.frontier, rune(p))
		if err != nil {
			s.frontier = nil
			return err
		}
		if next.Len() == 0 {
			s.frontier = nil
			return &grammar.Error{
				Kind:    grammar.ParseProgress,
				Offset:  -1,
				Message: fmt.Sprintf("no parse stack could accept code point U+%04X", p),
			}
		}
		if next.Len() > s.maxStacks {
			s.frontier = nil
			return stackExplosionErr(next.Len())
		}
		s.frontier = next.Stacks()
	}
	s.partial = tail
	return nil
}

func stackSetHasEmpty(frontier []pda.Stack) bool {
	for _, st := range frontier {
		if len(st) == 0 {
			return true
		}
	}
	return false
}

func stackExplosionErr(n int) error {
	return &grammar.Error{
		Kind:    grammar.ContractViolation,
		Offset:  -1,
		Message: fmt.Sprintf("parse frontier grew to %d stacks, exceeding the configured limit", n),
	}
}
