// Package pda implements the nondeterministic pushdown evaluator that
// walks a compiled grammar one code point at a time: advancing a
// frontier of parse stacks through rule references until every stack
// rests on a terminal character element, and matching code points
// against that frontier.
package pda

import (
	"strconv"
	"strings"

	"github.com/emirpasic/gods/lists/arraylist"
)

// Entry is one frame of a parse stack: a position within a compiled
// rule, referenced by index rather than by pointer so a Stack (and a
// whole Set) is a plain value that can be copied, hashed and
// compared without knowing anything about how the RuleTable it points
// into is stored.
type Entry struct {
	RuleID int
	Index  int
}

// Stack is a parse stack: the top of the stack is its last element.
// An empty Stack means the grammar has reached a valid end of
// generation on this path.
type Stack []Entry

// Clone returns an independent copy of s.
func (s Stack) Clone() Stack {
	return append(Stack(nil), s...)
}

// key returns a content hash suitable for deduplicating stacks; two
// stacks with the same key are structurally identical.
func (s Stack) key() string {
	var sb strings.Builder
	for _, e := range s {
		sb.WriteString(strconv.Itoa(e.RuleID))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(e.Index))
		sb.WriteByte(',')
	}
	return sb.String()
}

// Set is a deduplicated collection of stacks: the frontier of an
// in-progress parse. Order is insertion order, which callers should
// treat as arbitrary. The stacks themselves live in a gods arraylist
// rather than a bare slice; seen tracks content hashes so Add stays
// O(1) instead of scanning the list for an equal stack.
type Set struct {
	stacks *arraylist.List
	seen   map[string]bool
}

// NewSet returns an empty stack set.
func NewSet() *Set {
	return &Set{stacks: arraylist.New(), seen: make(map[string]bool)}
}

// Add inserts stack if an equal stack isn't already present. It
// returns true if the stack was newly added.
func (s *Set) Add(stack Stack) bool {
	k := stack.key()
	if s.seen[k] {
		return false
	}
	s.seen[k] = true
	s.stacks.Add(stack)
	return true
}

// Stacks returns the set's current stacks. The caller must not mutate
// the returned slice or its elements.
func (s *Set) Stacks() []Stack {
	values := s.stacks.Values()
	out := make([]Stack, len(values))
	for i, v := range values {
		out[i] = v.(Stack)
	}
	return out
}

// Len reports the number of stacks currently in the set.
func (s *Set) Len() int {
	return s.stacks.Size()
}

// HasEmpty reports whether the set contains the empty stack, meaning
// end of generation is currently valid.
func (s *Set) HasEmpty() bool {
	for _, v := range s.stacks.Values() {
		if len(v.(Stack)) == 0 {
			return true
		}
	}
	return false
}

// Clone returns an independent deep copy of s.
func (s *Set) Clone() *Set {
	c := &Set{
		stacks: arraylist.New(),
		seen:   make(map[string]bool, len(s.seen)),
	}
	for _, v := range s.stacks.Values() {
		c.stacks.Add(v.(Stack).Clone())
	}
	for k, v := range s.seen {
		c.seen[k] = v
	}
	return c
}
