// Package filter classifies a batch of candidate vocabulary tokens
// against the current parse frontier: which ones the grammar could
// accept next, and which it must reject outright.
package filter

import (
	"github.com/jmorganca/llamagrammar/grammar"
	"github.com/jmorganca/llamagrammar/pda"
	"github.com/jmorganca/llamagrammar/utf8stream"
)

// Candidate is one vocabulary entry under consideration: its id and
// the raw bytes it would append to the output if sampled.
type Candidate struct {
	ID    int32
	Piece []byte
}

// item tracks one candidate's progress through the frontier: the code
// points still left to match and the trailing partial-UTF-8 state.
type item struct {
	cand   Candidate
	points []int32
	tail   utf8stream.Partial
}

// Reject returns the set of candidate ids the grammar cannot accept
// next, given the current parse frontier and the UTF-8 decode state
// left over from whatever was accepted last. A candidate whose piece
// ends mid-sequence is judged by the range of code points its trailing
// partial bytes could still complete to.
//
// The frontier is walked stack by stack, not candidate by candidate:
// each stack narrows the surviving candidate set down to the ones it
// can accept, and the next stack only has to consider what the
// previous one let through. A candidate is rejected only once every
// stack in the frontier has rejected it.
func Reject(rt *grammar.RuleTable, frontier []pda.Stack, candidates []Candidate, partial utf8stream.Partial) map[int32]bool {
	rejected := make(map[int32]bool, len(candidates))
	if len(candidates) == 0 {
		return rejected
	}
	if len(frontier) == 0 {
		for _, c := range candidates {
			rejected[c.ID] = true
		}
		return rejected
	}

	items := make([]item, len(candidates))
	for i, cand := range candidates {
		points, tail := utf8stream.Decode(cand.Piece, partial)
		items[i] = item{cand: cand, points: points[:len(points)-1], tail: tail}
	}

	rejects := rejectForStack(rt, frontier[0], items)
	for _, stack := range frontier[1:] {
		rejects = rejectForStack(rt, stack, rejects)
	}
	for _, it := range rejects {
		rejected[it.cand.ID] = true
	}
	return rejected
}

// rejectForStack returns the subset of items that stack cannot accept,
// mirroring llama_grammar_reject_candidates_for_stack: items still
// alive at this stack position are advanced past it together, once,
// and the resulting stacks recursively narrow that shared survivor
// set instead of each candidate re-deriving its own advance.
func rejectForStack(rt *grammar.RuleTable, stack pda.Stack, items []item) []item {
	rejects := make([]item, 0, len(items))

	if len(stack) == 0 {
		for _, it := range items {
			if len(it.points) != 0 || it.tail.Remaining != 0 {
				rejects = append(rejects, it)
			}
		}
		return rejects
	}

	top := stack[len(stack)-1]
	rule := rt.Rules[top.RuleID]

	next := make([]item, 0, len(items))
	// before keeps each surviving candidate's code points as they were on
	// entry, so whatever the deeper stacks reject is handed back
	// unadvanced, ready to be tried against the caller's next stack.
	before := make(map[int32][]int32, len(items))
	for _, it := range items {
		if len(it.points) == 0 {
			// Reached the end of the candidate's full code points:
			// reject only if it ended in a partial sequence that
			// cannot satisfy this position in the grammar.
			if it.tail.Remaining != 0 && !matchPartialChar(rule, top.Index, it.tail) {
				rejects = append(rejects, it)
			}
			continue
		}
		if matched, _ := pda.MatchChar(rule, top.Index, rune(it.points[0])); matched {
			before[it.cand.ID] = it.points
			next = append(next, item{cand: it.cand, points: it.points[1:], tail: it.tail})
		} else {
			rejects = append(rejects, it)
		}
	}

	if len(next) == 0 {
		return rejects
	}

	// Position after this stack element, regardless of which code
	// point matched: every surviving candidate advances the same way.
	_, after := pda.MatchChar(rule, top.Index, 0)

	newStack := stack[:len(stack)-1].Clone()
	if after < len(rule) && !rule[after].IsEndOfSequence() {
		newStack = append(newStack, pda.Entry{RuleID: top.RuleID, Index: after})
	}

	restore := func(its []item) []item {
		for _, it := range its {
			rejects = append(rejects, item{cand: it.cand, points: before[it.cand.ID], tail: it.tail})
		}
		return rejects
	}

	expanded, err := pda.AdvanceAll(rt, []pda.Stack{newStack})
	if err != nil || expanded.Len() == 0 {
		return restore(next)
	}

	survivors := next
	for _, s := range expanded.Stacks() {
		survivors = rejectForStack(rt, s, survivors)
	}
	return restore(survivors)
}

// matchPartialChar tests whether the range of code points that partial
// could still complete to overlaps the character class chain starting
// at rule[index], mirroring MatchChar but over an interval instead of
// a single code point.
func matchPartialChar(rule grammar.Rule, index int, partial utf8stream.Partial) bool {
	isPositive := rule[index].Kind == grammar.Char || rule[index].Kind == grammar.CharAny

	n := partial.Remaining
	if n < 0 || (n == 1 && partial.Value < 2) {
		return false
	}

	low := partial.Value << uint(n*6)
	high := low | (1<<uint(n*6) - 1)
	if low == 0 {
		switch n {
		case 2:
			low = 1 << 11
		case 3:
			low = 1 << 16
		}
	}

	i := index
	for {
		switch {
		case i+1 < len(rule) && rule[i+1].Kind == grammar.CharRngUpper:
			if rule[i].Value <= high && low <= rule[i+1].Value {
				return isPositive
			}
			i += 2
		case rule[i].Kind == grammar.CharAny:
			return true
		default:
			if low <= rule[i].Value && rule[i].Value <= high {
				return isPositive
			}
			i++
		}
		if i >= len(rule) || rule[i].Kind != grammar.CharAlt {
			break
		}
	}
	return !isPositive
}
