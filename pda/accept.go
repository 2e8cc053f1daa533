package pda

import "github.com/jmorganca/llamagrammar/grammar"

// AcceptCodePoint advances every non-empty stack in frontier that
// matches r, expanding each survivor through Advance, and returns the
// resulting deduplicated frontier. A frontier that accepts nothing
// returns an empty, non-nil set: the caller (session) is responsible
// for treating that as a parse-progress failure.
func AcceptCodePoint(rt *grammar.RuleTable, frontier []Stack, r rune) (*Set, error) {
	out := NewSet()
	for _, stack := range frontier {
		if len(stack) == 0 {
			continue
		}
		top := stack[len(stack)-1]
		rule := rt.Rules[top.RuleID]

		matched, next := MatchChar(rule, top.Index, r)
		if !matched {
			continue
		}

		newStack := stack[:len(stack)-1].Clone()
		if next < len(rule) && !rule[next].IsEndOfSequence() {
			newStack = append(newStack, Entry{RuleID: top.RuleID, Index: next})
		}
		if err := Advance(rt, newStack, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
