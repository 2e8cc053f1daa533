package pda

import (
	"github.com/jmorganca/llamagrammar/grammar"
)

// Advance expands stack until it either becomes empty or every branch
// comes to rest on a terminal character element, appending each
// resulting stack to out. A RuleRef on top fans out into one branch
// per alternative of the referenced rule; empty alternatives simply
// continue the walk without growing the stack.
func Advance(rt *grammar.RuleTable, stack Stack, out *Set) error {
	if len(stack) == 0 {
		out.Add(stack)
		return nil
	}

	top := stack[len(stack)-1]
	rule := rt.Rules[top.RuleID]
	elem := rule[top.Index]

	switch elem.Kind {
	case grammar.RuleRef:
		refID := int(elem.Value)
		refRule := rt.Rules[refID]
		base := stack[:len(stack)-1]

		altStart := 0
		for altStart < len(refRule) {
			next := Stack(append(Stack(nil), base...))
			after := top.Index + 1
			if !rule[after].IsEndOfSequence() {
				next = append(next, Entry{RuleID: top.RuleID, Index: after})
			}
			if !refRule[altStart].IsEndOfSequence() {
				next = append(next, Entry{RuleID: refID, Index: altStart})
			}
			if err := Advance(rt, next, out); err != nil {
				return err
			}

			// Skip to the start of the next alternative, if any.
			i := altStart
			for i < len(refRule) && refRule[i].Kind != grammar.Alt {
				i++
			}
			if i >= len(refRule) {
				break
			}
			altStart = i + 1
		}
		return nil

	case grammar.Char, grammar.CharNot, grammar.CharAny:
		out.Add(stack)
		return nil

	default:
		return &grammar.Error{
			Kind:    grammar.ContractViolation,
			Offset:  -1,
			Message: "stack top is not a terminal or rule reference element",
		}
	}
}

// AdvanceAll runs Advance over every stack in frontier and returns the
// resulting deduplicated set.
func AdvanceAll(rt *grammar.RuleTable, frontier []Stack) (*Set, error) {
	out := NewSet()
	for _, s := range frontier {
		if err := Advance(rt, s, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Seed returns the initial stack set for rt: one stack per alternative
// of the root rule, fully advanced.
func Seed(rt *grammar.RuleTable) (*Set, error) {
	root := rt.Rules[rt.RootID]
	out := NewSet()

	altStart := 0
	for altStart < len(root) {
		var stack Stack
		if !root[altStart].IsEndOfSequence() {
			stack = Stack{{RuleID: rt.RootID, Index: altStart}}
		}
		if err := Advance(rt, stack, out); err != nil {
			return nil, err
		}
		i := altStart
		for i < len(root) && root[i].Kind != grammar.Alt {
			i++
		}
		if i >= len(root) {
			break
		}
		altStart = i + 1
	}
	return out, nil
}
