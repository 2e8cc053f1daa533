package grammar

// validateRuleTable runs the one structural check a compiled grammar
// must pass before it can seed an evaluator: no rule may be reachable
// from itself without consuming a code point first. names gives each
// rule id a display name for diagnostics only; it is not retained
// afterwards.
func validateRuleTable(rt *RuleTable, names []string) error {
	n := len(rt.Rules)
	visited := make([]bool, n)
	inProgress := make([]bool, n)
	mayBeEmpty := make([]bool, n)

	for i := range rt.Rules {
		if visited[i] {
			continue
		}
		if detectLeftRecursion(rt, i, visited, inProgress, mayBeEmpty) {
			return leftRecursionErr(displayName(names, i))
		}
	}
	return nil
}

// detectLeftRecursion processes rule idx in two separate passes and
// deliberately does not consider a referenced rule's emptiness while
// computing idx's own: emptiness is a purely syntactic property of a
// rule's own alternatives, and folding the callee's emptiness into it
// would make emptiness (and therefore which leading references pass 2
// follows) depend on recursion order instead of on the grammar text.
//
// Pass 1 sets mayBeEmpty[idx] if some alternative of idx is empty
// outright — nothing to the left of an End or Alt in that
// alternative, without regard to whether any leading element is
// itself a reference to an empty-capable rule.
//
// Pass 2 walks the same rule again and recurses into each alternative's
// leading run of rule references, now consulting the callee's
// (already fully computed, since the recursive call finishes pass 1
// and pass 2 for it before returning) mayBeEmpty. A leading reference
// back to a rule still in progress on this DFS path is left
// recursion.
func detectLeftRecursion(rt *RuleTable, idx int, visited, inProgress, mayBeEmpty []bool) bool {
	if inProgress[idx] {
		return true
	}
	inProgress[idx] = true

	rule := rt.Rules[idx]

	// Pass 1: might this rule produce the empty string? Purely
	// syntactic — never looks at another rule's mayBeEmpty.
	atRuleStart := true
	for i := 0; i < len(rule); i++ {
		if rule[i].IsEndOfSequence() {
			if atRuleStart {
				mayBeEmpty[idx] = true
				break
			}
			atRuleStart = true
		} else {
			atRuleStart = false
		}
	}

	// Pass 2: recurse into the leftmost nonterminal of each
	// alternative, and into the next one as long as the previous
	// nonterminal may be empty.
	recurseIntoNonterminal := true
	for i := 0; i < len(rule); i++ {
		switch {
		case rule[i].Kind == RuleRef && recurseIntoNonterminal:
			ref := int(rule[i].Value)
			if detectLeftRecursion(rt, ref, visited, inProgress, mayBeEmpty) {
				return true
			}
			if !mayBeEmpty[ref] {
				recurseIntoNonterminal = false
			}
		case rule[i].IsEndOfSequence():
			recurseIntoNonterminal = true
		default:
			recurseIntoNonterminal = false
		}
	}

	inProgress[idx] = false
	visited[idx] = true
	return false
}

func displayName(names []string, id int) string {
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return "?"
}
