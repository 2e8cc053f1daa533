package pda

import "github.com/jmorganca/llamagrammar/grammar"

// MatchChar tests r against the character-class chain that starts at
// rule[index] (a Char, CharNot or CharAny head, possibly followed by a
// run of CharAlt/CharRngUpper continuation elements), and returns
// whether it matched along with the index of the element immediately
// following the whole chain.
func MatchChar(rule grammar.Rule, index int, r rune) (bool, int) {
	isPositive := rule[index].Kind == grammar.Char || rule[index].Kind == grammar.CharAny

	found := false
	i := index
	for {
		switch {
		case i+1 < len(rule) && rule[i+1].Kind == grammar.CharRngUpper:
			if rule[i].Value <= int32(r) && int32(r) <= rule[i+1].Value {
				found = true
			}
			i += 2
		case rule[i].Kind == grammar.CharAny:
			found = true
			i++
		default:
			if rule[i].Value == int32(r) {
				found = true
			}
			i++
		}
		if i >= len(rule) || rule[i].Kind != grammar.CharAlt {
			break
		}
	}

	return found == isPositive, i
}
