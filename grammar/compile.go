package grammar

import (
	"fmt"
	"unicode/utf8"

	"github.com/jmorganca/llamagrammar/logutil"
)

// Compile parses a BNF-like grammar source and returns its compiled
// rule table, or a *Error of kind GrammarSyntax, UndefinedRule,
// MissingRoot, or LeftRecursion.
//
// The grammar language: named rules ("name ::= alternation"),
// alternation with "|", literal strings in double quotes, character
// classes "[...]" and "[^...]" with ranges, groups "(...)", the
// wildcard ".", and the quantifiers "*", "+", "?", "{m}", "{m,}" and
// "{m,n}". "#" starts a comment that runs to the end of the line,
// except inside a quoted string or character class.
func Compile(src string) (*RuleTable, error) {
	return CompileRoot(src, "root")
}

// CompileRoot is Compile with an explicit start rule name instead of
// the default "root", for hosts (such as the gbnfcheck CLI) that let a
// user pick which rule to start from.
func CompileRoot(src, rootName string) (*RuleTable, error) {
	c := newCompiler(src)

	pos := c.parseSpace(0, true)
	for pos < len(c.src) {
		var err error
		pos, err = c.parseRule(pos)
		if err != nil {
			return nil, err
		}
		pos = c.parseSpace(pos, true)
	}

	for id, name := range c.namesByID {
		if c.rules[id] == nil {
			return nil, undefinedRuleErr(name)
		}
	}

	rootID, ok := c.symbolIDs[rootName]
	if !ok {
		return nil, missingRootErr()
	}

	rt := &RuleTable{Rules: c.rules, RootID: rootID, RootName: rootName}
	if err := validateRuleTable(rt, c.namesByID); err != nil {
		return nil, err
	}

	logutil.Trace("grammar compiled", "rules", len(rt.Rules), "root", rootName)
	return rt, nil
}

type compiler struct {
	src       []byte
	symbolIDs map[string]int
	namesByID []string
	rules     []Rule
}

func newCompiler(src string) *compiler {
	return &compiler{src: []byte(src), symbolIDs: make(map[string]int)}
}

func (c *compiler) getSymbolID(name string) int {
	if id, ok := c.symbolIDs[name]; ok {
		return id
	}
	id := len(c.rules)
	c.symbolIDs[name] = id
	c.namesByID = append(c.namesByID, name)
	c.rules = append(c.rules, nil)
	return id
}

func (c *compiler) generateSymbolID(base string) int {
	return c.getSymbolID(fmt.Sprintf("%s_%d", base, len(c.rules)))
}

func (c *compiler) addRule(id int, rule Rule) {
	c.rules[id] = rule
}

func (c *compiler) parseSpace(pos int, newlineOK bool) int {
	for pos < len(c.src) {
		switch {
		case c.src[pos] == ' ' || c.src[pos] == '\t':
			pos++
		case c.src[pos] == '#':
			for pos < len(c.src) && c.src[pos] != '\n' {
				pos++
			}
		case newlineOK && (c.src[pos] == '\r' || c.src[pos] == '\n'):
			pos++
		default:
			return pos
		}
	}
	return pos
}

func (c *compiler) parseName(pos int) (string, int, error) {
	start := pos
	for pos < len(c.src) && isWordChar(c.src[pos]) {
		pos++
	}
	if pos == start {
		return "", pos, syntaxErr(pos, "expected a rule name")
	}
	return string(c.src[start:pos]), pos, nil
}

func (c *compiler) parseInt(pos int) (int, int, bool) {
	start := pos
	for pos < len(c.src) && isDigit(c.src[pos]) {
		pos++
	}
	if pos == start {
		return 0, pos, false
	}
	v := 0
	for _, b := range c.src[start:pos] {
		v = v*10 + int(b-'0')
	}
	return v, pos, true
}

func (c *compiler) parseHexDigits(pos, n int) (rune, int, error) {
	if pos+n > len(c.src) {
		return 0, pos, syntaxErr(pos, "expected %d hex digits", n)
	}
	var v int32
	for i := 0; i < n; i++ {
		b := c.src[pos+i]
		if !isHexDigit(b) {
			return 0, pos, syntaxErr(pos+i, "invalid hex digit %q", b)
		}
		v = v*16 + hexValue(b)
	}
	return rune(v), pos + n, nil
}

// parseChar decodes one grammar character at pos: an escape sequence
// starting with '\\', or a raw UTF-8 code point.
func (c *compiler) parseChar(pos int) (rune, int, error) {
	if pos >= len(c.src) {
		return 0, pos, syntaxErr(pos, "unexpected end of grammar")
	}
	if c.src[pos] != '\\' {
		r, size := utf8.DecodeRune(c.src[pos:])
		if r == utf8.RuneError && size <= 1 {
			return 0, pos, syntaxErr(pos, "invalid UTF-8 byte")
		}
		return r, pos + size, nil
	}
	pos++
	if pos >= len(c.src) {
		return 0, pos, syntaxErr(pos, "unterminated escape sequence")
	}
	switch c.src[pos] {
	case 'x':
		return c.parseHexDigits(pos+1, 2)
	case 'u':
		return c.parseHexDigits(pos+1, 4)
	case 'U':
		return c.parseHexDigits(pos+1, 8)
	case 't':
		return '\t', pos + 1, nil
	case 'r':
		return '\r', pos + 1, nil
	case 'n':
		return '\n', pos + 1, nil
	case '\\':
		return '\\', pos + 1, nil
	case '"':
		return '"', pos + 1, nil
	case '[':
		return '[', pos + 1, nil
	case ']':
		return ']', pos + 1, nil
	default:
		return 0, pos, syntaxErr(pos, "unknown escape character %q", c.src[pos])
	}
}

// applyQuantifier desugars the atom rule[atomStart:] repeated between
// min and max times (max < 0 means unbounded), replacing it in place
// with min copies of the atom followed, unless max equals min, by a
// single reference to synthetic rules rooted at parentName; together
// they reproduce the language of "atom{min,max}".
func (c *compiler) applyQuantifier(rule *Rule, atomStart int, parentName string, min, max int) {
	atom := append(Rule(nil), (*rule)[atomStart:]...)
	*rule = (*rule)[:atomStart]

	for i := 0; i < min; i++ {
		*rule = append(*rule, atom...)
	}

	if max < 0 {
		tailID := c.generateSymbolID(parentName)
		tail := append(Rule(nil), atom...)
		tail = append(tail, Element{Kind: RuleRef, Value: int32(tailID)})
		tail = append(tail, Element{Kind: Alt})
		tail = append(tail, Element{Kind: End})
		c.addRule(tailID, tail)
		*rule = append(*rule, Element{Kind: RuleRef, Value: int32(tailID)})
		return
	}

	nOpt := max - min
	if nOpt <= 0 {
		return
	}
	nextID := -1
	for i := nOpt - 1; i >= 0; i-- {
		id := c.generateSymbolID(parentName)
		r := append(Rule(nil), atom...)
		if nextID >= 0 {
			r = append(r, Element{Kind: RuleRef, Value: int32(nextID)})
		}
		r = append(r, Element{Kind: Alt})
		r = append(r, Element{Kind: End})
		c.addRule(id, r)
		nextID = id
	}
	*rule = append(*rule, Element{Kind: RuleRef, Value: int32(nextID)})
}

// maybeApplyQuantifier looks at pos for a trailing "*", "+", "?" or
// "{m,n}" and, if found, desugars it via applyQuantifier.
func (c *compiler) maybeApplyQuantifier(seq *Rule, atomStart int, parentName string, pos int) (int, error) {
	if pos >= len(c.src) {
		return pos, nil
	}
	switch c.src[pos] {
	case '*':
		c.applyQuantifier(seq, atomStart, parentName, 0, -1)
		return pos + 1, nil
	case '+':
		c.applyQuantifier(seq, atomStart, parentName, 1, -1)
		return pos + 1, nil
	case '?':
		c.applyQuantifier(seq, atomStart, parentName, 0, 1)
		return pos + 1, nil
	case '{':
		pos++
		min, np, ok := c.parseInt(pos)
		if !ok {
			return pos, syntaxErr(pos, "expected a number after '{'")
		}
		pos = np
		max := min
		if pos < len(c.src) && c.src[pos] == ',' {
			pos++
			v, np2, ok2 := c.parseInt(pos)
			pos = np2
			if ok2 {
				max = v
			} else {
				max = -1
			}
		}
		if pos >= len(c.src) || c.src[pos] != '}' {
			return pos, syntaxErr(pos, "expected '}'")
		}
		pos++
		c.applyQuantifier(seq, atomStart, parentName, min, max)
		return pos, nil
	default:
		return pos, nil
	}
}

// parseSequence parses one alternative's element sequence: a run of
// literals, classes, groups and rule references, each possibly
// followed by a quantifier, until it hits '|', ')', a newline (unless
// nested inside a group), or end of input.
func (c *compiler) parseSequence(pos int, ruleName string, isNested bool) (Rule, int, error) {
	var seq Rule

	for {
		pos = c.parseSpace(pos, isNested)
		if pos >= len(c.src) {
			break
		}

		var err error
		atomStart := len(seq)

		switch {
		case c.src[pos] == '"':
			pos++
			for pos < len(c.src) && c.src[pos] != '"' {
				var r rune
				r, pos, err = c.parseChar(pos)
				if err != nil {
					return nil, pos, err
				}
				seq = append(seq, Element{Kind: Char, Value: r})
			}
			if pos >= len(c.src) {
				return nil, pos, syntaxErr(pos, "unterminated string literal")
			}
			pos++
			pos, err = c.maybeApplyQuantifier(&seq, atomStart, ruleName, pos)
			if err != nil {
				return nil, pos, err
			}

		case c.src[pos] == '[':
			pos++
			kind := Char
			if pos < len(c.src) && c.src[pos] == '^' {
				kind = CharNot
				pos++
			}
			first := true
			for pos < len(c.src) && c.src[pos] != ']' {
				if c.src[pos] == '^' {
					return nil, pos, syntaxErr(pos, "'^' is only valid at the beginning of a character class")
				}
				var r rune
				r, pos, err = c.parseChar(pos)
				if err != nil {
					return nil, pos, err
				}
				elemKind := kind
				if !first {
					elemKind = CharAlt
				}
				if pos+1 < len(c.src) && c.src[pos] == '-' && c.src[pos+1] != ']' {
					pos++
					var upper rune
					upper, pos, err = c.parseChar(pos)
					if err != nil {
						return nil, pos, err
					}
					seq = append(seq, Element{Kind: elemKind, Value: r}, Element{Kind: CharRngUpper, Value: upper})
				} else {
					seq = append(seq, Element{Kind: elemKind, Value: r})
				}
				first = false
			}
			if pos >= len(c.src) {
				return nil, pos, syntaxErr(pos, "unterminated character class")
			}
			pos++
			pos, err = c.maybeApplyQuantifier(&seq, atomStart, ruleName, pos)
			if err != nil {
				return nil, pos, err
			}

		case c.src[pos] == '.':
			seq = append(seq, Element{Kind: CharAny})
			pos++
			pos, err = c.maybeApplyQuantifier(&seq, atomStart, ruleName, pos)
			if err != nil {
				return nil, pos, err
			}

		case c.src[pos] == '(':
			pos++
			pos = c.parseSpace(pos, true)
			subID := c.generateSymbolID(ruleName)
			pos, err = c.parseAlternates(pos, ruleName, subID, true)
			if err != nil {
				return nil, pos, err
			}
			pos = c.parseSpace(pos, true)
			if pos >= len(c.src) || c.src[pos] != ')' {
				return nil, pos, syntaxErr(pos, "expected ')'")
			}
			pos++
			seq = append(seq, Element{Kind: RuleRef, Value: int32(subID)})
			pos, err = c.maybeApplyQuantifier(&seq, atomStart, ruleName, pos)
			if err != nil {
				return nil, pos, err
			}

		case isWordChar(c.src[pos]):
			var name string
			name, pos, err = c.parseName(pos)
			if err != nil {
				return nil, pos, err
			}
			refID := c.getSymbolID(name)
			seq = append(seq, Element{Kind: RuleRef, Value: int32(refID)})
			pos, err = c.maybeApplyQuantifier(&seq, atomStart, ruleName, pos)
			if err != nil {
				return nil, pos, err
			}

		default:
			return seq, pos, nil
		}
	}

	return seq, pos, nil
}

// parseAlternates parses "sequence ('|' sequence)*" and stores the
// resulting rule, terminated by an End element, under ruleID.
func (c *compiler) parseAlternates(pos int, ruleName string, ruleID int, isNested bool) (int, error) {
	var rule Rule
	for {
		seq, np, err := c.parseSequence(pos, ruleName, isNested)
		if err != nil {
			return np, err
		}
		pos = np
		rule = append(rule, seq...)

		pos = c.parseSpace(pos, isNested)
		if pos < len(c.src) && c.src[pos] == '|' {
			rule = append(rule, Element{Kind: Alt})
			pos++
			pos = c.parseSpace(pos, true)
			continue
		}
		break
	}
	rule = append(rule, Element{Kind: End})
	c.addRule(ruleID, rule)
	return pos, nil
}

func (c *compiler) parseRule(pos int) (int, error) {
	name, pos, err := c.parseName(pos)
	if err != nil {
		return pos, err
	}
	pos = c.parseSpace(pos, false)
	if pos+3 > len(c.src) || string(c.src[pos:pos+3]) != "::=" {
		return pos, syntaxErr(pos, "expected '::=' after rule name %q", name)
	}
	pos += 3
	ruleID := c.getSymbolID(name)
	pos = c.parseSpace(pos, true)
	return c.parseAlternates(pos, name, ruleID, false)
}
