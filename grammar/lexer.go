package grammar

// isDigit reports whether b is an ASCII decimal digit.
func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// isWordChar reports whether b may appear in a rule name: letters,
// digits, hyphen, and underscore.
func isWordChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || isDigit(b) || b == '-' || b == '_'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexValue(b byte) int32 {
	switch {
	case isDigit(b):
		return int32(b - '0')
	case b >= 'a' && b <= 'f':
		return int32(b-'a') + 10
	default:
		return int32(b-'A') + 10
	}
}

// isValidRuleName reports whether name is non-empty and made entirely of
// word characters, matching what parseName ever accepts as a token so a
// well-formed rule reference always round-trips through getSymbolID.
func isValidRuleName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isWordChar(name[i]) {
			return false
		}
	}
	return true
}
