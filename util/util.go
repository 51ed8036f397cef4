package util

func IsWhiteSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

// IsPunctuation reports whether b is one of the characters the idk lexer turns into a
// single-character token.
func IsPunctuation(b byte) bool {
	switch b {
	case ';', '(', ')', '[', ']', '=', '+', '-', '*', '/', '%', '^', '<', '>', '!', ',', ':':
		return true
	}
	return false
}

// IsReserved reports whether b can never appear in a word. Reserved characters end the
// current word and are reported as error tokens.
func IsReserved(b byte) bool {
	switch b {
	case '{', '}', '&', '|', '"', '\'', '#':
		return true
	}
	return false
}

// IsWordBreak reports whether b terminates an identifier or numeral.
func IsWordBreak(b byte) bool {
	return IsWhiteSpace(b) || IsPunctuation(b) || IsReserved(b)
}
