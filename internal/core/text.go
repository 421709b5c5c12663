package core

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DisplayString renders captured output for humans. Every byte is read as
// Latin-1, backslash escapes such as \n, \t, \x41 and \u00e9 are expanded,
// malformed escapes are kept as written, and trailing whitespace is trimmed.
// It never fails and is not reversible; use the raw bytes for anything but
// display.
func DisplayString(b []byte) string {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		decoded = b
	}
	return strings.TrimRightFunc(unescape(string(decoded)), unicode.IsSpace)
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for len(s) > 0 {
		if s[0] != '\\' {
			r, size := utf8.DecodeRuneInString(s)
			sb.WriteRune(r)
			s = s[size:]
			continue
		}
		if len(s) > 1 && (s[1] == '\'' || s[1] == '"') {
			sb.WriteByte(s[1])
			s = s[2:]
			continue
		}
		if r, n := octalEscape(s); n > 0 {
			sb.WriteRune(r)
			s = s[n:]
			continue
		}
		r, _, tail, err := strconv.UnquoteChar(s, 0)
		if err != nil {
			sb.WriteByte('\\')
			s = s[1:]
			continue
		}
		sb.WriteRune(r)
		s = tail
	}
	return sb.String()
}

// octalEscape decodes \N, \NN or \NNN at the start of s and returns the
// rune and the bytes consumed, or 0 consumed when s holds no octal escape.
func octalEscape(s string) (rune, int) {
	n := 1
	var r rune
	for n < len(s) && n <= 3 && s[n] >= '0' && s[n] <= '7' {
		r = r<<3 | rune(s[n]-'0')
		n++
	}
	if n == 1 {
		return 0, 0
	}
	return r, n
}
