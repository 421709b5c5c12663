package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayString(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{name: "plain", in: []byte("hello"), want: "hello"},
		{name: "trailing whitespace trimmed", in: []byte("hello \n\t\n"), want: "hello"},
		{name: "leading whitespace kept", in: []byte("  hello"), want: "  hello"},
		{name: "escape sequences expanded", in: []byte(`a\tb\nc`), want: "a\tb\nc"},
		{name: "hex escape", in: []byte(`\x41\x42`), want: "AB"},
		{name: "unicode escape", in: []byte(`caf\u00e9`), want: "café"},
		{name: "octal escape", in: []byte(`\101\102`), want: "AB"},
		{name: "short octal escapes", in: []byte(`a\0b\12c`), want: "a\x00b\nc"},
		{name: "octal stops after three digits", in: []byte(`\1012`), want: "A2"},
		{name: "octal above latin-1", in: []byte(`\777`), want: "\u01ff"},
		{name: "quotes", in: []byte(`\'x\"`), want: `'x"`},
		{name: "malformed escape kept", in: []byte(`C:\path\x`), want: `C:\path\x`},
		{name: "high bytes read as latin-1", in: []byte{'c', 'a', 'f', 0xe9}, want: "café"},
		{name: "utf-8 is not validated", in: []byte("é"), want: "Ã©"},
		{name: "empty", in: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayString(tt.in))
		})
	}
}

func TestResultText(t *testing.T) {
	r := Result{Stdout: []byte("out\n"), Stderr: []byte(`err\x21` + "\n")}
	assert.Equal(t, "out", r.Text())
	assert.Equal(t, "err!", r.ErrText())
}
