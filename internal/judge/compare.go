package judge

import (
	"bytes"
)

// Compare reports whether got matches want after normalization: CRLF is
// read as LF, trailing spaces and tabs are dropped from every line, and
// trailing blank lines are ignored.
func Compare(got, want []byte) bool {
	return bytes.Equal(normalize(got), normalize(want))
}

func normalize(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	lines := bytes.Split(b, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " \t\r")
	}
	for len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	return bytes.Join(lines, []byte("\n"))
}
