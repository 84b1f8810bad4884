package textual

import (
	"fmt"
	"strings"
)

// EscapeString renders s as a quoted C-family string literal: printable
// ASCII passes through, `"` and `\` are backslash-escaped, and every other
// byte becomes a three-digit octal escape (\NNN) — the encoding both HLSL
// and C string literals accept.
func EscapeString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "\\%03o", c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
