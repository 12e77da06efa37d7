package sandbox

import "fmt"

// TruncationMarker is appended whenever captured output hits the byte ceiling.
const TruncationMarker = "\n... [output truncated]"

// TruncateOutput caps a captured stream at the configured byte ceiling,
// appending an explicit marker. The cut lands on a rune boundary so the
// result stays valid UTF-8. Returns the (possibly truncated) text and
// whether truncation happened.
func (p *Policy) TruncateOutput(s string) (string, bool) {
	if len(s) <= p.maxOutputBytes {
		return s, false
	}
	cut := p.maxOutputBytes
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return fmt.Sprintf("%s%s", s[:cut], TruncationMarker), true
}
