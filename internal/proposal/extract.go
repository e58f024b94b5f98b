package proposal

import "strings"

// #region extract
// Extract returns the first balanced JSON object or array in text. The scan
// starts at the first '{' or '[' and tracks bracket depth over both kinds;
// brackets inside string literals are ignored. It returns false when no
// opening bracket exists or the opening bracket is never closed.
func Extract(text string) (string, bool) {
	s := strings.TrimSpace(text)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// #endregion extract
