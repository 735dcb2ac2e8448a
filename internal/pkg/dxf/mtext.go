package dxf

import (
	"strconv"
	"strings"
)

var textSpecials = strings.NewReplacer(
	"%%d", "°", "%%D", "°",
	"%%p", "±", "%%P", "±",
	"%%c", "Ø", "%%C", "Ø",
	"%%%", "%",
	"%%u", "", "%%U", "",
	"%%o", "", "%%O", "",
)

// decodeTextValue expands TEXT control codes (%%d for the degree sign and the
// like) and \U+XXXX escapes.
func decodeTextValue(s string) string {
	return decodeUnicodeEscapes(textSpecials.Replace(s))
}

// StripMText removes MTEXT inline formatting and returns the plain text.
// Paragraph breaks become newlines.
func StripMText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{', '}':
			continue
		case '\\':
		default:
			b.WriteByte(c)
			continue
		}

		if i+1 >= len(s) {
			break
		}
		i++
		switch code := s[i]; code {
		case 'P':
			b.WriteByte('\n')
		case '~':
			b.WriteByte(' ')
		case '\\', '{', '}':
			b.WriteByte(code)
		case 'U':
			if r, n, ok := unicodeEscape(s[i-1:]); ok {
				b.WriteRune(r)
				i += n - 2
			}
		case 'S':
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				i = len(s)
				break
			}
			stacked := s[i+1 : i+end]
			b.WriteString(strings.NewReplacer("^", "/", "#", "/").Replace(stacked))
			i += end
		case 'A', 'C', 'c', 'F', 'f', 'H', 'h', 'Q', 'q', 'T', 't', 'W', 'w', 'p':
			if end := strings.IndexByte(s[i:], ';'); end >= 0 {
				i += end
			} else {
				i = len(s)
			}
		case 'L', 'l', 'O', 'o', 'K', 'k', 'N':
			// underline, overline, strike and column toggles carry no text
		default:
			b.WriteByte('\\')
			b.WriteByte(code)
		}
	}
	return decodeTextValue(b.String())
}

func decodeUnicodeEscapes(s string) string {
	if !strings.Contains(s, `\U+`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			if r, n, ok := unicodeEscape(s[i:]); ok {
				b.WriteRune(r)
				i += n - 1
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// unicodeEscape decodes a leading \U+XXXX and reports its byte length.
func unicodeEscape(s string) (rune, int, bool) {
	if len(s) < 7 || !strings.HasPrefix(s, `\U+`) {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(s[3:7], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return rune(v), 7, true
}
