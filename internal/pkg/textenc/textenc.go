// Package textenc decodes legacy-encoded text files to UTF-8.
package textenc

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Code page names as written in $DWGCODEPAGE of pre-2007 drawings.
var codepages = map[string]encoding.Encoding{
	"ANSI_1250":  charmap.Windows1250,
	"ANSI_1251":  charmap.Windows1251,
	"ANSI_1252":  charmap.Windows1252,
	"ANSI_1253":  charmap.Windows1253,
	"ANSI_1254":  charmap.Windows1254,
	"ANSI_874":   charmap.Windows874,
	"ANSI_28591": charmap.ISO8859_1,
	"ISO8859-1":  charmap.ISO8859_1,
	"DOS437":     charmap.CodePage437,
	"DOS850":     charmap.CodePage850,
	"DOS860":     charmap.CodePage860,
}

// Decode returns data as UTF-8. Valid UTF-8 is returned untouched;
// otherwise the declared code page is used, then charset detection, then
// Windows-1252, which is what Brazilian CAD installs write.
func Decode(data []byte, codepage string) ([]byte, string) {
	if utf8.Valid(data) {
		return data, "UTF-8"
	}

	if enc, ok := codepages[strings.ToUpper(strings.TrimSpace(codepage))]; ok {
		if out, err := decodeWith(enc, data); err == nil {
			return out, codepage
		}
	}

	if res, err := chardet.NewTextDetector().DetectBest(data); err == nil && res != nil {
		if enc, err := ianaindex.IANA.Encoding(res.Charset); err == nil && enc != nil {
			if out, err := decodeWith(enc, data); err == nil {
				return out, res.Charset
			}
		}
		slog.Debug("detected charset not decodable", "charset", res.Charset)
	}

	out, err := decodeWith(charmap.Windows1252, data)
	if err != nil {
		return data, "unknown"
	}
	return out, "windows-1252"
}

func decodeWith(enc encoding.Encoding, data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	return out, err
}

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s and strips diacritics, so "Código" and "codigo" compare
// equal.
func Fold(s string) string {
	out, _, err := transform.String(foldChain, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
