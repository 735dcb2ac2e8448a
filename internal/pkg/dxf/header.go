package dxf

import (
	"bytes"
	"strings"
)

// headerCodepage finds $DWGCODEPAGE without decoding the file; header
// values are plain ASCII.
func headerCodepage(data []byte) string {
	return headerValue(data, "$DWGCODEPAGE")
}

func headerValue(data []byte, name string) string {
	i := bytes.Index(data, []byte(name))
	if i < 0 {
		return ""
	}
	rest := data[i+len(name):]
	// skip the rest of the name line, then the group code line
	for skip := 0; skip < 2; skip++ {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			return ""
		}
		rest = rest[nl+1:]
	}
	if nl := bytes.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(string(rest))
}
