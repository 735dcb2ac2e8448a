// Package coords parses survey coordinate text and converts between UTM
// grid coordinates and geographic degrees.
package coords

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/marcosgeo/marcos/internal/pkg/geospatial"
)

// Encoding is the notation a coordinate value was recognised in.
type Encoding string

const (
	EncodingGMS          Encoding = "gms"
	EncodingDecimal      Encoding = "decimal"
	EncodingUTM          Encoding = "utm"
	EncodingUnrecognized Encoding = "unrecognized"
)

// Coordinate is the parsed form of a single coordinate field. Lat or Lng is
// set when the value carried a hemisphere letter; Decimal when it is a
// plain number of unknown axis; UTM when it is large enough to be grid
// metres. Callers pair two values to get a point.
type Coordinate struct {
	Raw      string   `json:"raw"`
	Encoding Encoding `json:"encoding"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Decimal  *float64 `json:"decimal,omitempty"`
	UTM      *float64 `json:"utm,omitempty"`
	Valid    bool     `json:"valid"`
}

var (
	gmsPattern = regexp.MustCompile(
		`(?i)^([+-]?\d+(?:[.,]\d+)?)\s*[°º]\s*(\d+(?:[.,]\d+)?)\s*['′’]\s*(?:(\d+(?:[.,]\d+)?)\s*(?:["″”]|'')?)?\s*([NSEWLO])$`)
	decimalPattern = regexp.MustCompile(`(?i)^([+-]?\d[\d.,]*)\s*([NSEWLO])?$`)
)

// ParseCoordinate recognises, in order: degrees-minutes-seconds with a
// hemisphere letter, a decimal with an optional hemisphere letter, a bare
// UTM-scale number, and a bare small number. Anything else is invalid.
func ParseCoordinate(value any) Coordinate {
	switch v := value.(type) {
	case nil:
		return Coordinate{Encoding: EncodingUnrecognized}
	case string:
		return parseText(v)
	case json.Number:
		return parseText(v.String())
	}

	f, ok := toFloat(value)
	if !ok {
		return Coordinate{Encoding: EncodingUnrecognized}
	}
	return classifyBare(strconv.FormatFloat(f, 'f', -1, 64), f)
}

func parseText(raw string) Coordinate {
	s := cleanQuotes(strings.TrimSpace(raw))
	if s == "" {
		return Coordinate{Raw: raw, Encoding: EncodingUnrecognized}
	}

	if m := gmsPattern.FindStringSubmatch(s); m != nil {
		deg, _ := parseNumber(m[1])
		min, _ := parseNumber(m[2])
		var sec float64
		if m[3] != "" {
			sec, _ = parseNumber(m[3])
		}
		if min >= 60 || sec >= 60 {
			return Coordinate{Raw: raw, Encoding: EncodingUnrecognized}
		}
		dd := math.Abs(deg) + min/60 + sec/3600
		if strings.HasPrefix(m[1], "-") {
			dd = -dd
		}
		c := withDirection(dd, m[4])
		c.Raw, c.Encoding = raw, EncodingGMS
		return c
	}

	if m := decimalPattern.FindStringSubmatch(s); m != nil {
		f, ok := parseNumber(m[1])
		if !ok {
			return Coordinate{Raw: raw, Encoding: EncodingUnrecognized}
		}
		if m[2] == "" {
			return classifyBare(raw, f)
		}
		c := withDirection(f, m[2])
		c.Raw, c.Encoding = raw, EncodingDecimal
		return c
	}

	return Coordinate{Raw: raw, Encoding: EncodingUnrecognized}
}

// withDirection assigns v to an axis. S and W (O in Portuguese) negate.
func withDirection(v float64, dir string) Coordinate {
	var c Coordinate
	switch strings.ToUpper(dir) {
	case "N":
		c.Lat = ptr(v)
	case "S":
		c.Lat = ptr(-math.Abs(v))
	case "E", "L":
		c.Lng = ptr(v)
	case "W", "O":
		c.Lng = ptr(-math.Abs(v))
	}
	switch {
	case c.Lat != nil:
		c.Valid = *c.Lat >= -90 && *c.Lat <= 90
	case c.Lng != nil:
		c.Valid = *c.Lng >= -180 && *c.Lng <= 180
	}
	return c
}

func classifyBare(raw string, f float64) Coordinate {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Coordinate{Raw: raw, Encoding: EncodingUnrecognized}
	}
	if geospatial.IsUTMMagnitude(f) {
		return Coordinate{Raw: raw, Encoding: EncodingUTM, UTM: ptr(f), Valid: true}
	}
	return Coordinate{Raw: raw, Encoding: EncodingDecimal, Decimal: ptr(f), Valid: true}
}

// cleanQuotes removes quote artifacts left by spreadsheet exports while
// keeping the seconds mark of a GMS value.
func cleanQuotes(s string) string {
	s = strings.ReplaceAll(s, `""`, `"`)
	s = strings.TrimLeft(s, `"'`)
	if !strings.ContainsAny(s, "°º") {
		return strings.TrimSpace(strings.Trim(s, `"'`))
	}
	if n := len(s); n > 1 && (s[n-1] == '"' || s[n-1] == '\'') {
		trimmed := strings.TrimRight(s, `"'`)
		if trimmed != "" && strings.ContainsAny(trimmed[len(trimmed)-1:], "NSEWLOnsewlo") {
			s = trimmed
		}
	}
	return strings.TrimSpace(s)
}

// parseNumber accepts dot or comma decimals and Brazilian thousands
// separators ("7.200.000,50").
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func ptr(f float64) *float64 { return &f }
