package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// Property keys written by the association engine.
const (
	PropMatricula    = "matricula"
	PropArea         = "area"
	PropPerimetro    = "perimetro"
	PropNome         = "nome"
	PropProprietario = "proprietario"
	PropRawTexts     = "_rawTexts"
	PropLayer        = "layer"
	PropEntityType   = "_entityType"
	PropArea2D       = "_area"
)

// Attributes are the parcel fields recognised in one label. Unset fields
// are nil.
type Attributes struct {
	Matricula    *string
	Area         *float64 // square metres
	Perimetro    *float64 // metres
	Nome         *string
	Proprietario *string
}

// Empty reports whether no family matched.
func (a Attributes) Empty() bool {
	return a.Matricula == nil && a.Area == nil && a.Perimetro == nil && a.Nome == nil && a.Proprietario == nil
}

// Properties renders the set fields as GeoJSON properties.
func (a Attributes) Properties() geojson.Properties {
	p := geojson.Properties{}
	if a.Matricula != nil {
		p[PropMatricula] = *a.Matricula
	}
	if a.Area != nil {
		p[PropArea] = *a.Area
	}
	if a.Perimetro != nil {
		p[PropPerimetro] = *a.Perimetro
	}
	if a.Nome != nil {
		p[PropNome] = *a.Nome
	}
	if a.Proprietario != nil {
		p[PropProprietario] = *a.Proprietario
	}
	return p
}

const (
	numberText = `(\d[\d.,]*\d|\d)`
	freeText   = `([^\n,;()]+)`
)

// Ordered patterns per family; the first match wins.
var (
	matriculaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)matr[ií]cula\s*(?:n[º°o.]*)?\s*[:\-]?\s*(\d[\d.\-/]*)`),
		regexp.MustCompile(`(?i)\bmatr\.?\s*(?:n[º°o.]*)?\s*[:\-]?\s*(\d[\d.\-/]*)`),
		regexp.MustCompile(`(?i)\bregistro\s*(?:n[º°o.]*)?\s*[:\-]?\s*(\d[\d.\-/]*)`),
	}
	areaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[áa]rea(?:\s+total)?\s*[:=]?\s*` + numberText + `\s*(ha\b|hectares?\b|m²|m2\b)?`),
		regexp.MustCompile(`(?i)` + numberText + `\s*(ha\b|hectares?\b)`),
	}
	perimetroPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)per[ií]metro(?:\s+total)?\s*[:=]?\s*` + numberText + `\s*(km\b|m\b)?`),
	}
	nomePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:nome|denomina[çc][ãa]o)\s*[:\-]\s*` + freeText),
		regexp.MustCompile(`(?i)\b(?:fazenda|s[ií]tio|ch[aá]cara|est[aâ]ncia|gleba|lote)\b\s*[:\-]?\s*` + freeText),
	}
	proprietarioPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)propriet[áa]ri[oa]s?\s*[:\-]?\s*` + freeText),
		regexp.MustCompile(`(?i)\btitular\s*[:\-]?\s*` + freeText),
	}

	// A free-text value ends where another attribute starts.
	nextAttribute = regexp.MustCompile(`(?i)\s+(?:-\s|matr|[áa]rea\b|per[ií]metro|propriet|registro|titular)`)
)

// ExtractAttributes matches each attribute family against text.
func ExtractAttributes(text string) Attributes {
	var a Attributes
	if m := firstMatch(matriculaPatterns, text); m != nil {
		if v := strings.TrimRight(m[1], ".-/"); v != "" {
			a.Matricula = &v
		}
	}
	if m := firstMatch(areaPatterns, text); m != nil {
		if v, ok := ParseBrazilianNumber(m[1]); ok {
			if strings.HasPrefix(strings.ToLower(m[2]), "h") {
				v *= 10000
			}
			a.Area = &v
		}
	}
	if m := firstMatch(perimetroPatterns, text); m != nil {
		if v, ok := ParseBrazilianNumber(m[1]); ok {
			if strings.EqualFold(m[2], "km") {
				v *= 1000
			}
			a.Perimetro = &v
		}
	}
	a.Nome = freeTextMatch(nomePatterns, text)
	a.Proprietario = freeTextMatch(proprietarioPatterns, text)
	return a
}

func firstMatch(patterns []*regexp.Regexp, text string) []string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m
		}
	}
	return nil
}

func freeTextMatch(patterns []*regexp.Regexp, text string) *string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v := m[1]
		if loc := nextAttribute.FindStringIndex(v); loc != nil {
			v = v[:loc[0]]
		}
		v = strings.Trim(strings.TrimSpace(v), ":-. ")
		if v != "" {
			return &v
		}
	}
	return nil
}

// ParseBrazilianNumber reads "12.500,75" as 12500.75. Without a comma, dots
// followed by groups of exactly three digits are thousands separators
// ("4.561" is 4561) and any other single dot is a decimal point.
func ParseBrazilianNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Contains(s, ".") && thousandsGrouped(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func thousandsGrouped(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// MergeAttributes returns a copy of props with attrs added. Keys already
// present keep their value.
func MergeAttributes(props geojson.Properties, attrs Attributes) geojson.Properties {
	out := props.Clone()
	if out == nil {
		out = geojson.Properties{}
	}
	for k, v := range attrs.Properties() {
		if existing, ok := out[k]; ok && existing != nil {
			continue
		}
		out[k] = v
	}
	return out
}

// AssignAttributes extracts attributes from text and merges them into a
// copy of props.
func AssignAttributes(text string, props geojson.Properties) geojson.Properties {
	return MergeAttributes(props, ExtractAttributes(text))
}
