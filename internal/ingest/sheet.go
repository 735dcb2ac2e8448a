package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/xuri/excelize/v2"

	"github.com/marcosgeo/marcos/internal/pkg/coords"
	"github.com/marcosgeo/marcos/internal/pkg/textenc"
)

var ErrEmptySheet = errors.New("sheet has no usable coordinate rows")

// SheetReport tells which survey marker rows were accepted.
type SheetReport struct {
	Rows     int   `json:"rows"`
	Accepted int   `json:"accepted"`
	Rejected []int `json:"rejected,omitempty"` // 1-based row numbers
}

// Property keys of survey marker point features.
const (
	PropCodigo    = "codigo"
	PropDescricao = "descricao"
	PropRow       = "_row"
	PropMethod    = "_method"
)

var (
	codeHeaders  = []string{"codigo", "marco", "ponto", "vertice", "nome", "id"}
	eastHeaders  = []string{"e", "este", "leste", "x", "easting", "coord_e", "longitude", "lon", "lng", "long"}
	northHeaders = []string{"n", "norte", "y", "northing", "coord_n", "latitude", "lat"}
	descHeaders  = []string{"descricao", "tipo", "obs", "observacao"}
)

type sheetColumns struct {
	code, east, north, desc int
	header                  bool
}

// ParseCSVSheet reads survey markers from a CSV export. The delimiter is
// sniffed from the first line since Brazilian spreadsheets write ';'.
func ParseCSVSheet(data []byte, proj coords.Projection) (*geojson.FeatureCollection, SheetReport, error) {
	text, _ := textenc.Decode(data, "")
	text = bytes.TrimPrefix(text, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, SheetReport{}, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rowsToMarkers(rows, proj)
}

// ParseXLSXSheet reads survey markers from the first worksheet of a workbook.
func ParseXLSXSheet(data []byte, proj coords.Projection) (*geojson.FeatureCollection, SheetReport, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, SheetReport{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, SheetReport{}, ErrEmptySheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, SheetReport{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rowsToMarkers(rows, proj)
}

func sniffDelimiter(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func rowsToMarkers(rows [][]string, proj coords.Projection) (*geojson.FeatureCollection, SheetReport, error) {
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, SheetReport{}, ErrEmptySheet
	}

	cols := locateColumns(rows[0])
	start := 0
	if cols.header {
		start = 1
	}

	fc := geojson.NewFeatureCollection()
	var rep SheetReport
	for i := start; i < len(rows); i++ {
		row := rows[i]
		rep.Rows++
		rowNum := i + 1

		res := coords.ParseCoordinatePair(cell(row, cols.east), cell(row, cols.north), proj)
		if !res.Valid {
			rep.Rejected = append(rep.Rejected, rowNum)
			continue
		}
		f := geojson.NewFeature(orb.Point{res.Lng, res.Lat})
		if code := cell(row, cols.code); code != "" {
			f.Properties[PropCodigo] = code
		}
		if desc := cell(row, cols.desc); desc != "" {
			f.Properties[PropDescricao] = desc
		}
		f.Properties[PropRow] = rowNum
		f.Properties[PropMethod] = res.Method
		fc.Append(f)
		rep.Accepted++
	}

	if rep.Accepted == 0 {
		return nil, rep, ErrEmptySheet
	}
	return fc, rep, nil
}

// locateColumns maps header names to column positions. Without a
// recognisable header the layout is assumed to be code, E, N.
func locateColumns(first []string) sheetColumns {
	cols := sheetColumns{code: -1, east: -1, north: -1, desc: -1}
	for i, h := range first {
		name := textenc.Fold(h)
		switch {
		case cols.code < 0 && contains(codeHeaders, name):
			cols.code = i
		case cols.east < 0 && contains(eastHeaders, name):
			cols.east = i
		case cols.north < 0 && contains(northHeaders, name):
			cols.north = i
		case cols.desc < 0 && contains(descHeaders, name):
			cols.desc = i
		}
	}
	if cols.east >= 0 && cols.north >= 0 {
		cols.header = true
		return cols
	}
	return sheetColumns{code: 0, east: 1, north: 2, desc: 3}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, r := range rows {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
