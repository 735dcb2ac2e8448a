package coords

import (
	"log/slog"
)

// PairResult is a resolved geographic point. Method reports which rule
// resolved it: "geographic", "utm" or "plain".
type PairResult struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Valid  bool    `json:"valid"`
	Method string  `json:"method,omitempty"`
}

// ParseCoordinatePair resolves an easting/northing pair of field values to
// WGS84. Values with hemisphere letters are combined per axis first; two
// UTM-scale values are reprojected through proj; two plain numbers are
// taken as lng/lat as they are.
func ParseCoordinatePair(easting, northing any, proj Projection) PairResult {
	e := ParseCoordinate(easting)
	n := ParseCoordinate(northing)

	if lat, lng, ok := combineAxes(e, n); ok {
		return PairResult{Lat: lat, Lng: lng, Valid: true, Method: "geographic"}
	}

	if e.UTM != nil && n.UTM != nil {
		t, err := NewTransformer(proj)
		if err != nil {
			slog.Warn("coordinate pair: bad projection", "zone", proj.Zone, "error", err)
			return PairResult{}
		}
		lng, lat, err := t.Inverse(*e.UTM, *n.UTM)
		if err != nil || !inRange(lat, lng) {
			return PairResult{}
		}
		return PairResult{Lat: lat, Lng: lng, Valid: true, Method: "utm"}
	}

	if e.Decimal != nil && n.Decimal != nil {
		lng, lat := *e.Decimal, *n.Decimal
		if !inRange(lat, lng) {
			return PairResult{}
		}
		return PairResult{Lat: lat, Lng: lng, Valid: true, Method: "plain"}
	}

	return PairResult{}
}

// ParseCoordinatePairDefault resolves a pair assuming SIRGAS2000 / UTM 22S
// for grid values. Prefer ParseCoordinatePair with the file's real zone.
func ParseCoordinatePairDefault(easting, northing any) PairResult {
	return ParseCoordinatePair(easting, northing, SIRGAS2000UTM22S)
}

func combineAxes(a, b Coordinate) (lat, lng float64, ok bool) {
	var latP, lngP *float64
	for _, c := range []Coordinate{a, b} {
		if !c.Valid {
			continue
		}
		if c.Lat != nil && latP == nil {
			latP = c.Lat
		}
		if c.Lng != nil && lngP == nil {
			lngP = c.Lng
		}
	}
	if latP == nil || lngP == nil {
		return 0, 0, false
	}
	return *latP, *lngP, true
}

// LatLng is a best-effort conversion result; both fields are nil on failure.
type LatLng struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// ConvertUTMToLatLon converts a SIRGAS2000 UTM coordinate to WGS84. It never
// fails: errors are logged and yield nil fields, since callers run it over
// whole batches.
func ConvertUTMToLatLon(easting, northing float64, zone int, north bool) LatLng {
	def := SIRGAS2000UTM(zone, !north).Proj4()
	t, err := NewTransformerFromProj4(def)
	if err != nil {
		slog.Warn("utm conversion: bad projection", "proj4", def, "error", err)
		return LatLng{}
	}
	lng, lat, err := t.Inverse(easting, northing)
	if err != nil {
		slog.Warn("utm conversion failed", "easting", easting, "northing", northing, "error", err)
		return LatLng{}
	}
	return LatLng{Lat: ptr(lat), Lng: ptr(lng)}
}

func inRange(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
