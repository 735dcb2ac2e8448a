package coords

import (
	"errors"
	"testing"
)

func TestProjString(t *testing.T) {
	tests := map[string]string{
		"22S":          "+proj=utm +zone=22 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
		"23N":          "+proj=utm +zone=23 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
		"":             "+proj=utm +zone=22 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
		"abc":          "+proj=utm +zone=22 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
		"UTM zone 21S": "+proj=utm +zone=21 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	}
	for label, want := range tests {
		if got := ProjString(label); got != want {
			t.Errorf("ProjString(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestParseZoneLabel(t *testing.T) {
	tests := []struct {
		label string
		zone  int
		south bool
	}{
		{"22S", 22, true},
		{"24 s", 24, true},
		{"18N", 18, false},
		{"18n", 18, true},
		{"123S", 22, true},
		{"UTM ZONE 23S", 23, true},
		{"UTM zone 21 N", 21, false},
		{"99S", 22, true},
		{"23", 23, true},
		{"23 Norte", 23, false},
		{"zona", 22, true},
	}
	for _, tt := range tests {
		p := ParseZoneLabel(tt.label)
		if p.Zone != tt.zone || p.South != tt.south {
			t.Errorf("ParseZoneLabel(%q) = zone %d south %v, want %d %v", tt.label, p.Zone, p.South, tt.zone, tt.south)
		}
	}
}

func TestProjectionEPSGAndLabel(t *testing.T) {
	if got := SIRGAS2000UTM22S.EPSG(); got != 31982 {
		t.Errorf("expected 31982, got %d", got)
	}
	if got := SIRGAS2000UTM(21, false).EPSG(); got != 31975 {
		t.Errorf("expected 31975, got %d", got)
	}
	wgs := Projection{Zone: 23, South: true, Ellipsoid: "WGS84", Datum: DatumWGS84}
	if got := wgs.EPSG(); got != 32723 {
		t.Errorf("expected 32723, got %d", got)
	}
	if got := SIRGAS2000UTM(18, false).Label(); got != "18N" {
		t.Errorf("expected 18N, got %s", got)
	}
}

func TestParseProj4RoundTrip(t *testing.T) {
	for _, p := range []Projection{SIRGAS2000UTM22S, SIRGAS2000UTM(25, false)} {
		got, err := ParseProj4(p.Proj4())
		if err != nil {
			t.Fatalf("ParseProj4(%q): %v", p.Proj4(), err)
		}
		if got != p {
			t.Errorf("expected %+v, got %+v", p, got)
		}
	}

	p, err := ParseProj4("+proj=utm +zone=23 +south +datum=WGS84 +units=m +no_defs")
	if err != nil {
		t.Fatal(err)
	}
	if p.Ellipsoid != "WGS84" || p.Datum != DatumWGS84 {
		t.Errorf("expected WGS84 datum, got %+v", p)
	}
}

func TestParseProj4Rejects(t *testing.T) {
	for _, def := range []string{
		"+proj=longlat +ellps=GRS80",
		"+proj=utm +zone=61 +south",
		"+proj=utm +zone=22 +towgs84=-66.87,4.37,-38.52,0,0,0,0",
		"+proj=utm +zone=22 +units=ft",
		"+zone=22 +south",
	} {
		if _, err := ParseProj4(def); !errors.Is(err, ErrInvalidProjection) {
			t.Errorf("ParseProj4(%q): expected ErrInvalidProjection, got %v", def, err)
		}
	}
}
