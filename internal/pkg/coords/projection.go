package coords

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultZone      = 22
	DefaultZoneLabel = "22S"

	DatumSIRGAS2000 = "SIRGAS2000"
	DatumWGS84      = "WGS84"
)

var ErrInvalidProjection = errors.New("invalid projection")

// Projection describes a UTM zone on a given datum. Values are built per
// request from user input and never cached.
type Projection struct {
	Zone      int
	South     bool
	Ellipsoid string
	Datum     string
}

// SIRGAS2000UTM22S is the projection most Brazilian survey files use.
var SIRGAS2000UTM22S = Projection{Zone: DefaultZone, South: true, Ellipsoid: "GRS80", Datum: DatumSIRGAS2000}

// SIRGAS2000UTM returns the SIRGAS2000 projection for a zone and hemisphere.
func SIRGAS2000UTM(zone int, south bool) Projection {
	return Projection{Zone: zone, South: south, Ellipsoid: "GRS80", Datum: DatumSIRGAS2000}
}

func (p Projection) Validate() error {
	if p.Zone < 1 || p.Zone > 60 {
		return fmt.Errorf("zone %d out of range 1..60: %w", p.Zone, ErrInvalidProjection)
	}
	if _, ok := LookupEllipsoid(p.Ellipsoid); !ok {
		return fmt.Errorf("unsupported ellipsoid %q: %w", p.Ellipsoid, ErrInvalidProjection)
	}
	return nil
}

// Proj4 renders the PROJ4 definition. SIRGAS2000 and WGS84 are treated as
// coincident, hence the zero datum shift.
func (p Projection) Proj4() string {
	var b strings.Builder
	fmt.Fprintf(&b, "+proj=utm +zone=%d", p.Zone)
	if p.South {
		b.WriteString(" +south")
	}
	fmt.Fprintf(&b, " +ellps=%s +towgs84=0,0,0,0,0,0,0 +units=m +no_defs", p.Ellipsoid)
	return b.String()
}

// EPSG returns the registry code of the projected CRS.
func (p Projection) EPSG() int {
	if p.Datum == DatumWGS84 {
		if p.South {
			return 32700 + p.Zone
		}
		return 32600 + p.Zone
	}
	if p.South {
		return 31960 + p.Zone
	}
	return 31954 + p.Zone
}

// Label renders the short zone label, e.g. "22S".
func (p Projection) Label() string {
	if p.South {
		return strconv.Itoa(p.Zone) + "S"
	}
	return strconv.Itoa(p.Zone) + "N"
}

// zoneNumber takes a standalone one or two digit zone, optionally followed
// by a hemisphere letter.
var zoneNumber = regexp.MustCompile(`\b(\d{1,2})(?:\s*([NSns]))?\b`)

// ParseZoneLabel turns a free-form label like "22S", "23 N" or
// "UTM zone 21S" into a SIRGAS2000 projection. Unparseable or out of range
// zones fall back to 22. The hemisphere is south unless the label carries
// an explicit upper-case N.
func ParseZoneLabel(label string) Projection {
	label = strings.TrimSpace(label)

	zone := DefaultZone
	south := !strings.Contains(label, "N")
	if m := zoneNumber.FindStringSubmatch(label); m != nil {
		zone = atoiZone(m[1])
		if m[2] != "" {
			south = m[2] != "N"
		}
	}
	return SIRGAS2000UTM(zone, south)
}

func atoiZone(s string) int {
	z, err := strconv.Atoi(s)
	if err != nil || z < 1 || z > 60 {
		return DefaultZone
	}
	return z
}

// ProjString returns the PROJ4 definition for a zone label.
func ProjString(label string) string {
	return ParseZoneLabel(label).Proj4()
}

// ParseProj4 parses a PROJ4 UTM definition. Only zero datum shifts are
// accepted since no Helmert transform is applied.
func ParseProj4(def string) (Projection, error) {
	p := Projection{Ellipsoid: "GRS80", Datum: DatumSIRGAS2000}
	seenProj := false

	for _, tok := range strings.Fields(def) {
		key, val, _ := strings.Cut(strings.TrimPrefix(tok, "+"), "=")
		switch key {
		case "proj":
			if val != "utm" {
				return Projection{}, fmt.Errorf("proj %q: %w", val, ErrInvalidProjection)
			}
			seenProj = true
		case "zone":
			z, err := strconv.Atoi(val)
			if err != nil {
				return Projection{}, fmt.Errorf("zone %q: %w", val, ErrInvalidProjection)
			}
			p.Zone = z
		case "south":
			p.South = true
		case "ellps":
			p.Ellipsoid = val
		case "datum":
			if val == DatumWGS84 {
				p.Ellipsoid = "WGS84"
				p.Datum = DatumWGS84
			}
		case "towgs84":
			for _, c := range strings.Split(val, ",") {
				f, err := strconv.ParseFloat(c, 64)
				if err != nil || f != 0 {
					return Projection{}, fmt.Errorf("datum shift %q not supported: %w", val, ErrInvalidProjection)
				}
			}
		case "units":
			if val != "m" {
				return Projection{}, fmt.Errorf("units %q: %w", val, ErrInvalidProjection)
			}
		}
	}

	if !seenProj {
		return Projection{}, fmt.Errorf("missing +proj=utm: %w", ErrInvalidProjection)
	}
	if p.Ellipsoid == "WGS84" {
		p.Datum = DatumWGS84
	}
	if err := p.Validate(); err != nil {
		return Projection{}, err
	}
	return p, nil
}
