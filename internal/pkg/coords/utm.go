package coords

import (
	"errors"
	"fmt"
	"math"
)

const (
	utmScale         = 0.9996
	utmFalseEasting  = 500000.0
	utmFalseNorthing = 10000000.0
)

// Ellipsoid is a reference ellipsoid given by semi-major axis and flattening.
type Ellipsoid struct {
	Name string
	A    float64
	F    float64
}

var (
	GRS80 = Ellipsoid{Name: "GRS80", A: 6378137, F: 1 / 298.257222101}
	WGS84 = Ellipsoid{Name: "WGS84", A: 6378137, F: 1 / 298.257223563}
)

var ellipsoids = map[string]Ellipsoid{
	"GRS80": GRS80,
	"WGS84": WGS84,
}

// LookupEllipsoid resolves an ellipsoid by its PROJ name.
func LookupEllipsoid(name string) (Ellipsoid, bool) {
	e, ok := ellipsoids[name]
	return e, ok
}

var ErrTransform = errors.New("coordinate transform failed")

// Transformer converts between UTM grid coordinates of a single zone and
// geographic degrees on the zone's ellipsoid. It uses the Krüger series to
// sixth order in n, which keeps round trips well under a millimetre.
type Transformer struct {
	proj    Projection
	e       float64
	scaledA float64 // k0 * A
	lambda0 float64
	alpha   [7]float64
	beta    [7]float64
}

// NewTransformer builds a transformer for p.
func NewTransformer(p Projection) (*Transformer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ell, _ := LookupEllipsoid(p.Ellipsoid)

	f := ell.F
	n := f / (2 - f)
	n2, n3 := n*n, n*n*n
	n4, n5, n6 := n3*n, n3*n2, n3*n3

	t := &Transformer{
		proj:    p,
		e:       math.Sqrt(f * (2 - f)),
		scaledA: utmScale * ell.A / (1 + n) * (1 + n2/4 + n4/64 + n6/256),
		lambda0: toRadians(float64((p.Zone-1)*6 - 180 + 3)),
	}

	t.alpha = [7]float64{0,
		n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180 - 127*n5/288 + 7891*n6/37800,
		13*n2/48 - 3*n3/5 + 557*n4/1440 + 281*n5/630 - 1983433*n6/1935360,
		61*n3/240 - 103*n4/140 + 15061*n5/26880 + 167603*n6/181440,
		49561*n4/161280 - 179*n5/168 + 6601661*n6/7257600,
		34729*n5/80640 - 3418889*n6/1995840,
		212378941 * n6 / 319334400,
	}
	t.beta = [7]float64{0,
		n/2 - 2*n2/3 + 37*n3/96 - n4/360 - 81*n5/512 + 96199*n6/604800,
		n2/48 + n3/15 - 437*n4/1440 + 46*n5/105 - 1118711*n6/3870720,
		17*n3/480 - 37*n4/840 - 209*n5/4480 + 5569*n6/90720,
		4397*n4/161280 - 11*n5/504 - 830251*n6/7257600,
		4583*n5/161280 - 108847*n6/3991680,
		20648693 * n6 / 638668800,
	}
	return t, nil
}

// NewTransformerFromProj4 parses a PROJ4 UTM definition and builds a transformer.
func NewTransformerFromProj4(def string) (*Transformer, error) {
	p, err := ParseProj4(def)
	if err != nil {
		return nil, err
	}
	return NewTransformer(p)
}

// Projection returns the projection the transformer was built for.
func (t *Transformer) Projection() Projection { return t.proj }

// Forward projects geographic degrees to easting/northing.
func (t *Transformer) Forward(lng, lat float64) (easting, northing float64, err error) {
	if !finite(lng) || !finite(lat) || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("forward (%v, %v): %w", lng, lat, ErrTransform)
	}

	phi := toRadians(lat)
	lambda := toRadians(lng) - t.lambda0
	cosL, sinL := math.Cos(lambda), math.Sin(lambda)

	tau := math.Tan(phi)
	sigma := math.Sinh(t.e * math.Atanh(t.e*tau/math.Sqrt(1+tau*tau)))
	tauP := tau*math.Sqrt(1+sigma*sigma) - sigma*math.Sqrt(1+tau*tau)

	xiP := math.Atan2(tauP, cosL)
	etaP := math.Asinh(sinL / math.Sqrt(tauP*tauP+cosL*cosL))

	xi, eta := xiP, etaP
	for j := 1; j <= 6; j++ {
		fj := float64(2 * j)
		xi += t.alpha[j] * math.Sin(fj*xiP) * math.Cosh(fj*etaP)
		eta += t.alpha[j] * math.Cos(fj*xiP) * math.Sinh(fj*etaP)
	}

	easting = t.scaledA*eta + utmFalseEasting
	northing = t.scaledA * xi
	if t.proj.South {
		northing += utmFalseNorthing
	}
	if !finite(easting) || !finite(northing) {
		return 0, 0, fmt.Errorf("forward (%v, %v): %w", lng, lat, ErrTransform)
	}
	return easting, northing, nil
}

// Inverse converts easting/northing to geographic degrees (lng, lat).
func (t *Transformer) Inverse(easting, northing float64) (lng, lat float64, err error) {
	if !finite(easting) || !finite(northing) {
		return 0, 0, fmt.Errorf("inverse (%v, %v): %w", easting, northing, ErrTransform)
	}

	x := easting - utmFalseEasting
	y := northing
	if t.proj.South {
		y -= utmFalseNorthing
	}

	eta := x / t.scaledA
	xi := y / t.scaledA

	xiP, etaP := xi, eta
	for j := 1; j <= 6; j++ {
		fj := float64(2 * j)
		xiP -= t.beta[j] * math.Sin(fj*xi) * math.Cosh(fj*eta)
		etaP -= t.beta[j] * math.Cos(fj*xi) * math.Sinh(fj*eta)
	}

	sinhEtaP := math.Sinh(etaP)
	sinXiP, cosXiP := math.Sin(xiP), math.Cos(xiP)
	tauP := sinXiP / math.Sqrt(sinhEtaP*sinhEtaP+cosXiP*cosXiP)

	e2 := t.e * t.e
	tau := tauP
	for i := 0; i < 20; i++ {
		sigma := math.Sinh(t.e * math.Atanh(t.e*tau/math.Sqrt(1+tau*tau)))
		tauI := tau*math.Sqrt(1+sigma*sigma) - sigma*math.Sqrt(1+tau*tau)
		delta := (tauP - tauI) / math.Sqrt(1+tauI*tauI) *
			(1 + (1-e2)*tau*tau) / ((1 - e2) * math.Sqrt(1+tau*tau))
		tau += delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}

	lat = toDegrees(math.Atan(tau))
	lng = toDegrees(t.lambda0 + math.Atan2(sinhEtaP, cosXiP))
	if !finite(lat) || !finite(lng) || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("inverse (%v, %v): %w", easting, northing, ErrTransform)
	}
	return normalizeLng(lng), lat, nil
}

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
