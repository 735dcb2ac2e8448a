package coords

import (
	"errors"
	"math"
	"testing"
)

func TestForwardOnCentralMeridianAtEquator(t *testing.T) {
	tr, err := NewTransformer(SIRGAS2000UTM22S)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, n, err := tr.Forward(-51, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(e, 500000, 1e-6) || !approx(n, 10000000, 1e-6) {
		t.Errorf("expected (500000, 10000000), got (%v, %v)", e, n)
	}

	lng, lat, err := tr.Inverse(500000, 10000000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(lng, -51, 1e-12) || !approx(lat, 0, 1e-12) {
		t.Errorf("expected (-51, 0), got (%v, %v)", lng, lat)
	}
}

func TestUTMRoundTripSubMillimetre(t *testing.T) {
	tr, err := NewTransformer(SIRGAS2000UTM22S)
	if err != nil {
		t.Fatal(err)
	}
	for e := 170000.0; e <= 830000; e += 65000 {
		for n := 6300000.0; n <= 9990000; n += 370000 {
			lng, lat, err := tr.Inverse(e, n)
			if err != nil {
				t.Fatalf("inverse(%v, %v): %v", e, n, err)
			}
			if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
				t.Fatalf("inverse(%v, %v) out of range: %v, %v", e, n, lng, lat)
			}
			e2, n2, err := tr.Forward(lng, lat)
			if err != nil {
				t.Fatalf("forward: %v", err)
			}
			if math.Abs(e2-e) > 1e-3 || math.Abs(n2-n) > 1e-3 {
				t.Errorf("round trip (%v, %v) -> (%v, %v)", e, n, e2, n2)
			}
		}
	}
}

func TestUTMNorthernHemisphere(t *testing.T) {
	tr, err := NewTransformer(SIRGAS2000UTM(21, false))
	if err != nil {
		t.Fatal(err)
	}
	e, n, err := tr.Forward(-58.5, 4.2)
	if err != nil {
		t.Fatal(err)
	}
	if n < 0 || n > 1000000 {
		t.Errorf("northern northing should be small and positive, got %v", n)
	}
	lng, lat, err := tr.Inverse(e, n)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(lng, -58.5, 1e-9) || !approx(lat, 4.2, 1e-9) {
		t.Errorf("expected (-58.5, 4.2), got (%v, %v)", lng, lat)
	}
}

func TestTransformerRejectsNonFinite(t *testing.T) {
	tr, _ := NewTransformer(SIRGAS2000UTM22S)
	if _, _, err := tr.Inverse(math.NaN(), 7000000); !errors.Is(err, ErrTransform) {
		t.Errorf("expected ErrTransform, got %v", err)
	}
	if _, _, err := tr.Forward(-49, 95); !errors.Is(err, ErrTransform) {
		t.Errorf("expected ErrTransform, got %v", err)
	}
}

func TestNewTransformerValidates(t *testing.T) {
	if _, err := NewTransformer(Projection{Zone: 0, Ellipsoid: "GRS80"}); !errors.Is(err, ErrInvalidProjection) {
		t.Errorf("expected ErrInvalidProjection for zone 0, got %v", err)
	}
	if _, err := NewTransformer(Projection{Zone: 22, Ellipsoid: "Hayford"}); !errors.Is(err, ErrInvalidProjection) {
		t.Errorf("expected ErrInvalidProjection for unknown ellipsoid, got %v", err)
	}
}
