package geospatial

import "math"

// ShoelaceArea returns the planar area of a ring of [x, y] pairs.
// The ring may be open or closed; the closing edge is always included.
// Units follow the input, so UTM metres yield square metres.
func ShoelaceArea(ring [][2]float64) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	return math.Abs(sum) / 2
}

// SamePoint compares two vertices within ClosureTolerance.
func SamePoint(a, b [2]float64) bool {
	return math.Abs(a[0]-b[0]) <= ClosureTolerance && math.Abs(a[1]-b[1]) <= ClosureTolerance
}
