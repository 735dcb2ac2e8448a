package geospatial

// Heuristic thresholds shared by the ingestion pipeline. They encode
// survey precision and coordinate magnitude ranges, so tests pin them.
const (
	// ClosureTolerance is the max distance, in source units, between the
	// first and last vertex of a polyline for it to count as closed.
	ClosureTolerance = 0.001

	// UTMMagnitudeThreshold separates bare UTM metres from degree values.
	UTMMagnitudeThreshold = 10000.0

	// ProjectedThreshold: a leaf whose |x| exceeds this is still projected.
	ProjectedThreshold = 180.0
)

// IsProjectedX reports whether x still looks like a projected coordinate.
func IsProjectedX(x float64) bool {
	return x > ProjectedThreshold || x < -ProjectedThreshold
}

// IsUTMMagnitude reports whether v is large enough to be a raw UTM value.
func IsUTMMagnitude(v float64) bool {
	return v > UTMMagnitudeThreshold || v < -UTMMagnitudeThreshold
}
