package telemetry

// Span attribute keys.
const (
	AttrFormat   = "marcos.format"
	AttrZone     = "marcos.zone"
	AttrFeatures = "marcos.features"
	AttrJobID    = "marcos.job_id"
)
