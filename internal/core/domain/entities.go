package domain

import (
	"encoding/json"
	"time"
)

// Parcel is one footprint polygon of a rural property, as extracted from a
// survey drawing and stored in WGS84.
type Parcel struct {
	ID           string          `json:"id"`
	PropertyID   string          `json:"property_id"`
	ImportID     string          `json:"import_id"`
	Layer        string          `json:"layer,omitempty"`
	Matricula    string          `json:"matricula,omitempty"`
	Nome         string          `json:"nome,omitempty"`
	Proprietario string          `json:"proprietario,omitempty"`
	AreaM2       *float64        `json:"area_m2,omitempty"`     // declared on the drawing
	PerimetroM   *float64        `json:"perimetro_m,omitempty"` // declared on the drawing
	// Measured on the WGS84 geometry at import time.
	MeasuredAreaM2     float64         `json:"measured_area_m2"`
	MeasuredPerimeterM float64         `json:"measured_perimeter_m"`
	Geometry           json.RawMessage `json:"geometry"` // GeoJSON
	Properties         map[string]any  `json:"properties,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Marco is a survey marker (boundary monument) of a property.
type Marco struct {
	ID          string    `json:"id"`
	PropertyID  string    `json:"property_id"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Location    GeoPoint  `json:"location"`
	Source      string    `json:"source"` // file the marker was imported from
	Distance    *float64  `json:"distance,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImportStatus is the lifecycle state of an ImportJob.
type ImportStatus string

const (
	ImportQueued     ImportStatus = "queued"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s ImportStatus) Terminal() bool {
	return s == ImportCompleted || s == ImportFailed
}

// ImportJob tracks one uploaded survey file through conversion and
// persistence.
type ImportJob struct {
	ID           string       `json:"id"`
	PropertyID   string       `json:"property_id"`
	Filename     string       `json:"filename"`
	Format       string       `json:"format,omitempty"`
	ZoneLabel    string       `json:"zone"`
	Merge        bool         `json:"merge"`
	Status       ImportStatus `json:"status"`
	FeatureCount int          `json:"feature_count"`
	Error        string       `json:"error,omitempty"`
	StorageKey   string       `json:"storage_key,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ImportEvent is broadcast on every import status change.
type ImportEvent struct {
	JobID        string       `json:"job_id"`
	PropertyID   string       `json:"property_id"`
	Status       ImportStatus `json:"status"`
	FeatureCount int          `json:"feature_count,omitempty"`
	Error        string       `json:"error,omitempty"`
	Time         time.Time    `json:"time"`
}

// EventFor builds the event describing job's current state.
func EventFor(job *ImportJob, at time.Time) ImportEvent {
	return ImportEvent{
		JobID:        job.ID,
		PropertyID:   job.PropertyID,
		Status:       job.Status,
		FeatureCount: job.FeatureCount,
		Error:        job.Error,
		Time:         at,
	}
}
