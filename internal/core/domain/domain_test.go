package domain

import (
	"errors"
	"testing"
	"time"
)

func TestWrapError(t *testing.T) {
	base := errors.New("no rows")
	err := WrapError(ErrNotFound, "get import", base)
	if !IsKind(err, ErrNotFound) || !errors.Is(err, base) {
		t.Errorf("expected both kind and cause in %v", err)
	}
	if err.Error() != "get import: not found: no rows" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if WrapError(ErrNotFound, "op", nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestImportStatusTerminal(t *testing.T) {
	for s, want := range map[ImportStatus]bool{
		ImportQueued: false, ImportProcessing: false, ImportCompleted: true, ImportFailed: true,
	} {
		if s.Terminal() != want {
			t.Errorf("%s: expected %v", s, want)
		}
	}
}

func TestEventFor(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job := &ImportJob{ID: "j1", PropertyID: "p1", Status: ImportFailed, Error: "bad file"}
	ev := EventFor(job, at)
	if ev.JobID != "j1" || ev.PropertyID != "p1" || ev.Status != ImportFailed || ev.Error != "bad file" || !ev.Time.Equal(at) {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestGeoPointValid(t *testing.T) {
	if !(GeoPoint{Lat: -25.4, Lon: -49.2}).Valid() {
		t.Error("expected valid")
	}
	if (GeoPoint{Lat: 91, Lon: 0}).Valid() {
		t.Error("expected invalid")
	}
}
