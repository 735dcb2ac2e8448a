// Command ingestor converts local survey files (DXF, parsed-DXF JSON,
// GeoJSON, KML, shapefiles, CSV/XLSX marker sheets) into WGS84 GeoJSON
// written next to each input. With -property the parcels are also stored
// in the database.
//
//	ingestor [-zone 22S] [-merge] [-property <id>] file-or-dir...
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcosgeo/marcos/internal/adapters/postgres"
	"github.com/marcosgeo/marcos/internal/core/usecases"
	"github.com/marcosgeo/marcos/internal/ingest"
	"github.com/marcosgeo/marcos/internal/pkg/config"
	"github.com/marcosgeo/marcos/internal/pkg/logging"
)

func main() {
	zone := flag.String("zone", "", "UTM zone of projected coordinates (default from config)")
	merge := flag.Bool("merge", false, "merge polygons into one footprint")
	property := flag.String("property", "", "store parcels under this property id")
	workers := flag.Int("workers", 4, "files converted concurrently")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: ingestor [-zone 22S] [-merge] [-property <id>] file-or-dir...")
	}

	cfg, err := config.Load("marcos-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, "text")
	if *zone == "" {
		*zone = cfg.Ingest.DefaultZone
	}

	ctx := context.Background()

	var imports *usecases.ImportService
	if *property != "" {
		db, err := postgres.New(ctx, cfg.Database.DSN(), int32(*workers))
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()
		imports = usecases.NewImportService(
			postgres.NewParcelRepo(db), postgres.NewImportRepo(db),
			nil, nil, nil, nil,
			usecases.ImportOptions{DefaultZone: cfg.Ingest.DefaultZone, MaxEntities: cfg.Ingest.MaxEntities},
		)
	}

	files, err := collectFiles(flag.Args())
	if err != nil {
		log.Fatalf("collect files: %v", err)
	}
	slog.Info("converting survey files", "files", len(files), "zone", *zone)

	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	sem := make(chan struct{}, max(*workers, 1))

	for _, f := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			job := fileJob{path: path, zone: *zone, merge: *merge, property: *property, imports: imports}
			if err := job.run(ctx, cfg.Ingest.MaxEntities); err != nil {
				failed.Add(1)
				slog.Error("convert failed", "file", path, "error", err)
			}
		}(f)
	}

	wg.Wait()
	if n := failed.Load(); n > 0 {
		log.Fatalf("%d of %d files failed", n, len(files))
	}
	log.Println("ingestion complete")
}

type fileJob struct {
	path     string
	zone     string
	merge    bool
	property string
	imports  *usecases.ImportService
}

func (j fileJob) run(ctx context.Context, maxEntities int) error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := ingest.Convert(ctx, ingest.Input{
		Filename:    j.path,
		Data:        data,
		ZoneLabel:   j.zone,
		Merge:       j.merge,
		MaxEntities: maxEntities,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res.Collection, "", "  ")
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	target := outputPath(j.path)
	if err := os.WriteFile(target, out, 0o644); err != nil {
		return err
	}

	attrs := []any{
		"file", j.path, "format", res.Format, "features", len(res.Collection.Features),
		"source", res.Source, "out", target, "took", time.Since(start),
	}
	if res.Metadata != nil {
		attrs = append(attrs, "enriched", res.Metadata.EnrichedPolygons)
	}
	if res.Sheet != nil {
		attrs = append(attrs, "rows_rejected", len(res.Sheet.Rejected))
	}
	slog.Info("converted", attrs...)

	if j.imports == nil || res.Format == ingest.FormatCSV || res.Format == ingest.FormatXLSX {
		return nil
	}
	imp, err := j.imports.Commit(ctx, usecases.Upload{
		PropertyID: j.property,
		Filename:   filepath.Base(j.path),
		Data:       data,
		Zone:       j.zone,
		Merge:      j.merge,
	})
	if err != nil {
		return fmt.Errorf("store parcels: %w", err)
	}
	slog.Info("stored", "file", j.path, "import_id", imp.ID, "parcels", imp.FeatureCount)
	return nil
}

// collectFiles expands directories to the convertible files they contain.
// Previous outputs are skipped.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if strings.HasSuffix(path, ".wgs84.geojson") {
				return nil
			}
			if _, err := ingest.DetectFormat(path, nil); err == nil {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func outputPath(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".wgs84.geojson"
}
