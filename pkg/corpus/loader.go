// Package corpus reads place records from JSON lines files and msgpack snapshots.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/place"
	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const maxLoggedSkips = 20

// Result is a merged record set plus the records that were skipped on the way.
type Result struct {
	Records []place.Record
	Skipped []error
	Files   int
}

// Source produces a complete record set; the refresher calls it on every reload.
type Source interface {
	Load(ctx context.Context) (Result, error)
}

// Loader reads the corpus from a data directory, or from a snapshot when no
// directory is configured.
type Loader struct {
	DataDir      string
	SnapshotPath string
}

// NewLoader creates a loader for the given locations; either may be empty.
func NewLoader(dataDir, snapshotPath string) *Loader {
	return &Loader{DataDir: dataDir, SnapshotPath: snapshotPath}
}

// Load implements Source.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	switch {
	case l.DataDir != "":
		return LoadDir(ctx, l.DataDir)
	case l.SnapshotPath != "":
		records, _, err := ReadSnapshot(l.SnapshotPath)
		if err != nil {
			return Result{}, err
		}
		return Result{Records: records, Files: 1}, nil
	default:
		return Result{}, fmt.Errorf("no data directory or snapshot configured")
	}
}

// LoadFile reads one corpus file in whatever supported format it has.
func LoadFile(ctx context.Context, path string) ([]place.Record, []error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	format, err := DetectFileFormat(path)
	if err != nil {
		return nil, nil, err
	}

	switch format {
	case FormatSnapshot:
		records, _, err := ReadSnapshot(path)
		return records, nil, err
	case FormatJSONLines:
		file, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open corpus file %s: %w", path, err)
		}
		defer file.Close()
		return ReadJSONLines(file, filepath.Base(path))
	default:
		return nil, nil, fmt.Errorf("unsupported format %v for %s", format, path)
	}
}

// ListFiles returns the supported corpus files in dir, sorted by name.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for corpus files: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir reads every supported file in dir concurrently and merges them in file name
// order. When an ID appears more than once the first occurrence wins and the others
// are reported as skipped.
func LoadDir(ctx context.Context, dir string) (Result, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		return Result{}, fmt.Errorf("no corpus files found in %s", dir)
	}
	log.Debugf("Found %d corpus files in %s", len(files), dir)

	type fileResult struct {
		records []place.Record
		skipped []error
	}
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		g.Go(func() error {
			records, skipped, err := LoadFile(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
			}
			results[i] = fileResult{records: records, skipped: skipped}
			log.Debugf("Loaded %s: %d records, %d skipped", filepath.Base(path), len(records), len(skipped))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	total := 0
	for _, r := range results {
		total += len(r.records)
	}

	merged := Result{Records: make([]place.Record, 0, total), Files: len(files)}
	filter := utils.NewIDFilter(total)
	for i, r := range results {
		source := filepath.Base(files[i])
		merged.Skipped = append(merged.Skipped, r.skipped...)
		for _, rec := range r.records {
			if ok, first := filter.ShouldInclude(rec.ID, source); !ok {
				merged.Skipped = append(merged.Skipped, &suggest.IngestionError{
					Source:   source,
					RecordID: rec.ID,
					Reason:   "duplicate id, first seen in " + first,
				})
				continue
			}
			merged.Records = append(merged.Records, rec)
		}
	}

	for i, err := range merged.Skipped {
		if i == maxLoggedSkips {
			log.Warnf("... and %d more skipped records", len(merged.Skipped)-maxLoggedSkips)
			break
		}
		log.Warnf("%v", err)
	}
	log.Infof("Loaded %d records from %d files (%d skipped)", len(merged.Records), merged.Files, len(merged.Skipped))
	return merged, nil
}
