package corpus

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bastiangx/placeserve/pkg/place"
	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotVersion is bumped whenever the record layout changes.
const SnapshotVersion = 1

// SnapshotHeader precedes the records of a snapshot file.
type SnapshotHeader struct {
	Version int   `msgpack:"version"`
	Count   int   `msgpack:"count"`
	Created int64 `msgpack:"created"`
}

func lockFor(path string) *flock.Flock {
	return flock.New(path + ".lock")
}

// WriteSnapshot stores records at path. The file is written next to path and renamed
// into place while holding an exclusive lock, so readers never see a partial file.
func WriteSnapshot(path string, records []place.Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir %s: %w", dir, err)
	}

	lock := lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock snapshot %s: %w", path, err)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	enc := msgpack.NewEncoder(w)
	header := SnapshotHeader{Version: SnapshotVersion, Count: len(records), Created: time.Now().Unix()}
	if err := enc.Encode(&header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write record %q: %w", records[i].ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	log.Debugf("Wrote snapshot %s: %d records", path, len(records))
	return nil
}

// ReadSnapshot loads all records of a snapshot under a shared lock.
func ReadSnapshot(path string) ([]place.Record, SnapshotHeader, error) {
	var header SnapshotHeader

	lock := lockFor(path)
	if err := lock.RLock(); err != nil {
		return nil, header, fmt.Errorf("failed to lock snapshot %s: %w", path, err)
	}
	defer lock.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, header, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer file.Close()

	dec := msgpack.NewDecoder(bufio.NewReader(file))
	if err := dec.Decode(&header); err != nil {
		return nil, header, fmt.Errorf("failed to read snapshot header: %w", err)
	}
	if header.Version != SnapshotVersion {
		return nil, header, fmt.Errorf("unsupported snapshot version %d (want %d)", header.Version, SnapshotVersion)
	}
	if header.Count < 0 {
		return nil, header, fmt.Errorf("invalid record count %d", header.Count)
	}

	records := make([]place.Record, 0, min(header.Count, 1<<20))
	for i := 0; i < header.Count; i++ {
		var rec place.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, header, fmt.Errorf("failed to read record %d of %d: %w", i+1, header.Count, err)
		}
		records = append(records, rec)
	}

	log.Debugf("Read snapshot %s: %d records (created %s)",
		path, len(records), time.Unix(header.Created, 0).Format(time.RFC3339))
	return records, header, nil
}
