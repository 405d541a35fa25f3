package suggest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for queries the engine refuses to run, e.g. size <= 0.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIndexUnavailable is returned when no snapshot has been published yet.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrIngestion marks a corpus record that could not be indexed.
	ErrIngestion = errors.New("ingestion error")
)

// IngestionError describes one skipped corpus record.
type IngestionError struct {
	Source   string
	Line     int
	RecordID string
	Reason   string
}

func (e *IngestionError) Error() string {
	loc := ""
	switch {
	case e.Source != "" && e.Line > 0:
		loc = fmt.Sprintf("%s:%d: ", e.Source, e.Line)
	case e.Source != "":
		loc = e.Source + ": "
	}
	if e.RecordID != "" {
		return fmt.Sprintf("%srecord %q skipped: %s", loc, e.RecordID, e.Reason)
	}
	return fmt.Sprintf("%srecord skipped: %s", loc, e.Reason)
}

func (e *IngestionError) Unwrap() error {
	return ErrIngestion
}
