package corpus

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// FileFormat represents the corpus file formats the loader understands
type FileFormat int

const (
	FormatUnknown    FileFormat = iota
	FormatJSONLines             // one place object per line
	FormatSnapshot              // msgpack header + records
)

// FormatInfo contains metadata about a corpus file format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extensions  []string
	MinSize     int64 // Minimum expected file size in bytes
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatJSONLines: {
		Format:      FormatJSONLines,
		Description: "JSON Lines Place Corpus",
		Extensions:  []string{".jsonl", ".ndjson", ".json"},
		MinSize:     2, // "{}"
	},
	FormatSnapshot: {
		Format:      FormatSnapshot,
		Description: "Msgpack Place Snapshot",
		Extensions:  []string{".msgpack"},
		MinSize:     4,
	},
}

func (f FileFormat) String() string {
	if info, ok := supportedFormats[f]; ok {
		return info.Description
	}
	return "unknown"
}

// ValidateFileFormat checks if a file matches the expected format
func ValidateFileFormat(filename string, expectedFormat FileFormat) error {
	fileInfo, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", filename, err)
	}

	formatInfo, exists := supportedFormats[expectedFormat]
	if !exists {
		return fmt.Errorf("unknown format: %v", expectedFormat)
	}

	if fileInfo.Size() < formatInfo.MinSize {
		return fmt.Errorf("file %s is too small (%d bytes) for format %s (minimum: %d bytes)",
			filename, fileInfo.Size(), formatInfo.Description, formatInfo.MinSize)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	validExt := false
	for _, validExtension := range formatInfo.Extensions {
		if ext == validExtension {
			validExt = true
			break
		}
	}
	if !validExt {
		return fmt.Errorf("file %s has invalid extension %s for format %s (expected: %v)",
			filename, ext, formatInfo.Description, formatInfo.Extensions)
	}

	switch expectedFormat {
	case FormatSnapshot:
		return validateSnapshotFormat(filename)
	case FormatJSONLines:
		return validateJSONLinesFormat(filename)
	}

	return nil
}

// validateSnapshotFormat decodes the snapshot header only
func validateSnapshotFormat(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	var header SnapshotHeader
	if err := msgpack.NewDecoder(bufio.NewReader(file)).Decode(&header); err != nil {
		return fmt.Errorf("failed to read header from %s: %w", filename, err)
	}
	if header.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version in %s: %d (want %d)", filename, header.Version, SnapshotVersion)
	}
	if header.Count < 0 {
		return fmt.Errorf("invalid record count in %s: %d (negative)", filename, header.Count)
	}

	log.Debugf("Snapshot %s validated: %d records", filename, header.Count)
	return nil
}

// validateJSONLinesFormat checks the first non-blank byte opens an object
func validateJSONLinesFormat(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	buffer := make([]byte, 1024)
	n, err := file.Read(buffer)
	if err != nil {
		return fmt.Errorf("failed to read from corpus file %s: %w", filename, err)
	}
	trimmed := strings.TrimLeft(string(buffer[:n]), " \t\r\n\ufeff")
	if !strings.HasPrefix(trimmed, "{") {
		return fmt.Errorf("file %s does not start with a JSON object", filename)
	}

	log.Debugf("Corpus file %s validated", filename)
	return nil
}

// DetectFileFormat attempts to detect the format of a file
func DetectFileFormat(filename string) (FileFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	for _, format := range []FileFormat{FormatSnapshot, FormatJSONLines} {
		for _, candidate := range supportedFormats[format].Extensions {
			if ext != candidate {
				continue
			}
			if err := ValidateFileFormat(filename, format); err != nil {
				return FormatUnknown, err
			}
			return format, nil
		}
	}

	return FormatUnknown, fmt.Errorf("unable to detect format for file %s", filename)
}

// IsSupported reports whether the file extension belongs to a known format
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, info := range supportedFormats {
		for _, candidate := range info.Extensions {
			if ext == candidate {
				return true
			}
		}
	}
	return false
}
