package corpus

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/bastiangx/placeserve/pkg/place"
	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/tidwall/gjson"
)

// maxLineSize bounds a single corpus line; boundary polygons are not expected here.
const maxLineSize = 4 << 20

// ReadJSONLines parses one place object per line. Blank lines are ignored; lines that
// cannot be turned into a record are reported as *suggest.IngestionError and skipped.
// The returned error is only set when reading itself fails.
func ReadJSONLines(r io.Reader, source string) ([]place.Record, []error, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var records []place.Record
	var skipped []error
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if lineNo == 1 {
			line = bytes.TrimPrefix(line, []byte("\xef\xbb\xbf"))
		}

		rec, err := ParseRecord(line)
		if err != nil {
			ie := &suggest.IngestionError{Source: source, Line: lineNo, Reason: err.Error()}
			if id := gjson.GetBytes(line, "id"); id.Exists() {
				ie.RecordID = id.String()
			}
			skipped = append(skipped, ie)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("failed to read %s at line %d: %w", source, lineNo+1, err)
	}
	return records, skipped, nil
}

// ParseRecord decodes a single JSON place object.
func ParseRecord(line []byte) (place.Record, error) {
	if !gjson.ValidBytes(line) {
		return place.Record{}, fmt.Errorf("malformed JSON")
	}
	res := gjson.ParseBytes(line)
	if !res.IsObject() {
		return place.Record{}, fmt.Errorf("expected JSON object, got %s", res.Type)
	}

	var rec place.Record

	id := res.Get("id")
	if !id.Exists() {
		id = res.Get("osm_id")
	}
	rec.ID = strings.TrimSpace(id.String())
	if rec.ID == "" {
		return place.Record{}, fmt.Errorf("missing id")
	}

	name := res.Get("name")
	if name.IsObject() {
		name = name.Get("default")
	}
	rec.Name = strings.TrimSpace(name.String())
	if rec.Name == "" {
		return place.Record{}, fmt.Errorf("missing name")
	}

	rec.Type = place.Type(strings.ToLower(strings.TrimSpace(res.Get("type").String())))

	center, err := parseCenter(res)
	if err != nil {
		return place.Record{}, err
	}
	rec.Center = center

	rec.Population = parsePopulation(res.Get("population"))
	rec.IsIn = parseIsIn(res.Get("is_in"))
	return rec, nil
}

// parseCenter accepts "center": [lon, lat] or top level "lat"/"lon".
func parseCenter(res gjson.Result) (*place.Coord, error) {
	var c place.Coord
	if center := res.Get("center"); center.IsArray() {
		parts := center.Array()
		if len(parts) != 2 {
			return nil, fmt.Errorf("center must be [lon, lat], got %d values", len(parts))
		}
		c = place.Coord{Lon: parts[0].Float(), Lat: parts[1].Float()}
	} else {
		lat, lon := res.Get("lat"), res.Get("lon")
		if !lat.Exists() || !lon.Exists() {
			return nil, nil
		}
		c = place.Coord{Lat: lat.Float(), Lon: lon.Float()}
	}
	if math.Abs(c.Lat) > 90 || math.Abs(c.Lon) > 180 {
		return nil, fmt.Errorf("center out of range: lat=%g lon=%g", c.Lat, c.Lon)
	}
	return &c, nil
}

// parsePopulation reads a number or a numeric string; anything else counts as unknown.
func parsePopulation(v gjson.Result) int64 {
	switch v.Type {
	case gjson.Number:
		if v.Num < 0 {
			return 0
		}
		return v.Int()
	case gjson.String:
		s := strings.ReplaceAll(strings.TrimSpace(v.Str), " ", "")
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

func parseIsIn(v gjson.Result) []string {
	var parts []string
	switch {
	case v.IsArray():
		for _, p := range v.Array() {
			parts = append(parts, p.String())
		}
	case v.Type == gjson.String:
		parts = strings.FieldsFunc(v.Str, func(r rune) bool { return r == ';' || r == ',' })
	default:
		return nil
	}

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
