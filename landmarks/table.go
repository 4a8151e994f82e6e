// Package landmarks implements the optional prior tag-id -> point table
// (spec.md #3, "Prior landmark map"). The table is loaded once, at
// startup, and is immutable afterward: no core component mutates it.
package landmarks

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/mobilerobots/tagslam/geometry"
)

// Table is an immutable tag-id -> 2D point map. The zero value is an
// empty table (equivalent to prior-map mode being unavailable).
type Table struct {
	points map[uint64]geometry.Point
}

// Empty returns a Table with no entries.
func Empty() *Table {
	return &Table{points: map[uint64]geometry.Point{}}
}

// Get returns the prior position of tagID, if known.
func (t *Table) Get(tagID uint64) (geometry.Point, bool) {
	if t == nil {
		return geometry.Point{}, false
	}
	p, ok := t.points[tagID]
	return p, ok
}

// Has reports whether tagID has a prior position.
func (t *Table) Has(tagID uint64) bool {
	if t == nil {
		return false
	}
	_, ok := t.points[tagID]
	return ok
}

// Len returns the number of tags in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.points)
}

// IDs returns every tag id present in the table.
func (t *Table) IDs() []uint64 {
	if t == nil {
		return nil
	}
	out := make([]uint64, 0, len(t.points))
	for id := range t.points {
		out = append(out, id)
	}
	return out
}

// LoadCSV parses a "Prior landmark CSV" (spec.md #6: "id, x, y per
// row") from path. There is no header row. A malformed row is a config
// error (spec.md #7): the whole load fails rather than silently
// skipping a row, since a partially-loaded prior map could pass
// silently through the rest of the pipeline as "id unknown."
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening prior landmark csv %q", path)
	}
	defer f.Close()
	return parseCSV(f, path)
}

func parseCSV(r io.Reader, path string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	table := Empty()
	line := 0
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d", path, line)
		}

		id, err := strconv.ParseUint(record[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid tag id %q", path, line, record[0])
		}
		x, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid x %q", path, line, record[1])
		}
		y, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid y %q", path, line, record[2])
		}
		if _, dup := table.points[id]; dup {
			return nil, errors.Errorf("%s: line %d: duplicate tag id %d", path, line, id)
		}
		table.points[id] = geometry.Point{X: x, Y: y}
	}
	return table, nil
}
