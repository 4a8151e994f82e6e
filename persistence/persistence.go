// Package persistence provides reference CSV adapters for the engine's
// file inputs and outputs (spec.md #6 CSV logs and landmark CSV, plus
// recorded sessions and camera extrinsics); none of its types implement
// a tagslam/ports interface. It is
// grounded on landmarks/table.go's encoding/csv idiom and error style
// (github.com/pkg/errors, malformed rows are fatal at load time).
// These are reference (non-core) implementations: cmd/tagslamd wires
// them in so the engine is runnable end-to-end without a live
// transport, but nothing in tagslam/engine imports this package
// directly.
package persistence

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/mobilerobots/tagslam/geometry"
)

// OdomLog appends (time, x, y, theta) rows to a CSV file, matching
// spec.md #6's "CSV logs: raw odom and refined odom, each with header
// time,x,y,theta". One OdomLog instance is used per stream (raw vs
// refined); the caller decides which.
type OdomLog struct {
	f *os.File
	w *csv.Writer
}

// NewOdomLog opens (or creates) path and writes the header row if the
// file is new.
func NewOdomLog(path string) (*OdomLog, error) {
	info, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening odom log %q", path)
	}
	w := csv.NewWriter(f)
	if statErr != nil || info.Size() == 0 {
		if err := w.Write([]string{"time", "x", "y", "theta"}); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "writing header to %q", path)
		}
		w.Flush()
	}
	return &OdomLog{f: f, w: w}, nil
}

// Append writes one (time, x, y, theta) row, flushing immediately so a
// crash mid-run does not lose the last sample.
func (l *OdomLog) Append(unixSeconds float64, pose geometry.Pose) error {
	row := []string{
		strconv.FormatFloat(unixSeconds, 'f', -1, 64),
		strconv.FormatFloat(pose.X, 'f', -1, 64),
		strconv.FormatFloat(pose.Y, 'f', -1, 64),
		strconv.FormatFloat(pose.Theta, 'f', -1, 64),
	}
	if err := l.w.Write(row); err != nil {
		return errors.Wrap(err, "writing odom log row")
	}
	l.w.Flush()
	return l.w.Error()
}

// Close flushes and closes the underlying file.
func (l *OdomLog) Close() error {
	l.w.Flush()
	return l.f.Close()
}

// LandmarkRecord is one row of the landmark table CSV (spec.md #6:
// "id, x, y per row").
type LandmarkRecord struct {
	ID       uint64
	Position geometry.Point
}

// SaveLandmarkCSV writes records to path with no header, matching the
// format landmarks.LoadCSV expects on the next run (spec.md #6
// pathtosavelandmarkcsv / pathtoloadlandmarkcsv round trip).
func SaveLandmarkCSV(path string, records []LandmarkRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating landmark csv %q", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, r := range records {
		row := []string{
			fmt.Sprintf("%d", r.ID),
			strconv.FormatFloat(r.Position.X, 'f', -1, 64),
			strconv.FormatFloat(r.Position.Y, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return errors.Wrapf(err, "writing landmark row for id %d", r.ID)
		}
	}
	w.Flush()
	return w.Error()
}

// OdomSample is one row of a recorded odometry session CSV, matching
// the header OdomLog writes ("time,x,y,theta").
type OdomSample struct {
	Time float64
	Pose geometry.Pose
}

// ReadOdomCSV parses a recorded odometry session so cmd/tagslamd run can
// drive the engine off a file instead of a live transport. The header
// row is required and skipped; a malformed data row fails the whole
// load, matching landmarks.LoadCSV's "no silent partial load" stance.
func ReadOdomCSV(path string) ([]OdomSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening odom session csv %q", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		return nil, errors.Wrapf(err, "%s: reading header", path)
	}

	var samples []OdomSample
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d", path, line)
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid time %q", path, line, record[0])
		}
		x, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid x %q", path, line, record[1])
		}
		y, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid y %q", path, line, record[2])
		}
		theta, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid theta %q", path, line, record[3])
		}
		samples = append(samples, OdomSample{Time: t, Pose: geometry.NewPose(x, y, theta)})
	}
	return samples, nil
}

// DetectionSample is one row of a recorded per-camera tag-detection
// session CSV ("time,camera,tag_id,x,y"), position given in the
// camera's own frame.
type DetectionSample struct {
	Time     float64
	Camera   string
	TagID    uint64
	Position geometry.Point
}

// ReadDetectionCSV parses a recorded detection session the same way
// ReadOdomCSV parses odometry: header required and skipped, malformed
// rows fail the whole load.
func ReadDetectionCSV(path string) ([]DetectionSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening detection session csv %q", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 5
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		return nil, errors.Wrapf(err, "%s: reading header", path)
	}

	var samples []DetectionSample
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d", path, line)
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid time %q", path, line, record[0])
		}
		tagID, err := strconv.ParseUint(record[2], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid tag_id %q", path, line, record[2])
		}
		x, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid x %q", path, line, record[3])
		}
		y, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid y %q", path, line, record[4])
		}
		samples = append(samples, DetectionSample{
			Time:     t,
			Camera:   record[1],
			TagID:    tagID,
			Position: geometry.Point{X: x, Y: y},
		})
	}
	return samples, nil
}

// ExtrinsicEntry is one row of a static-transform CSV: a camera name
// plus the 3D robot_frame -> camera translation and a rotated z-axis
// vector, matching the two r3.Vector values
// ports.StaticTransformLookup returns.
type ExtrinsicEntry struct {
	Camera       string
	Translation  r3.Vector
	RotatedZAxis r3.Vector
}

// LoadExtrinsicsCSV parses a "camera,tx,ty,tz,zx,zy,zz" static-transform
// table. This stands in for a live TF lookup (spec.md #6
// StaticTransformLookup): a calibration process may still be writing
// this file when cmd/tagslamd starts, which is why callers retry with a
// bounded backoff rather than treating a missing/incomplete file as
// immediately fatal.
func LoadExtrinsicsCSV(path string) ([]ExtrinsicEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening extrinsics csv %q", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 7
	reader.TrimLeadingSpace = true

	var entries []ExtrinsicEntry
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
		vals := make([]float64, 6)
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: line %d: invalid value %q", path, line, field)
			}
			vals[i] = v
		}
		entries = append(entries, ExtrinsicEntry{
			Camera:       record[0],
			Translation:  r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]},
			RotatedZAxis: r3.Vector{X: vals[3], Y: vals[4], Z: vals[5]},
		})
	}
	return entries, nil
}
