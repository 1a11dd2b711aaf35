package telemetry

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Column names expected in raw telemetry dumps.
const (
	ColTurbineID = "turbine_id"
	ColDeviceID  = "device_id"
	ColEventTime = "event_time"
	ColRPS       = "rps"
	ColVoltage   = "voltage"
	ColQX        = "qx"
	ColQY        = "qy"
	ColQZ        = "qz"
	ColQW        = "qw"
	ColAccelX    = "ax"
	ColAccelY    = "ay"
	ColAccelZ    = "az"
	ColTemp      = "temperature"
	ColHumidity  = "humidity"
	ColPressure  = "pressure"
	ColGas       = "gas"
	ColWindSpeed = "wind_speed"
)

var requiredColumns = []string{
	ColTurbineID,
	ColEventTime,
	ColRPS,
	ColVoltage,
	ColQX,
	ColQY,
	ColQZ,
	ColQW,
	ColWindSpeed,
}

// Reader streams telemetry records from a CSV source, transparently
// decompressing gzip input. Streaming keeps multi-GiB dumps out of memory
// until windowing needs them.
type Reader struct {
	closer  io.Closer
	gzip    *gzip.Reader
	csv     *csv.Reader
	columns map[string]int
}

// Open prepares a telemetry reader for the file at path. Files ending in .gz
// are decompressed on the fly.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry dump: %w", err)
	}

	var raw io.Reader = file
	var gz *gzip.Reader
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err = gzip.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		raw = gz
	}

	reader := csv.NewReader(raw)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read telemetry header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for idx, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			_ = file.Close()
			return nil, fmt.Errorf("telemetry dump missing column %q", required)
		}
	}

	return &Reader{closer: file, gzip: gz, csv: reader, columns: columns}, nil
}

// Next returns the next record, or io.EOF when exhausted.
func (r *Reader) Next() (Record, error) {
	row, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("read telemetry row: %w", err)
	}

	rec := Record{
		TurbineID: r.cell(row, ColTurbineID),
		DeviceID:  r.cell(row, ColDeviceID),
		RPS:       r.numeric(row, ColRPS),
		Voltage:   r.numeric(row, ColVoltage),
		QX:        r.numeric(row, ColQX),
		QY:        r.numeric(row, ColQY),
		QZ:        r.numeric(row, ColQZ),
		QW:        r.numeric(row, ColQW),
		AccelX:    r.numeric(row, ColAccelX),
		AccelY:    r.numeric(row, ColAccelY),
		AccelZ:    r.numeric(row, ColAccelZ),
		Temp:      r.numeric(row, ColTemp),
		Humidity:  r.numeric(row, ColHumidity),
		Pressure:  r.numeric(row, ColPressure),
		Gas:       r.numeric(row, ColGas),
		WindSpeed: r.numeric(row, ColWindSpeed),
	}
	rec.EventTime = r.timestamp(row, ColEventTime)
	return rec, nil
}

// ReadAll drains the reader. Intended for moderate dumps and tests; the
// preprocess stage streams instead.
func (r *Reader) ReadAll() ([]Record, error) {
	records := make([]Record, 0, 1024)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// Close releases the underlying file handles.
func (r *Reader) Close() error {
	if r.gzip != nil {
		_ = r.gzip.Close()
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Reader) cell(row []string, column string) string {
	idx, ok := r.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (r *Reader) numeric(row []string, column string) float64 {
	raw := r.cell(row, column)
	if raw == "" {
		return math.NaN()
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return value
}

func (r *Reader) timestamp(row []string, column string) time.Time {
	raw := r.cell(row, column)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// Millisecond epochs are the norm in device logs.
		if epoch > 1e12 {
			return time.UnixMilli(epoch).UTC()
		}
		return time.Unix(epoch, 0).UTC()
	}
	return time.Time{}
}
