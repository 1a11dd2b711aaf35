package telemetry_test

import (
	"compress/gzip"
	"math"
	"os"
	"path/filepath"
	"testing"

	"windsentry/internal/telemetry"
)

const sampleCSV = `turbine_id,device_id,event_time,rps,voltage,qx,qy,qz,qw,ax,ay,az,temperature,humidity,pressure,gas,wind_speed
T001,nano-1,2024-03-01T10:00:00Z,1.5,3024,0.01,0.02,0.03,0.99,0.1,0.2,9.8,24.5,40.1,1012.3,121000,4.2
T001,nano-1,2024-03-01T10:00:01Z,1.6,not-a-number,0.01,0.02,0.03,0.99,0.1,0.2,9.8,24.5,40.1,1012.3,121000,4.3
`

func writeSample(t *testing.T, name string, compress bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create sample: %v", err)
	}
	defer file.Close()
	if compress {
		gz := gzip.NewWriter(file)
		if _, err := gz.Write([]byte(sampleCSV)); err != nil {
			t.Fatalf("write gzip sample: %v", err)
		}
		if err := gz.Close(); err != nil {
			t.Fatalf("close gzip sample: %v", err)
		}
		return path
	}
	if _, err := file.WriteString(sampleCSV); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestReadAllPlainCSV(t *testing.T) {
	path := writeSample(t, "telemetry.csv", false)
	reader, err := telemetry.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reader.Close()

	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first.TurbineID != "T001" {
		t.Fatalf("unexpected turbine id %q", first.TurbineID)
	}
	if first.RPS != 1.5 || first.WindSpeed != 4.2 {
		t.Fatalf("unexpected numeric values: %+v", first)
	}
	if first.EventTime.IsZero() {
		t.Fatal("expected event time to parse")
	}
}

func TestGzipDumpAndMalformedCellsBecomeNaN(t *testing.T) {
	path := writeSample(t, "telemetry.csv.gz", true)
	reader, err := telemetry.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reader.Close()

	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !math.IsNaN(records[1].Voltage) {
		t.Fatalf("expected malformed voltage to be NaN, got %f", records[1].Voltage)
	}
}

func TestOpenRejectsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("turbine_id,rps\nT001,1.0\n"), 0o644); err != nil {
		t.Fatalf("write bad csv: %v", err)
	}
	if _, err := telemetry.Open(path); err == nil {
		t.Fatal("expected error for missing columns")
	}
}
