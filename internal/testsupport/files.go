package testsupport

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteTelemetryDump writes a synthetic telemetry CSV with the given number
// of samples. Paths ending in .gz are gzip compressed, matching real dumps.
func WriteTelemetryDump(t testing.TB, path, turbineID string, samples int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	var w *csv.Writer
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		defer gz.Close()
		w = csv.NewWriter(gz)
	} else {
		w = csv.NewWriter(f)
	}
	defer w.Flush()

	header := []string{
		"turbine_id", "device_id", "event_time",
		"rps", "voltage", "qx", "qy", "qz", "qw",
		"ax", "ay", "az", "temperature", "humidity", "pressure", "gas",
		"wind_speed",
	}
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < samples; i++ {
		phase := float64(i) / 25.0
		row := []string{
			turbineID,
			turbineID + "-dev",
			start.Add(time.Duration(i) * 100 * time.Millisecond).Format(time.RFC3339),
			fmt.Sprintf("%.4f", 1.5+0.3*math.Sin(phase)),
			fmt.Sprintf("%.1f", 3000+120*math.Cos(phase)),
			fmt.Sprintf("%.6f", 0.02*math.Sin(phase/3)),
			fmt.Sprintf("%.6f", 0.02*math.Cos(phase/3)),
			"0",
			fmt.Sprintf("%.6f", math.Sqrt(1-2*0.0004)),
			"0.1", "0.0", "9.8",
			"12.5", "60.0", "1013.0", "50000",
			fmt.Sprintf("%.3f", 5+1.5*math.Sin(phase/2)),
		}
		if err := w.Write(row); err != nil {
			t.Fatalf("write row %d: %v", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush %s: %v", path, err)
	}
}
