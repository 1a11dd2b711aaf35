package main

import (
	"strings"
	"testing"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Dataset", "Status"},
		[][]string{{"1", "turbine-a"}},
		[]columnAlignment{alignRight, alignLeft, alignLeft},
	)
	if !strings.Contains(out, "ID") || !strings.Contains(out, "turbine-a") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
	lines := strings.Split(out, "\n")
	width := len([]rune(lines[0]))
	for _, line := range lines {
		if len([]rune(line)) != width {
			t.Fatalf("misaligned table row:\n%s", out)
		}
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if out := renderTable(nil, nil, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
