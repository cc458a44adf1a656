package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"goldchecker/internal/gold"
)

func series(t *testing.T, n int) []gold.Snapshot {
	t.Helper()
	end := time.Date(2026, 5, 10, 12, 0, 0, 0, gold.Dubai())
	return gold.FallbackSeries(end, n)
}

func TestDownsampleKeepsEnds(t *testing.T) {
	points := series(t, 30)

	got := Downsample(points, 5)
	if len(got) != 5 {
		t.Fatalf("expected 5 points, got %d", len(got))
	}
	if got[0].BusinessDate != points[0].BusinessDate {
		t.Errorf("first point %s, want %s", got[0].BusinessDate, points[0].BusinessDate)
	}
	if got[4].BusinessDate != points[29].BusinessDate {
		t.Errorf("last point %s, want %s", got[4].BusinessDate, points[29].BusinessDate)
	}

	if len(Downsample(points, 0)) != 30 {
		t.Error("non-positive max should keep every point")
	}
	one := Downsample(points, 1)
	if len(one) != 2 || one[0].BusinessDate != points[0].BusinessDate || one[1].BusinessDate != "2026-05-10" {
		t.Errorf("max of one should still keep both ends, got %+v", one)
	}
	if single := Downsample(points[:1], 1); len(single) != 1 {
		t.Errorf("a single point is kept as is, got %d", len(single))
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	points := series(t, 2)
	if err := WriteCSV(&buf, points, []gold.Karat{gold.K24, gold.K18}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines: %q", len(lines), buf.String())
	}
	if lines[0] != "business_date,captured_at,source,k24,k18" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "2026-05-10,") || !strings.Contains(lines[2], ",fallback,") {
		t.Errorf("unexpected row %q", lines[2])
	}
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, series(t, 7), gold.ProviderKarats, PNGOptions{Title: "Gold", Width: 640, Height: 360}); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatal("output is not a PNG")
	}
}

func TestWritePNGSinglePoint(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, series(t, 1), []gold.Karat{gold.K24}, PNGOptions{}); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
}

func TestWritePNGEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, nil, gold.ProviderKarats, PNGOptions{}); err != ErrEmptySeries {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
}
