package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(FormatText)

	if err := f.FormatTo(&buf, "3 documents rendered"); err != nil {
		t.Fatalf("FormatTo: %v", err)
	}
	if got := buf.String(); got != "3 documents rendered\n" {
		t.Errorf("output = %q", got)
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(FormatJSON)

	data := map[string]int{"pages": 12}
	if err := f.FormatTo(&buf, data); err != nil {
		t.Fatalf("FormatTo: %v", err)
	}

	var decoded map[string]int
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["pages"] != 12 {
		t.Errorf("decoded = %v", decoded)
	}
	if !strings.Contains(buf.String(), "  ") {
		t.Error("JSON output should be indented")
	}
}

func TestNewFormatterUnknownFallsBackToText(t *testing.T) {
	if _, ok := NewFormatter(OutputFormat("yaml")).(*TextFormatter); !ok {
		t.Error("unknown format should fall back to text")
	}
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("engines", "at least one engine required")
	if got := err.Error(); got != "config error in engines: at least one engine required" {
		t.Errorf("Error() = %q", got)
	}

	bare := NewConfigError("", "file not found")
	if got := bare.Error(); got != "config error: file not found" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRenderError(t *testing.T) {
	err := NewRenderError("report.html", "all engines failed")
	if got := err.Error(); !strings.Contains(got, "report.html") || !strings.Contains(got, "all engines failed") {
		t.Errorf("Error() = %q", got)
	}
}

func TestProgressReporter(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf)

	p.Start(4)
	p.Update(2)
	p.Finish()

	out := buf.String()
	if !strings.Contains(out, "(2/4)") {
		t.Errorf("progress output missing midpoint: %q", out)
	}
	if !strings.Contains(out, "(4/4)") {
		t.Errorf("progress output missing completion: %q", out)
	}
	if !strings.Contains(out, "100.0%") {
		t.Errorf("progress output missing percentage: %q", out)
	}
}

func TestProgressReporterError(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf)

	p.Start(3)
	p.Error(errors.New("chromium crashed"))
	p.Update(2)

	out := buf.String()
	if !strings.Contains(out, "chromium crashed") {
		t.Errorf("error not reported: %q", out)
	}
	if !strings.Contains(out, "1 failed") {
		t.Errorf("failure count missing from bar: %q", out)
	}
}
