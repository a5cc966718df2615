package forge

import (
	"testing"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

type stubIndex struct {
	enabled map[string]bool
}

func (s *stubIndex) HasEnabled(name string) bool { return s.enabled[name] }

func TestDetectGapsClustersFailures(t *testing.T) {
	d := NewDetector(nil)
	failures := []models.ToolFailure{
		{Tool: "csv_to_json", Error: "not supported"},
		{Tool: "csv_to_json", Error: "not supported"},
		{Tool: "csv_to_json", Error: "not supported"},
	}

	gaps := d.DetectGaps(failures, nil)
	if len(gaps) != 1 {
		t.Fatalf("gaps = %d, want 1", len(gaps))
	}
	gap := gaps[0]
	if gap.Frequency != 3 {
		t.Errorf("Frequency = %d, want 3", gap.Frequency)
	}
	if gap.Confidence < 0.6 {
		t.Errorf("Confidence = %v, want >= 0.6", gap.Confidence)
	}
	if gap.SuggestedName != "csv-to-json-fix" {
		t.Errorf("SuggestedName = %q", gap.SuggestedName)
	}
	if gap.Category != models.GapData {
		t.Errorf("Category = %q", gap.Category)
	}

	// Same inputs, same output.
	again := d.DetectGaps(failures, nil)
	if len(again) != 1 || again[0].SuggestedName != gap.SuggestedName || again[0].Confidence != gap.Confidence {
		t.Error("detection is not deterministic")
	}
}

func TestDetectGapsNormalizesVariableParts(t *testing.T) {
	d := NewDetector(nil)
	failures := []models.ToolFailure{
		{Tool: "file_read", Error: "open /tmp/a/b.txt: no such file"},
		{Tool: "file_read", Error: "open /var/data/c.txt: no such file"},
	}
	gaps := d.DetectGaps(failures, nil)
	if len(gaps) != 1 {
		t.Fatalf("gaps = %d, want 1 (paths should normalize together)", len(gaps))
	}
	if gaps[0].Frequency != 2 {
		t.Errorf("Frequency = %d", gaps[0].Frequency)
	}
}

func TestDetectGapsConfidenceCapped(t *testing.T) {
	d := NewDetector(nil)
	var failures []models.ToolFailure
	for i := 0; i < 20; i++ {
		failures = append(failures, models.ToolFailure{Tool: "t", Error: "same"})
	}
	gaps := d.DetectGaps(failures, nil)
	if gaps[0].Confidence != 0.95 {
		t.Errorf("Confidence = %v, want capped at 0.95", gaps[0].Confidence)
	}
}

func TestDetectGapsMergesSimilarIntents(t *testing.T) {
	d := NewDetector(nil)
	requests := []models.UserRequest{
		{Content: "please convert csv to json", Handled: false},
		{Content: "convert my csv file to json", Handled: false},
		{Content: "water the garden plants", Handled: false},
	}
	gaps := d.DetectGaps(nil, requests)
	if len(gaps) != 2 {
		t.Fatalf("gaps = %d, want 2 (similar intents merged): %+v", len(gaps), gaps)
	}
	// The merged cluster ranks first on frequency.
	if gaps[0].Frequency != 2 {
		t.Errorf("merged Frequency = %d, want 2", gaps[0].Frequency)
	}
}

func TestDetectGapsHintsOutweighErrors(t *testing.T) {
	d := NewDetector(nil)
	requests := []models.UserRequest{
		{Content: "play music in the kitchen", Handled: true, MissingCapability: "spotify playback control"},
	}
	gaps := d.DetectGaps(nil, requests)
	if len(gaps) != 1 {
		t.Fatalf("gaps = %d", len(gaps))
	}
	if got := gaps[0].Confidence; got < 0.6 {
		t.Errorf("hint confidence = %v, want >= 0.6", got)
	}
}

func TestDetectGapsSkipsHandledRequests(t *testing.T) {
	d := NewDetector(nil)
	requests := []models.UserRequest{
		{Content: "convert csv to json", Handled: true},
	}
	if gaps := d.DetectGaps(nil, requests); len(gaps) != 0 {
		t.Errorf("handled request produced gaps: %+v", gaps)
	}
}

func TestDetectGapsFiltersEnabledSkills(t *testing.T) {
	idx := &stubIndex{enabled: map[string]bool{"csv-to-json-fix": true}}
	d := NewDetector(idx)
	failures := []models.ToolFailure{
		{Tool: "csv_to_json", Error: "not supported"},
		{Tool: "weather", Error: "no api key"},
	}
	gaps := d.DetectGaps(failures, nil)
	if len(gaps) != 1 {
		t.Fatalf("gaps = %d, want 1 after filtering", len(gaps))
	}
	if gaps[0].SuggestedName == "csv-to-json-fix" {
		t.Error("covered gap not filtered")
	}
}

func TestDetectGapsSortedByScore(t *testing.T) {
	d := NewDetector(nil)
	failures := []models.ToolFailure{
		{Tool: "rare", Error: "x"},
		{Tool: "common", Error: "y"},
		{Tool: "common", Error: "y"},
		{Tool: "common", Error: "y"},
	}
	gaps := d.DetectGaps(failures, nil)
	if len(gaps) != 2 {
		t.Fatalf("gaps = %d", len(gaps))
	}
	if gaps[0].SuggestedName != "common-fix" {
		t.Errorf("first gap = %q, want highest score first", gaps[0].SuggestedName)
	}
}
