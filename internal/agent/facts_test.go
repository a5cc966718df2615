package agent

import (
	"testing"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

func TestExtractFacts(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleUser, Content: "I prefer dark mode. What time is it?"},
		{Role: models.RoleAssistant, Content: "Created 3 files in the workspace."},
		{Role: models.RoleUser, Content: "run it on port 9090 please"},
		{Role: models.RoleAssistant, Content: "It is noon."},
	}
	got := extractFacts(msgs)
	want := []string{
		"I prefer dark mode",
		"Created 3 files in the workspace",
		"run it on port 9090 please",
	}
	if len(got) != len(want) {
		t.Fatalf("facts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fact %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractFactsIgnoresChatter(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleUser, Content: "hello there! how are you?"},
		{Role: models.RoleAssistant, Content: "Doing well, thanks for asking."},
	}
	if got := extractFacts(msgs); len(got) != 0 {
		t.Errorf("facts = %v, want none", got)
	}
}

func TestDedupeFactsDropsNearDuplicates(t *testing.T) {
	got := dedupeFacts([]string{
		"I prefer dark mode for the editor",
		"I prefer dark mode for the editor please",
		"I prefer tabs over spaces",
	})
	if len(got) != 2 {
		t.Fatalf("facts = %v, want 2 entries", got)
	}
	if got[0] != "I prefer dark mode for the editor" {
		t.Errorf("first occurrence did not win: %q", got[0])
	}
}

func TestExtractFactsDeterministic(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleUser, Content: "I use vim. I want short answers. Save file 12 for me."},
	}
	a := extractFacts(msgs)
	b := extractFacts(msgs)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("fact %d differs across runs", i)
		}
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"one two three", "one two three", 1},
		{"one two", "three four", 0},
		{"", "", 1},
	}
	for _, tt := range tests {
		if got := jaccard(wordSet(tt.a), wordSet(tt.b)); got != tt.want {
			t.Errorf("jaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
