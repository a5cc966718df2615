package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

func msg(id string, role models.Role, content string, at time.Time) models.Message {
	return models.Message{ID: id, SessionID: "s1", Role: role, Content: content, CreatedAt: at}
}

func TestCompactShortHistoryUnchanged(t *testing.T) {
	now := time.Now()
	msgs := []models.Message{
		msg("a", models.RoleUser, "hello", now),
		msg("b", models.RoleAssistant, "hi there", now),
	}
	got := Compact(msgs)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("short history changed: %+v", got)
	}
}

func TestCompactKeepsLastTwoVerbatim(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msg("a", models.RoleUser, "set the port to 8080", base),
		msg("b", models.RoleAssistant, "Done, port 8080 is configured", base.Add(time.Second)),
		msg("c", models.RoleUser, "thanks", base.Add(2*time.Second)),
		msg("d", models.RoleAssistant, "any time", base.Add(3*time.Second)),
	}
	got := Compact(msgs)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[1].ID != "c" || got[2].ID != "d" {
		t.Errorf("last two not kept verbatim: %q %q", got[1].ID, got[2].ID)
	}

	summary := got[0]
	if summary.Role != models.RoleSystem {
		t.Errorf("summary role = %q", summary.Role)
	}
	if !strings.HasPrefix(summary.Content, SummaryMarker) {
		t.Errorf("summary content missing marker: %q", summary.Content)
	}
	if !strings.Contains(summary.Content, "Compacted 2 messages") {
		t.Errorf("summary missing count: %q", summary.Content)
	}
	chain, ok := summary.Metadata["parentIdChain"].([]string)
	if !ok || len(chain) != 2 {
		t.Fatalf("parentIdChain = %v", summary.Metadata["parentIdChain"])
	}
	if !strings.HasPrefix(chain[0], "s1:") {
		t.Errorf("chain entry = %q", chain[0])
	}
}

func TestCompactIsIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := make([]models.Message, 0, 6)
	for i, c := range []string{"one", "two", "three", "four", "five", "six"} {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, msg(c, role, c, base.Add(time.Duration(i)*time.Second)))
	}

	once := Compact(msgs)
	twice := Compact(once)
	if len(once) != len(twice) {
		t.Fatalf("len changed on recompaction: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID || once[i].Content != twice[i].Content {
			t.Errorf("message %d changed on recompaction", i)
		}
	}
}

func TestCompactCarriesFacts(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msg("a", models.RoleUser, "I prefer metric units for everything", base),
		msg("b", models.RoleAssistant, "Noted", base.Add(time.Second)),
		msg("c", models.RoleUser, "ok", base.Add(2*time.Second)),
		msg("d", models.RoleAssistant, "ok", base.Add(3*time.Second)),
	}
	got := Compact(msgs)
	if !strings.Contains(got[0].Content, "I prefer metric units") {
		t.Errorf("summary missing extracted fact: %q", got[0].Content)
	}
}
