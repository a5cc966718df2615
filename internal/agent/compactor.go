package agent

import (
	"fmt"
	"strings"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// SummaryMarker opens every compaction summary message.
const SummaryMarker = "CONVERSATION SUMMARY"

// keepVerbatim is how many trailing messages survive compaction intact.
const keepVerbatim = 2

// Compact folds all but the last two messages into one synthetic system
// message carrying role counts, extracted facts, and the lineage of every
// absorbed message. Compacting already-compact output returns it
// unchanged, so repeated compaction cannot shrink the window further.
func Compact(msgs []models.Message) []models.Message {
	if len(msgs) <= keepVerbatim {
		return msgs
	}

	older := msgs[:len(msgs)-keepVerbatim]
	recent := msgs[len(msgs)-keepVerbatim:]

	// Already compact: the only older message is a prior summary.
	if len(older) == 1 && isSummary(older[0]) {
		return msgs
	}

	counts := make(map[models.Role]int)
	chain := make([]string, 0, len(older))
	for _, m := range older {
		counts[m.Role]++
		chain = append(chain, fmt.Sprintf("%s:%d", m.SessionID, m.CreatedAt.UnixMilli()))
	}
	facts := extractFacts(older)

	var b strings.Builder
	b.WriteString(SummaryMarker)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Compacted %d messages", len(older))
	for _, role := range []models.Role{models.RoleUser, models.RoleAssistant, models.RoleSystem, models.RoleTool} {
		if counts[role] > 0 {
			fmt.Fprintf(&b, " | %s: %d", role, counts[role])
		}
	}
	if len(facts) > 0 {
		b.WriteString("\nFacts:")
		for _, f := range facts {
			b.WriteString("\n- ")
			b.WriteString(f)
		}
	}

	summary := models.Message{
		ID:        "summary-" + firstID(older),
		SessionID: older[0].SessionID,
		Role:      models.RoleSystem,
		Content:   b.String(),
		Metadata:  map[string]any{"parentIdChain": chain},
		CreatedAt: older[len(older)-1].CreatedAt,
	}

	out := make([]models.Message, 0, 1+keepVerbatim)
	out = append(out, summary)
	return append(out, recent...)
}

func isSummary(m models.Message) bool {
	return m.Role == models.RoleSystem && strings.HasPrefix(m.Content, SummaryMarker)
}

func firstID(msgs []models.Message) string {
	if len(msgs) > 0 {
		return msgs[0].ID
	}
	return "empty"
}
