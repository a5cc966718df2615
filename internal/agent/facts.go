package agent

import (
	"regexp"
	"strings"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// factSimilarityThreshold is the Jaccard word-set similarity above which
// two candidate facts are considered duplicates.
const factSimilarityThreshold = 0.7

var (
	preferenceMarker = regexp.MustCompile(`(?i)^i\s+(prefer|like|want|use)\b`)
	numericPair      = regexp.MustCompile(`(?i)\b(port|record|file|user|item|row|line|byte|second|minute|hour|day)s?\s+\d+\b|\b\d+\s+(port|record|file|user|item|row|line|byte|second|minute|hour|day)s?\b`)
	completionMarker = regexp.MustCompile(`^(Done|Created|Updated|Added|Removed|Deleted|Fixed|Saved|Scheduled)\b`)
)

// ExtractFacts pulls stable statements out of a message window; used by
// compaction and by session archival to feed the facts store.
func ExtractFacts(msgs []models.Message) []string {
	return extractFacts(msgs)
}

// extractFacts pulls stable statements out of a message window: user
// preferences, number-plus-domain-word pairs, and assistant completion
// reports. Extraction is local and deterministic so repeated compactions
// of the same window agree.
func extractFacts(msgs []models.Message) []string {
	var candidates []string
	for _, msg := range msgs {
		for _, sentence := range splitSentences(msg.Content) {
			switch msg.Role {
			case models.RoleUser:
				if preferenceMarker.MatchString(sentence) || numericPair.MatchString(sentence) {
					candidates = append(candidates, sentence)
				}
			case models.RoleAssistant:
				if completionMarker.MatchString(sentence) || numericPair.MatchString(sentence) {
					candidates = append(candidates, sentence)
				}
			}
		}
	}
	return dedupeFacts(candidates)
}

// dedupeFacts drops candidates too similar to an earlier one. First
// occurrence wins, preserving order.
func dedupeFacts(candidates []string) []string {
	var out []string
	var sets []map[string]bool
	for _, c := range candidates {
		set := wordSet(c)
		dup := false
		for _, prev := range sets {
			if jaccard(set, prev) >= factSimilarityThreshold {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
			sets = append(sets, set)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, raw := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		s := strings.TrimSpace(raw)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(w, ".,;:!?\"'")] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
