// Package forge detects capability gaps from operational history, plans
// skills to fill them, and gates generated skills behind their own tests.
package forge

import (
	"regexp"
	"strings"
)

// Placeholder tokens substituted during error normalization. Normalizing
// an already-normalized string is a no-op, so cluster keys are stable.
const (
	tokenPath   = "<PATH>"
	tokenNum    = "<NUM>"
	tokenURL    = "<URL>"
	tokenQuoted = "<LIT>"
)

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s"']+`)
	pathPattern   = regexp.MustCompile(`(?:/[\w.-]+){2,}`)
	quotedPattern = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	numPattern    = regexp.MustCompile(`\b\d{2,}\b`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// NormalizeError collapses the variable parts of an error message
// (URLs, absolute paths, quoted literals, multi-digit numbers) to
// placeholders so failures of the same kind compare equal.
func NormalizeError(msg string) string {
	out := urlPattern.ReplaceAllString(msg, tokenURL)
	out = pathPattern.ReplaceAllString(out, tokenPath)
	out = quotedPattern.ReplaceAllString(out, tokenQuoted)
	out = numPattern.ReplaceAllString(out, tokenNum)
	out = spacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// stopWords is frozen at init so identical inputs always produce
// identical intents. It covers common English function words plus the
// conversational fillers assistants see constantly.
var stopWords = map[string]bool{}

func init() {
	for _, w := range []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else",
		"i", "me", "my", "you", "your", "we", "our", "it", "its", "this", "that", "these", "those",
		"is", "are", "was", "were", "be", "been", "being", "am",
		"do", "does", "did", "have", "has", "had", "will", "would", "can", "could", "should", "shall", "may", "might", "must",
		"to", "of", "in", "on", "at", "by", "for", "with", "from", "into", "about", "as",
		"not", "no", "so", "just", "some", "any", "all",
		"what", "when", "where", "which", "who", "how", "why",
		"hello", "hi", "hey", "help", "thanks", "thank", "please",
	} {
		stopWords[w] = true
	}
}

// maxIntentTokens truncates an intent to its leading content words.
const maxIntentTokens = 6

var punctPattern = regexp.MustCompile(`[^\w\s]`)

// NormalizeIntent reduces a user request to its intent: lower-cased,
// punctuation stripped, stop words removed, truncated to the first six
// remaining tokens.
func NormalizeIntent(content string) string {
	cleaned := punctPattern.ReplaceAllString(strings.ToLower(content), " ")
	var kept []string
	for _, tok := range strings.Fields(cleaned) {
		if stopWords[tok] {
			continue
		}
		kept = append(kept, tok)
		if len(kept) == maxIntentTokens {
			break
		}
	}
	return strings.Join(kept, " ")
}

// diceCoefficient measures character-bigram overlap between two strings,
// in [0,1]. Used to merge near-identical intents into one super-cluster.
func diceCoefficient(a, b string) float64 {
	if a == b {
		return 1
	}
	ab, bb := bigrams(a), bigrams(b)
	if len(ab) == 0 || len(bb) == 0 {
		return 0
	}
	matches := 0
	for bg, n := range ab {
		if m := bb[bg]; m > 0 {
			if n < m {
				matches += n
			} else {
				matches += m
			}
		}
	}
	total := 0
	for _, n := range ab {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	return 2 * float64(matches) / float64(total)
}

func bigrams(s string) map[string]int {
	out := make(map[string]int)
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])]++
	}
	return out
}
