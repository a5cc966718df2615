package forge

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Confidence scoring constants: clusters inferred from tool errors start
// lower than explicit missing-capability hints; every extra occurrence
// adds weight up to the cap.
const (
	baseErrorConfidence = 0.3
	baseHintConfidence  = 0.6
	duplicateBonus      = 0.1
	confidenceCap       = 0.95
)

// superClusterDice is the bigram Dice threshold at which two intents are
// considered the same ask phrased differently.
const superClusterDice = 0.5

// SkillIndex answers whether an enabled skill already covers a name.
// Satisfied by *skills.Registry.
type SkillIndex interface {
	HasEnabled(name string) bool
}

// Detector turns failure and request history into ranked capability gaps.
type Detector struct {
	skills SkillIndex
}

// NewDetector creates a detector. skills may be nil, in which case no
// gap is filtered as already covered.
func NewDetector(skills SkillIndex) *Detector {
	return &Detector{skills: skills}
}

type cluster struct {
	key        string
	label      string
	examples   []string
	count      int
	base       float64
	sourceTool string
}

// DetectGaps clusters the inputs and returns gaps ranked by
// confidence × frequency, excluding gaps an enabled skill already covers.
func (d *Detector) DetectGaps(failures []models.ToolFailure, requests []models.UserRequest) []models.CapabilityGap {
	clusters := d.clusterFailures(failures)
	clusters = append(clusters, d.clusterRequests(requests)...)

	gaps := make([]models.CapabilityGap, 0, len(clusters))
	for _, c := range clusters {
		confidence := c.base + duplicateBonus*float64(c.count)
		if confidence > confidenceCap {
			confidence = confidenceCap
		}
		name := suggestName(c)
		if d.skills != nil && d.skills.HasEnabled(name) {
			continue
		}
		gaps = append(gaps, models.CapabilityGap{
			Category:      categorize(c),
			Description:   c.label,
			Examples:      c.examples,
			Frequency:     c.count,
			Confidence:    confidence,
			SuggestedName: name,
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].Confidence*float64(gaps[i].Frequency) > gaps[j].Confidence*float64(gaps[j].Frequency)
	})
	return gaps
}

// clusterFailures groups failures by (tool, normalized error).
func (d *Detector) clusterFailures(failures []models.ToolFailure) []cluster {
	byKey := make(map[string]*cluster)
	var order []string
	for _, f := range failures {
		norm := NormalizeError(f.Error)
		key := f.Tool + "\x00" + norm
		c, ok := byKey[key]
		if !ok {
			c = &cluster{
				key:        key,
				label:      fmt.Sprintf("tool %s keeps failing: %s", f.Tool, norm),
				base:       baseErrorConfidence,
				sourceTool: f.Tool,
			}
			byKey[key] = c
			order = append(order, key)
		}
		c.count++
		if len(c.examples) < 5 {
			c.examples = append(c.examples, f.Error)
		}
	}
	out := make([]cluster, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// clusterRequests groups unhandled requests by intent, then merges
// intents whose bigram Dice coefficient crosses the threshold. The
// merged cluster keeps its longest member's intent as the label.
func (d *Detector) clusterRequests(requests []models.UserRequest) []cluster {
	byIntent := make(map[string]*cluster)
	var order []string
	for _, r := range requests {
		if r.Handled && r.MissingCapability == "" {
			continue
		}
		base := baseErrorConfidence
		text := r.Content
		if r.MissingCapability != "" {
			base = baseHintConfidence
			text = r.MissingCapability
		}
		intent := NormalizeIntent(text)
		if intent == "" {
			continue
		}
		c, ok := byIntent[intent]
		if !ok {
			c = &cluster{key: intent, label: intent, base: base}
			byIntent[intent] = c
			order = append(order, intent)
		}
		c.count++
		if base > c.base {
			c.base = base
		}
		if len(c.examples) < 5 {
			c.examples = append(c.examples, r.Content)
		}
	}

	// Super-cluster pass: fold each intent into the first earlier intent
	// it is close enough to.
	merged := make([]*cluster, 0, len(order))
	for _, intent := range order {
		c := byIntent[intent]
		absorbed := false
		for _, prev := range merged {
			if diceCoefficient(c.key, prev.key) >= superClusterDice {
				prev.count += c.count
				prev.examples = append(prev.examples, c.examples...)
				if len(prev.examples) > 5 {
					prev.examples = prev.examples[:5]
				}
				if c.base > prev.base {
					prev.base = c.base
				}
				if len(c.label) > len(prev.label) {
					prev.label = c.label
				}
				absorbed = true
				break
			}
		}
		if !absorbed {
			merged = append(merged, c)
		}
	}

	out := make([]cluster, 0, len(merged))
	for _, c := range merged {
		out = append(out, *c)
	}
	return out
}

var nameSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// suggestName derives a deterministic skill name from the cluster.
func suggestName(c cluster) string {
	source := c.sourceTool
	if source == "" {
		toks := strings.Fields(c.label)
		if len(toks) > 3 {
			toks = toks[:3]
		}
		source = strings.Join(toks, "-")
	}
	name := nameSanitizer.ReplaceAllString(strings.ToLower(source), "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "capability"
	}
	if c.sourceTool != "" {
		name += "-fix"
	}
	return name
}

// categoryKeywords maps signal words found in cluster text to gap
// categories. First hit in table order wins.
var categoryKeywords = []struct {
	category models.GapCategory
	words    []string
}{
	{models.GapFile, []string{"file", "directory", "folder", "path", "read", "write"}},
	{models.GapStorage, []string{"database", "db", "store", "save", "cache", "persist"}},
	{models.GapNetwork, []string{"http", "url", "fetch", "download", "upload", "api", "request", "network"}},
	{models.GapAutomation, []string{"schedule", "cron", "remind", "reminder", "automate", "every", "daily", "weekly"}},
	{models.GapSystem, []string{"shell", "command", "process", "exec", "system", "env"}},
	{models.GapData, []string{"csv", "json", "xml", "yaml", "parse", "convert", "format", "data", "transform"}},
}

func categorize(c cluster) models.GapCategory {
	text := strings.ToLower(c.label + " " + strings.Join(c.examples, " ") + " " + c.sourceTool)
	for _, entry := range categoryKeywords {
		for _, w := range entry.words {
			if strings.Contains(text, w) {
				return entry.category
			}
		}
	}
	return models.GapOther
}
