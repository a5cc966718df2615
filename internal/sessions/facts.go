package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// maxFactsPerSender bounds the stored facts per sender; older facts are
// dropped first.
const maxFactsPerSender = 50

// Facts is a small persistent store of stable per-sender statements,
// fed by compaction and read back during prompt assembly. Backed by one
// JSON file; writes are atomic (temp file + rename).
type Facts struct {
	path   string
	logger *slog.Logger

	mu          sync.Mutex
	bySenderKey map[string][]string
}

// OpenFacts loads (or initializes) the facts file at path.
func OpenFacts(path string, logger *slog.Logger) (*Facts, error) {
	f := &Facts{
		path:        path,
		logger:      logger.With("component", "sessions"),
		bySenderKey: make(map[string][]string),
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read facts file: %w", err)
	}
	if err := json.Unmarshal(data, &f.bySenderKey); err != nil {
		return nil, fmt.Errorf("parse facts file %s: %w", path, err)
	}
	return f, nil
}

// Facts returns the sender's stored facts, oldest first.
func (f *Facts) Facts(_ context.Context, channel models.ChannelType, sender string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bySenderKey[factKey(channel, sender)]...)
}

// Add appends new facts for the sender, skipping exact duplicates, and
// persists the store.
func (f *Facts) Add(channel models.ChannelType, sender string, facts []string) error {
	if len(facts) == 0 {
		return nil
	}
	key := factKey(channel, sender)

	f.mu.Lock()
	defer f.mu.Unlock()

	existing := f.bySenderKey[key]
	seen := make(map[string]bool, len(existing))
	for _, fact := range existing {
		seen[fact] = true
	}
	for _, fact := range facts {
		if fact == "" || seen[fact] {
			continue
		}
		existing = append(existing, fact)
		seen[fact] = true
	}
	if n := len(existing); n > maxFactsPerSender {
		existing = existing[n-maxFactsPerSender:]
	}
	f.bySenderKey[key] = existing
	return f.saveLocked()
}

func (f *Facts) saveLocked() error {
	data, err := json.MarshalIndent(f.bySenderKey, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create facts dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write facts file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace facts file: %w", err)
	}
	return nil
}

func factKey(channel models.ChannelType, sender string) string {
	return string(channel) + ":" + sender
}
