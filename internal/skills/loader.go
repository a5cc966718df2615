package skills

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/sandbox"
)

// Dirs names the search roots, one per trust level. Each root holds one
// directory per skill containing a SKILL.md. Empty roots are skipped.
type Dirs struct {
	Bundled    string
	Curated    string
	Forged     string
	Quarantine string
}

// Loader discovers skills on disk. Later sources shadow earlier ones by
// name: bundled < curated < forged.
type Loader struct {
	dirs   Dirs
	logger *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger.With("component", "skills") }
}

// NewLoader creates a loader over the given search roots.
func NewLoader(dirs Dirs, opts ...LoaderOption) *Loader {
	l := &Loader{dirs: dirs, logger: slog.Default().With("component", "skills")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load scans every root and returns the validated skills. Invalid
// definitions and entry points that escape their skill directory are
// skipped with a warning, never fatal: one broken skill must not take the
// rest down.
func (l *Loader) Load() ([]Skill, error) {
	byName := make(map[string]Skill)
	order := []struct {
		dir     string
		source  SourceType
		enabled bool
	}{
		{l.dirs.Bundled, SourceBundled, true},
		{l.dirs.Curated, SourceCurated, true},
		{l.dirs.Forged, SourceForged, true},
		{l.dirs.Quarantine, SourceForged, false},
	}

	for _, root := range order {
		if root.dir == "" {
			continue
		}
		found, err := l.loadRoot(root.dir, root.source, root.enabled)
		if err != nil {
			return nil, err
		}
		for _, skill := range found {
			if prev, ok := byName[skill.Name]; ok {
				l.logger.Debug("skill shadowed", "name", skill.Name,
					"shadowed_source", prev.Source, "winning_source", skill.Source)
			}
			byName[skill.Name] = skill
		}
	}

	out := make([]Skill, 0, len(byName))
	for _, skill := range byName {
		out = append(out, skill)
	}
	return out, nil
}

func (l *Loader) loadRoot(root string, source SourceType, enabled bool) ([]Skill, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read skill root %s: %w", root, err)
	}

	var out []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		definition := filepath.Join(dir, SkillFilename)
		if _, err := os.Stat(definition); err != nil {
			continue
		}

		skill, err := ParseSkillFile(definition)
		if err != nil {
			l.logger.Warn("skipping invalid skill", "dir", dir, "error", err)
			continue
		}
		skill.Source = source
		skill.Enabled = enabled

		if err := validateEntryPoints(skill); err != nil {
			l.logger.Warn("skipping skill with bad entry point", "name", skill.Name, "error", err)
			continue
		}
		out = append(out, *skill)
	}
	return out, nil
}

// validateEntryPoints resolves every declared entry point and rejects the
// skill if any escapes the skill directory.
func validateEntryPoints(skill *Skill) error {
	for _, tool := range skill.Tools {
		if tool.EntryPoint == "" {
			continue
		}
		if _, err := sandbox.ResolveEntryPoint(skill.Path, tool.EntryPoint); err != nil {
			return fmt.Errorf("tool %s: %w", tool.Name, err)
		}
	}
	return nil
}
