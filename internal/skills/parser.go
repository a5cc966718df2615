package skills

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SkillFilename is the expected filename for skill definitions.
	SkillFilename = "SKILL.md"

	frontmatterDelimiter = "---"
)

// ParseSkillFile parses a SKILL.md file into a Skill rooted at the file's
// directory.
func ParseSkillFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill file: %w", err)
	}
	return ParseSkill(data, filepath.Dir(path))
}

// ParseSkill parses SKILL.md content: YAML frontmatter describing the
// skill and its tools, then a markdown body of usage instructions.
func ParseSkill(data []byte, skillPath string) (*Skill, error) {
	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("split frontmatter: %w", err)
	}

	var skill Skill
	if err := yaml.Unmarshal(frontmatter, &skill); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if err := validateSkill(&skill); err != nil {
		return nil, err
	}

	for i := range skill.Tools {
		if len(skill.Tools[i].RawParameters) == 0 {
			continue
		}
		params, err := json.Marshal(skill.Tools[i].RawParameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s parameters: %w", skill.Tools[i].Name, err)
		}
		skill.Tools[i].Parameters = params
	}

	skill.Content = strings.TrimSpace(string(body))
	skill.Path = skillPath
	return &skill, nil
}

func validateSkill(s *Skill) error {
	if s.Name == "" {
		return fmt.Errorf("skill name is required")
	}
	for _, r := range s.Name {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return fmt.Errorf("skill name must be lowercase alphanumeric with hyphens: got %q", s.Name)
		}
	}
	if s.Description == "" {
		return fmt.Errorf("skill description is required")
	}
	seen := make(map[string]bool, len(s.Tools))
	for _, tool := range s.Tools {
		if tool.Name == "" {
			return fmt.Errorf("skill %s has a tool with no name", s.Name)
		}
		if seen[tool.Name] {
			return fmt.Errorf("skill %s declares tool %s twice", s.Name, tool.Name)
		}
		seen[tool.Name] = true
	}
	return nil
}

// splitFrontmatter separates YAML frontmatter from the markdown body.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var frontmatterLines []string
	foundClosing := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			foundClosing = true
			break
		}
		frontmatterLines = append(frontmatterLines, line)
	}
	if !foundClosing {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanner error: %w", err)
	}

	return []byte(strings.Join(frontmatterLines, "\n")), []byte(strings.Join(bodyLines, "\n")), nil
}
