package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	domain "github.com/bryanwahyu/game-advisor/internal/domain/rules"
)

// YAMLSource loads rule files from a directory. The default file for a
// domain is <dir>/<domain>.yaml; a request may name extra files on top.
type YAMLSource struct {
	dir string
}

func NewYAMLSource(dir string) *YAMLSource {
	return &YAMLSource{dir: dir}
}

type ruleFile struct {
	Rules []domain.Rule `yaml:"rules"`
}

// LoadRules implements rules.Source. A missing default file is not an
// error (not every domain ships rules); a named file that is absent is.
func (s *YAMLSource) LoadRules(ctx context.Context, gameDomain string, files []string) ([]domain.Rule, error) {
	_ = ctx

	var out []domain.Rule

	if gameDomain != "" {
		defaultPath := filepath.Join(s.dir, slug(gameDomain)+".yaml")
		loaded, err := s.loadFile(defaultPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		out = append(out, loaded...)
	}

	for _, name := range files {
		loaded, err := s.loadFile(filepath.Join(s.dir, filepath.Base(name)))
		if err != nil {
			return nil, fmt.Errorf("rule file %s: %w", name, err)
		}
		out = append(out, loaded...)
	}
	return out, nil
}

func (s *YAMLSource) loadFile(path string) ([]domain.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return f.Rules, nil
}

func slug(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))
}
