package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

// LoadPolicy reads the base retrieval settings from a YAML file. An
// empty path yields the built-in defaults; a missing or malformed file
// is an error so an operator typo cannot silently revert the policy.
func LoadPolicy(path string) (domain.RetrievalSettings, error) {
	settings := domain.DefaultRetrievalSettings()
	if path == "" {
		return settings, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RetrievalSettings{}, fmt.Errorf("read retrieval policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return domain.RetrievalSettings{}, fmt.Errorf("parse retrieval policy: %w", err)
	}
	return settings, nil
}
