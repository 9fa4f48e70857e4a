package config

import (
	"fmt"
	"os"

	"github.com/dgallion1/lawsearch/internal/division"
	"gopkg.in/yaml.v3"
)

type vocabularyFile struct {
	Divisions []division.Entry `yaml:"divisions"`
}

// LoadVocabulary reads the division vocabulary from path. An empty path
// selects the built-in vocabulary.
func LoadVocabulary(path string) (*division.Vocabulary, error) {
	if path == "" {
		return division.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read divisions file: %w", err)
	}
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse divisions file %s: %w", path, err)
	}
	v, err := division.NewVocabulary(f.Divisions)
	if err != nil {
		return nil, fmt.Errorf("divisions file %s: %w", path, err)
	}
	return v, nil
}
