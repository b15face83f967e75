package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nara-digital/newsingest/internal/article"
)

//go:embed defaults/sources.yaml
var defaultSources []byte

// SourcesFile is the YAML layout of the sources config:
//
//	allowedSources: [dailynews.lk]
//	localRelevanceKeywords: [fisheries]
//	sources:
//	  - id: dailynews
//	    url: https://...
type SourcesFile struct {
	AllowedSources         []string         `yaml:"allowedSources"`
	LocalRelevanceKeywords []string         `yaml:"localRelevanceKeywords"`
	Sources                []article.Source `yaml:"sources"`
}

// LoadSources reads the sources file at path, or the built-in list when path is empty.
func LoadSources(path string) (*SourcesFile, error) {
	data := defaultSources
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sources config: %w", err)
		}
		data = b
	}

	var sf SourcesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("parse sources config: %w", err)
	}
	return &sf, nil
}
