package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ca-srg/leakscope/internal/record"
)

// Source kinds understood by the registry.
const (
	KindOpenSearch = "opensearch"
	KindRediSearch = "redisearch"
)

// SourcesFile is the root of sources.yaml.
type SourcesFile struct {
	Sources []SourceDefinition `yaml:"sources" validate:"required,min=1,unique=Name,dive"`
}

// SourceDefinition declares one backing source.
type SourceDefinition struct {
	Name string `yaml:"name" validate:"required,max=64,excludesall=/ "`
	Kind string `yaml:"kind" validate:"required,oneof=opensearch redisearch"`
	// Indices are the OpenSearch index names or patterns to query.
	Indices []string `yaml:"indices" validate:"required_if=Kind opensearch,dive,required"`
	// Index is the RediSearch index name.
	Index string `yaml:"index" validate:"required_if=Kind redisearch"`
	// Fields are the text fields to match against; empty means the backend default.
	Fields []string     `yaml:"fields" validate:"dive,required"`
	Limit  int          `yaml:"limit" validate:"omitempty,min=1,max=1000"`
	Schema SchemaConfig `yaml:"schema"`
}

// SchemaConfig is the declarative field mapping for a source.
type SchemaConfig struct {
	IDField      string            `yaml:"id_field"`
	ScoreField   string            `yaml:"score_field"`
	ContentField string            `yaml:"content_field"`
	IDFrom       []string          `yaml:"id_from"`
	Fields       map[string]string `yaml:"fields"`
}

var validate = validator.New()

// LoadSources reads and validates a sources.yaml file.
func LoadSources(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates sources.yaml content.
func ParseSources(data []byte) (*SourcesFile, error) {
	var file SourcesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	if err := validate.Struct(&file); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, fmt.Errorf("invalid sources file: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return nil, fmt.Errorf("invalid sources file: %w", err)
	}

	for _, def := range file.Sources {
		for raw, key := range def.Schema.Fields {
			if !record.Field(key).Known() {
				return nil, fmt.Errorf("invalid sources file: source %s maps %q to unknown field %q", def.Name, raw, key)
			}
		}
	}

	return &file, nil
}
