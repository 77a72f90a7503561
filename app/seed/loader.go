package seed

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ymatsuda/rankwatch/app/clock"
)

// Loader handles loading and validation of evaluation config seed files
type Loader struct {
	seedDir string
}

// NewLoader creates a new seed loader
func NewLoader(seedDir string) *Loader {
	return &Loader{seedDir: seedDir}
}

// LoadAll loads all YAML seed files from the seed directory. A missing
// directory is not an error; seeding is optional.
func (l *Loader) LoadAll() (map[string]*Config, error) {
	configs := make(map[string]*Config)

	if _, err := os.Stat(l.seedDir); os.IsNotExist(err) {
		return configs, nil
	}

	files, err := filepath.Glob(filepath.Join(l.seedDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.seedDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		config, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := Validate(config); err != nil {
			return nil, fmt.Errorf("invalid seed file %s: %w", file, err)
		}

		configs[file] = config
	}

	return configs, nil
}

func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}

// Validate applies the registration write-path rules to a seed config.
func Validate(config *Config) error {
	if config.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if config.PropertyURI == "" {
		return fmt.Errorf("property_uri is required")
	}
	if len(config.Items) == 0 {
		return fmt.Errorf("at least one item is required")
	}

	for i, item := range config.Items {
		if item.ContentItemID == "" {
			return fmt.Errorf("item %d: content_item_id is required", i)
		}
		if _, err := clock.ParseDate(item.BaseEvaluationDate); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if item.CycleDays < 1 || item.CycleDays > 365 {
			return fmt.Errorf("item %d: cycle_days must be between 1 and 365, got %d", i, item.CycleDays)
		}
		if item.EvaluationHour < 0 || item.EvaluationHour > 23 {
			return fmt.Errorf("item %d: evaluation_hour must be between 0 and 23, got %d", i, item.EvaluationHour)
		}
	}

	return nil
}
