package herald

import (
	"context"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/openclay/herald/internal/notices"
)

// Definitions is the YAML shape of a notice type definitions file.
type Definitions struct {
	Levels []LevelDefinition `yaml:"levels"`
	Types  []TypeDefinition  `yaml:"types"`
}

// LevelDefinition declares one severity classification.
type LevelDefinition struct {
	Slug        string `yaml:"slug"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// TypeDefinition declares one notice type.
type TypeDefinition struct {
	Label       string `yaml:"label"`
	Display     string `yaml:"display"`
	Description string `yaml:"description"`
	Slug        string `yaml:"slug"`
	Level       string `yaml:"level"`
	Default     int    `yaml:"default"`
}

// LoadDefinitions reads and parses a definitions file.
func LoadDefinitions(path string) (Definitions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("read definitions file: %w", err)
	}
	var defs Definitions
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return Definitions{}, fmt.Errorf("parse definitions file: %w", err)
	}
	return defs, nil
}

// RegisterDefinitions upserts every declared level and type.
func RegisterDefinitions(ctx context.Context, service *notices.Service, defs Definitions) error {
	for _, level := range defs.Levels {
		if err := service.CreateNoticeLevel(ctx, notices.NoticeLevel{
			Slug:        level.Slug,
			Title:       level.Title,
			Description: level.Description,
		}); err != nil {
			return fmt.Errorf("register notice level %s: %w", level.Slug, err)
		}
	}
	for _, noticeType := range defs.Types {
		if err := service.CreateNoticeType(ctx, notices.NoticeType{
			Label:       noticeType.Label,
			Display:     noticeType.Display,
			Description: noticeType.Description,
			Slug:        noticeType.Slug,
			Level:       noticeType.Level,
			Default:     noticeType.Default,
		}); err != nil {
			return fmt.Errorf("register notice type %s: %w", noticeType.Label, err)
		}
	}
	return nil
}
