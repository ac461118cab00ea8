package levels

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/happyprime/alertbar/pkg/model"
)

// seedFile is the on-disk shape of a severity level seed file.
type seedFile struct {
	Levels []seedLevel `yaml:"levels"`
}

type seedLevel struct {
	ID      string `yaml:"id"`
	Label   string `yaml:"label"`
	Rank    int    `yaml:"rank"`
	Default bool   `yaml:"default"`
}

// Seed provisions levels from a YAML file into an empty registry. A
// registry that already has levels is left untouched, so running serve
// repeatedly does not duplicate or reorder anything.
func (r *Registry) Seed(ctx context.Context, path string) error {
	existing, err := r.List(ctx)
	if err != nil {
		return fmt.Errorf("check existing levels: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	var defaultID string
	for _, entry := range seed.Levels {
		if entry.Label == "" {
			return fmt.Errorf("seed level %q: label is required", entry.ID)
		}
		level := &model.SeverityLevel{
			ID:    entry.ID,
			Label: entry.Label,
			Rank:  entry.Rank,
		}
		if err := r.Create(ctx, level); err != nil {
			return fmt.Errorf("seed level %q: %w", entry.Label, err)
		}
		if entry.Default {
			if defaultID != "" {
				return fmt.Errorf("seed file marks more than one default level")
			}
			defaultID = level.ID
		}
	}

	if defaultID != "" {
		if err := r.SetDefault(ctx, defaultID); err != nil {
			return fmt.Errorf("seed default level: %w", err)
		}
	}

	r.logger.Info("seeded severity levels", "count", len(seed.Levels), "path", path)
	return nil
}
