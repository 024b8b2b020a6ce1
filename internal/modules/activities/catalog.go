package activities

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of the activity catalog seed.
//
//	activities:
//	  - id: 1
//	    name: Field repair
//	    availability: AVAILABLE
//	    generates_income: INCOME
//	    billing_category: BILLABLE
type catalogFile struct {
	Activities []catalogEntry `yaml:"activities"`
}

type catalogEntry struct {
	ID              int64  `yaml:"id"`
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Availability    string `yaml:"availability"`
	GeneratesIncome string `yaml:"generates_income"`
	BillingCategory string `yaml:"billing_category"`
}

// ParseCatalog decodes a YAML catalog. Every axis must hold a known value.
func ParseCatalog(data []byte) ([]ActivityType, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse activity catalog: %w", err)
	}

	seen := make(map[int64]bool, len(file.Activities))
	result := make([]ActivityType, 0, len(file.Activities))
	for i, e := range file.Activities {
		if e.ID <= 0 {
			return nil, fmt.Errorf("activity catalog entry %d: id must be positive", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("activity catalog entry %d: duplicate id %d", i, e.ID)
		}
		seen[e.ID] = true

		a, err := ParseAvailability(e.Availability)
		if err != nil {
			return nil, fmt.Errorf("activity catalog entry %q: %w", e.Name, err)
		}
		g, err := ParseIncomeGeneration(e.GeneratesIncome)
		if err != nil {
			return nil, fmt.Errorf("activity catalog entry %q: %w", e.Name, err)
		}
		b, err := ParseBillingCategory(e.BillingCategory)
		if err != nil {
			return nil, fmt.Errorf("activity catalog entry %q: %w", e.Name, err)
		}

		t := NewActivityType(e.ID, e.Name, e.Description, a, g, b)
		if err := t.Validate(); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}

// LoadCatalogFile reads and parses a YAML catalog from disk.
func LoadCatalogFile(path string) ([]ActivityType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read activity catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// Seed upserts every catalog entry.
func Seed(ctx context.Context, repo *Repository, catalog []ActivityType) error {
	for _, t := range catalog {
		if err := repo.Upsert(ctx, t); err != nil {
			return err
		}
	}
	repo.log.Info().Int("count", len(catalog)).Msg("Activity catalog seeded")
	return nil
}
