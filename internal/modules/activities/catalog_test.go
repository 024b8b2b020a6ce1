package activities

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/aristath/techclock/internal/testing"
)

const sampleCatalog = `
activities:
  - id: 10
    name: Field repair
    description: On-site repair against a service order
    availability: AVAILABLE
    generates_income: INCOME
    billing_category: BILLABLE
  - id: 11
    name: Travel
    availability: AVAILABLE
    generates_income: NO_INCOME
    billing_category: NON_BILLABLE
  - id: 12
    name: Lunch
    availability: UNAVAILABLE
    generates_income: NO_INCOME
    billing_category: NON_BILLABLE
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, catalog, 3)

	assert.Equal(t, int64(10), catalog[0].ID)
	assert.True(t, catalog[0].RequiresServiceReference)
	assert.False(t, catalog[1].RequiresServiceReference)
	assert.Equal(t, Unavailable, catalog[2].Availability)
}

func TestParseCatalog_Errors(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"unknown axis", "activities:\n  - {id: 1, name: X, availability: SOMETIMES, generates_income: INCOME, billing_category: BILLABLE}\n"},
		{"duplicate id", "activities:\n  - {id: 1, name: X, availability: AVAILABLE, generates_income: INCOME, billing_category: BILLABLE}\n  - {id: 1, name: Y, availability: AVAILABLE, generates_income: INCOME, billing_category: BILLABLE}\n"},
		{"missing id", "activities:\n  - {name: X, availability: AVAILABLE, generates_income: INCOME, billing_category: BILLABLE}\n"},
		{"bad yaml", "activities: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogFileAndSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0644))

	catalog, err := LoadCatalogFile(path)
	require.NoError(t, err)

	db := testingpkg.NewTestDB(t, "timetracking")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, Seed(ctx, repo, catalog))
	// Reseeding is an upsert
	require.NoError(t, Seed(ctx, repo, catalog))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLoadCatalogFile_Missing(t *testing.T) {
	_, err := LoadCatalogFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadCatalogFile_ShippedExample(t *testing.T) {
	types, err := LoadCatalogFile(filepath.Join("..", "..", "..", "configs", "activities.example.yaml"))
	require.NoError(t, err)
	require.Len(t, types, 5)

	assert.True(t, IncomeProducing(types[0]))
	assert.True(t, IsBillable(types[0]))
	assert.True(t, IncomeProducing(types[1]))
	assert.False(t, IsBillable(types[1]))
	assert.False(t, IncomeProducing(types[2]))
	assert.False(t, IsAvailable(types[3]))
}
