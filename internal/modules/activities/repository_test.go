package activities

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/events"
	testingpkg "github.com/aristath/techclock/internal/testing"
)

func newTestRepository(t *testing.T) *Repository {
	db := testingpkg.NewTestDB(t, "timetracking")
	testingpkg.SeedActivityTypes(t, db)
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepository_GetByID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	at, err := repo.GetByID(ctx, testingpkg.ActivityWarranty)
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, "Warranty work", at.Name)
	assert.Equal(t, Available, at.Availability)
	assert.Equal(t, Income, at.GeneratesIncome)
	assert.Equal(t, NonBillable, at.BillingCategory)
	assert.True(t, at.RequiresServiceReference)

	missing, err := repo.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_ListAndUpsert(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	updated := NewActivityType(testingpkg.ActivityTraining, "Product training", "vendor course", Available, NoIncome, NonBillable)
	require.NoError(t, repo.Upsert(ctx, updated))

	at, err := repo.GetByID(ctx, testingpkg.ActivityTraining)
	require.NoError(t, err)
	assert.Equal(t, "Product training", at.Name)
	assert.Equal(t, "vendor course", at.Description)

	all, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRepository_UpsertRejectsInvalid(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.Upsert(context.Background(), ActivityType{ID: 42, Name: "Broken", Availability: "MAYBE"})
	assert.Error(t, err)
}

type countingSource struct {
	*Repository
	calls int
}

func (c *countingSource) GetByID(ctx context.Context, id int64) (*ActivityType, error) {
	c.calls++
	return c.Repository.GetByID(ctx, id)
}

func TestTaxonomy_Classify(t *testing.T) {
	source := &countingSource{Repository: newTestRepository(t)}
	tax := NewTaxonomy(source)
	ctx := context.Background()

	at, err := tax.Classify(ctx, testingpkg.ActivityRepair)
	require.NoError(t, err)
	assert.True(t, BillableIncome(at))

	_, err = tax.Classify(ctx, testingpkg.ActivityRepair)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "second lookup should be served from cache")

	tax.Invalidate()
	_, err = tax.Classify(ctx, testingpkg.ActivityRepair)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestTaxonomy_SubscribeDropsCacheOnReseed(t *testing.T) {
	source := &countingSource{Repository: newTestRepository(t)}
	tax := NewTaxonomy(source)
	bus := events.NewBus(zerolog.Nop())
	tax.Subscribe(bus)
	ctx := context.Background()

	_, err := tax.Classify(ctx, testingpkg.ActivityTraining)
	require.NoError(t, err)

	require.NoError(t, source.Upsert(ctx, NewActivityType(testingpkg.ActivityTraining, "Paid training", "", Available, Income, NonBillable)))
	bus.Publish(events.Event{Type: events.ActivityCatalogSeeded, Data: &events.CatalogSeededData{Count: 1}})

	at, err := tax.Classify(ctx, testingpkg.ActivityTraining)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
	assert.Equal(t, "Paid training", at.Name)
	assert.True(t, IncomeProducing(at))
}

func TestTaxonomy_ClassifyUnknown(t *testing.T) {
	tax := NewTaxonomy(newTestRepository(t))

	_, err := tax.Classify(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
