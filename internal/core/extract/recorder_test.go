package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sicupang-ai/internal/core/queue"
	"sicupang-ai/internal/infrastructure/persistence"
)

// mockResolver resolves ingredient names from a fixed table.
type mockResolver struct {
	table map[string]*persistence.FoodIngredient
	err   error
}

func (m *mockResolver) Resolve(ctx context.Context, rawName string) (*persistence.FoodIngredient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.table[rawName], nil
}

// mockConsumptionRepo records inserts and can fail for selected ingredients.
type mockConsumptionRepo struct {
	records []persistence.HouseholdFood
	failFor map[uint]bool
}

func (m *mockConsumptionRepo) Insert(ctx context.Context, record *persistence.HouseholdFood) error {
	if m.failFor[record.IngredientID] {
		return errors.New("insert failed")
	}
	m.records = append(m.records, *record)
	return nil
}

// mockRecipeCacheRepo records cache writes.
type mockRecipeCacheRepo struct {
	entries   map[string]*persistence.RecipeCache
	created   []persistence.RecipeCache
	createErr error
}

func (m *mockRecipeCacheRepo) FindByName(ctx context.Context, dishName string) (*persistence.RecipeCache, error) {
	if m.entries == nil {
		return nil, nil
	}
	return m.entries[dishName], nil
}

func (m *mockRecipeCacheRepo) Create(ctx context.Context, entry *persistence.RecipeCache) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, *entry)
	return nil
}

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func testDate() time.Time {
	return time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
}

func newTestRecorder(resolver IngredientResolver, consumption *mockConsumptionRepo, recipeCache *mockRecipeCacheRepo) (*Recorder, *queue.Manager) {
	pool := queue.NewManager(testConfig())
	return NewRecorder(resolver, consumption, recipeCache, pool), pool
}

func TestRecordScalesQuantities(t *testing.T) {
	resolver := &mockResolver{table: map[string]*persistence.FoodIngredient{
		"kacang panjang": {ID: 7, Name: "Kacang Panjang", ReferenceUnitWeight: dec("10")},
	}}
	consumption := &mockConsumptionRepo{}
	cacheRepo := &mockRecipeCacheRepo{}
	recorder, pool := newTestRecorder(resolver, consumption, cacheRepo)
	defer pool.Close()

	bd := &RecipeBreakdown{
		DishName:        "sayur asem",
		VectorRecordID:  "vdb-1",
		StandardPortion: dec("4"),
		Entries: []persistence.BreakdownEntry{
			{IngredientName: "kacang panjang", StandardQuantity: dec("200"), UnitLabel: "gram"},
		},
	}
	item := FoodItem{FoodName: "sayur asem", Portion: 2}

	outcomes := recorder.Record(context.Background(), item, bd, 42, testDate(), false)
	require.Len(t, outcomes, 1)

	// urt = 200 * 2 / 4 / 10 = 10.00
	out := outcomes[0]
	assert.Equal(t, StatusSuccessFromExtraction, out.Status)
	assert.Equal(t, "Kacang Panjang", out.IngredientName)
	require.NotNil(t, out.LocalQuantity)
	assert.Equal(t, "10", out.LocalQuantity.String())

	require.Len(t, consumption.records, 1)
	assert.Equal(t, uint(7), consumption.records[0].IngredientID)
	assert.Equal(t, uint(42), consumption.records[0].FamilyID)
	assert.Equal(t, testDate(), consumption.records[0].Date)
}

func TestRecordRoundsHalfUp(t *testing.T) {
	resolver := &mockResolver{table: map[string]*persistence.FoodIngredient{
		"telur": {ID: 1, Name: "Telur Ayam", ReferenceUnitWeight: dec("7")},
	}}
	consumption := &mockConsumptionRepo{}
	recorder, pool := newTestRecorder(resolver, consumption, &mockRecipeCacheRepo{})
	defer pool.Close()

	bd := &RecipeBreakdown{
		DishName:        "telur dadar",
		StandardPortion: dec("3"),
		Entries: []persistence.BreakdownEntry{
			{IngredientName: "telur", StandardQuantity: dec("100"), UnitLabel: "gram"},
		},
	}

	outcomes := recorder.Record(context.Background(), FoodItem{FoodName: "telur dadar", Portion: 1}, bd, 1, testDate(), false)
	require.Len(t, outcomes, 1)
	require.NotNil(t, outcomes[0].LocalQuantity)

	// 100 / 3 / 7 = 4.7619... rounds to 4.76
	assert.Equal(t, "4.76", outcomes[0].LocalQuantity.String())
}

func TestRecordZeroStandardPortion(t *testing.T) {
	consumption := &mockConsumptionRepo{}
	cacheRepo := &mockRecipeCacheRepo{}
	recorder, pool := newTestRecorder(&mockResolver{}, consumption, cacheRepo)
	defer pool.Close()

	bd := &RecipeBreakdown{
		DishName:        "soto",
		StandardPortion: decimal.Zero,
		Entries: []persistence.BreakdownEntry{
			{IngredientName: "ayam", StandardQuantity: dec("100"), UnitLabel: "gram"},
		},
	}

	outcomes := recorder.Record(context.Background(), FoodItem{FoodName: "soto", Portion: 1}, bd, 1, testDate(), false)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusZeroStandardPortion, outcomes[0].Status)
	assert.Empty(t, consumption.records)
	assert.Empty(t, cacheRepo.created)
}

func TestRecordSkipsUnresolvedIngredient(t *testing.T) {
	resolver := &mockResolver{table: map[string]*persistence.FoodIngredient{
		"ayam": {ID: 2, Name: "Daging Ayam", ReferenceUnitWeight: dec("50")},
	}}
	consumption := &mockConsumptionRepo{}
	recorder, pool := newTestRecorder(resolver, consumption, &mockRecipeCacheRepo{})
	defer pool.Close()

	bd := &RecipeBreakdown{
		DishName:        "soto",
		StandardPortion: dec("1"),
		Entries: []persistence.BreakdownEntry{
			{IngredientName: "bahan misterius", StandardQuantity: dec("30"), UnitLabel: "gram"},
			{IngredientName: "ayam", StandardQuantity: dec("100"), UnitLabel: "gram"},
		},
	}

	outcomes := recorder.Record(context.Background(), FoodItem{FoodName: "soto", Portion: 1}, bd, 1, testDate(), false)
	require.Len(t, outcomes, 2)

	assert.Equal(t, StatusUnresolvedIngredient, outcomes[0].Status)
	assert.Equal(t, "bahan misterius", outcomes[0].IngredientName)

	// the sibling still succeeds
	assert.Equal(t, StatusSuccessFromExtraction, outcomes[1].Status)
	require.Len(t, consumption.records, 1)
}

func TestRecordPersistenceFailureIsolated(t *testing.T) {
	resolver := &mockResolver{table: map[string]*persistence.FoodIngredient{
		"ayam":  {ID: 2, Name: "Daging Ayam", ReferenceUnitWeight: dec("50")},
		"bawang": {ID: 3, Name: "Bawang Merah", ReferenceUnitWeight: dec("10")},
	}}
	consumption := &mockConsumptionRepo{failFor: map[uint]bool{2: true}}
	cacheRepo := &mockRecipeCacheRepo{}
	recorder, pool := newTestRecorder(resolver, consumption, cacheRepo)
	defer pool.Close()

	bd := &RecipeBreakdown{
		DishName:        "soto",
		StandardPortion: dec("1"),
		Entries: []persistence.BreakdownEntry{
			{IngredientName: "ayam", StandardQuantity: dec("100"), UnitLabel: "gram"},
			{IngredientName: "bawang", StandardQuantity: dec("20"), UnitLabel: "gram"},
		},
	}

	outcomes := recorder.Record(context.Background(), FoodItem{FoodName: "soto", Portion: 1}, bd, 1, testDate(), false)
	require.Len(t, outcomes, 2)

	assert.Equal(t, StatusPersistenceFailure, outcomes[0].Status)
	assert.Equal(t, StatusSuccessFromExtraction, outcomes[1].Status)

	// the failed insert still counts as resolved, so the cache write proceeds
	require.Len(t, cacheRepo.created, 1)
	assert.Len(t, cacheRepo.created[0].Breakdown, 2)
}

func TestRecordWritesRecipeCacheForFreshExtraction(t *testing.T) {
	resolver := &mockResolver{table: map[string]*persistence.FoodIngredient{
		"ayam": {ID: 2, Name: "Daging Ayam", ReferenceUnitWeight: dec("50")},
	}}
	cacheRepo := &mockRecipeCacheRepo{}
	recorder, pool := newTestRecorder(resolver, &mockConsumptionRepo{}, cacheRepo)
	defer pool.Close()

	bd := &RecipeBreakdown{
		DishName:        "soto ayam",
		VectorRecordID:  "vdb-9",
		StandardPortion: dec("2"),
		Entries: []persistence.BreakdownEntry{
			{IngredientName: "ayam", StandardQuantity: dec("100"), UnitLabel: "gram"},
			{IngredientName: "bahan misterius", StandardQuantity: dec("5"), UnitLabel: "gram"},
		},
	}

	recorder.Record(context.Background(), FoodItem{FoodName: "soto ayam", Portion: 1}, bd, 1, testDate(), false)

	// only resolvable entries are cached, with catalog id and weight filled in
	require.Len(t, cacheRepo.created, 1)
	created := cacheRepo.created[0]
	assert.Equal(t, "soto ayam", created.DishName)
	assert.Equal(t, "vdb-9", created.VectorRecordID)
	require.Len(t, created.Breakdown, 1)
	require.NotNil(t, created.Breakdown[0].CatalogID)
	assert.Equal(t, uint(2), *created.Breakdown[0].CatalogID)
	assert.Equal(t, "50", created.Breakdown[0].ReferenceUnitWeight.String())
}

func TestRecordFromCacheDoesNotRewriteCache(t *testing.T) {
	cacheRepo := &mockRecipeCacheRepo{}
	recorder, pool := newTestRecorder(&mockResolver{}, &mockConsumptionRepo{}, cacheRepo)
	defer pool.Close()

	id := uint(2)
	bd := &RecipeBreakdown{
		DishName:        "soto ayam",
		StandardPortion: dec("2"),
		Entries: []persistence.BreakdownEntry{
			{IngredientName: "Daging Ayam", StandardQuantity: dec("100"), UnitLabel: "gram", CatalogID: &id, ReferenceUnitWeight: dec("50")},
		},
	}

	outcomes := recorder.Record(context.Background(), FoodItem{FoodName: "soto ayam", Portion: 4}, bd, 1, testDate(), true)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusSuccessFromCache, outcomes[0].Status)

	// urt = 100 * 4 / 2 / 50 = 4.00
	require.NotNil(t, outcomes[0].LocalQuantity)
	assert.Equal(t, "4", outcomes[0].LocalQuantity.String())

	assert.Empty(t, cacheRepo.created)
}
