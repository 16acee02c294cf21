package repository

import (
	"context"
	"encoding/json"
	"testing"

	"wb-parser/internal/database"
	"wb-parser/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *ProductRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	// one connection, or each pooled conn would see its own empty :memory: db
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return NewProductRepository(db)
}

func phoneX(reviews int) models.Product {
	return models.Product{
		WBID:         555,
		Name:         "Phone X",
		Price:        9999.00,
		ReviewsCount: reviews,
		SearchQuery:  "phone",
		URL:          "https://www.wildberries.ru/catalog/555/detail.aspx",
	}
}

func TestUpsertBatch_InsertsNewRows(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.UpsertBatch(ctx, []models.Product{phoneX(42)})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	got := saved[0]
	assert.Equal(t, int64(555), got.WBID)
	assert.Equal(t, "Phone X", got.Name)
	assert.Equal(t, 9999.00, got.Price)
	assert.Nil(t, got.DiscountedPrice)
	assert.Equal(t, 42, got.ReviewsCount)
	assert.Equal(t, "phone", got.SearchQuery)
	assert.Equal(t, "https://www.wildberries.ru/catalog/555/detail.aspx", got.URL)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUpsertBatch_RefreshesExistingRow(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertBatch(ctx, []models.Product{phoneX(42)})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// same wb_id, higher review count: row is updated, not duplicated
	second, err := repo.UpsertBatch(ctx, []models.Product{phoneX(50)})
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 50, second[0].ReviewsCount)

	all, err := repo.List(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertBatch_IsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	batch := []models.Product{phoneX(42)}
	first, err := repo.UpsertBatch(ctx, batch)
	require.NoError(t, err)

	second, err := repo.UpsertBatch(ctx, []models.Product{phoneX(42)})
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].WBID, second[0].WBID)
	assert.Equal(t, first[0].Price, second[0].Price)
	assert.Equal(t, first[0].ReviewsCount, second[0].ReviewsCount)
	assert.Equal(t, first[0].CreatedAt.Unix(), second[0].CreatedAt.Unix())
}

// A re-fetch under a different query overwrites the stored query field
// (last write wins) instead of creating a second row.
func TestUpsertBatch_NewQueryOverwritesOldOne(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertBatch(ctx, []models.Product{phoneX(42)})
	require.NoError(t, err)

	refetched := phoneX(42)
	refetched.SearchQuery = "smartphone"
	saved, err := repo.UpsertBatch(ctx, []models.Product{refetched})
	require.NoError(t, err)

	require.Len(t, saved, 1)
	assert.Equal(t, "smartphone", saved[0].SearchQuery)
}

func TestUpsertBatch_EmptyBatchCommitsNothing(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.UpsertBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, saved)

	all, err := repo.List(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestList_Filters(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	rating := func(v float64) *float64 { return &v }
	seed := []models.Product{
		{WBID: 1, Name: "Cheap", Price: 100, Rating: rating(3.0), ReviewsCount: 5, SearchQuery: "phone"},
		{WBID: 2, Name: "Mid", Price: 500, Rating: rating(4.5), ReviewsCount: 100, SearchQuery: "phone"},
		{WBID: 3, Name: "Pricey", Price: 2000, Rating: rating(4.9), ReviewsCount: 1000, SearchQuery: "laptop"},
	}
	_, err := repo.UpsertBatch(ctx, seed)
	require.NoError(t, err)

	minPrice := func(v float64) *float64 { return &v }
	minReviews := func(v int) *int { return &v }

	tests := []struct {
		name    string
		filter  ProductFilter
		wantIDs []int64
	}{
		{name: "no filter", filter: ProductFilter{}, wantIDs: []int64{1, 2, 3}},
		{name: "min_price", filter: ProductFilter{MinPrice: minPrice(400)}, wantIDs: []int64{2, 3}},
		{name: "max_price", filter: ProductFilter{MaxPrice: minPrice(400)}, wantIDs: []int64{1}},
		{name: "min_rating", filter: ProductFilter{MinRating: rating(4.6)}, wantIDs: []int64{3}},
		{name: "min_reviews", filter: ProductFilter{MinReviews: minReviews(50)}, wantIDs: []int64{2, 3}},
		{name: "query exact match", filter: ProductFilter{Query: "phone"}, wantIDs: []int64{1, 2}},
		{name: "combined", filter: ProductFilter{Query: "phone", MinPrice: minPrice(200)}, wantIDs: []int64{2}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			gotIDs := make([]int64, 0, len(got))
			for _, p := range got {
				gotIDs = append(gotIDs, p.WBID)
			}
			assert.ElementsMatch(t, tt.wantIDs, gotIDs)
		})
	}
}

func TestGetByID(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.UpsertBatch(ctx, []models.Product{phoneX(42)})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, saved[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(555), got.WBID)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.UpsertBatch(ctx, []models.Product{phoneX(42)})
	require.NoError(t, err)

	product := saved[0]
	product.Name = "Phone X Pro"
	require.NoError(t, repo.Update(ctx, &product))

	got, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Phone X Pro", got.Name)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.UpsertBatch(ctx, []models.Product{phoneX(42)})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, saved[0].ID))
	_, err = repo.GetByID(ctx, saved[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, saved[0].ID), ErrNotFound)
}

func TestSaveSearchResult(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	raw := json.RawMessage(`[{"id":555,"name":"Phone X","priceU":999900}]`)
	require.NoError(t, repo.SaveSearchResult(ctx, "phone", raw))

	var results []models.SearchResult
	require.NoError(t, repo.db.Find(&results).Error)
	require.Len(t, results, 1)
	assert.Equal(t, "phone", results[0].SearchQuery)
	assert.JSONEq(t, string(raw), results[0].Products)
}
