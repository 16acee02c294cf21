package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wb-parser/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPersistence: a write failed and the surrounding transaction was rolled
	// back.
	ErrPersistence = errors.New("repository: persistence failure")

	ErrNotFound = errors.New("repository: product not found")
)

// ProductFilter narrows List results. Nil fields are ignored.
type ProductFilter struct {
	MinPrice   *float64
	MaxPrice   *float64
	MinRating  *float64
	MinReviews *int
	Query      string // exact match on the originating search query
}

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// UpsertBatch writes one search batch atomically: every product is inserted, or
// updated in place when a row with the same wb_id already exists. Either the whole
// batch commits or none of it does. Returns the post-upsert rows, including ones
// that existed before and were only refreshed.
func (r *ProductRepository) UpsertBatch(ctx context.Context, products []models.Product) ([]models.Product, error) {
	if len(products) == 0 {
		return []models.Product{}, nil
	}

	wbIDs := make([]int64, 0, len(products))
	for _, p := range products {
		wbIDs = append(wbIDs, p.WBID)
	}

	var saved []models.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// wb_id is the match key; everything except wb_id and created_at is
		// overwritten on conflict
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "wb_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "price", "discounted_price", "rating", "reviews_count", "query", "url", "updated_at",
			}),
		}).Create(&products).Error; err != nil {
			return err
		}
		return tx.Where("wb_id IN ?", wbIDs).Order("created_at DESC").Find(&saved).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return saved, nil
}

// SaveSearchResult archives the raw products array of one search response.
func (r *ProductRepository) SaveSearchResult(ctx context.Context, searchQuery string, rawProducts json.RawMessage) error {
	result := models.SearchResult{
		SearchQuery: searchQuery,
		Products:    string(rawProducts),
	}
	if err := r.db.WithContext(ctx).Create(&result).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (r *ProductRepository) List(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})

	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.MinRating != nil {
		q = q.Where("rating >= ?", *filter.MinRating)
	}
	if filter.MinReviews != nil {
		q = q.Where("reviews_count >= ?", *filter.MinReviews)
	}
	if filter.Query != "" {
		q = q.Where("query = ?", filter.Query)
	}

	var products []models.Product
	if err := q.Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return products, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &product, nil
}

func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Product{}, id)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
