package wildberries

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"wb-parser/internal/config"
	"wb-parser/internal/models"

	"github.com/go-resty/resty/v2"
)

// Service talks to the public Wildberries search endpoint and maps its items to
// Product records.
type Service struct {
	client    *resty.Client
	searchURL string
	siteURL   string
	limit     int
}

// SearchItem is one raw product as upstream returns it. Required fields are
// pointers so that an absent key is distinguishable from a zero value.
type SearchItem struct {
	ID           *int64   `json:"id"`
	Name         *string  `json:"name"`
	PriceU       *int64   `json:"priceU"`
	SalePriceU   *int64   `json:"salePriceU"`
	ReviewRating *float64 `json:"reviewRating"`
	Feedbacks    *int     `json:"feedbacks"`
}

type searchResponse struct {
	Data struct {
		Products json.RawMessage `json:"products"`
	} `json:"data"`
}

func NewService(cfg *config.Config) *Service {
	client := resty.New()
	// Upstream has no documented SLA; without a timeout a stuck call would hold
	// the request forever.
	client.SetTimeout(cfg.RequestTimeout)

	return &Service{
		client:    client,
		searchURL: cfg.SearchURL,
		siteURL:   cfg.SiteURL,
		limit:     cfg.SearchLimit,
	}
}

// Search performs one catalog search. It returns the decoded items together with
// the raw products array so the caller can archive the batch as received.
// An empty products array is a valid zero-item result, not an error.
func (s *Service) Search(ctx context.Context, query string) ([]SearchItem, json.RawMessage, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":     query,
			"resultset": "catalog",
			"limit":     strconv.Itoa(s.limit),
			"dest":      "-1257786",
		}).
		Get(s.searchURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteRequest, err)
	}
	if resp.IsError() {
		body := string(resp.Body())
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		return nil, nil, fmt.Errorf("%w: status %d: %s", ErrRemoteRequest, resp.StatusCode(), body)
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Data.Products == nil {
		return nil, nil, fmt.Errorf("%w: missing data.products", ErrMalformedResponse)
	}
	var items []SearchItem
	if err := json.Unmarshal(parsed.Data.Products, &items); err != nil {
		return nil, nil, fmt.Errorf("%w: data.products is not an array: %v", ErrMalformedResponse, err)
	}
	return items, parsed.Data.Products, nil
}

// Normalize maps one raw item to a Product. The search query is recorded on the
// record so filtered listings can group by it later.
func (s *Service) Normalize(item SearchItem, searchQuery string) (models.Product, error) {
	if item.ID == nil {
		return models.Product{}, fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	if item.Name == nil {
		return models.Product{}, fmt.Errorf("%w: item %d missing name", ErrInvalidItem, *item.ID)
	}
	if item.PriceU == nil {
		return models.Product{}, fmt.Errorf("%w: item %d missing priceU", ErrInvalidItem, *item.ID)
	}

	product := models.Product{
		WBID: *item.ID,
		Name: *item.Name,
		// priceU is in kopecks; float division keeps sub-ruble precision intact
		Price:       float64(*item.PriceU) / 100,
		SearchQuery: searchQuery,
		URL:         fmt.Sprintf("%s/catalog/%d/detail.aspx", s.siteURL, *item.ID),
	}
	if item.SalePriceU != nil {
		salePrice := float64(*item.SalePriceU) / 100
		product.DiscountedPrice = &salePrice
	}
	product.Rating = item.ReviewRating
	if item.Feedbacks != nil {
		product.ReviewsCount = *item.Feedbacks
	}
	return product, nil
}

// NormalizeAll maps a whole batch, failing on the first invalid item.
func (s *Service) NormalizeAll(items []SearchItem, searchQuery string) ([]models.Product, error) {
	products := make([]models.Product, 0, len(items))
	for _, item := range items {
		product, err := s.Normalize(item, searchQuery)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}
