package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"wb-parser/internal/repository"
	"wb-parser/internal/services/wildberries"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Django sets its csrftoken cookie for a year; kept the same here.
const csrfCookieMaxAge = 31449600

type APIHandler struct {
	repo *repository.ProductRepository
	wb   *wildberries.Service
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, wb *wildberries.Service) *APIHandler {
	handler := &APIHandler{
		repo: repository.NewProductRepository(db),
		wb:   wb,
	}

	products := r.Group("/products")
	{
		products.POST("/search", handler.SearchAndSave)
		products.GET("", handler.ListProducts)
		products.GET("/export", handler.ExportProducts)
		products.GET("/:id", handler.GetProduct)
		products.PUT("/:id", handler.UpdateProduct)
		products.DELETE("/:id", handler.DeleteProduct)
	}

	// Alias kept for clients of the old parse endpoint
	r.POST("/parse", handler.SearchAndSave)

	r.GET("/health", handler.HealthCheck)
	r.GET("/csrf", handler.CSRFToken)

	return handler
}

// SearchAndSave: POST /api/products/search
// Runs the fetch -> normalize -> upsert pipeline synchronously and returns the
// persisted batch. Any pipeline failure surfaces as a single 500 with a message;
// nothing is committed in that case.
func (h *APIHandler) SearchAndSave(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Search query is required"})
		return
	}
	query := strings.TrimSpace(req.Query)

	items, rawProducts, err := h.wb.Search(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, query, err)
		return
	}

	batch, err := h.wb.NormalizeAll(items, query)
	if err != nil {
		h.respondError(c, query, err)
		return
	}

	saved, err := h.repo.UpsertBatch(c.Request.Context(), batch)
	if err != nil {
		h.respondError(c, query, err)
		return
	}

	// The raw batch archive is not part of the contract; losing it must not fail
	// the request.
	if err := h.repo.SaveSearchResult(c.Request.Context(), query, rawProducts); err != nil {
		log.WithError(err).WithField("query", query).Warn("Failed to archive raw search result")
	}

	log.WithFields(log.Fields{"query": query, "count": len(saved)}).Info("Search batch saved")
	c.JSON(http.StatusOK, saved)
}

// ListProducts: GET /api/products?min_price=&max_price=&min_rating=&min_reviews=&query=
func (h *APIHandler) ListProducts(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	products, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *APIHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	product, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// UpdateProduct: PUT /api/products/:id
// wb_id and created_at are read-only; everything else may be changed.
func (h *APIHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Name            *string  `json:"name"`
		Price           *float64 `json:"price"`
		DiscountedPrice *float64 `json:"discounted_price"`
		Rating          *float64 `json:"rating"`
		ReviewsCount    *int     `json:"reviews_count"`
		SearchQuery     *string  `json:"query"`
		URL             *string  `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	product, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "", err)
		return
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.DiscountedPrice != nil {
		product.DiscountedPrice = req.DiscountedPrice
	}
	if req.Rating != nil {
		product.Rating = req.Rating
	}
	if req.ReviewsCount != nil {
		product.ReviewsCount = *req.ReviewsCount
	}
	if req.SearchQuery != nil {
		product.SearchQuery = *req.SearchQuery
	}
	if req.URL != nil {
		product.URL = *req.URL
	}

	if err := h.repo.Update(c.Request.Context(), product); err != nil {
		h.respondError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *APIHandler) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, "", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportProducts: GET /api/products/export
// Dumps the stored catalog as a spreadsheet; accepts the same filters as the
// list endpoint.
func (h *APIHandler) ExportProducts(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	products, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "", err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Products"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "WB ID", "Name", "Price", "Discounted Price", "Rating", "Reviews", "Search Query", "URL", "Created At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
	for i, p := range products {
		row := i + 2
		values := []interface{}{p.ID, p.WBID, p.Name, p.Price, nil, nil, p.ReviewsCount, p.SearchQuery, p.URL, p.CreatedAt.Format("2006-01-02 15:04:05")}
		if p.DiscountedPrice != nil {
			values[4] = *p.DiscountedPrice
		}
		if p.Rating != nil {
			values[5] = *p.Rating
		}
		for j, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	c.Header("Content-Disposition", `attachment; filename="products.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		log.WithError(err).Error("Failed to stream spreadsheet")
	}
}

func (h *APIHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CSRFToken: GET /api/csrf
// Issues the csrftoken cookie the frontend sends back on unsafe requests.
func (h *APIHandler) CSRFToken(c *gin.Context) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.SetCookie("csrftoken", hex.EncodeToString(buf), csrfCookieMaxAge, "/", "", false, false)
	c.JSON(http.StatusOK, gin.H{"detail": "CSRF cookie set"})
}

// respondError maps pipeline and persistence failures to HTTP statuses: missing
// rows are 404, everything else is a 500 with the error message, mirroring how
// the pipeline treats every failure as batch-fatal.
func (h *APIHandler) respondError(c *gin.Context, query string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	entry := log.WithError(err)
	if query != "" {
		entry = entry.WithField("query", query)
	}
	switch {
	case errors.Is(err, wildberries.ErrRemoteRequest):
		entry.Error("Upstream search request failed")
	case errors.Is(err, wildberries.ErrMalformedResponse):
		entry.Error("Upstream search response unusable")
	case errors.Is(err, wildberries.ErrInvalidItem):
		entry.Error("Search batch contained an invalid item")
	case errors.Is(err, repository.ErrPersistence):
		entry.Error("Search batch rolled back")
	default:
		entry.Error("Request failed")
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func parseFilter(c *gin.Context) (repository.ProductFilter, error) {
	filter := repository.ProductFilter{Query: c.Query("query")}

	if v := c.Query("min_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid min_price")
		}
		filter.MinPrice = &f
	}
	if v := c.Query("max_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid max_price")
		}
		filter.MaxPrice = &f
	}
	if v := c.Query("min_rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid min_rating")
		}
		filter.MinRating = &f
	}
	if v := c.Query("min_reviews"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid min_reviews")
		}
		filter.MinReviews = &n
	}
	return filter, nil
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return 0, false
	}
	return uint(id), true
}
