package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/agrimarket/internal/store"
	"github.com/shopspring/decimal"
)

type productRequest struct {
	CategoryID        *int64          `json:"category_id"`
	Name              string          `json:"name" binding:"required"`
	ShortDescription  string          `json:"short_description"`
	LongDescription   string          `json:"long_description"`
	UnitType          string          `json:"unit_type"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	QuantityAvailable decimal.Decimal `json:"quantity_available"`
	LocationVillage   string          `json:"location_village"`
	LocationCommune   string          `json:"location_commune"`
	ImageURL          string          `json:"image_url"`
	IsPublished       bool            `json:"is_published"`
}

func (r productRequest) input() store.ProductInput {
	return store.ProductInput{
		CategoryID:        r.CategoryID,
		Name:              r.Name,
		ShortDescription:  r.ShortDescription,
		LongDescription:   r.LongDescription,
		UnitType:          r.UnitType,
		UnitPrice:         r.UnitPrice,
		QuantityAvailable: r.QuantityAvailable,
		LocationVillage:   r.LocationVillage,
		LocationCommune:   r.LocationCommune,
		ImageURL:          r.ImageURL,
		IsPublished:       r.IsPublished,
	}
}

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func optionalID(c *gin.Context, key string) (*int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return nil, false
	}
	return &id, true
}

func (s *Server) listProducts(c *gin.Context) {
	categoryID, ok := optionalID(c, "category")
	if !ok {
		return
	}
	producerID, ok := optionalID(c, "producer")
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	filter := store.ProductFilter{
		ProducerID: producerID,
		CategoryID: categoryID,
		UnitType:   c.Query("unit_type"),
		Search:     c.Query("search"),
		Ordering:   c.Query("ordering"),
	}
	result, err := s.catalog.Products(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getProduct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	product, err := s.catalog.Product(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (s *Server) listProducerProducts(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	includeUnpublished, _ := strconv.ParseBool(c.Query("include_unpublished"))
	page, pageSize := pageParams(c)

	result, err := s.catalog.ProducerProducts(c.Request.Context(), actorFrom(c), id, includeUnpublished, page, pageSize)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := s.catalog.CreateProduct(c.Request.Context(), actorFrom(c), req.input())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (s *Server) updateProduct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := s.catalog.UpdateProduct(c.Request.Context(), actorFrom(c), id, req.input())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (s *Server) deleteProduct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := s.catalog.DeleteProduct(c.Request.Context(), actorFrom(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.catalog.Categories(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (s *Server) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, err := s.catalog.CreateCategory(c.Request.Context(), actorFrom(c), req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (s *Server) deleteCategory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := s.catalog.DeleteCategory(c.Request.Context(), actorFrom(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
