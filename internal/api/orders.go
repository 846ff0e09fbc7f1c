package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type cartItemRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) getCart(c *gin.Context) {
	cart, err := s.commerce.Cart(c.Request.Context(), actorFrom(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (s *Server) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cart, err := s.commerce.AddItem(c.Request.Context(), actorFrom(c).ID, req.ProductID, req.Quantity)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (s *Server) removeCartItem(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	cart, err := s.commerce.RemoveItem(c.Request.Context(), actorFrom(c).ID, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (s *Server) clearCart(c *gin.Context) {
	if err := s.commerce.ClearCart(c.Request.Context(), actorFrom(c).ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orders, err := s.commerce.Checkout(c.Request.Context(), actorFrom(c).ID, req.ShippingAddress)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"orders": orders})
}

// listBuyerOrders returns the full history, or a cursor page when a cursor or
// limit is given.
func (s *Server) listBuyerOrders(c *gin.Context) {
	ctx := c.Request.Context()
	actor := actorFrom(c)

	cursor, hasCursor := c.GetQuery("cursor")
	rawLimit, hasLimit := c.GetQuery("limit")
	if !hasCursor && !hasLimit {
		orders, err := s.commerce.BuyerOrders(ctx, actor.ID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
		return
	}

	limit, _ := strconv.Atoi(rawLimit)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	page, err := s.commerce.BuyerOrdersPage(ctx, actor.ID, cursor, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// producerScope is the caller's own id, or producer_id when staff ask on
// behalf of a producer.
func producerScope(c *gin.Context) (int64, bool) {
	actor := actorFrom(c)
	raw := c.Query("producer_id")
	if raw == "" {
		return actor.ID, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid producer_id"})
		return 0, false
	}
	if !actor.CanManage(id) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to view this producer"})
		return 0, false
	}
	return id, true
}

func (s *Server) listVendorOrders(c *gin.Context) {
	producerID, ok := producerScope(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	result, err := s.commerce.VendorOrders(c.Request.Context(), producerID, page, pageSize)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) vendorStats(c *gin.Context) {
	producerID, ok := producerScope(c)
	if !ok {
		return
	}

	stats, err := s.commerce.VendorStats(c.Request.Context(), producerID, c.Query("start"), c.Query("end"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	order, err := s.commerce.Order(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.commerce.UpdateOrderStatus(c.Request.Context(), actorFrom(c), id, req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
