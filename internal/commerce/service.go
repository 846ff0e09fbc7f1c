// Package commerce runs the buyer cart, checkout and the order views of
// buyers and producers.
package commerce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/agrimarket/internal/audit"
	"github.com/safar/agrimarket/internal/cache"
	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/models"
	"github.com/safar/agrimarket/internal/store"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must not be negative")
	ErrInvalidTransition = store.ErrInvalidTransition
)

type Service struct {
	db     *sql.DB
	stats  cache.StatsCache
	audit  audit.Recorder
	logger *zap.Logger
}

type Option func(*Service)

func WithStatsCache(c cache.StatsCache) Option {
	return func(s *Service) { s.stats = c }
}

func WithAudit(r audit.Recorder) Option {
	return func(s *Service) { s.audit = r }
}

func NewService(db *sql.DB, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:     db,
		stats:  cache.Nop{},
		audit:  audit.Nop{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Cart(ctx context.Context, userID int64) (*models.Cart, error) {
	return store.GetCart(ctx, s.db, userID)
}

// AddItem puts a published product in the cart. Adding a product that is
// already there replaces its quantity and refreshes its price.
func (s *Service) AddItem(ctx context.Context, userID, productID int64, quantity decimal.Decimal) (*models.Cart, error) {
	if quantity.IsNegative() {
		return nil, ErrInvalidQuantity
	}

	if err := store.AddCartItem(ctx, s.db, userID, productID, quantity); err != nil {
		return nil, err
	}

	return store.GetCart(ctx, s.db, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID int64) (*models.Cart, error) {
	if err := store.RemoveCartItem(ctx, s.db, userID, itemID); err != nil {
		return nil, err
	}
	return store.GetCart(ctx, s.db, userID)
}

func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	return store.ClearCart(ctx, s.db, userID)
}

func (s *Service) invalidateStats(ctx context.Context, producerIDs ...int64) {
	if err := s.stats.InvalidateVendorStats(ctx, producerIDs...); err != nil {
		s.logger.Warn("vendor stats invalidation failed", zap.Int64s("producer_ids", producerIDs), zap.Error(err))
	}
}

// Checkout converts the cart into one order per producer.
func (s *Service) Checkout(ctx context.Context, userID int64, shippingAddress string) ([]models.Order, error) {
	orders, err := store.Checkout(ctx, s.db, userID, shippingAddress)
	if err != nil {
		return nil, err
	}

	producers := make([]int64, 0, len(orders))
	orderIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		producers = append(producers, o.ProducerID)
		orderIDs = append(orderIDs, o.ID)
	}
	s.invalidateStats(ctx, producers...)

	s.logger.Info("checkout completed",
		zap.Int64("user_id", userID),
		zap.Int("orders", len(orders)),
	)
	s.audit.Record(ctx, audit.ActionCheckout, userID, userID, bson.M{"order_ids": orderIDs})

	return orders, nil
}

func (s *Service) BuyerOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return store.ListBuyerOrders(ctx, s.db, userID)
}

func (s *Service) BuyerOrdersPage(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error) {
	return store.ListBuyerOrdersCursor(ctx, s.db, userID, cursor, limit)
}

func canView(actor *models.User, order *models.Order) bool {
	return actor != nil && (actor.ID == order.UserID || actor.CanManage(order.ProducerID))
}

// Order returns an order to its buyer, its producer or staff.
func (s *Service) Order(ctx context.Context, actor *models.User, id int64) (*models.Order, error) {
	order, err := store.GetOrder(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, database.ErrForbidden
	}
	return order, nil
}

func (s *Service) VendorOrders(ctx context.Context, producerID int64, page, pageSize int) (*store.OffsetPage, error) {
	return store.ListVendorOrders(ctx, s.db, producerID, page, pageSize)
}

// VendorStats serves the producer dashboard, from cache when possible.
func (s *Service) VendorStats(ctx context.Context, producerID int64, start, end string) (*models.VendorStats, error) {
	period := cache.StatsPeriodField(start, end)

	// Read before computing so a checkout landing mid-query voids the put.
	version, versionErr := s.stats.VendorStatsVersion(ctx, producerID)
	if versionErr != nil {
		s.logger.Warn("vendor stats version read failed", zap.Int64("producer_id", producerID), zap.Error(versionErr))
	}

	cached, ok, err := s.stats.GetVendorStats(ctx, producerID, period)
	if err != nil {
		s.logger.Warn("vendor stats cache read failed", zap.Int64("producer_id", producerID), zap.Error(err))
	}
	if ok {
		return cached, nil
	}

	stats, err := store.VendorStats(ctx, s.db, producerID, store.ParseStatsRange(start, end))
	if err != nil {
		return nil, err
	}
	stats.Period = models.StatsPeriod{Start: optional(start), End: optional(end)}

	if versionErr == nil {
		if err := s.stats.PutVendorStats(ctx, producerID, version, period, stats); err != nil {
			s.logger.Warn("vendor stats cache write failed", zap.Int64("producer_id", producerID), zap.Error(err))
		}
	}

	return stats, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func validStatus(status string) bool {
	for _, s := range models.OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// UpdateOrderStatus lets the order's producer or staff move it along its
// lifecycle.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor *models.User, id int64, status string) (*models.Order, error) {
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	order, err := store.UpdateOrderStatus(ctx, s.db, id, status, func(o *models.Order) error {
		if !actor.CanManage(o.ProducerID) {
			return database.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, order.ProducerID)
	s.audit.Record(ctx, audit.ActionStatusChanged, actor.ID, order.ID, bson.M{"status": status})

	return order, nil
}
