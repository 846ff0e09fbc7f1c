// Package catalog manages products and their categories.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/models"
	"github.com/safar/agrimarket/internal/store"
)

var ErrInvalidProduct = errors.New("invalid product")

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func isStaff(u *models.User) bool {
	return u != nil && (u.IsStaff || u.Role == models.RoleAdmin)
}

func canSell(u *models.User) bool {
	return u != nil && (u.Role == models.RoleProducer || isStaff(u))
}

func normalizeProduct(in store.ProductInput) (store.ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if in.UnitType == "" {
		in.UnitType = models.UnitTypeUnit
	}
	if in.UnitType != models.UnitTypeUnit && in.UnitType != models.UnitTypeKg {
		return in, fmt.Errorf("%w: unit type %q", ErrInvalidProduct, in.UnitType)
	}
	if in.UnitPrice.IsNegative() {
		return in, fmt.Errorf("%w: negative price", ErrInvalidProduct)
	}
	if in.QuantityAvailable.IsNegative() {
		return in, fmt.Errorf("%w: negative quantity", ErrInvalidProduct)
	}
	return in, nil
}

func (s *Service) CreateProduct(ctx context.Context, actor *models.User, in store.ProductInput) (*models.Product, error) {
	if !canSell(actor) {
		return nil, database.ErrForbidden
	}
	in, err := normalizeProduct(in)
	if err != nil {
		return nil, err
	}
	return store.CreateProduct(ctx, s.db, actor.ID, in)
}

func (s *Service) UpdateProduct(ctx context.Context, actor *models.User, id int64, in store.ProductInput) (*models.Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return nil, err
	}

	var product *models.Product
	err = database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := store.GetProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(current.ProducerID) {
			return database.ErrForbidden
		}
		product, err = store.UpdateProduct(ctx, tx, id, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, actor *models.User, id int64) error {
	return database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := store.GetProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(current.ProducerID) {
			return database.ErrForbidden
		}
		return store.DeleteProduct(ctx, tx, id)
	})
}

// Product hides unpublished products from everyone but their owner and staff.
func (s *Service) Product(ctx context.Context, actor *models.User, id int64) (*models.Product, error) {
	product, err := store.GetProduct(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !product.IsPublished && !actor.CanManage(product.ProducerID) {
		return nil, database.ErrProductNotFound
	}
	return product, nil
}

// Products lists the published catalog.
func (s *Service) Products(ctx context.Context, filter store.ProductFilter, page, pageSize int) (*store.OffsetPage, error) {
	filter.IncludeUnpublished = false
	return store.ListProducts(ctx, s.db, filter, page, pageSize)
}

// ProducerProducts lists one producer's products. Unpublished ones are only
// shown to the producer and staff.
func (s *Service) ProducerProducts(ctx context.Context, actor *models.User, producerID int64, includeUnpublished bool, page, pageSize int) (*store.OffsetPage, error) {
	includeUnpublished = includeUnpublished && actor.CanManage(producerID)
	return store.ListProductsByProducer(ctx, s.db, producerID, includeUnpublished, page, pageSize)
}

func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	return store.ListCategories(ctx, s.db)
}

func (s *Service) CreateCategory(ctx context.Context, actor *models.User, name string) (*models.Category, error) {
	if !isStaff(actor) {
		return nil, database.ErrForbidden
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrInvalidProduct)
	}
	return store.CreateCategory(ctx, s.db, name)
}

func (s *Service) DeleteCategory(ctx context.Context, actor *models.User, id int64) error {
	if !isStaff(actor) {
		return database.ErrForbidden
	}
	return store.DeleteCategory(ctx, s.db, id)
}
