package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, producer_id, category_id, name, short_description, long_description,
	unit_type, unit_price, quantity_available, location_village, location_commune,
	image_url, is_published, created_at, updated_at, version`

// ProductInput is the writable part of a product.
type ProductInput struct {
	CategoryID        *int64
	Name              string
	ShortDescription  string
	LongDescription   string
	UnitType          string
	UnitPrice         decimal.Decimal
	QuantityAvailable decimal.Decimal
	LocationVillage   string
	LocationCommune   string
	ImageURL          string
	IsPublished       bool
}

type ProductFilter struct {
	ProducerID         *int64
	CategoryID         *int64
	UnitType           string
	Search             string
	IncludeUnpublished bool
	Ordering           string
}

var productOrderings = map[string]string{
	"created_at":          "created_at ASC, id ASC",
	"-created_at":         "created_at DESC, id DESC",
	"updated_at":          "updated_at ASC, id ASC",
	"-updated_at":         "updated_at DESC, id DESC",
	"unit_price":          "unit_price ASC, id ASC",
	"-unit_price":         "unit_price DESC, id DESC",
	"quantity_available":  "quantity_available ASC, id ASC",
	"-quantity_available": "quantity_available DESC, id DESC",
	"name":                "name ASC, id ASC",
	"-name":               "name DESC, id DESC",
}

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID,
		&product.ProducerID,
		&product.CategoryID,
		&product.Name,
		&product.ShortDescription,
		&product.LongDescription,
		&product.UnitType,
		&product.UnitPrice,
		&product.QuantityAvailable,
		&product.LocationVillage,
		&product.LocationCommune,
		&product.ImageURL,
		&product.IsPublished,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func mapProductWriteError(op string, err error) error {
	if database.IsForeignKeyViolation(err) {
		return database.ErrCategoryNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func CreateProduct(ctx context.Context, q database.Querier, producerID int64, in ProductInput) (*models.Product, error) {
	query := `
		INSERT INTO products (producer_id, category_id, name, short_description, long_description,
			unit_type, unit_price, quantity_available, location_village, location_commune,
			image_url, is_published, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	product, err := scanProduct(q.QueryRowContext(ctx, query,
		producerID, in.CategoryID, in.Name, in.ShortDescription, in.LongDescription,
		in.UnitType, in.UnitPrice, in.QuantityAvailable, in.LocationVillage, in.LocationCommune,
		in.ImageURL, in.IsPublished))
	if err != nil {
		return nil, mapProductWriteError("create product", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetPublishedProduct hides unpublished products behind ErrProductNotFound.
func GetPublishedProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND is_published`

	product, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get published product: %w", err)
	}

	return product, nil
}

func UpdateProduct(ctx context.Context, q database.Querier, id int64, in ProductInput) (*models.Product, error) {
	query := `
		UPDATE products
		SET category_id = $1, name = $2, short_description = $3, long_description = $4,
		    unit_type = $5, unit_price = $6, quantity_available = $7, location_village = $8,
		    location_commune = $9, image_url = $10, is_published = $11,
		    updated_at = NOW(), version = version + 1
		WHERE id = $12
		RETURNING ` + productColumns

	product, err := scanProduct(q.QueryRowContext(ctx, query,
		in.CategoryID, in.Name, in.ShortDescription, in.LongDescription, in.UnitType,
		in.UnitPrice, in.QuantityAvailable, in.LocationVillage, in.LocationCommune,
		in.ImageURL, in.IsPublished, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, mapProductWriteError("update product", err)
	}

	return product, nil
}

// DeleteProduct removes the product. Order items keep their snapshot with a
// null product reference; cart lines for it are dropped.
func DeleteProduct(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

func (f ProductFilter) where() (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.IncludeUnpublished {
		conds = append(conds, "is_published")
	}
	if f.ProducerID != nil {
		add("producer_id = $%d", *f.ProducerID)
	}
	if f.CategoryID != nil {
		add("category_id = $%d", *f.CategoryID)
	}
	if f.UnitType != "" {
		add("unit_type = $%d", f.UnitType)
	}
	if f.Search != "" {
		add(`(name ILIKE $%[1]d OR short_description ILIKE $%[1]d OR long_description ILIKE $%[1]d
			OR location_village ILIKE $%[1]d OR location_commune ILIKE $%[1]d)`,
			"%"+f.Search+"%")
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func ListProducts(ctx context.Context, db *sql.DB, filter ProductFilter, page, pageSize int) (*OffsetPage, error) {
	where, args := filter.where()

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products `+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	orderBy, ok := productOrderings[filter.Ordering]
	if !ok {
		orderBy = productOrderings["-created_at"]
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		productColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewOffsetPage(products, total, page, pageSize), nil
}

// ListProductsByProducer lists one producer's products. Unpublished ones are
// included only when includeUnpublished is set.
func ListProductsByProducer(ctx context.Context, db *sql.DB, producerID int64, includeUnpublished bool, page, pageSize int) (*OffsetPage, error) {
	return ListProducts(ctx, db, ProductFilter{
		ProducerID:         &producerID,
		IncludeUnpublished: includeUnpublished,
	}, page, pageSize)
}
