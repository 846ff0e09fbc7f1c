package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/models"
)

const orderColumns = `id, order_number, user_id, producer_id, status, total, shipping_address,
	created_at, updated_at, version`

// ErrInvalidTransition is returned when an order cannot move to the requested
// status from its current one.
var ErrInvalidTransition = errors.New("invalid order status transition")

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.ProducerID,
		&order.Status,
		&order.Total,
		&order.ShippingAddress,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func queryOrders(ctx context.Context, q database.Querier, query string, args ...any) ([]models.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// attachItems loads the items of every order in one query and assigns them in
// insertion order.
func attachItems(ctx context.Context, q database.Querier, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []models.OrderItem{}
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price, created_at
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		item.Subtotal = item.Quantity.Mul(item.UnitPrice)

		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}

	return rows.Err()
}

func GetOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []models.Order{*order}
	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

// ListBuyerOrders returns every order placed by the user, newest first.
func ListBuyerOrders(ctx context.Context, db *sql.DB, userID int64) ([]models.Order, error) {
	orders, err := queryOrders(ctx, db,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}

	if err := attachItems(ctx, db, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// ListBuyerOrdersCursor pages through the user's orders newest first using a
// keyset cursor on (created_at, id).
func ListBuyerOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1`
	args := []any{userID}
	if !cursorData.IsZero() {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, cursorData.CreatedAt, cursorData.ID)
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	orders, err := queryOrders(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachItems(ctx, db, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListVendorOrders returns one page of the orders addressed to a producer,
// newest first.
func ListVendorOrders(ctx context.Context, db *sql.DB, producerID int64, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE producer_id = $1`,
		producerID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count vendor orders: %w", err)
	}

	orders, err := queryOrders(ctx, db,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE producer_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		producerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	if err := attachItems(ctx, db, orders); err != nil {
		return nil, err
	}

	return NewOffsetPage(orders, total, page, pageSize), nil
}

// UpdateOrderStatus moves an order to a new status under a row lock. The
// authorize callback sees the locked order and may veto the change.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, id int64, status string, authorize func(*models.Order) error) (*models.Order, error) {
	var updated *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := scanOrder(tx.QueryRowContext(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if authorize != nil {
			if err := authorize(order); err != nil {
				return err
			}
		}

		if !models.CanTransition(order.Status, status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, status)
		}

		updated, err = scanOrder(tx.QueryRowContext(ctx,
			`UPDATE orders
			 SET status = $1, updated_at = NOW(), version = version + 1
			 WHERE id = $2 AND version = $3
			 RETURNING `+orderColumns,
			status, id, order.Version))
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		orders := []models.Order{*updated}
		if err := attachItems(ctx, tx, orders); err != nil {
			return err
		}
		updated = &orders[0]

		return nil
	})

	if err != nil {
		return nil, err
	}

	return updated, nil
}
