package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/agrimarket/internal/checkout"
	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/models"
	"github.com/shopspring/decimal"
)

func generateOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

// loadCheckoutLines reads the cart lines together with the owning producer of
// each product, in the order they were added.
func loadCheckoutLines(ctx context.Context, tx *sql.Tx, cartID int64) ([]checkout.Line, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT ci.id, p.id, p.name, p.producer_id, ci.quantity, ci.unit_price
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.id`,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	defer rows.Close()

	var lines []checkout.Line
	for rows.Next() {
		var l checkout.Line
		err := rows.Scan(&l.CartItemID, &l.ProductID, &l.ProductName, &l.ProducerID, &l.Quantity, &l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

// createGroupOrder writes one producer's order and its items. The total is
// accumulated while items are written and stored once they all exist.
func createGroupOrder(ctx context.Context, tx *sql.Tx, buyerID int64, shippingAddress string, group checkout.Group) (*models.Order, error) {
	order := &models.Order{
		UserID:          buyerID,
		ProducerID:      group.ProducerID,
		ShippingAddress: shippingAddress,
	}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (order_number, user_id, producer_id, status, total, shipping_address,
			created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, 0, $5, NOW(), NOW(), 1)
		 RETURNING id, order_number, status, created_at, updated_at, version`,
		generateOrderNumber(), buyerID, group.ProducerID, models.OrderStatusPending, shippingAddress,
	).Scan(&order.ID, &order.OrderNumber, &order.Status, &order.CreatedAt, &order.UpdatedAt, &order.Version)
	if err != nil {
		return nil, fmt.Errorf("create order for producer %d: %w", group.ProducerID, err)
	}

	total := decimal.Zero
	for _, line := range group.Lines {
		productID := line.ProductID
		item := models.OrderItem{
			OrderID:     order.ID,
			ProductID:   &productID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.Subtotal(),
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())
			 RETURNING id, created_at`,
			order.ID, productID, line.ProductName, line.Quantity, line.UnitPrice,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}

		total = total.Add(item.Subtotal)
		order.Items = append(order.Items, item)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET total = $1 WHERE id = $2`,
		total, order.ID)
	if err != nil {
		return nil, fmt.Errorf("store order total: %w", err)
	}
	order.Total = total

	return order, nil
}

// Checkout turns the user's cart into one pending order per producer and
// empties the cart. Everything happens in a single transaction holding the
// cart row lock, so either every order is created and the cart is cleared or
// nothing changes. A concurrent second checkout waits on the lock and then
// sees an empty cart.
func Checkout(ctx context.Context, db *sql.DB, userID int64, shippingAddress string) ([]models.Order, error) {
	var orders []models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		orders = nil

		cartID, err := LockCart(ctx, tx, userID)
		if err != nil {
			return err
		}

		lines, err := loadCheckoutLines(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return database.ErrEmptyCart
		}

		for _, group := range checkout.Partition(lines) {
			order, err := createGroupOrder(ctx, tx, userID, shippingAddress, group)
			if err != nil {
				return err
			}
			orders = append(orders, *order)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("clear cart after checkout: %w", err)
		}

		return touchCart(ctx, tx, cartID)
	})

	if err != nil {
		return nil, err
	}

	return orders, nil
}
