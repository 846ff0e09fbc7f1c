package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/models"
	"github.com/shopspring/decimal"
)

// EnsureCart returns the user's cart id, creating the cart on first access.
func EnsureCart(ctx context.Context, q database.Querier, userID int64) (int64, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO carts (user_id, created_at, updated_at)
		 VALUES ($1, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return 0, database.ErrUserNotFound
		}
		return 0, fmt.Errorf("ensure cart: %w", err)
	}

	var cartID int64
	err = q.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if err != nil {
		return 0, fmt.Errorf("get cart id: %w", err)
	}

	return cartID, nil
}

// LockCart takes the row lock that serializes checkouts of the same cart.
// It returns ErrEmptyCart when the user has never had a cart.
func LockCart(ctx context.Context, tx *sql.Tx, userID int64) (int64, error) {
	var cartID int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`,
		userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrEmptyCart
		}
		return 0, fmt.Errorf("lock cart: %w", err)
	}
	return cartID, nil
}

func touchCart(ctx context.Context, q database.Querier, cartID int64) error {
	if _, err := q.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func GetCart(ctx context.Context, q database.Querier, userID int64) (*models.Cart, error) {
	cartID, err := EnsureCart(ctx, q, userID)
	if err != nil {
		return nil, err
	}

	cart := &models.Cart{ID: cartID, UserID: userID, Items: []models.CartItem{}}
	err = q.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM carts WHERE id = $1`,
		cartID).Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT ci.id, ci.cart_id, ci.product_id, p.name, ci.quantity, ci.unit_price,
		        ci.created_at, ci.updated_at
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.id`,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	cart.Total = decimal.Zero
	for rows.Next() {
		var item models.CartItem
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.Subtotal = item.Quantity.Mul(item.UnitPrice)
		cart.Total = cart.Total.Add(item.Subtotal)
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cart, nil
}

// UpsertCartItem inserts the line or, if the cart already holds the product,
// overwrites its quantity and price snapshot.
func UpsertCartItem(ctx context.Context, q database.Querier, cartID, productID int64, quantity, unitPrice decimal.Decimal) (int64, error) {
	var itemID int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT ON CONSTRAINT cart_items_cart_product_key
		 DO UPDATE SET quantity = EXCLUDED.quantity,
		               unit_price = EXCLUDED.unit_price,
		               updated_at = NOW()
		 RETURNING id`,
		cartID, productID, quantity, unitPrice).Scan(&itemID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return 0, database.ErrProductNotFound
		}
		return 0, fmt.Errorf("upsert cart item: %w", err)
	}

	if err := touchCart(ctx, q, cartID); err != nil {
		return 0, err
	}

	return itemID, nil
}

// AddCartItem snapshots the current price of a published product into the
// user's cart.
func AddCartItem(ctx context.Context, db *sql.DB, userID, productID int64, quantity decimal.Decimal) error {
	return database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		product, err := GetPublishedProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		cartID, err := EnsureCart(ctx, tx, userID)
		if err != nil {
			return err
		}

		_, err = UpsertCartItem(ctx, tx, cartID, product.ID, quantity, product.UnitPrice)
		return err
	})
}

// RemoveCartItem deletes a line only if it belongs to the user's cart.
func RemoveCartItem(ctx context.Context, q database.Querier, userID, itemID int64) error {
	result, err := q.ExecContext(ctx,
		`DELETE FROM cart_items ci
		 USING carts c
		 WHERE ci.cart_id = c.id AND c.user_id = $1 AND ci.id = $2`,
		userID, itemID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrCartItemNotFound
	}

	return nil
}

func ClearCart(ctx context.Context, q database.Querier, userID int64) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM cart_items ci
		 USING carts c
		 WHERE ci.cart_id = c.id AND c.user_id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
