package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/models"
)

func ListCategories(ctx context.Context, db *sql.DB) ([]models.Category, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func CreateCategory(ctx context.Context, db *sql.DB, name string) (*models.Category, error) {
	c := &models.Category{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO categories (name, created_at) VALUES ($1, NOW())
		 RETURNING id, name, created_at`,
		name).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "categories_name_key") {
			return nil, database.ErrDuplicateCategory
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category; its products survive with a null
// category.
func DeleteCategory(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrCategoryNotFound
	}

	return nil
}
