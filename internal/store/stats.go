package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/safar/agrimarket/internal/models"
	"github.com/shopspring/decimal"
)

const topProductsLimit = 5

// StatsRange bounds the orders counted by VendorStats. A nil bound is open.
type StatsRange struct {
	Start *time.Time
	End   *time.Time
}

func parseStatsBound(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, time.UTC); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ParseStatsRange accepts YYYY-MM-DD or RFC 3339 bounds. The end bound is
// moved to 23:59:59 of its day so the whole day is included. Bounds that do
// not parse are dropped.
func ParseStatsRange(start, end string) StatsRange {
	var r StatsRange

	if t, ok := parseStatsBound(start); ok {
		r.Start = &t
	}
	if t, ok := parseStatsBound(end); ok {
		t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
		r.End = &t
	}

	return r
}

func (r StatsRange) where(producerID int64) (string, []any) {
	conds := []string{"o.producer_id = $1"}
	args := []any{producerID}

	if r.Start != nil {
		args = append(args, *r.Start)
		conds = append(conds, fmt.Sprintf("o.created_at >= $%d", len(args)))
	}
	if r.End != nil {
		args = append(args, *r.End)
		conds = append(conds, fmt.Sprintf("o.created_at <= $%d", len(args)))
	}

	return strings.Join(conds, " AND "), args
}

// VendorStats aggregates a producer's orders inside the range. Every status is
// counted, but revenue, items sold and top products only consider
// models.RevenueStatuses.
func VendorStats(ctx context.Context, db *sql.DB, producerID int64, r StatsRange) (*models.VendorStats, error) {
	stats := &models.VendorStats{
		ByStatus:    make(map[string]int64, len(models.OrderStatuses)),
		TopProducts: []models.TopProduct{},
	}
	for _, status := range models.OrderStatuses {
		stats.ByStatus[status] = 0
	}

	where, args := r.where(producerID)

	rows, err := db.QueryContext(ctx,
		`SELECT o.status, COUNT(*) FROM orders o WHERE `+where+` GROUP BY o.status`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Totals.Orders += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	revArgs := append(append([]any{}, args...), pq.Array(models.RevenueStatuses))
	revenueFilter := fmt.Sprintf("%s AND o.status = ANY($%d)", where, len(revArgs))

	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(o.total), 0) FROM orders o WHERE `+revenueFilter,
		revArgs...).Scan(&stats.Totals.Revenue)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(oi.quantity), 0)
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE `+revenueFilter,
		revArgs...).Scan(&stats.Totals.ItemsSold)
	if err != nil {
		return nil, fmt.Errorf("sum items sold: %w", err)
	}

	topRows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT oi.product_name, SUM(oi.quantity), SUM(oi.quantity * oi.unit_price)
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE %s
		 GROUP BY oi.product_name
		 ORDER BY SUM(oi.quantity) DESC, oi.product_name
		 LIMIT %d`, revenueFilter, topProductsLimit),
		revArgs...)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer topRows.Close()

	for topRows.Next() {
		var p models.TopProduct
		var qty, revenue decimal.NullDecimal
		if err := topRows.Scan(&p.ProductName, &qty, &revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		p.QuantitySold = qty.Decimal
		p.Revenue = revenue.Decimal
		stats.TopProducts = append(stats.TopProducts, p)
	}
	if err := topRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return stats, nil
}
