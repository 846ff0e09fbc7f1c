package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/models"
	"github.com/safar/agrimarket/internal/store"
	"github.com/safar/agrimarket/internal/testutil"
	"github.com/shopspring/decimal"
)

func TestUpdateOrderStatusTransitions(t *testing.T) {
	db := testutil.SetupDB(t)
	ctx := context.Background()

	buyer := createUser(t, db, "status@example.com", models.RoleConsumer)
	producer := createUser(t, db, "statusfarm@example.com", models.RoleProducer)
	product := createProduct(t, db, producer.ID, "Okra", "4.00")
	addToCart(t, db, buyer.ID, product.ID, "3")

	orders, err := store.Checkout(ctx, db, buyer.ID, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	id := orders[0].ID

	if _, err := store.UpdateOrderStatus(ctx, db, id, models.OrderStatusShipped, nil); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("pending to shipped should be rejected, got %v", err)
	}

	order, err := store.UpdateOrderStatus(ctx, db, id, models.OrderStatusPaid, nil)
	if err != nil {
		t.Fatalf("Mark paid: %v", err)
	}
	if order.Status != models.OrderStatusPaid || order.Version != 2 {
		t.Errorf("Unexpected order after update: status=%s version=%d", order.Status, order.Version)
	}
	if len(order.Items) != 1 {
		t.Errorf("Expected items to be loaded, got %d", len(order.Items))
	}

	denied := errors.New("denied")
	_, err = store.UpdateOrderStatus(ctx, db, id, models.OrderStatusShipped, func(*models.Order) error { return denied })
	if !errors.Is(err, denied) {
		t.Errorf("Expected authorize error, got %v", err)
	}

	stored, err := store.GetOrder(ctx, db, id)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if stored.Status != models.OrderStatusPaid {
		t.Errorf("Vetoed update should leave status paid, got %s", stored.Status)
	}

	if _, err := store.UpdateOrderStatus(ctx, db, 999999, models.OrderStatusPaid, nil); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected order not found, got %v", err)
	}
}

func TestListVendorOrdersPaginates(t *testing.T) {
	db := testutil.SetupDB(t)
	ctx := context.Background()

	buyer := createUser(t, db, "pager@example.com", models.RoleConsumer)
	producer := createUser(t, db, "pagerfarm@example.com", models.RoleProducer)
	product := createProduct(t, db, producer.ID, "Millet", "2.00")

	for i := 0; i < 3; i++ {
		addToCart(t, db, buyer.ID, product.ID, "1")
		if _, err := store.Checkout(ctx, db, buyer.ID, ""); err != nil {
			t.Fatalf("Checkout %d: %v", i, err)
		}
	}

	page, err := store.ListVendorOrders(ctx, db, producer.ID, 1, 2)
	if err != nil {
		t.Fatalf("List vendor orders: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 {
		t.Errorf("Expected 3 orders over 2 pages, got total=%d pages=%d", page.Total, page.TotalPages)
	}

	items := page.Items.([]models.Order)
	if len(items) != 2 {
		t.Fatalf("Expected 2 orders on first page, got %d", len(items))
	}
	if !items[0].CreatedAt.After(items[1].CreatedAt) && items[0].ID < items[1].ID {
		t.Error("Vendor orders should be newest first")
	}

	cursorPage, err := store.ListBuyerOrdersCursor(ctx, db, buyer.ID, "", 2)
	if err != nil {
		t.Fatalf("List buyer orders: %v", err)
	}
	if !cursorPage.HasMore || cursorPage.NextCursor == "" {
		t.Fatalf("Expected another page, got %+v", cursorPage)
	}

	rest, err := store.ListBuyerOrdersCursor(ctx, db, buyer.ID, cursorPage.NextCursor, 2)
	if err != nil {
		t.Fatalf("List buyer orders page 2: %v", err)
	}
	if rest.HasMore || len(rest.Items.([]models.Order)) != 1 {
		t.Errorf("Expected final page with one order, got %+v", rest)
	}
}

func TestFirstCursorPageIncludesFutureDatedOrders(t *testing.T) {
	db := testutil.SetupDB(t)
	ctx := context.Background()

	buyer := createUser(t, db, "skew@example.com", models.RoleConsumer)
	producer := createUser(t, db, "skewfarm@example.com", models.RoleProducer)
	product := createProduct(t, db, producer.ID, "Fonio", "3.00")

	addToCart(t, db, buyer.ID, product.ID, "1")
	orders, err := store.Checkout(ctx, db, buyer.ID, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	// Clock skew between writers can leave rows stamped ahead of now.
	if _, err := db.Exec(`UPDATE orders SET created_at = NOW() + INTERVAL '2 hours' WHERE id = $1`, orders[0].ID); err != nil {
		t.Fatalf("Move order into the future: %v", err)
	}

	page, err := store.ListBuyerOrdersCursor(ctx, db, buyer.ID, "", 10)
	if err != nil {
		t.Fatalf("List buyer orders: %v", err)
	}
	items := page.Items.([]models.Order)
	if len(items) != 1 || items[0].ID != orders[0].ID {
		t.Errorf("Expected the future-dated order on the first page, got %+v", items)
	}
}

func TestVendorStats(t *testing.T) {
	db := testutil.SetupDB(t)
	ctx := context.Background()

	buyer := createUser(t, db, "stats@example.com", models.RoleConsumer)
	producer := createUser(t, db, "statsfarm@example.com", models.RoleProducer)
	tomatoes := createProduct(t, db, producer.ID, "Tomatoes", "100.00")
	onions := createProduct(t, db, producer.ID, "Onions", "50.00")

	addToCart(t, db, buyer.ID, tomatoes.ID, "2")
	addToCart(t, db, buyer.ID, onions.ID, "2")
	paid, err := store.Checkout(ctx, db, buyer.ID, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if _, err := store.UpdateOrderStatus(ctx, db, paid[0].ID, models.OrderStatusPaid, nil); err != nil {
		t.Fatalf("Mark paid: %v", err)
	}

	addToCart(t, db, buyer.ID, onions.ID, "1")
	if _, err := store.Checkout(ctx, db, buyer.ID, ""); err != nil {
		t.Fatalf("Second checkout: %v", err)
	}

	stats, err := store.VendorStats(ctx, db, producer.ID, store.StatsRange{})
	if err != nil {
		t.Fatalf("Vendor stats: %v", err)
	}

	if stats.Totals.Orders != 2 {
		t.Errorf("Expected 2 orders, got %d", stats.Totals.Orders)
	}
	if !stats.Totals.Revenue.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected revenue 300, got %s", stats.Totals.Revenue)
	}
	if !stats.Totals.ItemsSold.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected 4 items sold, got %s", stats.Totals.ItemsSold)
	}
	if stats.ByStatus[models.OrderStatusPaid] != 1 || stats.ByStatus[models.OrderStatusPending] != 1 {
		t.Errorf("Unexpected status counts %v", stats.ByStatus)
	}
	if stats.ByStatus[models.OrderStatusCancelled] != 0 {
		t.Errorf("Missing statuses should report zero, got %v", stats.ByStatus)
	}

	if len(stats.TopProducts) != 2 {
		t.Fatalf("Expected 2 top products, got %d", len(stats.TopProducts))
	}
	for _, p := range stats.TopProducts {
		if !p.QuantitySold.Equal(decimal.NewFromInt(2)) {
			t.Errorf("%s: pending order should not count, got quantity %s", p.ProductName, p.QuantitySold)
		}
	}

	empty, err := store.VendorStats(ctx, db, buyer.ID, store.StatsRange{})
	if err != nil {
		t.Fatalf("Vendor stats for non-producer: %v", err)
	}
	if empty.Totals.Orders != 0 || !empty.Totals.Revenue.IsZero() || len(empty.TopProducts) != 0 {
		t.Errorf("Expected empty stats, got %+v", empty)
	}
}
