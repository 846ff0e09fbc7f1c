package catalog

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

func TestNormalizeProduct(t *testing.T) {
	in, err := normalizeProduct(store.ProductInput{Name: "  Honey ", UnitPrice: decimal.NewFromInt(3)})
	if err != nil {
		t.Fatalf("normalizeProduct: %v", err)
	}
	if in.Name != "Honey" || in.UnitType != models.UnitTypeUnit {
		t.Errorf("Unexpected normalized input %+v", in)
	}

	bad := []store.ProductInput{
		{Name: ""},
		{Name: "x", UnitType: "litre"},
		{Name: "x", UnitPrice: decimal.NewFromInt(-1)},
		{Name: "x", QuantityAvailable: decimal.NewFromInt(-1)},
	}
	for _, b := range bad {
		if _, err := normalizeProduct(b); !errors.Is(err, ErrInvalidProduct) {
			t.Errorf("%+v: expected invalid product, got %v", b, err)
		}
	}
}

func TestCreateProductRequiresSeller(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.CreateProduct(context.Background(), &models.User{ID: 1, Role: models.RoleConsumer}, store.ProductInput{Name: "x"})
	if !errors.Is(err, database.ErrForbidden) {
		t.Errorf("Expected forbidden, got %v", err)
	}
}

func TestCategoryWritesRequireStaff(t *testing.T) {
	svc := NewService(nil)
	producer := &models.User{ID: 1, Role: models.RoleProducer}

	if _, err := svc.CreateCategory(context.Background(), producer, "Epices"); !errors.Is(err, database.ErrForbidden) {
		t.Errorf("Expected forbidden, got %v", err)
	}
	if err := svc.DeleteCategory(context.Background(), producer, 1); !errors.Is(err, database.ErrForbidden) {
		t.Errorf("Expected forbidden, got %v", err)
	}
}

func TestProductOwnership(t *testing.T) {
	db := testutil.SetupDB(t)
	ctx := context.Background()
	svc := NewService(db)

	owner, err := store.CreateUser(ctx, db, store.NewUser{Email: "owner@example.com", Role: models.RoleProducer, IsActive: true})
	if err != nil {
		t.Fatalf("Create owner: %v", err)
	}
	rival, err := store.CreateUser(ctx, db, store.NewUser{Email: "rival@example.com", Role: models.RoleProducer, IsActive: true})
	if err != nil {
		t.Fatalf("Create rival: %v", err)
	}
	admin := &models.User{ID: 999, Role: models.RoleAdmin, IsStaff: true}

	product, err := svc.CreateProduct(ctx, owner, store.ProductInput{
		Name:      "Cashews",
		UnitType:  models.UnitTypeKg,
		UnitPrice: decimal.NewFromInt(12),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	if _, err := svc.Product(ctx, rival, product.ID); !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Unpublished product should be hidden from others, got %v", err)
	}
	if _, err := svc.Product(ctx, owner, product.ID); err != nil {
		t.Errorf("Owner should see draft: %v", err)
	}

	update := store.ProductInput{Name: "Cashews", UnitType: models.UnitTypeKg, UnitPrice: decimal.NewFromInt(15), IsPublished: true}
	if _, err := svc.UpdateProduct(ctx, rival, product.ID, update); !errors.Is(err, database.ErrForbidden) {
		t.Errorf("Expected forbidden update, got %v", err)
	}
	updated, err := svc.UpdateProduct(ctx, owner, product.ID, update)
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if !updated.UnitPrice.Equal(decimal.NewFromInt(15)) || !updated.IsPublished || updated.Version != 2 {
		t.Errorf("Unexpected updated product %+v", updated)
	}

	page, err := svc.Products(ctx, store.ProductFilter{Search: "cashew"}, 1, 10)
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("Expected search to find 1 product, got %d", page.Total)
	}

	if err := svc.DeleteProduct(ctx, rival, product.ID); !errors.Is(err, database.ErrForbidden) {
		t.Errorf("Expected forbidden delete, got %v", err)
	}
	if err := svc.DeleteProduct(ctx, admin, product.ID); err != nil {
		t.Errorf("Staff delete: %v", err)
	}
}

func TestProducerProductsHidesDraftsFromOthers(t *testing.T) {
	db := testutil.SetupDB(t)
	ctx := context.Background()
	svc := NewService(db)

	owner, err := store.CreateUser(ctx, db, store.NewUser{Email: "drafts@example.com", Role: models.RoleProducer, IsActive: true})
	if err != nil {
		t.Fatalf("Create owner: %v", err)
	}
	for _, published := range []bool{true, false} {
		_, err := svc.CreateProduct(ctx, owner, store.ProductInput{Name: "Item", UnitPrice: decimal.NewFromInt(1), IsPublished: published})
		if err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}
	}

	mine, err := svc.ProducerProducts(ctx, owner, owner.ID, true, 1, 10)
	if err != nil {
		t.Fatalf("ProducerProducts: %v", err)
	}
	if mine.Total != 2 {
		t.Errorf("Owner should see 2 products, got %d", mine.Total)
	}

	theirs, err := svc.ProducerProducts(ctx, &models.User{ID: owner.ID + 100}, owner.ID, true, 1, 10)
	if err != nil {
		t.Fatalf("ProducerProducts: %v", err)
	}
	if theirs.Total != 1 {
		t.Errorf("Others should see only published products, got %d", theirs.Total)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	db := testutil.SetupDB(t)
	ctx := context.Background()
	svc := NewService(db)
	admin := &models.User{ID: 1, IsStaff: true}

	seeded, err := svc.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(seeded) != 6 {
		t.Errorf("Expected 6 default categories, got %d", len(seeded))
	}

	cat, err := svc.CreateCategory(ctx, admin, "Epices")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if _, err := svc.CreateCategory(ctx, admin, "Epices"); !errors.Is(err, database.ErrDuplicateCategory) {
		t.Errorf("Expected duplicate category, got %v", err)
	}
	if err := svc.DeleteCategory(ctx, admin, cat.ID); err != nil {
		t.Errorf("DeleteCategory: %v", err)
	}
	if err := svc.DeleteCategory(ctx, admin, cat.ID); !errors.Is(err, database.ErrCategoryNotFound) {
		t.Errorf("Expected category not found, got %v", err)
	}
}
