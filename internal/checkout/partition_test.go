package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
)

func line(itemID, producerID int64, name string, qty, price string) Line {
	return Line{
		CartItemID:  itemID,
		ProductID:   itemID * 10,
		ProductName: name,
		ProducerID:  producerID,
		Quantity:    decimal.RequireFromString(qty),
		UnitPrice:   decimal.RequireFromString(price),
	}
}

func TestPartitionTwoProducers(t *testing.T) {
	lines := []Line{
		line(1, 101, "Igname", "3", "100"),
		line(2, 202, "Maïs", "1", "50"),
	}

	groups := Partition(lines)
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}

	if groups[0].ProducerID != 101 || !groups[0].Total().Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected producer 101 total 300, got %d total %s", groups[0].ProducerID, groups[0].Total())
	}
	if groups[1].ProducerID != 202 || !groups[1].Total().Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected producer 202 total 50, got %d total %s", groups[1].ProducerID, groups[1].Total())
	}
}

func TestPartitionPreservesLineOrderWithinGroup(t *testing.T) {
	lines := []Line{
		line(1, 1, "a", "1", "1"),
		line(2, 2, "b", "1", "1"),
		line(3, 1, "c", "1", "1"),
		line(4, 3, "d", "1", "1"),
		line(5, 1, "e", "1", "1"),
		line(6, 2, "f", "1", "1"),
	}

	groups := Partition(lines)
	if len(groups) != 3 {
		t.Fatalf("Expected 3 groups, got %d", len(groups))
	}

	wantOrder := map[int64][]int64{
		1: {1, 3, 5},
		2: {2, 6},
		3: {4},
	}
	for _, g := range groups {
		want := wantOrder[g.ProducerID]
		if len(g.Lines) != len(want) {
			t.Fatalf("Producer %d: expected %d lines, got %d", g.ProducerID, len(want), len(g.Lines))
		}
		for i, l := range g.Lines {
			if l.CartItemID != want[i] {
				t.Errorf("Producer %d: line %d is item %d, want %d", g.ProducerID, i, l.CartItemID, want[i])
			}
			if l.ProducerID != g.ProducerID {
				t.Errorf("Producer %d: group contains line from producer %d", g.ProducerID, l.ProducerID)
			}
		}
	}
}

func TestPartitionTotalsMatchCartTotal(t *testing.T) {
	lines := []Line{
		line(1, 7, "Tomates", "2.5", "350.00"),
		line(2, 8, "Lait", "1.25", "800.40"),
		line(3, 7, "Oignons", "0.75", "199.99"),
		line(4, 9, "Ananas", "4", "250"),
		line(5, 8, "Fromage", "0.33", "1200.10"),
	}

	cartTotal := Total(lines)

	sum := decimal.Zero
	count := 0
	for _, g := range Partition(lines) {
		sum = sum.Add(g.Total())
		count += len(g.Lines)
	}

	if !sum.Equal(cartTotal) {
		t.Errorf("Sum of group totals %s != cart total %s", sum, cartTotal)
	}
	if count != len(lines) {
		t.Errorf("Expected %d lines across groups, got %d", len(lines), count)
	}
}

func TestPartitionEmpty(t *testing.T) {
	if groups := Partition(nil); len(groups) != 0 {
		t.Errorf("Expected no groups, got %d", len(groups))
	}
	if !Total(nil).IsZero() {
		t.Error("Expected zero total for no lines")
	}
}

func TestZeroQuantityLineContributesNothing(t *testing.T) {
	groups := Partition([]Line{
		line(1, 1, "a", "0", "999"),
		line(2, 1, "b", "2", "10"),
	})

	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	if !groups[0].Total().Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected total 20, got %s", groups[0].Total())
	}
}
