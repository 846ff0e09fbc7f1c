// Package checkout splits a multi-producer cart into one order draft per
// producer. It is pure: persistence lives in the store package.
package checkout

import (
	"github.com/shopspring/decimal"
)

// Line is a cart line joined with the product it points at.
type Line struct {
	CartItemID  int64
	ProductID   int64
	ProductName string
	ProducerID  int64
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Subtotal is quantity times the price snapshot taken when the line was added.
func (l Line) Subtotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Group holds the lines belonging to a single producer, in cart order.
type Group struct {
	ProducerID int64
	Lines      []Line
}

// Total is the running sum of the group's line subtotals.
func (g Group) Total() decimal.Decimal {
	return Total(g.Lines)
}

// Partition groups lines by producer. Groups appear in the order their
// producer is first seen and each keeps its lines in input order.
func Partition(lines []Line) []Group {
	index := make(map[int64]int)
	var groups []Group

	for _, line := range lines {
		i, ok := index[line.ProducerID]
		if !ok {
			i = len(groups)
			index[line.ProducerID] = i
			groups = append(groups, Group{ProducerID: line.ProducerID})
		}
		groups[i].Lines = append(groups[i].Lines, line)
	}

	return groups
}

func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
