package tracker

import (
	"time"

	"github.com/shopspring/decimal"
)

// lot is a slice of previously acquired asset quantity carrying its own
// cost, consumed FIFO on disposal.
type lot struct {
	Opened   time.Time
	Quantity Quantity
	Cost     decimal.Decimal // total cost of the lot (quantity * unit cost)
}

type lots []lot

// quantity is the total resting quantity across lots.
func (l lots) quantity() Quantity {
	var q Quantity
	for _, currentLot := range l {
		q = q.Add(currentLot.Quantity)
	}
	return q
}

// cost is the total cost basis across lots.
func (l lots) cost() decimal.Decimal {
	var c decimal.Decimal
	for _, currentLot := range l {
		c = c.Add(currentLot.Cost)
	}
	return c
}

// unitCost is the weighted-average unit cost of the resting quantity, zero
// when nothing rests.
func (l lots) unitCost() decimal.Decimal {
	q := l.quantity()
	if q.IsZero() {
		return decimal.Decimal{}
	}
	return l.cost().Div(q.Decimal())
}

// add opens a new lot.
func (l lots) add(opened time.Time, quantity Quantity, cost decimal.Decimal) lots {
	return append(l, lot{Opened: opened, Quantity: quantity, Cost: cost})
}

// costOfConsuming calculates the cost basis of disposing a quantity using
// FIFO, without modifying the lots.
func (l lots) costOfConsuming(quantityToSell Quantity) decimal.Decimal {
	var costOfSoldShares decimal.Decimal

	for _, currentLot := range l {
		if currentLot.Quantity.GreaterThan(quantityToSell) {
			// Partial sale from this lot
			costOfSoldPortion := currentLot.Cost.Mul(quantityToSell.Decimal()).Div(currentLot.Quantity.Decimal())
			return costOfSoldShares.Add(costOfSoldPortion)
		}
		// Full sale of this lot
		costOfSoldShares = costOfSoldShares.Add(currentLot.Cost)
		quantityToSell = quantityToSell.Sub(currentLot.Quantity)
	}
	return costOfSoldShares
}

// consume reduces the available lots by a quantity to sell using FIFO.
func (l lots) consume(quantityToSell Quantity) lots {
	var remainingLots lots

	for _, currentLot := range l {
		if quantityToSell.IsZero() {
			remainingLots = append(remainingLots, currentLot)
			continue
		}

		if currentLot.Quantity.GreaterThan(quantityToSell) {
			// Partial sale from this lot
			costOfSoldPortion := currentLot.Cost.Mul(quantityToSell.Decimal()).Div(currentLot.Quantity.Decimal())
			newLot := lot{
				Opened:   currentLot.Opened,
				Quantity: currentLot.Quantity.Sub(quantityToSell),
				Cost:     currentLot.Cost.Sub(costOfSoldPortion),
			}
			remainingLots = append(remainingLots, newLot)
			quantityToSell = Q(decimal.Zero)
		} else {
			// Full sale of this lot
			quantityToSell = quantityToSell.Sub(currentLot.Quantity)
		}
	}
	return remainingLots
}
