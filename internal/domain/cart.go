package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// MaxQuantity bounds a single line; it matches the INTEGER quantity column.
const MaxQuantity = math.MaxInt32

type CartLine struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	LineDiscount int64  `json:"line_discount,omitempty"`
}

// Cart is the working set of lines for one checkout. It is owned by a
// single flow and is not safe for concurrent use.
type Cart struct {
	lines []CartLine
}

func NewCart() *Cart {
	return &Cart{}
}

// CartFromLines builds a cart, merging lines that name the same product.
func CartFromLines(lines []CartLine) (*Cart, error) {
	cart := NewCart()
	for _, line := range lines {
		if err := cart.AddLine(line); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

func (c *Cart) Add(productID string, quantity int) error {
	return c.AddLine(CartLine{ProductID: productID, Quantity: quantity})
}

func (c *Cart) AddLine(line CartLine) error {
	line.ProductID = strings.TrimSpace(line.ProductID)
	if line.ProductID == "" {
		return NewValidationError("product_id", "required")
	}
	if line.Quantity <= 0 {
		return NewValidationError("quantity", "must be positive")
	}
	if line.Quantity > MaxQuantity {
		return NewValidationError("quantity", fmt.Sprintf("must not exceed %d", MaxQuantity))
	}
	if line.LineDiscount < 0 {
		return NewValidationError("line_discount", "must not be negative")
	}

	for i := range c.lines {
		if c.lines[i].ProductID == line.ProductID {
			if c.lines[i].Quantity > MaxQuantity-line.Quantity {
				return NewValidationError("quantity", fmt.Sprintf("must not exceed %d", MaxQuantity))
			}
			c.lines[i].Quantity += line.Quantity
			c.lines[i].LineDiscount += line.LineDiscount
			return nil
		}
	}
	c.lines = append(c.lines, line)
	return nil
}

// SetQuantity replaces the quantity of a line. Zero removes the line.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return NewValidationError("quantity", "must not be negative")
	}
	if quantity == 0 {
		c.Remove(productID)
		return nil
	}
	if quantity > MaxQuantity {
		return NewValidationError("quantity", fmt.Sprintf("must not exceed %d", MaxQuantity))
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity = quantity
			return nil
		}
	}
	return c.Add(productID, quantity)
}

func (c *Cart) Remove(productID string) {
	kept := c.lines[:0]
	for _, line := range c.lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	c.lines = kept
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.lines))
	for _, line := range c.lines {
		ids = append(ids, line.ProductID)
	}
	sort.Strings(ids)
	return ids
}
