package cart

import (
	"math"
	"time"

	"github.com/dcutelaria/storefront/internal/models"
)

// Volume discount policy: carts holding at least DiscountThreshold thermal-box
// units get DiscountRate off the thermal-box subtotal. Business constants,
// not runtime configuration.
const (
	DiscountThreshold = 3
	DiscountRate      = 0.20
)

// Cart holds the lines selected during a browsing session, keyed by product id.
// It is a plain value; all derived figures come from Totals.
type Cart struct {
	SessionID string            `json:"sessionId"`
	Lines     []models.CartLine `json:"lines"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Totals is derived from the cart on every read and never stored.
type Totals struct {
	ThermalSubtotal int64 `json:"thermalSubtotal"`
	OtherSubtotal   int64 `json:"otherSubtotal"`
	ThermalUnits    int   `json:"thermalUnits"`
	Discount        int64 `json:"discount"`
	Total           int64 `json:"total"`
	HasDiscount     bool  `json:"hasDiscount"`
}

// AddItem inserts the line or increments the quantity of an existing line with
// the same product id. Quantities below 1 are normalized to 1.
func (c *Cart) AddItem(line models.CartLine) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == line.ProductID {
			c.Lines[i].Quantity += line.Quantity
			c.UpdatedAt = time.Now().UTC()
			return
		}
	}
	c.Lines = append(c.Lines, line)
	c.UpdatedAt = time.Now().UTC()
}

// UpdateQuantity sets the quantity for a product; qty <= 0 removes the line.
func (c *Cart) UpdateQuantity(productID string, qty int) {
	if qty <= 0 {
		c.RemoveItem(productID)
		return
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = qty
			c.UpdatedAt = time.Now().UTC()
			return
		}
	}
}

// RemoveItem deletes the line for the given product id, if present.
func (c *Cart) RemoveItem(productID string) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.UpdatedAt = time.Now().UTC()
			return
		}
	}
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.Lines = nil
	c.UpdatedAt = time.Now().UTC()
}

// Totals partitions the lines into thermal-box and other lines and applies the
// volume discount. The discount is rounded to the nearest centavo.
func (c *Cart) Totals() Totals {
	var t Totals
	for _, line := range c.Lines {
		amount := line.UnitPrice * int64(line.Quantity)
		if line.Category == models.CategoryThermalBox {
			t.ThermalSubtotal += amount
			t.ThermalUnits += line.Quantity
		} else {
			t.OtherSubtotal += amount
		}
	}
	if t.ThermalUnits >= DiscountThreshold {
		t.HasDiscount = true
		t.Discount = int64(math.Round(float64(t.ThermalSubtotal) * DiscountRate))
	}
	t.Total = t.ThermalSubtotal - t.Discount + t.OtherSubtotal
	return t
}

// PotentialSavings estimates the discount the buyer would unlock by adding
// enough thermal-box units to reach the threshold, pricing the hypothetical
// extra units at the average unit price of thermal-box lines already in the
// cart. This is a UX hint only, an approximation rather than a pricing
// commitment; it returns 0 when the cart already qualifies or holds no
// thermal-box lines.
func (c *Cart) PotentialSavings() int64 {
	t := c.Totals()
	if t.ThermalUnits == 0 || t.ThermalUnits >= DiscountThreshold {
		return 0
	}
	avg := float64(t.ThermalSubtotal) / float64(t.ThermalUnits)
	missing := DiscountThreshold - t.ThermalUnits
	projected := float64(t.ThermalSubtotal) + avg*float64(missing)
	return int64(math.Round(projected * DiscountRate))
}
