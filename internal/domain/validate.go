package domain

import (
	"fmt"
	"regexp"
)

// Width and rollover of display numbers are deployment knobs, so the shape
// check only requires digits, not a fixed length.
var orderNumberRe = regexp.MustCompile(`^\d+$`)

// ValidateMenuItem is the schema boundary for menu documents coming out of
// storage or staff input. Documents are never trusted to match the shape.
func ValidateMenuItem(m *MenuItem) error {
	if m.ID == "" {
		return fmt.Errorf("menu item: missing id")
	}
	if m.Name == "" {
		return fmt.Errorf("menu item %s: missing name", m.ID)
	}
	if m.Price <= 0 {
		return fmt.Errorf("menu item %s: price must be positive, got %d", m.ID, m.Price)
	}
	return nil
}

// ValidateOrder checks an order document read back from storage: known
// status, well-formed lines, display number shape, and the total-price
// invariant.
func ValidateOrder(o *Order) error {
	if o.ID == "" {
		return fmt.Errorf("order: missing id")
	}
	if o.TableID == "" {
		return fmt.Errorf("order %s: missing table id", o.ID)
	}
	if !ValidStatus(o.Status) {
		return fmt.Errorf("order %s: unknown status %q", o.ID, o.Status)
	}
	if !orderNumberRe.MatchString(o.OrderNumber) {
		return fmt.Errorf("order %s: malformed order number %q", o.ID, o.OrderNumber)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("order %s: no items", o.ID)
	}
	for i, it := range o.Items {
		if it.Name == "" {
			return fmt.Errorf("order %s: item %d missing name", o.ID, i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("order %s: item %d has quantity %d", o.ID, i, it.Quantity)
		}
		if it.Price <= 0 {
			return fmt.Errorf("order %s: item %d has price %d", o.ID, i, it.Price)
		}
		if it.Status != ItemPending && it.Status != ItemServed {
			return fmt.Errorf("order %s: item %d has status %q", o.ID, i, it.Status)
		}
	}
	if got := ItemsTotal(o.Items); got != o.TotalPrice {
		return fmt.Errorf("order %s: total %d does not match items sum %d", o.ID, o.TotalPrice, got)
	}
	return nil
}
