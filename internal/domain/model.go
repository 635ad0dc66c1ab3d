package domain

import "time"

// TableTakeaway is the sentinel table ID for orders not bound to a seat.
const TableTakeaway = "Takeaway"

// MenuItem is a sellable unit. Staff mutate these through the menu service;
// the ordering flow only reads them. Orders copy item fields by value, so a
// menu item may be edited or retired without touching historical orders.
type MenuItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       int64  `json:"price"` // smallest currency unit
	Description string `json:"description"`
	Available   bool   `json:"available"`
	ImageRef    string `json:"image_ref,omitempty"`
	ShowImage   bool   `json:"show_image"`
}

// ItemStatus is the per-line service state inside an order.
type ItemStatus string

const (
	ItemPending ItemStatus = "Pending"
	ItemServed  ItemStatus = "Served"
)

// CartItem is a menu-item snapshot plus quantity and per-line service status.
// It only exists inside a cart or an order. AddedAt is set when the line was
// appended after the initial placement, zero otherwise.
type CartItem struct {
	MenuItemID string     `json:"menu_item_id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Price      int64      `json:"price"`
	Quantity   int        `json:"quantity"`
	Status     ItemStatus `json:"status"`
	AddedAt    time.Time  `json:"added_at,omitempty"`
}

// Order is the central entity tracked through the status lifecycle.
// TotalPrice is maintained additively on every append and always equals the
// sum of price*quantity over Items.
type Order struct {
	ID      string `json:"id"`
	TableID string `json:"table_id"`
	// DeviceID binds the order to the device that placed it, so the session
	// expiry can clear that device's cart.
	DeviceID      string     `json:"device_id,omitempty"`
	OrderNumber   string     `json:"order_number"` // per-day display number, not a key
	Items         []CartItem `json:"items"`
	TotalPrice    int64      `json:"total_price"`
	Status        Status     `json:"status"`
	HelpRequested bool       `json:"help_requested"`
	Timestamp     time.Time  `json:"timestamp"`
}

// ArchivedOrder is the historical copy written on completion. The live order
// and its archived copy never coexist.
type ArchivedOrder struct {
	Order
	ArchivedAt time.Time `json:"archived_at"`
}

// PrintSettings holds receipt branding, stored as a single settings row.
type PrintSettings struct {
	StoreName     string `json:"store_name"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	TaxID         string `json:"tax_id"`
	FooterMessage string `json:"footer_message"`
}

// Total returns price*quantity for the line.
func (c CartItem) Total() int64 { return c.Price * int64(c.Quantity) }

// ItemsTotal recomputes the sum over items; used to check the TotalPrice
// invariant, not to maintain it.
func ItemsTotal(items []CartItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.Total()
	}
	return sum
}

// AllServed reports whether every line of the order has been served.
func (o *Order) AllServed() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		if it.Status != ItemServed {
			return false
		}
	}
	return true
}
