package order

import (
	"time"
)

// Status is the kitchen lifecycle stage of an order.
type Status string

const (
	StatusNew       Status = "new"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
)

// Valid reports whether s is one of the known lifecycle stages.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusPreparing, StatusReady:
		return true
	default:
		return false
	}
}

// Next returns the single forward successor of s. Ready has none; the step
// after ready is removal from the board.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusNew:
		return StatusPreparing, true
	case StatusPreparing:
		return StatusReady, true
	default:
		return "", false
	}
}

// Label returns the short display label for s.
func (s Status) Label() string {
	switch s {
	case StatusNew:
		return "New"
	case StatusPreparing:
		return "Preparing"
	case StatusReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// CanAdvance reports whether from -> to is the allowed forward step.
func CanAdvance(from, to Status) bool {
	next, ok := from.Next()
	return ok && next == to
}

// Order is a kitchen ticket as shown on the display.
type Order struct {
	ID              string     `json:"id"`
	OrderNumber     int64      `json:"orderNumber"`
	TransactionKey  string     `json:"transactionKey,omitempty"`
	StoreCode       string     `json:"storeCode"`
	POSCode         string     `json:"posCode"`
	Items           []LineItem `json:"items"`
	TotalAmount     Money      `json:"totalAmount"`
	TransactionDate string     `json:"transactionDate,omitempty"`
	Remarks         string     `json:"remarks,omitempty"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// LineItem is one product line of an order.
type LineItem struct {
	ItemName    string     `json:"itemName"`
	ItemCode    string     `json:"itemCode"`
	Quantity    int        `json:"quantity"`
	TotalAmount Money      `json:"totalAmount"`
	ItemRemark  string     `json:"itemRemark,omitempty"`
	Modifiers   []Modifier `json:"modifiers,omitempty"`
}

// Modifier is an add-on or change applied to a line item.
type Modifier struct {
	ItemModifierName string `json:"itemModifierName"`
	Quantity         int    `json:"quantity"`
}

// ItemCount returns the number of line items.
func (o Order) ItemCount() int {
	return len(o.Items)
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	dup := o
	if o.Items != nil {
		dup.Items = make([]LineItem, len(o.Items))
		for i, item := range o.Items {
			dup.Items[i] = item
			if item.Modifiers != nil {
				dup.Items[i].Modifiers = append([]Modifier(nil), item.Modifiers...)
			}
		}
	}
	return dup
}

// CloneAll deep-copies a slice of orders. A nil or empty input yields nil.
func CloneAll(orders []Order) []Order {
	if len(orders) == 0 {
		return nil
	}
	dup := make([]Order, len(orders))
	for i, o := range orders {
		dup[i] = o.Clone()
	}
	return dup
}

// IDs returns the ids of orders in order.
func IDs(orders []Order) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}
