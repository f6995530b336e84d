package models

import "time"

type PaymentMethod string

const (
	PaymentOnline  PaymentMethod = "online"
	PaymentCounter PaymentMethod = "counter"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentOnline || m == PaymentCounter
}

// ModifierChoice is one selected option of a modifier group, priced at
// order time.
type ModifierChoice struct {
	GroupName  string  `json:"group_name"`
	OptionName string  `json:"option_name"`
	ExtraPrice float64 `json:"extra_price"`
}

// LineItem is a frozen copy of one purchased product. ProductID is kept
// for traceability only and is never dereferenced again; name, prices
// and image URL are copied by value at checkout.
type LineItem struct {
	ProductID          string           `json:"product_id"`
	Name               string           `json:"name"`
	UnitPrice          float64          `json:"unit_price"`
	Quantity           int              `json:"quantity"`
	RemovedIngredients []string         `json:"removed_ingredients,omitempty"`
	SelectedModifiers  []ModifierChoice `json:"selected_modifiers,omitempty"`
	Subtotal           float64          `json:"subtotal"`
	ImageURL           string           `json:"image_url,omitempty"`
}

// Snapshot is the immutable record of what the customer agreed to pay.
// It is written once at order creation and never recalculated from live
// menu data.
type Snapshot struct {
	Items []LineItem `json:"items"`
	Total float64    `json:"total"`
}

type Order struct {
	OrderID          string        `json:"order_id"`
	VendorRelationID string        `json:"vendor_relation_id"`
	VendorName       string        `json:"vendor_name"`
	PickupCode       string        `json:"pickup_code"`
	Status           Status        `json:"status"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	PaymentRef       string        `json:"payment_ref,omitempty"`
	Total            float64       `json:"total"`
	Snapshot         Snapshot      `json:"snapshot"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	ReadyAt          *time.Time    `json:"ready_at,omitempty"`
	DeliveredAt      *time.Time    `json:"delivered_at,omitempty"`
}

// TransitionAllowed checks the graph plus the one order-local rule:
// created -> in_progress skips payment confirmation and is reserved for
// counter-payment orders.
func (o Order) TransitionAllowed(to Status) bool {
	if !CanTransition(o.Status, to) {
		return false
	}
	if o.Status == StatusCreated && to == StatusInProgress && o.PaymentMethod != PaymentCounter {
		return false
	}
	return true
}

// StatusLogEntry is one row of the order's audit trail.
type StatusLogEntry struct {
	Status    Status    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Note      string    `json:"note,omitempty"`
}
