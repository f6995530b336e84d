package dto

import (
	"time"

	"github.com/FedePlevak/Fila0/internal/order/domain/models"
)

// CartModifier mirrors models.ModifierChoice on the request side.
type CartModifier struct {
	GroupName  string  `json:"group_name"`
	OptionName string  `json:"option_name"`
	ExtraPrice float64 `json:"extra_price"`
}

// CartEntry is one line of the incoming cart. The cart is request
// input only; the engine never owns cart state between requests.
type CartEntry struct {
	ProductID          string         `json:"product_id"`
	Name               string         `json:"name"`
	UnitPrice          float64        `json:"unit_price"`
	Quantity           int            `json:"quantity"`
	RemovedIngredients []string       `json:"removed_ingredients,omitempty"`
	SelectedModifiers  []CartModifier `json:"selected_modifiers,omitempty"`
	ImageURL           string         `json:"image_url,omitempty"`
}

type CreateOrderRequest struct {
	VendorRelationID string      `json:"vendor_relation_id"`
	VendorName       string      `json:"vendor_name"`
	PaymentMethod    string      `json:"payment_method"`
	Cart             []CartEntry `json:"cart"`
}

type TransitionRequest struct {
	TargetStatus   string `json:"target_status"`
	ExpectedStatus string `json:"expected_status"`
}

const (
	PaymentEventConfirmed = "payment.confirmed"
	PaymentEventFailed    = "payment.failed"
)

// PaymentEvent is the gateway webhook payload.
type PaymentEvent struct {
	OrderID    string `json:"order_id"`
	Event      string `json:"event"`
	PaymentRef string `json:"payment_ref,omitempty"`
}

// Queues is the staff board projection for one vendor relation.
type Queues struct {
	New       []models.Order `json:"new"`
	Preparing []models.Order `json:"preparing"`
	Ready     []models.Order `json:"ready"`
}

// OrderEvent is published to the orders topic exchange on every
// committed status mutation.
type OrderEvent struct {
	OrderID          string        `json:"order_id"`
	VendorRelationID string        `json:"vendor_relation_id"`
	OldStatus        models.Status `json:"old_status"`
	NewStatus        models.Status `json:"new_status"`
	PickupCode       string        `json:"pickup_code"`
	ChangedBy        string        `json:"changed_by"`
	OccurredAt       time.Time     `json:"occurred_at"`
}

// ReadyNotification is the customer-facing "your order is ready" event.
type ReadyNotification struct {
	OrderID    string `json:"order_id"`
	PickupCode string `json:"pickup_code"`
	VendorName string `json:"vendor_name"`
}
