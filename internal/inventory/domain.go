package inventory

import (
	"errors"
	"time"
)

// EventType enumerates entries of the append-only IO log.
type EventType string

const (
	// EventInbound records a purchase received into stock.
	EventInbound EventType = "inbound"
	// EventOutbound records stock leaving through a sale or shipment.
	EventOutbound EventType = "outbound"
	// EventReturn records stock sent back to the purchase partner.
	EventReturn EventType = "return"
	// EventExchange records a size exchange with the purchase partner.
	EventExchange EventType = "exchange"
	// EventPurchaseConfirm records quantity no longer eligible for return.
	EventPurchaseConfirm EventType = "purchase-confirm"
	// EventSaleSettle records the price agreed for a deferred outbound.
	EventSaleSettle EventType = "sale-settle"
)

// Valid reports whether the type is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventInbound, EventOutbound, EventReturn, EventExchange, EventPurchaseConfirm, EventSaleSettle:
		return true
	}
	return false
}

// Lot is one acquisition batch of a product size at a fixed unit cost.
type Lot struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Size          string    `json:"size"`
	Qty           int       `json:"qty"`
	PurchasePrice float64   `json:"purchase_price"`
	ReceivedAt    time.Time `json:"received_at"`
	ReceivedYmd   string    `json:"received_ymd,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedSeq    *int64    `json:"created_seq,omitempty"`
	ConfirmedQty  int       `json:"confirmed_qty"`
	PartnerID     string    `json:"partner_id,omitempty"`
	PaymentID     string    `json:"payment_id,omitempty"`
}

// Returnable is the quantity still eligible for return or exchange.
func (l Lot) Returnable() int {
	if l.ConfirmedQty >= l.Qty {
		return 0
	}
	return l.Qty - l.ConfirmedQty
}

// DisplayDate is the date shown for the lot and used as the dominant FIFO key.
func (l Lot) DisplayDate() string {
	if l.ReceivedYmd != "" {
		return l.ReceivedYmd
	}
	return localYmd(l.ReceivedAt)
}

// Validate asserts the lot quantity invariants.
func (l Lot) Validate() error {
	if l.Qty < 0 || l.ConfirmedQty < 0 || l.ConfirmedQty > l.Qty {
		return ErrInvariantViolation
	}
	return nil
}

// Allocation records the portion of one lot consumed by an outbound request.
type Allocation struct {
	LotID         string  `json:"lot_id"`
	Qty           int     `json:"qty"`
	PurchasePrice float64 `json:"purchase_price"`
}

// Event is an immutable entry in the IO log.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Date         time.Time `json:"date"`
	ProductID    string    `json:"product_id"`
	Size         string    `json:"size,omitempty"`
	FromSize     string    `json:"from_size,omitempty"`
	ToSize       string    `json:"to_size,omitempty"`
	Qty          int       `json:"qty"`
	UnitPurchase float64   `json:"unit_purchase"`
	PartnerID    string    `json:"partner_id,omitempty"`
	PaymentID    string    `json:"payment_id,omitempty"`
	LotID        string    `json:"lot_id,omitempty"`
	ReceivedAt   time.Time `json:"received_at,omitzero"`
	Memo         string    `json:"memo,omitempty"`
}

// Product is the catalog view the aggregator needs.
type Product struct {
	ID       string   `json:"id"`
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Brand    string   `json:"brand,omitempty"`
	Category string   `json:"category,omitempty"`
	Sizes    []string `json:"sizes,omitempty"`
}

// LotView is a lot as listed under a size rollup.
type LotView struct {
	Lot
	DisplayDate string `json:"display_date"`
}

// SizeRollup summarises one size of a product.
type SizeRollup struct {
	Size        string    `json:"size"`
	Qty         int       `json:"qty"`
	AvgUnitCost float64   `json:"avg_unit_cost"`
	Lots        []LotView `json:"lots"`
}

// AggregateRow summarises stock of one product.
type AggregateRow struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Brand       string       `json:"brand,omitempty"`
	Category    string       `json:"category,omitempty"`
	Qty         int          `json:"qty"`
	AvgUnitCost float64      `json:"avg_unit_cost"`
	Sizes       []SizeRollup `json:"sizes"`
}

// Size returns the rollup for size, if present.
func (r AggregateRow) Size(size string) (SizeRollup, bool) {
	for _, s := range r.Sizes {
		if s.Size == size {
			return s, true
		}
	}
	return SizeRollup{}, false
}

// PurchaseRow is an inbound record adjusted for later returns and exchanges.
type PurchaseRow struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"source_id"`
	Synthetic    bool      `json:"synthetic"`
	ProductID    string    `json:"product_id"`
	Size         string    `json:"size"`
	Ymd          string    `json:"ymd"`
	Date         time.Time `json:"date"`
	Qty          int       `json:"qty"`
	UnitPurchase float64   `json:"unit_purchase"`
	PartnerID    string    `json:"partner_id,omitempty"`
	PaymentID    string    `json:"payment_id,omitempty"`
}

// Sale is an outbound line satisfied by FIFO allocations.
type Sale struct {
	ID           string       `json:"id"`
	ProductID    string       `json:"product_id"`
	Size         string       `json:"size"`
	Qty          int          `json:"qty"`
	UnitPrice    float64      `json:"unit_price"`
	PartnerID    string       `json:"partner_id,omitempty"`
	Date         time.Time    `json:"date"`
	Allocations  []Allocation `json:"allocations"`
	TotalCost    float64      `json:"total_cost"`
	TotalRevenue float64      `json:"total_revenue"`
	Deferred     bool         `json:"deferred"`
	SettledAt    time.Time    `json:"settled_at,omitzero"`
}

// InboundLine is one product size of an inbound registration.
type InboundLine struct {
	ProductID     string
	Size          string
	Qty           int
	PurchasePrice float64
	PartnerID     string
	PaymentID     string
}

// InboundInput registers purchased stock.
type InboundInput struct {
	ReceivedYmd    string
	ReceivedAt     time.Time
	Lines          []InboundLine
	IdempotencyKey string
	ActorID        int64
}

// OutboundLine is one product size of an outbound registration.
type OutboundLine struct {
	ProductID string
	Size      string
	Qty       int
	UnitPrice float64
	PartnerID string
}

// OutboundInput registers stock leaving. Deferred outbound ships before the sale
// price is settled. Ymd places the outbound on a local date when Date is zero.
type OutboundInput struct {
	Date           time.Time
	Ymd            string
	Lines          []OutboundLine
	Deferred       bool
	IdempotencyKey string
	ActorID        int64
}

// SettleInput prices a deferred outbound so it becomes a sale.
type SettleInput struct {
	SaleID         string
	UnitPrice      float64
	IdempotencyKey string
	ActorID        int64
}

// ReturnInput sends part of a lot back to its purchase partner.
type ReturnInput struct {
	LotID   string
	Qty     int
	ActorID int64
}

// ExchangeInput swaps part of a lot for another size.
type ExchangeInput struct {
	LotID   string
	ToSize  string
	Qty     int
	ActorID int64
}

// ConfirmInput confirms purchase of part of a lot.
type ConfirmInput struct {
	LotID   string
	Qty     int
	ActorID int64
}

var (
	// ErrInsufficientStock indicates the pool cannot satisfy the requested quantity.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrMalformedRequest indicates a missing key or non-positive quantity.
	ErrMalformedRequest = errors.New("inventory: malformed request")
	// ErrInvariantViolation indicates a lot whose quantities are inconsistent.
	ErrInvariantViolation = errors.New("inventory: lot invariant violated")
	// ErrLotNotFound indicates an unknown lot id.
	ErrLotNotFound = errors.New("inventory: lot not found")
	// ErrExceedsReturnable indicates a quantity above the returnable headroom.
	ErrExceedsReturnable = errors.New("inventory: quantity exceeds returnable stock")
	// ErrSameSize indicates an exchange into the lot's own size.
	ErrSameSize = errors.New("inventory: exchange requires a different size")
	// ErrSaleNotFound indicates an unknown sale id.
	ErrSaleNotFound = errors.New("inventory: sale not found")
	// ErrSaleSettled indicates a sale that is not awaiting settlement.
	ErrSaleSettled = errors.New("inventory: sale already settled")
	// ErrReconciliationDrift indicates returns or exchanges exceed the recorded purchases.
	ErrReconciliationDrift = errors.New("inventory: event log exceeds recorded purchases")
)
