package model

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation          = errors.New("invalid input")
	ErrOrderNotFound       = errors.New("order not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrInvalidTransition   = errors.New("illegal order status transition")
	ErrOrderNotCancellable = errors.New("order cannot be cancelled in its current state")
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// statusTransitions is the full table of legal forward moves. A status never
// regresses; cancelled and delivered are terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func (s OrderStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Order struct {
	ID              uuid.UUID
	UserID          string
	TotalCents      int64
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	ShippingAddress string
	PaymentMethod   string
	Notes           string
	TrackingNumber  string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	PriceCents  int64
}

// ItemsTotalCents recomputes the total from the line items. It must always
// equal TotalCents for a persisted order.
func (o *Order) ItemsTotalCents() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.PriceCents * int64(item.Quantity)
	}
	return total
}

func (o *Order) Cancellable() bool {
	return o.Status == StatusPending || o.Status == StatusProcessing
}

// Requester is the verified identity supplied by the authentication
// collaborator. The core trusts it as a precondition.
type Requester struct {
	UserID string
	Role   string
}

func (r Requester) Staff() bool {
	return r.Role == "admin" || r.Role == "manager"
}

func (r Requester) CanAccess(order *Order) bool {
	return r.Staff() || r.UserID == order.UserID
}

type ListOrdersFilter struct {
	UserID string
	Status OrderStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type OrderRepository interface {
	NextID() (uuid.UUID, error)
	Create(ctx context.Context, order *Order) error
	Find(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindForUpdate loads the order and holds its row lock for the
	// remainder of the unit of work. Every read-modify-write of an order
	// must go through it so two transactions can never act on the same
	// stale status.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	Update(ctx context.Context, order *Order) error
	List(ctx context.Context, filter ListOrdersFilter) ([]Order, int, error)
}
