package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"shopcore/pkg/common/domain"
	"shopcore/pkg/domain/model"
)

type OrderLine struct {
	ProductID uuid.UUID
	Quantity  int
}

type PlaceOrderInput struct {
	UserID          string
	Items           []OrderLine
	ShippingAddress string
	PaymentMethod   string
	Notes           string
}

// CartClearer is the cart collaborator, told to empty itself after a
// successful placement.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type OrderService interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, requester model.Requester) (*model.Order, error)
	ListOrders(ctx context.Context, filter model.ListOrdersFilter, requester model.Requester) ([]model.Order, int, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus model.OrderStatus, trackingNumber string, requester model.Requester) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string, requester model.Requester) (*model.Order, error)
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, reference string) (*model.Order, error)
}

func NewOrderService(uow model.UnitOfWork, orders model.OrderRepository, cart CartClearer, dispatcher domain.EventDispatcher) OrderService {
	return &orderService{uow: uow, orders: orders, cart: cart, dispatcher: dispatcher}
}

type orderService struct {
	uow        model.UnitOfWork
	orders     model.OrderRepository
	cart       CartClearer
	dispatcher domain.EventDispatcher
}

func (s *orderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*model.Order, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var order *model.Order
	err := s.uow.Execute(ctx, func(rp model.RepositoryProvider) error {
		order = nil

		products, err := rp.Stock().LockProducts(ctx, distinctProductIDs(input.Items))
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]model.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		orderID, err := rp.Orders().NextID()
		if err != nil {
			return err
		}

		items := make([]model.OrderItem, 0, len(input.Items))
		var total int64
		for _, line := range input.Items {
			product, ok := byID[line.ProductID]
			if !ok {
				return fmt.Errorf("%w: %s", model.ErrProductNotFound, line.ProductID)
			}

			reason := fmt.Sprintf("Order %s", orderID)
			if err := rp.Stock().Reserve(ctx, line.ProductID, line.Quantity, reason, input.UserID); err != nil {
				return err
			}

			itemID, err := rp.Orders().NextID()
			if err != nil {
				return err
			}
			items = append(items, model.OrderItem{
				ID:          itemID,
				OrderID:     orderID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				PriceCents:  product.PriceCents,
			})
			total += product.PriceCents * int64(line.Quantity)
		}

		now := time.Now().UTC()
		order = &model.Order{
			ID:              orderID,
			UserID:          input.UserID,
			TotalCents:      total,
			Status:          model.StatusPending,
			PaymentStatus:   model.PaymentPending,
			ShippingAddress: input.ShippingAddress,
			PaymentMethod:   input.PaymentMethod,
			Notes:           input.Notes,
			Items:           items,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return rp.Orders().Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	// Side effects run strictly after commit so they can never be rolled
	// back into a half-applied state.
	if err := s.cart.ClearCart(ctx, input.UserID); err != nil {
		log.WithError(err).WithField("userID", input.UserID).Warn("failed to clear cart after checkout")
	}
	s.dispatch(model.OrderCreated{
		OrderID:        order.ID,
		AffectedFields: []string{"status", "total_cents", "items"},
		Actor:          input.UserID,
		Timestamp:      time.Now().UTC(),
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID, requester model.Requester) (*model.Order, error) {
	order, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !requester.CanAccess(order) {
		return nil, model.ErrAccessDenied
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter model.ListOrdersFilter, requester model.Requester) ([]model.Order, int, error) {
	// Non-staff callers only ever see their own orders.
	if !requester.Staff() {
		filter.UserID = requester.UserID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", model.ErrValidation, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.orders.List(ctx, filter)
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus model.OrderStatus, trackingNumber string, requester model.Requester) (*model.Order, error) {
	if !requester.Staff() {
		return nil, model.ErrAccessDenied
	}
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, newStatus)
	}

	var (
		order   *model.Order
		changed bool
	)
	err := s.uow.Execute(ctx, func(rp model.RepositoryProvider) error {
		changed = false
		found, err := rp.Orders().FindForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		order = found

		// Repeating the current status is a no-op success.
		if order.Status == newStatus {
			return nil
		}
		if !order.Status.CanTransitionTo(newStatus) {
			return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, order.Status, newStatus)
		}

		order.Status = newStatus
		if trackingNumber != "" {
			order.TrackingNumber = trackingNumber
		}
		order.UpdatedAt = time.Now().UTC()
		changed = true
		return rp.Orders().Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.dispatch(model.OrderStatusUpdated{
			OrderID:        order.ID,
			AffectedFields: []string{"status", "tracking_number"},
			Status:         order.Status,
			TrackingNumber: order.TrackingNumber,
			Actor:          requester.UserID,
			Timestamp:      time.Now().UTC(),
		})
	}
	return order, nil
}

func (s *orderService) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string, requester model.Requester) (*model.Order, error) {
	var order *model.Order
	err := s.uow.Execute(ctx, func(rp model.RepositoryProvider) error {
		found, err := rp.Orders().FindForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		order = found

		if !requester.CanAccess(order) {
			return model.ErrAccessDenied
		}
		if !order.Cancellable() {
			return fmt.Errorf("%w: status is %s", model.ErrOrderNotCancellable, order.Status)
		}

		// Product rows are locked up front in the same ascending order
		// placement uses, so a cancellation can never circular-wait with
		// a concurrent checkout sharing products.
		if _, err := rp.Stock().LockProducts(ctx, orderProductIDs(order.Items)); err != nil {
			return err
		}

		// Restore exactly what placement consumed, one ledger entry per
		// line item.
		logReason := fmt.Sprintf("Order %s cancelled: %s", order.ID, reason)
		for _, item := range order.Items {
			if err := rp.Stock().Release(ctx, item.ProductID, item.Quantity, logReason, requester.UserID); err != nil {
				return err
			}
		}

		order.Status = model.StatusCancelled
		if reason != "" {
			order.Notes = order.Notes + "\nCancellation reason: " + reason
		}
		order.UpdatedAt = time.Now().UTC()
		return rp.Orders().Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(model.OrderCancelled{
		OrderID:        order.ID,
		AffectedFields: []string{"status", "notes"},
		Reason:         reason,
		Actor:          requester.UserID,
		Timestamp:      time.Now().UTC(),
	})
	return order, nil
}

func (s *orderService) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, reference string) (*model.Order, error) {
	var order *model.Order
	err := s.uow.Execute(ctx, func(rp model.RepositoryProvider) error {
		found, err := rp.Orders().FindForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		order = found

		if order.Status == model.StatusCancelled {
			return fmt.Errorf("%w: cannot record payment for a cancelled order", model.ErrValidation)
		}
		if order.PaymentStatus == model.PaymentCompleted {
			return nil
		}

		order.PaymentStatus = model.PaymentCompleted
		if reference != "" {
			order.Notes = order.Notes + "\nPayment reference: " + reference
		}
		order.UpdatedAt = time.Now().UTC()
		return rp.Orders().Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) dispatch(event domain.Event) {
	if err := s.dispatcher.Dispatch(event); err != nil {
		log.WithError(err).WithField("event", event.Type()).Error("failed to dispatch event")
	}
}

func (in PlaceOrderInput) validate() error {
	if in.UserID == "" {
		return fmt.Errorf("%w: user id is required", model.ErrValidation)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", model.ErrValidation)
	}
	for _, line := range in.Items {
		if line.ProductID == uuid.Nil {
			return fmt.Errorf("%w: item product id is required", model.ErrValidation)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: item quantity must be positive", model.ErrValidation)
		}
	}
	if in.ShippingAddress == "" {
		return fmt.Errorf("%w: shipping address is required", model.ErrValidation)
	}
	if in.PaymentMethod == "" {
		return fmt.Errorf("%w: payment method is required", model.ErrValidation)
	}
	return nil
}

// distinctProductIDs returns the deduplicated product ids in ascending
// order. Locks are always acquired in this order to avoid lock-ordering
// deadlocks between concurrent checkouts sharing products.
func distinctProductIDs(items []OrderLine) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, line := range items {
		ids = append(ids, line.ProductID)
	}
	return sortedDistinct(ids)
}

// orderProductIDs is the cancellation counterpart of distinctProductIDs,
// derived from persisted line items.
func orderProductIDs(items []model.OrderItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return sortedDistinct(ids)
}

func sortedDistinct(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	distinct := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i].String() < distinct[j].String() })
	return distinct
}
