package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"shopcore/pkg/domain/model"
	"shopcore/pkg/domain/service"
)

type Handler struct {
	orders  service.OrderService
	reports service.ReportService
}

func Router(orders service.OrderService, reports service.ReportService) http.Handler {
	handler := &Handler{orders: orders, reports: reports}

	r := mux.NewRouter()
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)

	s := r.PathPrefix("/api/v1").Subrouter()
	s.HandleFunc("/orders/stats", handler.getOrderStats).Methods(http.MethodGet)
	s.HandleFunc("/orders/revenue", handler.getRevenue).Methods(http.MethodGet)
	s.HandleFunc("/orders/customers/top", handler.getTopCustomers).Methods(http.MethodGet)
	s.HandleFunc("/orders", handler.placeOrder).Methods(http.MethodPost)
	s.HandleFunc("/orders", handler.listOrders).Methods(http.MethodGet)
	s.HandleFunc("/orders/{ID}", handler.getOrder).Methods(http.MethodGet)
	s.HandleFunc("/orders/{ID}/status", handler.updateOrderStatus).Methods(http.MethodPut)
	s.HandleFunc("/orders/{ID}/cancel", handler.cancelOrder).Methods(http.MethodPost)
	s.HandleFunc("/orders/{ID}/payment", handler.markOrderPaid).Methods(http.MethodPost)
	s.HandleFunc("/stock/report", handler.getStockReport).Methods(http.MethodGet)

	return logMiddleware(r)
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type placeOrderRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	Notes           string `json:"notes"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	requester := requesterFrom(r)
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.PlaceOrderInput{
		UserID:          requester.UserID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	}
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid product id: "+item.ProductID)
			return
		}
		input.Items = append(input.Items, service.OrderLine{ProductID: productID, Quantity: item.Quantity})
	}

	order, err := h.orders.PlaceOrder(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"order": toOrderResponse(order)})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), orderID, requesterFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": toOrderResponse(order)})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter := model.ListOrdersFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: model.OrderStatus(r.URL.Query().Get("status")),
	}
	if from, ok := parseDate(r.URL.Query().Get("from")); ok {
		filter.From = &from
	}
	if to, ok := parseDate(r.URL.Query().Get("to")); ok {
		filter.To = &to
	}

	limit := queryInt(r, "limit", 20)
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	orders, total, err := h.orders.ListOrders(r.Context(), filter, requesterFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	responses := make([]orderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": responses,
		"pagination": map[string]int{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

type updateStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), orderID, model.OrderStatus(req.Status), req.TrackingNumber, requesterFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": toOrderResponse(order)})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	order, err := h.orders.CancelOrder(r.Context(), orderID, req.Reason, requesterFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": toOrderResponse(order)})
}

type markPaidRequest struct {
	Reference string `json:"reference"`
}

func (h *Handler) markOrderPaid(w http.ResponseWriter, r *http.Request) {
	if !requesterFrom(r).Staff() {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}
	var req markPaidRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	order, err := h.orders.MarkOrderPaid(r.Context(), orderID, req.Reference)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": toOrderResponse(order)})
}

func (h *Handler) getOrderStats(w http.ResponseWriter, r *http.Request) {
	if !requesterFrom(r).Staff() {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	var dateRange model.DateRange
	if from, ok := parseDate(r.URL.Query().Get("from")); ok {
		dateRange.From = &from
	}
	if to, ok := parseDate(r.URL.Query().Get("to")); ok {
		dateRange.To = &to
	}

	stats, err := h.reports.GetOrderStats(r.Context(), dateRange)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (h *Handler) getRevenue(w http.ResponseWriter, r *http.Request) {
	if !requesterFrom(r).Staff() {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	period := model.RevenuePeriod(r.URL.Query().Get("period"))
	limit := queryInt(r, "limit", 0)

	buckets, err := h.reports.GetRevenueByPeriod(r.Context(), period, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"revenue": buckets})
}

func (h *Handler) getTopCustomers(w http.ResponseWriter, r *http.Request) {
	if !requesterFrom(r).Staff() {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	customers, err := h.reports.GetTopCustomers(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"customers": customers})
}

func (h *Handler) getStockReport(w http.ResponseWriter, r *http.Request) {
	if !requesterFrom(r).Staff() {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	report, err := h.reports.GetStockReport(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	TotalCents      int64               `json:"total_cents"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"payment_status"`
	ShippingAddress string              `json:"shipping_address"`
	PaymentMethod   string              `json:"payment_method"`
	Notes           string              `json:"notes,omitempty"`
	TrackingNumber  string              `json:"tracking_number,omitempty"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type orderItemResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	PriceCents  int64  `json:"price_cents"`
}

func toOrderResponse(order *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:          item.ID.String(),
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			PriceCents:  item.PriceCents,
		})
	}
	return orderResponse{
		ID:              order.ID.String(),
		UserID:          order.UserID,
		TotalCents:      order.TotalCents,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		Notes:           order.Notes,
		TrackingNumber:  order.TrackingNumber,
		Items:           items,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

// requesterFrom reads the verified identity the authentication collaborator
// attaches to the request. The core trusts these headers.
func requesterFrom(r *http.Request) model.Requester {
	return model.Requester{
		UserID: r.Header.Get("X-User-ID"),
		Role:   r.Header.Get("X-User-Role"),
	}
}

func orderIDFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["ID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrProductNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInsufficientStock),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrOrderNotCancellable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Error("write response")
	}
}

func logMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{
			"method":     r.Method,
			"url":        r.URL,
			"remoteAddr": r.RemoteAddr,
			"userAgent":  r.UserAgent(),
		}).Info("got a new request")
		h.ServeHTTP(w, r)
	})
}
