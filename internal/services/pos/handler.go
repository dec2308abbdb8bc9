package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/kitchen"
	"restaurant-pos/internal/services/order"
	"restaurant-pos/internal/services/payment"
	"restaurant-pos/internal/services/table"
	"restaurant-pos/internal/services/transfer"
)

const requestTimeout = 30 * time.Second

type ctxKey struct{}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the operations exposed over HTTP.
type Services struct {
	Orders     *order.Service
	Kitchen    *kitchen.Dispatcher
	Transfers  *transfer.Coordinator
	Payments   *payment.Resolver
	Tables     *table.Manager
	Terminal   *table.Terminal
	Health     Pinger
	TerminalID string
}

// Handler handles HTTP requests for the POS terminal
type Handler struct {
	svc    Services
	logger *logger.Logger
}

// NewHandler creates a new POS handler
func NewHandler(svc Services, log *logger.Logger) *Handler {
	return &Handler{svc: svc, logger: log}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.withLogging)

	r.Get("/health", h.HealthCheck)
	r.Get("/halls/{hallID}/tables", h.ListTables)

	r.Route("/tables/{tableID}", func(r chi.Router) {
		r.Post("/awaiting-payment", h.AwaitPayment)

		r.Route("/order", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Delete("/", h.ClearOrder)
			r.Post("/items", h.AddItem)
			r.Patch("/items/{itemID}", h.SetQuantity)
			r.Delete("/items/{itemID}", h.RemoveItem)
			r.Post("/discount", h.ApplyDiscount)
			r.Delete("/discount", h.RemoveDiscount)
			r.Put("/note", h.SetNote)
			r.Post("/kitchen", h.SendToKitchen)
			r.Post("/transfer", h.Transfer)
			r.Post("/payment", h.Complete)
			r.Post("/close-unpaid", h.CloseUnpaid)
		})
	})

	r.Route("/terminal", func(r chi.Router) {
		r.Get("/", h.TerminalState)
		r.Post("/select/{tableID}", h.SelectTable)
	})
	return r
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "pos-service",
	}
	status := http.StatusOK
	if h.svc.Health != nil {
		if err := h.svc.Health.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			response["status"] = "unhealthy"
		}
	}
	h.writeJSON(w, status, response, requestID(r))
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	tables, err := h.svc.Tables.ListTables(ctx, chi.URLParam(r, "hallID"))
	if err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	if tables == nil {
		tables = []models.Table{}
	}
	h.writeJSON(w, http.StatusOK, tables, requestID(r))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := h.svc.Orders.ActiveOrder(ctx, chi.URLParam(r, "tableID"))
	if err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	if o == nil {
		h.writeError(w, errs.ErrNoActiveOrder, requestID(r))
		return
	}
	h.writeJSON(w, http.StatusOK, o, requestID(r))
}

func (h *Handler) ClearOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.svc.Orders.Clear(ctx, chi.URLParam(r, "tableID"), requestID(r)); err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validateAddItem(&req); err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	h.respondOrder(w, r, func(ctx context.Context, tableID, rid string) (*models.Order, error) {
		return h.svc.Orders.AddProduct(ctx, tableID, req.ProductID, rid)
	})
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validateQuantity(&req); err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	itemID := chi.URLParam(r, "itemID")
	h.respondOrder(w, r, func(ctx context.Context, tableID, rid string) (*models.Order, error) {
		return h.svc.Orders.SetQuantity(ctx, tableID, itemID, *req.Quantity, rid)
	})
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	h.respondOrder(w, r, func(ctx context.Context, tableID, rid string) (*models.Order, error) {
		return h.svc.Orders.RemoveItem(ctx, tableID, itemID, rid)
	})
}

type discountRequest struct {
	Kind  models.DiscountKind `json:"kind"`
	Value float64             `json:"value"`
}

func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondOrder(w, r, func(ctx context.Context, tableID, rid string) (*models.Order, error) {
		return h.svc.Orders.ApplyDiscount(ctx, tableID, req.Kind, req.Value, rid)
	})
}

func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	h.respondOrder(w, r, func(ctx context.Context, tableID, rid string) (*models.Order, error) {
		return h.svc.Orders.RemoveDiscount(ctx, tableID, rid)
	})
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *Handler) SetNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondOrder(w, r, func(ctx context.Context, tableID, rid string) (*models.Order, error) {
		return h.svc.Orders.SetNote(ctx, tableID, req.Note, rid)
	})
}

type dispatchResponse struct {
	Order   *models.Order          `json:"order"`
	Tickets []models.KitchenTicket `json:"tickets"`
}

func (h *Handler) SendToKitchen(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, tickets, err := h.svc.Kitchen.SendToKitchen(ctx, chi.URLParam(r, "tableID"), requestID(r))
	if err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	h.writeJSON(w, http.StatusOK, dispatchResponse{Order: o, Tickets: tickets}, requestID(r))
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transfer.Request
	if !h.decode(w, r, &req) {
		return
	}
	req.SourceTableID = chi.URLParam(r, "tableID")
	if err := validateTransferItems(req.ItemIDs); err != nil {
		h.writeError(w, err, requestID(r))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.svc.Transfers.Transfer(ctx, req, requestID(r))
	if err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	h.writeJSON(w, http.StatusOK, res, requestID(r))
}

type paymentRequest struct {
	CashierID   string `json:"cashier_id"`
	CashierName string `json:"cashier_name"`
	models.PaymentDetails
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validateCashier(req.CashierID, req.CashierName); err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rec, err := h.svc.Payments.Complete(ctx, chi.URLParam(r, "tableID"), h.cashier(req.CashierID, req.CashierName), req.PaymentDetails, requestID(r))
	if err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	h.writeJSON(w, http.StatusOK, rec, requestID(r))
}

type unpaidRequest struct {
	CashierID   string              `json:"cashier_id"`
	CashierName string              `json:"cashier_name"`
	Reason      models.UnpaidReason `json:"reason"`
}

func (h *Handler) CloseUnpaid(w http.ResponseWriter, r *http.Request) {
	var req unpaidRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validateCashier(req.CashierID, req.CashierName); err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rec, err := h.svc.Payments.CloseUnpaid(ctx, chi.URLParam(r, "tableID"), h.cashier(req.CashierID, req.CashierName), req.Reason, requestID(r))
	if err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	h.writeJSON(w, http.StatusOK, rec, requestID(r))
}

func (h *Handler) AwaitPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	t, err := h.svc.Payments.AwaitPayment(ctx, chi.URLParam(r, "tableID"), requestID(r))
	if err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	h.writeJSON(w, http.StatusOK, t, requestID(r))
}

func (h *Handler) SelectTable(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := h.svc.Terminal.Select(ctx, chi.URLParam(r, "tableID"))
	if err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	h.writeJSON(w, http.StatusOK, snap, requestID(r))
}

func (h *Handler) TerminalState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Terminal.Snapshot(), requestID(r))
}

func (h *Handler) cashier(id, name string) models.Cashier {
	if id == "" {
		id = h.svc.TerminalID
	}
	return models.Cashier{ID: id, Name: name}
}

func (h *Handler) respondOrder(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, tableID, requestID string) (*models.Order, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := fn(ctx, chi.URLParam(r, "tableID"), requestID(r))
	if err != nil {
		h.writeError(w, err, requestID(r))
		return
	}
	h.writeJSON(w, http.StatusOK, o, requestID(r))
}

// decode parses a JSON body, rejecting unknown fields. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		h.logger.Debug("validation_failed", "Failed to parse request body", requestID(r), map[string]interface{}{
			"error": err.Error(),
		})
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_json", "Invalid JSON format", requestID(r))
		return false
	}
	return true
}

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindInvariant:
		return http.StatusUnprocessableEntity
	case errs.KindPersistence:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, err error, requestID string) {
	status := StatusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request_failed", "Request failed", requestID, err, map[string]interface{}{
			"status_code": status,
		})
		if status == http.StatusInternalServerError {
			message = "Internal server error"
		}
	}
	h.writeErrorResponse(w, status, errs.CodeOf(err), message, requestID)
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, code, message, requestID string) {
	h.writeJSON(w, statusCode, map[string]interface{}{
		"error":      message,
		"code":       code,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	}, requestID)
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, body interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// withLogging adds a request id and logs every request
func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = logger.GenerateRequestID()
		}
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, rid))

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			rid,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			rid,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
