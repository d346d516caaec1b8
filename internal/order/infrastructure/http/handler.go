package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-service/internal/order/application"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/store"
)

type Handler struct {
	log      *slog.Logger
	checkout *application.Checkout
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, checkout *application.Checkout) *Handler {
	return &Handler{
		log:      log,
		checkout: checkout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer("order-http"),
	}
}

// Routes returns the order API for mounting under /orders. guard, when set,
// wraps every route except the provider's capture callback.
func (h *Handler) Routes(guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/capture", h.capture)
	r.Group(func(r chi.Router) {
		if guard != nil {
			r.Use(guard)
		}
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/provider", h.providerDetail)
		r.Delete("/{id}", h.deleteOrder)
	})
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "CreateOrder")
	defer span.End()

	var req application.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "An order needs a user and items with positive quantities")
		return
	}

	o, err := h.checkout.Create(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// capture is where the provider sends the payer back after approval.
func (h *Handler) capture(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CaptureOrder")
	defer span.End()

	q := r.URL.Query()
	o, err := h.checkout.Capture(ctx, q.Get("token"), q.Get("PayerID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.checkout.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) providerDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProviderDetail")
	defer span.End()

	view, err := h.checkout.ProviderDetail(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order deleted successfully"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	detail, ok := application.Detail(err)
	if !ok {
		detail = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		h.log.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeDetail(w, status, detail)
}

// StatusOf maps a checkout error to its HTTP status.
func StatusOf(err error) int {
	var gw *payment.GatewayError
	switch {
	case errors.Is(err, application.ErrCheckoutIncomplete):
		if errors.As(err, &gw) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	case errors.Is(err, application.ErrGateway), errors.As(err, &gw):
		return http.StatusBadGateway
	case errors.Is(err, application.ErrUserNotFound),
		errors.Is(err, application.ErrProductNotFound),
		errors.Is(err, application.ErrInsufficientStock),
		errors.Is(err, application.ErrOrderNotFound),
		errors.Is(err, application.ErrRemoteReferenceMissing):
		return http.StatusNotFound
	case errors.Is(err, application.ErrInvalidRequest), errors.Is(err, store.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
