package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/gateway"
	"github.com/utafrali/mobilebackend/internal/service"
	"github.com/utafrali/mobilebackend/pkg/httputil"
	"github.com/utafrali/mobilebackend/pkg/middleware"
)

// PaymentHandler handles HTTP requests for payment endpoints and gateway
// confirmations.
type PaymentHandler struct {
	service PaymentService
	logger  *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(svc PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreatePaymentRequest is the JSON request body for creating a payment.
// Amount accepts a JSON number or a decimal string.
type CreatePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"required,oneof=billplz paypal cash"`
	Email       string          `json:"email" validate:"omitempty,email,max=254"`
	Name        string          `json:"name" validate:"omitempty,max=255"`
	Description string          `json:"description" validate:"omitempty,max=500"`
}

// --- Response types ---

// CreatePaymentResponse carries the new payment. CheckoutURL is null when the
// gateway could not create a bill or the method needs none.
type CreatePaymentResponse struct {
	Payment     *domain.Payment `json:"payment"`
	CheckoutURL *string         `json:"checkout_url"`
}

// ConfirmationResponse reports what a gateway confirmation did.
type ConfirmationResponse struct {
	UID     string               `json:"uid,omitempty"`
	Status  domain.PaymentStatus `json:"status,omitempty"`
	Paid    bool                 `json:"paid"`
	Outcome string               `json:"outcome"`
}

// --- Handlers ---

// CreatePayment handles POST /api/v1/payments
// @Summary Create a payment
// @Description Stores a pending payment and registers a bill with the method's gateway.
// @Tags payments
// @Accept json
// @Produce json
// @Param request body CreatePaymentRequest true "Payment data"
// @Success 201 {object} CreatePaymentResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/payments [post]
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	payment, err := h.service.Create(r.Context(), service.CreatePaymentInput{
		Amount:      req.Amount,
		Method:      domain.PaymentMethod(req.Method),
		IPAddress:   middleware.ClientIP(r),
		Email:       req.Email,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: CreatePaymentResponse{Payment: payment, CheckoutURL: payment.CheckoutURL},
	})
}

// GetPayment handles GET /api/v1/payments/{uid}
// @Summary Get payment status
// @Tags payments
// @Produce json
// @Param uid path string true "Payment UID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/payments/{uid} [get]
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	uid, ok := httputil.ParseUUID(w, chi.URLParam(r, "uid"))
	if !ok {
		return
	}

	payment, err := h.service.GetByUID(r.Context(), uid.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: payment})
}

// BillplzRedirect handles GET /payment/billplz/redirect, where BillPlz sends
// the payer's browser after checkout with signed query parameters.
func (h *PaymentHandler) BillplzRedirect(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, domain.PaymentMethodBillplz, gateway.Confirmation{
		Source: gateway.SourceRedirect,
		Params: r.URL.Query(),
	})
}

// BillplzCallback handles POST /payment/billplz/callback, the server to
// server confirmation with a signed form body.
func (h *PaymentHandler) BillplzCallback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid form body: " + err.Error()},
		})
		return
	}

	h.reconcile(w, r, domain.PaymentMethodBillplz, gateway.Confirmation{
		Source: gateway.SourceCallback,
		Params: postForm(r),
	})
}

// PaypalWebhook handles POST /payment/paypal/webhook
func (h *PaymentHandler) PaypalWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	h.reconcile(w, r, domain.PaymentMethodPaypal, gateway.Confirmation{
		Source:  gateway.SourceWebhook,
		Headers: r.Header.Clone(),
		Body:    body,
	})
}

func (h *PaymentHandler) reconcile(w http.ResponseWriter, r *http.Request, method domain.PaymentMethod, c gateway.Confirmation) {
	result, err := h.service.Reconcile(r.Context(), method, c)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := ConfirmationResponse{Outcome: result.Outcome}
	if result.Payment != nil {
		resp.UID = result.Payment.UID
		resp.Status = result.Payment.Status
		resp.Paid = result.Payment.Status == domain.PaymentStatusSuccess
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}

// postForm returns the body parameters only, so query parameters cannot be
// mixed into a signed callback.
func postForm(r *http.Request) url.Values {
	if r.PostForm == nil {
		return url.Values{}
	}
	return r.PostForm
}
