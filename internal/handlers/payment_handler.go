package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdms/payment-gateway/internal/middleware"
	"github.com/sdms/payment-gateway/internal/models"
	"github.com/sdms/payment-gateway/internal/service"
	"github.com/sdms/payment-gateway/internal/signature"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

// IPN acknowledgement codes.
const (
	RspConfirmed        = "00"
	RspOrderNotFound    = "01"
	RspInvalidAmount    = "04"
	RspInvalidSignature = "97"
	RspUnknownError     = "99"
)

type PaymentHandler struct {
	builder   *service.PaymentRequestBuilder
	ipn       *service.IPNVerifier
	confirmer *service.ReturnConfirmer
}

func NewPaymentHandler(builder *service.PaymentRequestBuilder, ipn *service.IPNVerifier, confirmer *service.ReturnConfirmer) *PaymentHandler {
	return &PaymentHandler{
		builder:   builder,
		ipn:       ipn,
		confirmer: confirmer,
	}
}

// CreatePaymentURL issues a signed gateway URL for one of the caller's
// invoices.
func (h *PaymentHandler) CreatePaymentURL(c *gin.Context) {
	var input models.CreatePaymentURLInput
	if !bindAndValidate(c, &input) {
		return
	}

	p, _ := middleware.CurrentPrincipal(c)
	out, err := h.builder.Build(c.Request.Context(), service.PaymentURLInput{
		InvoiceID: uuid.MustParse(input.InvoiceID),
		StudentID: p.UserID,
		ClientIP:  c.ClientIP(),
		Amount:    input.Amount,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

// IPN receives the bank's server-to-server callback. The reply is always 200;
// the outcome is carried in RspCode.
func (h *PaymentHandler) IPN(c *gin.Context) {
	var cb models.PaymentCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		telemetry.Logger.Warn("Malformed IPN body", zap.Error(err))
		c.JSON(http.StatusOK, models.IPNResponse{RspCode: RspUnknownError, Message: "Invalid request"})
		return
	}

	outcome, err := h.ipn.HandleCallback(c.Request.Context(), cb)
	c.JSON(http.StatusOK, ipnResponse(outcome, err))
}

func ipnResponse(outcome service.Outcome, err error) models.IPNResponse {
	switch {
	case err == nil && outcome == service.OutcomeAlreadyProcessed:
		return models.IPNResponse{RspCode: RspConfirmed, Message: "Order already confirmed"}
	case err == nil:
		return models.IPNResponse{RspCode: RspConfirmed, Message: "Confirm Success"}
	case errors.Is(err, models.ErrInvoiceNotFound):
		return models.IPNResponse{RspCode: RspOrderNotFound, Message: "Order not found"}
	case errors.Is(err, models.ErrAmountMismatch):
		return models.IPNResponse{RspCode: RspInvalidAmount, Message: "Invalid amount"}
	case errors.Is(err, models.ErrInvalidSignature):
		return models.IPNResponse{RspCode: RspInvalidSignature, Message: "Invalid signature"}
	case errors.Is(err, models.ErrCallbackInFlight):
		return models.IPNResponse{RspCode: RspUnknownError, Message: "Order is being processed"}
	case errors.Is(err, models.ErrPaymentDeclined):
		return models.IPNResponse{RspCode: RspUnknownError, Message: "Payment declined"}
	default:
		telemetry.Logger.Error("IPN processing failed", zap.Error(err))
		return models.IPNResponse{RspCode: RspUnknownError, Message: "Unknown error"}
	}
}

// PaymentReturn confirms the parameters the browser brought back from the
// bank. It never changes an invoice.
func (h *PaymentHandler) PaymentReturn(c *gin.Context) {
	params := signature.ParamsFromValues(c.Request.URL.Query())
	resp := h.confirmer.Confirm(c.Request.Context(), params)

	status := http.StatusOK
	if resp.Status != models.VerifyStatusSuccess {
		status = http.StatusBadRequest
	}
	c.JSON(status, resp)
}
