package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdms/payment-gateway/internal/models"
	"github.com/sdms/payment-gateway/internal/portal"
	"github.com/sdms/payment-gateway/internal/service"
	"github.com/sdms/payment-gateway/internal/signature"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

// ReturnHandler serves the student landing page the bank redirects to.
type ReturnHandler struct {
	flow     *portal.ReturnFlow
	invoices *service.InvoiceService
}

func NewReturnHandler(flow *portal.ReturnFlow, invoices *service.InvoiceService) *ReturnHandler {
	return &ReturnHandler{flow: flow, invoices: invoices}
}

func (h *ReturnHandler) Landing(c *gin.Context) {
	query := signature.ParamsFromValues(c.Request.URL.Query())

	res, err := h.flow.Handle(c.Request.Context(), query)
	switch {
	case errors.Is(err, portal.ErrNotAPaymentReturn):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	case errors.Is(err, models.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"status": models.VerifyStatusFailed, "message": portal.MsgInvalidSignature})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"status": models.VerifyStatusFailed, "message": "Xác thực thanh toán thất bại"})
		return
	}

	body := gin.H{"status": models.VerifyStatusSuccess, "message": res.Message, "result": res}
	if inv := h.reload(c, res.OrderID); inv != nil {
		body["invoice"] = inv
	}
	c.JSON(http.StatusOK, body)
}

func (h *ReturnHandler) reload(c *gin.Context, orderID string) *models.Invoice {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil
	}
	inv, err := h.invoices.Get(c.Request.Context(), id, studentScope(c))
	if err != nil {
		telemetry.Logger.Warn("Invoice reload after payment failed", zap.String("order_id", orderID), zap.Error(err))
		return nil
	}
	return inv
}
