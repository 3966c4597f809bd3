package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sdms/payment-gateway/internal/models"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

var validate = validator.New()

// writeError maps domain errors onto HTTP statuses. Unknown errors are logged
// and hidden behind a generic 500.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvoiceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInvoiceState),
		errors.Is(err, models.ErrDuplicateTransaction):
		status = http.StatusConflict
	case errors.Is(err, models.ErrAmountMismatch),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidPaymentMethod):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidSignature):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		telemetry.Logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindAndValidate(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": err.Error()})
		return false
	}
	return true
}
