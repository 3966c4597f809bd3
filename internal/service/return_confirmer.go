package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdms/payment-gateway/internal/interfaces"
	"github.com/sdms/payment-gateway/internal/models"
	"github.com/sdms/payment-gateway/internal/signature"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

const (
	msgReturnPaid    = "Giao dịch thành công"
	msgReturnPending = "Giao dịch hợp lệ (đang xử lý)"
	msgReturnFailed  = "Giao dịch thất bại hoặc chữ ký không hợp lệ"
)

// ReturnConfirmer answers the portal's verify call. It repeats the lookup,
// signature and status checks of the IPN path but never mutates an invoice.
type ReturnConfirmer struct {
	repo     interfaces.InvoiceRepository
	codec    *signature.Codec
	attempts int
	interval time.Duration
}

func NewReturnConfirmer(repo interfaces.InvoiceRepository, codec *signature.Codec, attempts int, interval time.Duration) *ReturnConfirmer {
	if attempts < 1 {
		attempts = 1
	}
	return &ReturnConfirmer{repo: repo, codec: codec, attempts: attempts, interval: interval}
}

// Confirm waits a short while for a slow IPN to land. A valid return whose
// invoice is still unpaid after that is reported as accepted but pending.
func (r *ReturnConfirmer) Confirm(ctx context.Context, params map[string]string) models.VerifyResponse {
	failed := models.VerifyResponse{Status: models.VerifyStatusFailed, Message: msgReturnFailed, Data: params}

	invoiceID, err := uuid.Parse(params[models.FieldOrderID])
	if err != nil {
		return failed
	}
	inv, err := r.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return failed
	}

	if err := r.codec.Verify(params, params[models.FieldSignature]); err != nil {
		telemetry.SignatureFailures.WithLabelValues("return").Inc()
		telemetry.Logger.Warn("Return signature rejected", zap.String("order_id", invoiceID.String()))
		return failed
	}
	if params[models.FieldResponseCode] != models.ResponseCodeSuccess {
		return failed
	}

	for i := 0; ; i++ {
		switch {
		case inv.Status == models.InvoicePaid:
			return models.VerifyResponse{Status: models.VerifyStatusSuccess, Message: msgReturnPaid, Data: params}
		case !inv.Status.Payable():
			return failed
		case i == r.attempts-1:
			return models.VerifyResponse{Status: models.VerifyStatusSuccess, Message: msgReturnPending, Data: params}
		}

		select {
		case <-ctx.Done():
			return models.VerifyResponse{Status: models.VerifyStatusSuccess, Message: msgReturnPending, Data: params}
		case <-time.After(r.interval):
		}

		if inv, err = r.repo.GetByID(ctx, invoiceID); err != nil {
			return failed
		}
	}
}
