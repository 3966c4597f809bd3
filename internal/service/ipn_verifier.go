package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdms/payment-gateway/internal/interfaces"
	"github.com/sdms/payment-gateway/internal/models"
	"github.com/sdms/payment-gateway/internal/signature"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

type Outcome string

const (
	OutcomePaid             Outcome = "paid"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

const defaultLockTTL = 30 * time.Second

type IPNVerifier struct {
	repo      interfaces.InvoiceRepository
	codec     *signature.Codec
	locker    interfaces.Locker
	publisher interfaces.EventPublisher
	lockTTL   time.Duration
	now       func() time.Time
}

// NewIPNVerifier builds a verifier. locker and publisher may be nil.
func NewIPNVerifier(
	repo interfaces.InvoiceRepository,
	codec *signature.Codec,
	locker interfaces.Locker,
	publisher interfaces.EventPublisher,
) *IPNVerifier {
	return &IPNVerifier{
		repo:      repo,
		codec:     codec,
		locker:    locker,
		publisher: publisher,
		lockTTL:   defaultLockTTL,
		now:       time.Now,
	}
}

// HandleCallback applies a bank callback to its invoice. A callback for an
// invoice that is already PAID succeeds with OutcomeAlreadyProcessed and
// records nothing.
func (v *IPNVerifier) HandleCallback(ctx context.Context, cb models.PaymentCallback) (outcome Outcome, err error) {
	ctx, span := telemetry.Tracer.Start(ctx, "ipn.HandleCallback")
	defer span.End()

	defer func() {
		telemetry.IPNCallbacks.WithLabelValues(outcomeLabel(outcome, err)).Inc()
	}()

	invoiceID, err := uuid.Parse(cb.OrderID)
	if err != nil {
		return "", models.ErrInvoiceNotFound
	}
	if _, err := v.repo.GetByID(ctx, invoiceID); err != nil {
		return "", err
	}

	if err := v.codec.Verify(cb.Params(), cb.Signature); err != nil {
		telemetry.SignatureFailures.WithLabelValues("ipn").Inc()
		telemetry.Logger.Warn("IPN signature rejected",
			zap.String("order_id", cb.OrderID),
			zap.String("transaction_no", cb.TransactionNo),
		)
		return "", err
	}

	release, err := v.lock(ctx, cb.OrderID)
	if err != nil {
		return "", err
	}
	defer release()

	// Re-read under the lock.
	inv, err := v.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	if inv.Status == models.InvoicePaid {
		telemetry.Logger.Info("IPN for paid invoice ignored",
			zap.String("order_id", cb.OrderID),
			zap.String("transaction_no", cb.TransactionNo),
		)
		return OutcomeAlreadyProcessed, nil
	}

	if cb.ResponseCode != models.ResponseCodeSuccess {
		telemetry.Logger.Info("IPN reports declined payment",
			zap.String("order_id", cb.OrderID),
			zap.String("response_code", cb.ResponseCode),
		)
		return "", models.ErrPaymentDeclined
	}

	amount, err := models.ParseAmount(cb.Amount)
	if err != nil {
		return "", err
	}
	if amount != inv.RemainingAmount {
		telemetry.Logger.Warn("IPN amount mismatch, possible tampering",
			zap.String("order_id", cb.OrderID),
			zap.Int64("callback_amount", amount),
			zap.Int64("outstanding", inv.RemainingAmount),
		)
		return "", models.ErrAmountMismatch
	}

	paid, err := v.repo.MarkPaid(ctx, invoiceID, models.PaymentProof{
		Amount:        amount,
		Method:        models.MethodOnline,
		TransactionNo: cb.TransactionNo,
	})
	if errors.Is(err, models.ErrInvalidInvoiceState) {
		// Lost the check-and-set; a concurrent callback may have won it.
		current, getErr := v.repo.GetByID(ctx, invoiceID)
		if getErr == nil && current.Status == models.InvoicePaid {
			return OutcomeAlreadyProcessed, nil
		}
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("mark invoice %s paid: %w", invoiceID, err)
	}

	telemetry.Logger.Info("Invoice paid",
		zap.String("order_id", cb.OrderID),
		zap.Int64("amount", amount),
		zap.String("transaction_no", cb.TransactionNo),
	)
	v.publish(ctx, paid, amount, cb.TransactionNo)

	return OutcomePaid, nil
}

func (v *IPNVerifier) lock(ctx context.Context, orderID string) (func(), error) {
	if v.locker == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf("ipn_lock:%s", orderID)
	locked, err := v.locker.Acquire(ctx, key, v.lockTTL)
	if err != nil {
		// The status check-and-set still guards the transition.
		telemetry.Logger.Warn("IPN lock unavailable", zap.String("order_id", orderID), zap.Error(err))
		return func() {}, nil
	}
	if !locked {
		return nil, models.ErrCallbackInFlight
	}
	return func() {
		if err := v.locker.Release(context.WithoutCancel(ctx), key); err != nil {
			telemetry.Logger.Warn("IPN lock release failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}, nil
}

func (v *IPNVerifier) publish(ctx context.Context, inv *models.Invoice, amount int64, transactionNo string) {
	if v.publisher == nil || inv == nil {
		return
	}
	event := models.InvoicePaidEvent{
		InvoiceID:     inv.ID.String(),
		StudentID:     inv.StudentID.String(),
		Amount:        amount,
		Method:        string(models.MethodOnline),
		TransactionNo: transactionNo,
		PaidAt:        v.now(),
	}
	if err := v.publisher.PublishInvoicePaid(ctx, event); err != nil {
		telemetry.Logger.Error("Failed to publish invoice.paid",
			zap.String("invoice_id", event.InvoiceID),
			zap.Error(err),
		)
	}
}

func outcomeLabel(outcome Outcome, err error) string {
	switch {
	case err == nil:
		return string(outcome)
	case errors.Is(err, models.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, models.ErrInvoiceNotFound):
		return "not_found"
	case errors.Is(err, models.ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, models.ErrPaymentDeclined):
		return "declined"
	case errors.Is(err, models.ErrCallbackInFlight):
		return "in_flight"
	default:
		return "error"
	}
}
