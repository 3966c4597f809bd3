package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdms/payment-gateway/internal/interfaces"
	"github.com/sdms/payment-gateway/internal/models"
	"github.com/sdms/payment-gateway/internal/signature"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

// vietnamTime is UTC+7 all year round.
var vietnamTime = time.FixedZone("ICT", 7*60*60)

const (
	unknownBillingName = "Unknown"
	// unknownClientIP keeps ipAddr non-empty; an empty signed value would be
	// dropped from the URL and break verification downstream.
	unknownClientIP = "0.0.0.0"
)

type PaymentURLInput struct {
	InvoiceID uuid.UUID
	StudentID uuid.UUID
	ClientIP  string
	// Amount is optional; when set it must equal the outstanding balance.
	Amount *int64
}

type PaymentURL struct {
	URL     string                `json:"url"`
	Request models.PaymentRequest `json:"-"`
}

type PaymentRequestBuilder struct {
	repo       interfaces.InvoiceRepository
	codec      *signature.Codec
	gatewayURL string
	now        func() time.Time
}

func NewPaymentRequestBuilder(repo interfaces.InvoiceRepository, codec *signature.Codec, gatewayURL string) *PaymentRequestBuilder {
	return &PaymentRequestBuilder{
		repo:       repo,
		codec:      codec,
		gatewayURL: gatewayURL,
		now:        time.Now,
	}
}

func (b *PaymentRequestBuilder) WithClock(now func() time.Time) *PaymentRequestBuilder {
	b.now = now
	return b
}

// Build signs a payment request for the invoice's outstanding balance and
// returns the gateway URL carrying it. The invoice is not modified.
func (b *PaymentRequestBuilder) Build(ctx context.Context, in PaymentURLInput) (*PaymentURL, error) {
	inv, err := b.repo.GetByID(ctx, in.InvoiceID)
	if err != nil {
		return nil, err
	}
	if in.StudentID != uuid.Nil && inv.StudentID != in.StudentID {
		return nil, models.ErrInvoiceNotFound
	}
	if !inv.Status.Payable() {
		return nil, fmt.Errorf("%w: status %s", models.ErrInvalidInvoiceState, inv.Status)
	}
	if inv.RemainingAmount <= 0 {
		return nil, fmt.Errorf("%w: nothing outstanding", models.ErrInvalidInvoiceState)
	}
	if in.Amount != nil && *in.Amount != inv.RemainingAmount {
		return nil, models.ErrAmountMismatch
	}

	billingName := inv.BillingName
	if billingName == "" {
		billingName = unknownBillingName
	}

	clientIP := in.ClientIP
	if clientIP == "" {
		clientIP = unknownClientIP
	}

	req := models.PaymentRequest{
		OrderID:     inv.ID.String(),
		Amount:      inv.RemainingAmount,
		OrderDesc:   orderDescription(inv.ID),
		CreateDate:  b.now().In(vietnamTime).Format(models.CreateDateLayout),
		IPAddr:      clientIP,
		BillingName: billingName,
		StudentInfo: inv.StudentInfo,
	}
	params := req.Params()
	req.Signature, err = b.codec.Sign(params)
	if err != nil {
		return nil, err
	}

	target, err := url.Parse(b.gatewayURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	query := signature.Values(params)
	query.Set(models.FieldSignature, req.Signature)
	target.RawQuery = query.Encode()

	telemetry.PaymentURLsCreated.Inc()
	telemetry.Logger.Info("Payment URL created",
		zap.String("order_id", req.OrderID),
		zap.Int64("amount", req.Amount),
	)

	return &PaymentURL{URL: target.String(), Request: req}, nil
}

func orderDescription(id uuid.UUID) string {
	short := strings.SplitN(id.String(), "-", 2)[0]
	return "THANH TOAN HOA DON " + strings.ToUpper(short)
}
