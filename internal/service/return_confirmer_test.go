package service

import (
	"context"
	"testing"
	"time"

	"github.com/sdms/payment-gateway/internal/models"
)

func returnParams(t *testing.T, inv *models.Invoice, secret string) map[string]string {
	t.Helper()
	cb := signedCallback(t, mustCodec(t, secret), inv)
	p := cb.Params()
	p[models.FieldSignature] = cb.Signature
	p[models.FieldResponseCode] = cb.ResponseCode
	p[models.FieldTransactionNo] = cb.TransactionNo
	p[models.FieldPayment] = models.PaymentMarkSuccess
	return p
}

func TestConfirmPaidInvoice(t *testing.T) {
	t.Parallel()

	inv := unpaidInvoice(500000)
	params := returnParams(t, inv, testSecret)
	inv.Status = models.InvoicePaid
	repo := newFakeInvoiceRepo(inv)

	r := NewReturnConfirmer(repo, mustCodec(t, testSecret), 5, time.Millisecond)
	got := r.Confirm(context.Background(), params)

	if got.Status != models.VerifyStatusSuccess || got.Message != msgReturnPaid {
		t.Errorf("Expected paid success, got %+v", got)
	}
	if got.Data[models.FieldTransactionNo] != "12345678" {
		t.Errorf("Expected data to echo transaction number, got %v", got.Data)
	}
	if repo.getCalls != 1 {
		t.Errorf("Expected no polling for a paid invoice, got %d lookups", repo.getCalls)
	}
}

func TestConfirmWaitsForSlowIPN(t *testing.T) {
	t.Parallel()

	inv := unpaidInvoice(500000)
	repo := newFakeInvoiceRepo(inv)
	repo.afterGet = func(n int) {
		if n == 3 {
			repo.setStatus(inv.ID, models.InvoicePaid)
		}
	}

	r := NewReturnConfirmer(repo, mustCodec(t, testSecret), 5, time.Millisecond)
	got := r.Confirm(context.Background(), returnParams(t, inv, testSecret))

	if got.Message != msgReturnPaid {
		t.Errorf("Expected paid after polling, got %+v", got)
	}
}

func TestConfirmPendingAfterPolling(t *testing.T) {
	t.Parallel()

	inv := unpaidInvoice(500000)
	repo := newFakeInvoiceRepo(inv)

	r := NewReturnConfirmer(repo, mustCodec(t, testSecret), 3, time.Millisecond)
	got := r.Confirm(context.Background(), returnParams(t, inv, testSecret))

	if got.Status != models.VerifyStatusSuccess || got.Message != msgReturnPending {
		t.Errorf("Expected pending success, got %+v", got)
	}
	if repo.getCalls != 3 {
		t.Errorf("Expected 3 lookups, got %d", repo.getCalls)
	}
	if inv.Status != models.InvoiceUnpaid {
		t.Errorf("Expected invoice untouched, got %s", inv.Status)
	}
}

func TestConfirmRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(inv *models.Invoice, p map[string]string)
	}{
		{"foreign secret", func(inv *models.Invoice, p map[string]string) {
			for k, v := range returnParams(t, inv, "other-secret") {
				p[k] = v
			}
		}},
		{"tampered amount", func(_ *models.Invoice, p map[string]string) { p[models.FieldAmount] = "1" }},
		{"missing signature", func(_ *models.Invoice, p map[string]string) { delete(p, models.FieldSignature) }},
		{"declined", func(_ *models.Invoice, p map[string]string) { p[models.FieldResponseCode] = "24" }},
		{"bad order id", func(_ *models.Invoice, p map[string]string) { p[models.FieldOrderID] = "x" }},
		{"cancelled", func(inv *models.Invoice, _ map[string]string) { inv.Status = models.InvoiceCancelled }},
	}

	for _, tt := range tests {
		inv := unpaidInvoice(500000)
		params := returnParams(t, inv, testSecret)
		tt.mutate(inv, params)

		r := NewReturnConfirmer(newFakeInvoiceRepo(inv), mustCodec(t, testSecret), 2, time.Millisecond)
		got := r.Confirm(context.Background(), params)
		if got.Status != models.VerifyStatusFailed {
			t.Errorf("%s: Expected failed, got %+v", tt.name, got)
		}
	}
}

func TestConfirmStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	inv := unpaidInvoice(500000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReturnConfirmer(newFakeInvoiceRepo(inv), mustCodec(t, testSecret), 5, time.Hour)
	got := r.Confirm(ctx, returnParams(t, inv, testSecret))
	if got.Message != msgReturnPending {
		t.Errorf("Expected pending on cancelled context, got %+v", got)
	}
}
