package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdms/payment-gateway/internal/models"
)

type memInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]models.Invoice
	payments []models.Payment
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{invoices: make(map[uuid.UUID]models.Invoice)}
}

func (r *memInvoiceRepo) Create(_ context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	r.invoices[inv.ID] = *inv
	return nil
}

func (r *memInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, models.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (r *memInvoiceRepo) List(_ context.Context, f models.InvoiceFilter) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Invoice{}
	for _, inv := range r.invoices {
		if f.StudentID != nil && inv.StudentID != *f.StudentID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *memInvoiceRepo) ListPayments(_ context.Context, id uuid.UUID) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Payment{}
	for _, p := range r.payments {
		if p.InvoiceID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) MarkPaid(_ context.Context, id uuid.UUID, proof models.PaymentProof) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || !inv.Status.Payable() || inv.RemainingAmount != proof.Amount {
		return nil, models.ErrInvalidInvoiceState
	}
	inv.Status = models.InvoicePaid
	inv.PaidAmount += proof.Amount
	inv.RemainingAmount = 0
	r.invoices[id] = inv
	r.payments = append(r.payments, models.Payment{
		ID: uuid.New(), InvoiceID: id, Amount: proof.Amount,
		Method: proof.Method, TransactionNo: proof.TransactionNo, CreatedAt: time.Now(),
	})
	return &inv, nil
}

func (r *memInvoiceRepo) RecordPayment(_ context.Context, id uuid.UUID, proof models.PaymentProof, expectedRemaining int64) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.RemainingAmount != expectedRemaining || proof.Amount > inv.RemainingAmount {
		return nil, models.ErrInvalidInvoiceState
	}
	for _, p := range r.payments {
		if proof.TransactionNo != "" && p.TransactionNo == proof.TransactionNo {
			return nil, models.ErrDuplicateTransaction
		}
	}
	inv.PaidAmount += proof.Amount
	inv.RemainingAmount -= proof.Amount
	inv.Status = models.InvoicePartial
	if inv.RemainingAmount == 0 {
		inv.Status = models.InvoicePaid
	}
	r.invoices[id] = inv
	r.payments = append(r.payments, models.Payment{
		ID: uuid.New(), InvoiceID: id, Amount: proof.Amount,
		Method: proof.Method, TransactionNo: proof.TransactionNo, CreatedAt: time.Now(),
	})
	return &inv, nil
}

func (r *memInvoiceRepo) Cancel(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, models.ErrInvoiceNotFound
	}
	if inv.Status == models.InvoicePaid || inv.Status == models.InvoiceCancelled {
		return nil, models.ErrInvalidInvoiceState
	}
	inv.Status = models.InvoiceCancelled
	r.invoices[id] = inv
	return &inv, nil
}

func (r *memInvoiceRepo) Stats(_ context.Context) (models.InvoiceStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s models.InvoiceStats
	for _, inv := range r.invoices {
		switch inv.Status {
		case models.InvoicePaid, models.InvoicePartial:
			s.TotalRevenue += inv.PaidAmount
		case models.InvoiceOverdue:
			s.OverdueInvoices++
		case models.InvoiceUnpaid:
			s.PendingInvoices++
		}
	}
	return s, nil
}
