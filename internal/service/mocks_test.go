package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdms/payment-gateway/internal/models"
)

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*models.Invoice
	payments []models.Payment

	// afterGet runs after every GetByID with the call count; tests use it to
	// change state between polls.
	afterGet func(n int)
	getCalls int
	getErr   error
}

func newFakeInvoiceRepo(invoices ...*models.Invoice) *fakeInvoiceRepo {
	r := &fakeInvoiceRepo{invoices: make(map[uuid.UUID]*models.Invoice)}
	for _, inv := range invoices {
		r.invoices[inv.ID] = inv
	}
	return r
}

func (r *fakeInvoiceRepo) Create(_ context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *fakeInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	r.mu.Lock()
	r.getCalls++
	n := r.getCalls
	inv, ok := r.invoices[id]
	var cp models.Invoice
	if ok {
		cp = *inv
	}
	hook := r.afterGet
	err := r.getErr
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrInvoiceNotFound
	}
	return &cp, nil
}

func (r *fakeInvoiceRepo) List(_ context.Context, filter models.InvoiceFilter) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Invoice{}
	for _, inv := range r.invoices {
		if filter.StudentID != nil && inv.StudentID != *filter.StudentID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (r *fakeInvoiceRepo) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Payment{}
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) MarkPaid(_ context.Context, id uuid.UUID, proof models.PaymentProof) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || !inv.Status.Payable() || inv.RemainingAmount != proof.Amount {
		return nil, models.ErrInvalidInvoiceState
	}
	for _, p := range r.payments {
		if proof.TransactionNo != "" && p.TransactionNo == proof.TransactionNo {
			return nil, models.ErrDuplicateTransaction
		}
	}
	inv.Status = models.InvoicePaid
	inv.PaidAmount += proof.Amount
	inv.RemainingAmount = 0
	r.payments = append(r.payments, models.Payment{
		ID:            uuid.New(),
		InvoiceID:     id,
		Amount:        proof.Amount,
		Method:        proof.Method,
		TransactionNo: proof.TransactionNo,
		CreatedAt:     time.Now(),
	})
	cp := *inv
	return &cp, nil
}

func (r *fakeInvoiceRepo) RecordPayment(_ context.Context, id uuid.UUID, proof models.PaymentProof, expectedRemaining int64) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.RemainingAmount != expectedRemaining || proof.Amount > inv.RemainingAmount {
		return nil, models.ErrInvalidInvoiceState
	}
	if inv.Status != models.InvoicePartial && !inv.Status.Payable() {
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
	r.payments = append(r.payments, models.Payment{
		ID:            uuid.New(),
		InvoiceID:     id,
		Amount:        proof.Amount,
		Method:        proof.Method,
		TransactionNo: proof.TransactionNo,
		CreatedAt:     time.Now(),
	})
	cp := *inv
	return &cp, nil
}

func (r *fakeInvoiceRepo) Cancel(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
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
	cp := *inv
	return &cp, nil
}

func (r *fakeInvoiceRepo) Stats(_ context.Context) (models.InvoiceStats, error) {
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

func (r *fakeInvoiceRepo) setStatus(id uuid.UUID, status models.InvoiceStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[id].Status = status
}

func (r *fakeInvoiceRepo) paymentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

type fakeLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	err     error
	busy    bool
	release int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.busy || l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	l.release++
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.InvoicePaidEvent
	err    error
}

func (p *fakePublisher) PublishInvoicePaid(_ context.Context, e models.InvoicePaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

var errRedisDown = errors.New("redis: connection refused")
