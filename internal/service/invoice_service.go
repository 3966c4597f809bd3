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
	"github.com/sdms/payment-gateway/internal/telemetry"
)

type InvoiceService struct {
	repo interfaces.InvoiceRepository
}

func NewInvoiceService(repo interfaces.InvoiceRepository) *InvoiceService {
	return &InvoiceService{repo: repo}
}

func (s *InvoiceService) Create(ctx context.Context, in models.CreateInvoiceInput) (*models.Invoice, error) {
	studentID, err := uuid.Parse(in.StudentID)
	if err != nil {
		return nil, err
	}

	inv := &models.Invoice{
		ID:              uuid.New(),
		StudentID:       studentID,
		Title:           in.Title,
		TotalAmount:     in.TotalAmount,
		RemainingAmount: in.TotalAmount,
		Status:          models.InvoiceUnpaid,
		BillingName:     in.BillingName,
		StudentInfo:     in.StudentInfo,
		DueDate:         in.DueDate,
	}
	if inv.DueDate != nil && inv.DueDate.Before(time.Now()) {
		inv.Status = models.InvoiceOverdue
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	telemetry.Logger.Info("Invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int64("total_amount", inv.TotalAmount),
	)
	return inv, nil
}

// Get loads an invoice with its payments. A non-nil studentID restricts the
// lookup to that student's invoices.
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID, studentID *uuid.UUID) (*models.Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if studentID != nil && inv.StudentID != *studentID {
		return nil, models.ErrInvoiceNotFound
	}

	inv.Payments, err = s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, error) {
	return s.repo.List(ctx, filter)
}

func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	telemetry.Logger.Info("Invoice cancelled", zap.String("invoice_id", id.String()))
	return inv, nil
}

func (s *InvoiceService) Stats(ctx context.Context) (models.InvoiceStats, error) {
	return s.repo.Stats(ctx)
}

// RecordPayment applies a cash or bank-transfer payment. Repeating a
// transaction number already recorded on the invoice returns the invoice
// unchanged with recorded false.
func (s *InvoiceService) RecordPayment(ctx context.Context, id uuid.UUID, in models.RecordPaymentInput) (inv *models.Invoice, recorded bool, err error) {
	if in.Method != models.MethodCash && in.Method != models.MethodBankTransfer {
		return nil, false, fmt.Errorf("%w: method %s", models.ErrInvalidPaymentMethod, in.Method)
	}

	if in.TransactionNo != "" {
		if inv, err := s.alreadyRecorded(ctx, id, in.TransactionNo); err != nil || inv != nil {
			return inv, false, err
		}
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if current.Status != models.InvoicePartial && !current.Status.Payable() {
		return nil, false, fmt.Errorf("%w: status %s", models.ErrInvalidInvoiceState, current.Status)
	}
	if in.Amount <= 0 || in.Amount > current.RemainingAmount {
		return nil, false, fmt.Errorf("%w: %d exceeds outstanding %d", models.ErrInvalidAmount, in.Amount, current.RemainingAmount)
	}

	inv, err = s.repo.RecordPayment(ctx, id, models.PaymentProof{
		Amount:        in.Amount,
		Method:        in.Method,
		TransactionNo: in.TransactionNo,
	}, current.RemainingAmount)
	if errors.Is(err, models.ErrDuplicateTransaction) {
		// Lost a race with the same transaction on this invoice.
		if inv, lookupErr := s.alreadyRecorded(ctx, id, in.TransactionNo); lookupErr == nil && inv != nil {
			return inv, false, nil
		}
		return nil, false, err
	}
	if err != nil {
		return nil, false, err
	}

	telemetry.Logger.Info("Manual payment recorded",
		zap.String("invoice_id", id.String()),
		zap.Int64("amount", in.Amount),
		zap.String("method", string(in.Method)),
		zap.String("status", string(inv.Status)),
	)
	return inv, true, nil
}

// alreadyRecorded returns the invoice when transactionNo is among its
// payments, and nil otherwise.
func (s *InvoiceService) alreadyRecorded(ctx context.Context, id uuid.UUID, transactionNo string) (*models.Invoice, error) {
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if p.TransactionNo == transactionNo {
			inv, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			inv.Payments = payments
			return inv, nil
		}
	}
	return nil, nil
}
