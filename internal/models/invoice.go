package models

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceUnpaid    InvoiceStatus = "UNPAID"
	InvoicePartial   InvoiceStatus = "PARTIAL"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceOverdue   InvoiceStatus = "OVERDUE"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// Payable reports whether an online payment may be started for the status.
func (s InvoiceStatus) Payable() bool {
	return s == InvoiceUnpaid || s == InvoiceOverdue
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceUnpaid, InvoicePartial, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodOnline       PaymentMethod = "ONLINE"
)

type Invoice struct {
	ID              uuid.UUID     `json:"id"`
	StudentID       uuid.UUID     `json:"student_id"`
	Title           string        `json:"title"`
	TotalAmount     int64         `json:"total_amount"`
	PaidAmount      int64         `json:"paid_amount"`
	RemainingAmount int64         `json:"remaining_amount"`
	Status          InvoiceStatus `json:"status"`
	BillingName     string        `json:"billing_name"`
	StudentInfo     string        `json:"student_info,omitempty"`
	DueDate         *time.Time    `json:"due_date,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Payments        []Payment     `json:"payments,omitempty"`
}

type Payment struct {
	ID            uuid.UUID     `json:"id"`
	InvoiceID     uuid.UUID     `json:"invoice_id"`
	Amount        int64         `json:"amount"`
	Method        PaymentMethod `json:"payment_method"`
	TransactionNo string        `json:"transaction_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// PaymentProof is what MarkPaid records against an invoice.
type PaymentProof struct {
	Amount        int64
	Method        PaymentMethod
	TransactionNo string
}

type InvoiceFilter struct {
	StudentID *uuid.UUID
	Status    InvoiceStatus
	Limit     int
	Offset    int
}

type InvoiceStats struct {
	TotalRevenue    int64 `json:"total_revenue"`
	OverdueInvoices int64 `json:"overdue_invoices"`
	PendingInvoices int64 `json:"pending_invoices"`
}

type CreateInvoiceInput struct {
	StudentID   string     `json:"student_id" validate:"required,uuid"`
	Title       string     `json:"title" validate:"required,max=255"`
	TotalAmount int64      `json:"total_amount" validate:"required,gt=0"`
	BillingName string     `json:"billing_name" validate:"required,max=255"`
	StudentInfo string     `json:"student_info" validate:"max=255"`
	DueDate     *time.Time `json:"due_date"`
}

type CreatePaymentURLInput struct {
	InvoiceID string `json:"invoice_id" validate:"required,uuid"`
	Amount    *int64 `json:"amount" validate:"omitempty,gt=0"`
}

// RecordPaymentInput is a payment taken at the finance desk.
type RecordPaymentInput struct {
	Amount        int64         `json:"amount" validate:"required,gt=0"`
	Method        PaymentMethod `json:"payment_method" validate:"required,oneof=CASH BANK_TRANSFER"`
	TransactionNo string        `json:"transaction_id" validate:"max=64"`
}

// InvoicePaidEvent is published once per PAID transition.
type InvoicePaidEvent struct {
	InvoiceID     string    `json:"invoice_id"`
	StudentID     string    `json:"student_id"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"payment_method"`
	TransactionNo string    `json:"transaction_no"`
	PaidAt        time.Time `json:"paid_at"`
}
