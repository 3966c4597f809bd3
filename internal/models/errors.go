package models

import "errors"

var (
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidInvoiceState  = errors.New("invoice is not eligible for payment")
	ErrAmountMismatch       = errors.New("amount does not match invoice outstanding balance")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrPaymentDeclined      = errors.New("payment declined by issuer")
	ErrCallbackInFlight     = errors.New("callback for this order is already being processed")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrInvalidPaymentMethod = errors.New("payment method not accepted here")
)
