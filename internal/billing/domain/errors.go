package billing

import "errors"

var (
	// ErrInvalidPeriod is returned when a billing period is empty or inverted.
	ErrInvalidPeriod = errors.New("billing: invalid period")
	// ErrInvalidStatus is returned when an invoice status is unknown.
	ErrInvalidStatus = errors.New("billing: invalid status")
	// ErrNilInvoice is returned when persisting a nil invoice.
	ErrNilInvoice = errors.New("billing: nil invoice")
	// ErrDuplicateInvoice is returned when an invoice already exists for the period.
	ErrDuplicateInvoice = errors.New("billing: invoice already exists for period")
	// ErrNegativeReading is returned when a meter reading is negative.
	ErrNegativeReading = errors.New("billing: negative meter reading")
)
