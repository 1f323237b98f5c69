package usage

import "errors"

var (
	// ErrEmptyAccountID is returned when an account id is empty.
	ErrEmptyAccountID = errors.New("usage: empty account id")
	// ErrAccountNotFound is returned when an account does not exist.
	ErrAccountNotFound = errors.New("usage: account not found")
	// ErrInvalidAccountType is returned when an account type is unknown.
	ErrInvalidAccountType = errors.New("usage: invalid account type")
	// ErrInvalidDate is returned when a record date is zero.
	ErrInvalidDate = errors.New("usage: invalid date")
	// ErrInvalidRange is returned when a range ends before it starts.
	ErrInvalidRange = errors.New("usage: invalid date range")
	// ErrNegativeQuantity is returned when a consumption quantity is negative.
	ErrNegativeQuantity = errors.New("usage: negative quantity")
)
