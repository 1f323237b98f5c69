package usage

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AccountType is the tariff class of an account.
type AccountType string

const (
	AccountTypeResidential AccountType = "Residential"
	AccountTypeCommercial  AccountType = "Commercial"
	AccountTypeIndustrial  AccountType = "Industrial"
)

// IsValid reports whether the account type is supported.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeResidential, AccountTypeCommercial, AccountTypeIndustrial:
		return true
	default:
		return false
	}
}

// ParseAccountType converts a stored value into an AccountType.
func ParseAccountType(value string) (AccountType, error) {
	t := AccountType(value)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountType, value)
	}
	return t, nil
}

// Account is the read-only view of a metered customer account.
type Account struct {
	ID         string
	Name       string
	Type       AccountType
	Region     string
	CustomRate decimal.NullDecimal
}

// HasCustomRate reports whether the account carries its own unit price.
func (a Account) HasCustomRate() bool {
	return a.CustomRate.Valid
}
