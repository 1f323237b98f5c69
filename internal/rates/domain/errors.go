package rates

import "errors"

var (
	// ErrInvalidMode is returned when a rule mode is unknown.
	ErrInvalidMode = errors.New("rates: invalid mode")
	// ErrInvalidSource is returned when a rate source is unknown.
	ErrInvalidSource = errors.New("rates: invalid source")
	// ErrNegativePrice is returned when a price is negative.
	ErrNegativePrice = errors.New("rates: negative price")
	// ErrNoTiers is returned when a tiered rule has no tiers.
	ErrNoTiers = errors.New("rates: tiered rule without tiers")
	// ErrInvalidTier is returned when tiers overlap, leave gaps or are inverted.
	ErrInvalidTier = errors.New("rates: invalid tier bounds")
	// ErrInvalidEffectiveRange is returned when a rule ends before it starts.
	ErrInvalidEffectiveRange = errors.New("rates: invalid effective range")
)
