// Package outcome describes how a batch computation ended when it did not fail.
package outcome

// Status separates a normal result from an expected data-sparsity result.
// Failures are reported through the error return instead.
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusOK, StatusInsufficientData:
		return true
	default:
		return false
	}
}

// OK reports whether the computation produced data.
func (s Status) OK() bool { return s == StatusOK }
