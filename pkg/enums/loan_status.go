package enums

import (
	"fmt"
	"strings"
)

// LoanStatus tracks where a loan sits in the approval lifecycle.
type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "PENDING"
	LoanStatusApproved LoanStatus = "APPROVED"
	LoanStatusBorrowed LoanStatus = "BORROWED"
	LoanStatusReturned LoanStatus = "RETURNED"
)

var validLoanStatuses = []LoanStatus{
	LoanStatusPending,
	LoanStatusApproved,
	LoanStatusBorrowed,
	LoanStatusReturned,
}

// String implements fmt.Stringer.
func (s LoanStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known LoanStatus.
func (s LoanStatus) IsValid() bool {
	for _, candidate := range validLoanStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the loan currently holds stock.
func (s LoanStatus) IsActive() bool {
	return s == LoanStatusApproved || s == LoanStatusBorrowed
}

// LoanStatuses returns every status in lifecycle order.
func LoanStatuses() []LoanStatus {
	out := make([]LoanStatus, len(validLoanStatuses))
	copy(out, validLoanStatuses)
	return out
}

// ParseLoanStatus converts raw input into a LoanStatus.
func ParseLoanStatus(value string) (LoanStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validLoanStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loan status %q", value)
}
