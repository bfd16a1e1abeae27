package enums

import (
	"fmt"
	"strings"
)

type DamageReportStatus string

const (
	DamageReportStatusPending DamageReportStatus = "PENDING"
	DamageReportStatusDone    DamageReportStatus = "DONE"
)

var validDamageReportStatuses = []DamageReportStatus{
	DamageReportStatusPending,
	DamageReportStatusDone,
}

func (s DamageReportStatus) String() string {
	return string(s)
}

func (s DamageReportStatus) IsValid() bool {
	for _, candidate := range validDamageReportStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDamageReportStatus converts raw input into a DamageReportStatus.
func ParseDamageReportStatus(value string) (DamageReportStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validDamageReportStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid damage report status %q", value)
}
