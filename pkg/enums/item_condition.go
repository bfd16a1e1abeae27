package enums

import (
	"fmt"
	"strings"
)

// ItemCondition records whether equipment is fit to lend.
type ItemCondition string

const (
	ItemConditionGood    ItemCondition = "GOOD"
	ItemConditionDamaged ItemCondition = "DAMAGED"
)

var validItemConditions = []ItemCondition{
	ItemConditionGood,
	ItemConditionDamaged,
}

// String implements fmt.Stringer.
func (c ItemCondition) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ItemCondition.
func (c ItemCondition) IsValid() bool {
	for _, candidate := range validItemConditions {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseItemCondition converts raw input into an ItemCondition.
func ParseItemCondition(value string) (ItemCondition, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validItemConditions {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item condition %q", value)
}
