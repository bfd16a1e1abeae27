package enums

import (
	"fmt"
	"strings"
)

// NotificationType is the severity shown next to an inbox entry.
type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "INFO"
	NotificationTypeSuccess NotificationType = "SUCCESS"
	NotificationTypeWarning NotificationType = "WARNING"
	NotificationTypeError   NotificationType = "ERROR"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeInfo,
	NotificationTypeSuccess,
	NotificationTypeWarning,
	NotificationTypeError,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validNotificationTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationRelatedType names the entity a notification points at.
type NotificationRelatedType string

const (
	NotificationRelatedLoan         NotificationRelatedType = "LOAN"
	NotificationRelatedDamageReport NotificationRelatedType = "DAMAGE_REPORT"
	NotificationRelatedItem         NotificationRelatedType = "ITEM"
	NotificationRelatedSystem       NotificationRelatedType = "SYSTEM"
)

var validNotificationRelatedTypes = []NotificationRelatedType{
	NotificationRelatedLoan,
	NotificationRelatedDamageReport,
	NotificationRelatedItem,
	NotificationRelatedSystem,
}

// IsValid checks whether the given related type matches the canonical enum.
func (n NotificationRelatedType) IsValid() bool {
	for _, candidate := range validNotificationRelatedTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationRelatedType converts raw strings into NotificationRelatedType.
func ParseNotificationRelatedType(value string) (NotificationRelatedType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validNotificationRelatedTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification related type %q", value)
}
