package enums

import "fmt"

// ItemStatus tracks fulfillment of a single order item.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "Pending"
	ItemStatusShipped   ItemStatus = "Shipped"
	ItemStatusDelivered ItemStatus = "Delivered"
)

var validItemStatuses = []ItemStatus{
	ItemStatusPending,
	ItemStatusShipped,
	ItemStatusDelivered,
}

// String implements fmt.Stringer.
func (s ItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ItemStatus.
func (s ItemStatus) IsValid() bool {
	for _, candidate := range validItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseItemStatus converts raw input into an ItemStatus. Matching is exact.
func ParseItemStatus(value string) (ItemStatus, error) {
	for _, candidate := range validItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item status %q", value)
}
