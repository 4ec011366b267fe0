package enums

import "fmt"

// OrderStatus summarizes how much of a checkout was actually paid.
type OrderStatus string

const (
	OrderStatusCompleted          OrderStatus = "Completed"
	OrderStatusPartiallyCompleted OrderStatus = "PartiallyCompleted"
	OrderStatusFailed             OrderStatus = "Failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCompleted,
	OrderStatusPartiallyCompleted,
	OrderStatusFailed,
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
