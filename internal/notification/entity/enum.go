package entity

type DeliveryStatus int16

const (
	DeliveryStatusUnknown DeliveryStatus = 0
	DeliveryStatusSent    DeliveryStatus = 1
	DeliveryStatusFailed  DeliveryStatus = 2
	// DeliveryStatusDropped is a delivery that can never succeed, such as a
	// disabled bot or a malformed chat id. It is not retried.
	DeliveryStatusDropped DeliveryStatus = 3
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryStatusSent:
		return "sent"
	case DeliveryStatusFailed:
		return "failed"
	case DeliveryStatusDropped:
		return "dropped"
	default:
		return "unknown"
	}
}
