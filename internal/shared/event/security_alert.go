package event

import "time"

const SecurityAlertDestination string = "identity_security_alert"
const SecurityAlertConsumerNotification string = "identity_security_alert_notification"

// SecurityAlertMessage is published when a password login fails for an
// account that has a bound channel.
type SecurityAlertMessage struct {
	AccountID  int64     `json:"account_id,string"`
	ChannelID  string    `json:"channel_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}
