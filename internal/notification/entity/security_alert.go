package entity

import (
	"fmt"
	"time"
)

const securityAlertFormat = "SECURITY ALERT: Someone attempted to login to your account\n" +
	"Time: %s\n" +
	"If this wasn't you, please secure your account immediately."

// SecurityAlert is a failed login to report on the account's bound channel.
type SecurityAlert struct {
	AccountID  int64
	ChannelID  string
	OccurredAt time.Time
}

// Text renders the alert, with the time shown in loc.
func (a SecurityAlert) Text(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf(securityAlertFormat, a.OccurredAt.In(loc).Format("2006-01-02 15:04:05 MST"))
}
