package domain

import "time"

// ContactInfo is the user directory projection used for recipient resolution.
type ContactInfo struct {
	Name         string
	Email        string
	MobileNumber string
}

// AddressFor returns the stored destination for a channel, or "".
func (c ContactInfo) AddressFor(channel Channel) string {
	if channel.UsesPhone() {
		return c.MobileNumber
	}
	if channel == ChannelEmail {
		return c.Email
	}
	return ""
}

// Subscription is a user's paid plan.
type Subscription struct {
	ID       string
	UserID   string
	PlanName string
	EndDate  time.Time
	IsActive bool
}

// ExpiringSubscription is a subscription about to lapse, joined with the
// owner's contact details.
type ExpiringSubscription struct {
	Subscription
	Contact ContactInfo
}
