package model

import "time"

// SubscriptionStatus is the lifecycle state of a producer or consumer subscription.
type SubscriptionStatus string

const (
	StatusPending  SubscriptionStatus = "pending"
	StatusLive     SubscriptionStatus = "live"
	StatusError    SubscriptionStatus = "error"
	StatusInactive SubscriptionStatus = "inactive"
)

// ProducerSubscription is an upstream SIRI-VM data source the hub has
// subscribed to. Rows are never removed; inactive is the soft delete.
type ProducerSubscription struct {
	ID                   string             `json:"subscriptionId"`
	URL                  string             `json:"url"`
	Description          string             `json:"description"`
	ShortDescription     string             `json:"shortDescription"`
	Status               SubscriptionStatus `json:"status"`
	RequestorRef         string             `json:"requestorRef"`
	APIKey               string             `json:"-"`
	ServiceStartDatetime *time.Time         `json:"serviceStartDatetime,omitempty"`
	ServiceEndDatetime   *time.Time         `json:"serviceEndDatetime,omitempty"`
	LastModifiedDatetime time.Time          `json:"lastModifiedDatetime"`
	HeartbeatAttempts    int                `json:"heartbeatAttempts"`
	LastHeartbeat        *time.Time         `json:"lastHeartbeat,omitempty"`
}

// Credentials are the basic-auth username and password a producer expects.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
