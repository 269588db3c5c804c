package model

import (
	"slices"
	"time"
)

// AllowedUpdateIntervals are the delivery cadences a consumer may pick, in seconds.
var AllowedUpdateIntervals = []int{10, 15, 20, 30}

// ValidUpdateInterval reports whether seconds is one of AllowedUpdateIntervals.
func ValidUpdateInterval(seconds int) bool {
	return slices.Contains(AllowedUpdateIntervals, seconds)
}

// ConsumerSubscription is a downstream callback receiving new records at its cadence.
// LastRecordID only moves forward, and only after a successful delivery.
type ConsumerSubscription struct {
	ID             string             `json:"id"`
	UserID         string             `json:"-"`
	Name           string             `json:"name"`
	URL            string             `json:"url"`
	RequestorRef   string             `json:"requestorRef"`
	UpdateInterval int                `json:"updateInterval"`
	Status         SubscriptionStatus `json:"status"`
	ProducerIDs    []string           `json:"producerIds"`
	BoundingBox    *BoundingBox       `json:"boundingBox,omitempty"`
	OperatorRefs   []string           `json:"operatorRefs,omitempty"`
	LineRefs       []string           `json:"lineRefs,omitempty"`
	LastRecordID   int64              `json:"lastRecordId"`
	QueueName      string             `json:"queueName"`
	ScheduleName   string             `json:"scheduleName"`
	FailedAttempts int                `json:"failedAttempts"`
	LastDelivered  *time.Time         `json:"lastDelivered,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Filter converts the subscription's allow-list and attribute filters into a record filter.
func (c ConsumerSubscription) Filter() Filter {
	return Filter{
		SubscriptionIDs: c.ProducerIDs,
		BoundingBox:     c.BoundingBox,
		OperatorRefs:    c.OperatorRefs,
		LineRefs:        c.LineRefs,
	}
}
