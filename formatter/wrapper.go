package formatter

import (
	"time"

	"github.com/theoremus-urban-solutions/siri-vm-hub/siri"
	"github.com/theoremus-urban-solutions/siri-vm-hub/utils"
)

// BuildServiceDelivery creates a standardized ServiceDelivery wrapper
// with ResponseTimestamp, ProducerRef and RequestMessageRef
func BuildServiceDelivery(now time.Time, producerRef, requestMessageRef string) siri.ServiceDelivery {
	if producerRef == "" {
		producerRef = "UNKNOWN"
	}
	return siri.ServiceDelivery{
		ResponseTimestamp: utils.Iso8601(now),
		ProducerRef:       producerRef,
		RequestMessageRef: requestMessageRef,
	}
}

// WrapVehicleMonitoring wraps vehicle activities in a complete SIRI document.
// An empty activity list still produces a valid delivery.
func WrapVehicleMonitoring(activities []siri.VehicleActivity, now time.Time, validFor time.Duration, producerRef, requestMessageRef string) *siri.Siri {
	sd := BuildServiceDelivery(now, producerRef, requestMessageRef)
	sd.VehicleMonitoringDelivery = []siri.VehicleMonitoringDelivery{{
		ResponseTimestamp: sd.ResponseTimestamp,
		RequestMessageRef: requestMessageRef,
		ValidUntil:        utils.Iso8601(now.Add(validFor)),
		VehicleActivity:   activities,
	}}
	return &siri.Siri{Version: siri.Version, ServiceDelivery: &sd}
}

// WrapSubscriptionRequest builds the document sent to a producer to open a subscription.
func WrapSubscriptionRequest(now time.Time, consumerAddress, requestorRef, subscriptionID string, heartbeat time.Duration, termination time.Time) *siri.Siri {
	return &siri.Siri{
		Version: siri.Version,
		SubscriptionRequest: &siri.SubscriptionRequest{
			RequestTimestamp:    utils.Iso8601(now),
			ConsumerAddress:     consumerAddress,
			RequestorRef:        requestorRef,
			MessageIdentifier:   subscriptionID,
			SubscriptionContext: &siri.SubscriptionContext{HeartbeatInterval: utils.Duration(heartbeat)},
			VehicleMonitoringSubscriptionRequest: &siri.VehicleMonitoringSubscriptionRequest{
				SubscriptionIdentifier: subscriptionID,
				InitialTerminationTime: utils.Iso8601(termination),
				IncrementalUpdates:     "true",
			},
		},
	}
}

// WrapTerminateSubscriptionRequest builds the document sent to a producer to end a subscription.
func WrapTerminateSubscriptionRequest(now time.Time, requestorRef, subscriptionID string) *siri.Siri {
	return &siri.Siri{
		Version: siri.Version,
		TerminateSubscriptionRequest: &siri.TerminateSubscriptionRequest{
			RequestTimestamp:  utils.Iso8601(now),
			RequestorRef:      requestorRef,
			MessageIdentifier: subscriptionID,
			SubscriptionRef:   subscriptionID,
		},
	}
}
