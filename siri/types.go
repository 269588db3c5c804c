package siri

import "encoding/xml"

// Namespace is the SIRI XML namespace written on outbound documents.
const Namespace = "http://www.siri.org.uk/siri"

// Version is the SIRI version written on outbound documents.
const Version = "2.0"

// Siri is the root element of every SIRI document. Exactly one of the
// child elements is expected to be present.
type Siri struct {
	XMLName                       xml.Name                       `xml:"Siri"`
	Version                       string                         `xml:"version,attr,omitempty"`
	ServiceDelivery               *ServiceDelivery               `xml:"ServiceDelivery"`
	HeartbeatNotification         *HeartbeatNotification         `xml:"HeartbeatNotification"`
	SubscriptionRequest           *SubscriptionRequest           `xml:"SubscriptionRequest"`
	SubscriptionResponse          *SubscriptionResponse          `xml:"SubscriptionResponse"`
	TerminateSubscriptionRequest  *TerminateSubscriptionRequest  `xml:"TerminateSubscriptionRequest"`
	TerminateSubscriptionResponse *TerminateSubscriptionResponse `xml:"TerminateSubscriptionResponse"`
}

// ServiceDelivery wraps delivered data
type ServiceDelivery struct {
	ResponseTimestamp         string                      `xml:"ResponseTimestamp"`
	ProducerRef               string                      `xml:"ProducerRef"`
	RequestMessageRef         string                      `xml:"RequestMessageRef"`
	VehicleMonitoringDelivery []VehicleMonitoringDelivery `xml:"VehicleMonitoringDelivery"`
}

// HeartbeatNotification is sent periodically by a producer on a live subscription
type HeartbeatNotification struct {
	RequestTimestamp   string `xml:"RequestTimestamp"`
	ProducerRef        string `xml:"ProducerRef"`
	Status             string `xml:"Status"`
	ServiceStartedTime string `xml:"ServiceStartedTime"`
}

// SubscriptionRequest asks a producer to start pushing vehicle monitoring data
type SubscriptionRequest struct {
	RequestTimestamp                     string                                `xml:"RequestTimestamp"`
	ConsumerAddress                      string                                `xml:"ConsumerAddress"`
	RequestorRef                         string                                `xml:"RequestorRef"`
	MessageIdentifier                    string                                `xml:"MessageIdentifier"`
	SubscriptionContext                  *SubscriptionContext                  `xml:"SubscriptionContext"`
	VehicleMonitoringSubscriptionRequest *VehicleMonitoringSubscriptionRequest `xml:"VehicleMonitoringSubscriptionRequest"`
}

// SubscriptionContext carries the heartbeat interval as an xsd:duration
type SubscriptionContext struct {
	HeartbeatInterval string `xml:"HeartbeatInterval"`
}

// VehicleMonitoringSubscriptionRequest identifies the requested subscription
type VehicleMonitoringSubscriptionRequest struct {
	SubscriptionIdentifier string `xml:"SubscriptionIdentifier"`
	InitialTerminationTime string `xml:"InitialTerminationTime"`
	IncrementalUpdates     string `xml:"IncrementalUpdates"`
}

// SubscriptionResponse is the producer's answer to a SubscriptionRequest
type SubscriptionResponse struct {
	ResponseTimestamp  string         `xml:"ResponseTimestamp"`
	ResponderRef       string         `xml:"ResponderRef"`
	RequestMessageRef  string         `xml:"RequestMessageRef"`
	ResponseStatus     ResponseStatus `xml:"ResponseStatus"`
	ServiceStartedTime string         `xml:"ServiceStartedTime"`
}

// ResponseStatus reports whether a subscription was accepted
type ResponseStatus struct {
	ResponseTimestamp string `xml:"ResponseTimestamp"`
	SubscriberRef     string `xml:"SubscriberRef"`
	SubscriptionRef   string `xml:"SubscriptionRef"`
	Status            string `xml:"Status"`
}

// Accepted reports whether the producer answered Status=true.
func (s ResponseStatus) Accepted() bool {
	return s.Status == "true"
}

// TerminateSubscriptionRequest asks a producer to stop pushing data
type TerminateSubscriptionRequest struct {
	RequestTimestamp  string `xml:"RequestTimestamp"`
	RequestorRef      string `xml:"RequestorRef"`
	MessageIdentifier string `xml:"MessageIdentifier"`
	SubscriptionRef   string `xml:"SubscriptionRef"`
}

// TerminateSubscriptionResponse is the producer's answer to a TerminateSubscriptionRequest
type TerminateSubscriptionResponse struct {
	ResponseTimestamp         string         `xml:"ResponseTimestamp"`
	ResponderRef              string         `xml:"ResponderRef"`
	TerminationResponseStatus ResponseStatus `xml:"TerminationResponseStatus"`
}
