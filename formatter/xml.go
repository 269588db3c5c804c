package formatter

import (
	"strings"

	"github.com/theoremus-urban-solutions/siri-vm-hub/siri"
)

// ResponseBuilder serializes SIRI documents to XML.
type ResponseBuilder struct{}

// NewResponseBuilder returns a ResponseBuilder.
func NewResponseBuilder() *ResponseBuilder { return &ResponseBuilder{} }

// BuildXML serializes a SIRI document to XML. Only the populated root
// children are written.
func (rb *ResponseBuilder) BuildXML(doc *siri.Siri) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<Siri xmlns="`)
	b.WriteString(siri.Namespace)
	b.WriteString(`" version="`)
	if doc.Version != "" {
		b.WriteString(xmlEscape(doc.Version))
	} else {
		b.WriteString(siri.Version)
	}
	b.WriteString(`">`)
	if doc.ServiceDelivery != nil {
		writeServiceDeliveryXML(&b, doc.ServiceDelivery)
	}
	if doc.HeartbeatNotification != nil {
		writeHeartbeatXML(&b, doc.HeartbeatNotification)
	}
	if doc.SubscriptionRequest != nil {
		writeSubscriptionRequestXML(&b, doc.SubscriptionRequest)
	}
	if doc.SubscriptionResponse != nil {
		writeSubscriptionResponseXML(&b, doc.SubscriptionResponse)
	}
	if doc.TerminateSubscriptionRequest != nil {
		writeTerminateRequestXML(&b, doc.TerminateSubscriptionRequest)
	}
	if doc.TerminateSubscriptionResponse != nil {
		writeTerminateResponseXML(&b, doc.TerminateSubscriptionResponse)
	}
	b.WriteString("</Siri>")
	return []byte(b.String())
}

func writeServiceDeliveryXML(b *strings.Builder, sd *siri.ServiceDelivery) {
	b.WriteString("<ServiceDelivery>")
	writeElem(b, "ResponseTimestamp", sd.ResponseTimestamp)
	writeElem(b, "ProducerRef", sd.ProducerRef)
	writeElem(b, "RequestMessageRef", sd.RequestMessageRef)
	for _, vm := range sd.VehicleMonitoringDelivery {
		writeVehicleMonitoringXML(b, vm)
	}
	b.WriteString("</ServiceDelivery>")
}

func writeVehicleMonitoringXML(b *strings.Builder, vm siri.VehicleMonitoringDelivery) {
	b.WriteString(`<VehicleMonitoringDelivery version="`)
	b.WriteString(siri.Version)
	b.WriteString(`">`)
	writeElem(b, "ResponseTimestamp", vm.ResponseTimestamp)
	writeElem(b, "RequestMessageRef", vm.RequestMessageRef)
	writeElem(b, "ValidUntil", vm.ValidUntil)
	writeElem(b, "ShortestPossibleCycle", vm.ShortestPossibleCycle)
	for _, va := range vm.VehicleActivity {
		b.WriteString("<VehicleActivity>")
		writeElem(b, "RecordedAtTime", va.RecordedAtTime)
		writeElem(b, "ItemIdentifier", va.ItemIdentifier)
		writeElem(b, "ValidUntilTime", va.ValidUntilTime)
		writeMVJXML(b, va.MonitoredVehicleJourney)
		b.WriteString("</VehicleActivity>")
	}
	b.WriteString("</VehicleMonitoringDelivery>")
}

func writeMVJXML(b *strings.Builder, mvj siri.MonitoredVehicleJourney) {
	b.WriteString("<MonitoredVehicleJourney>")
	writeElem(b, "LineRef", mvj.LineRef)
	writeElem(b, "DirectionRef", mvj.DirectionRef)
	if fr := mvj.FramedVehicleJourneyRef; fr != nil && (fr.DataFrameRef != "" || fr.DatedVehicleJourneyRef != "") {
		b.WriteString("<FramedVehicleJourneyRef>")
		writeElem(b, "DataFrameRef", fr.DataFrameRef)
		writeElem(b, "DatedVehicleJourneyRef", fr.DatedVehicleJourneyRef)
		b.WriteString("</FramedVehicleJourneyRef>")
	}
	writeElem(b, "PublishedLineName", mvj.PublishedLineName)
	writeElem(b, "OperatorRef", mvj.OperatorRef)
	writeElem(b, "OriginRef", mvj.OriginRef)
	writeElem(b, "OriginName", mvj.OriginName)
	writeElem(b, "DestinationRef", mvj.DestinationRef)
	writeElem(b, "DestinationName", mvj.DestinationName)
	writeElem(b, "OriginAimedDepartureTime", mvj.OriginAimedDepartureTime)
	if loc := mvj.VehicleLocation; loc != nil {
		b.WriteString("<VehicleLocation>")
		writeElem(b, "Longitude", loc.Longitude)
		writeElem(b, "Latitude", loc.Latitude)
		b.WriteString("</VehicleLocation>")
	}
	writeElem(b, "Bearing", mvj.Bearing)
	writeElem(b, "Occupancy", mvj.Occupancy)
	writeElem(b, "BlockRef", mvj.BlockRef)
	writeElem(b, "VehicleJourneyRef", mvj.VehicleJourneyRef)
	writeElem(b, "VehicleRef", mvj.VehicleRef)
	b.WriteString("</MonitoredVehicleJourney>")
}

func writeHeartbeatXML(b *strings.Builder, hb *siri.HeartbeatNotification) {
	b.WriteString("<HeartbeatNotification>")
	writeElem(b, "RequestTimestamp", hb.RequestTimestamp)
	writeElem(b, "ProducerRef", hb.ProducerRef)
	writeElem(b, "Status", hb.Status)
	writeElem(b, "ServiceStartedTime", hb.ServiceStartedTime)
	b.WriteString("</HeartbeatNotification>")
}

func writeSubscriptionRequestXML(b *strings.Builder, req *siri.SubscriptionRequest) {
	b.WriteString("<SubscriptionRequest>")
	writeElem(b, "RequestTimestamp", req.RequestTimestamp)
	writeElem(b, "ConsumerAddress", req.ConsumerAddress)
	writeElem(b, "RequestorRef", req.RequestorRef)
	writeElem(b, "MessageIdentifier", req.MessageIdentifier)
	if req.SubscriptionContext != nil {
		b.WriteString("<SubscriptionContext>")
		writeElem(b, "HeartbeatInterval", req.SubscriptionContext.HeartbeatInterval)
		b.WriteString("</SubscriptionContext>")
	}
	if vm := req.VehicleMonitoringSubscriptionRequest; vm != nil {
		b.WriteString("<VehicleMonitoringSubscriptionRequest>")
		writeElem(b, "SubscriberRef", req.RequestorRef)
		writeElem(b, "SubscriptionIdentifier", vm.SubscriptionIdentifier)
		writeElem(b, "InitialTerminationTime", vm.InitialTerminationTime)
		b.WriteString(`<VehicleMonitoringRequest version="`)
		b.WriteString(siri.Version)
		b.WriteString(`">`)
		writeElem(b, "RequestTimestamp", req.RequestTimestamp)
		b.WriteString("</VehicleMonitoringRequest>")
		writeElem(b, "IncrementalUpdates", vm.IncrementalUpdates)
		b.WriteString("</VehicleMonitoringSubscriptionRequest>")
	}
	b.WriteString("</SubscriptionRequest>")
}

func writeSubscriptionResponseXML(b *strings.Builder, resp *siri.SubscriptionResponse) {
	b.WriteString("<SubscriptionResponse>")
	writeElem(b, "ResponseTimestamp", resp.ResponseTimestamp)
	writeElem(b, "ResponderRef", resp.ResponderRef)
	writeElem(b, "RequestMessageRef", resp.RequestMessageRef)
	writeResponseStatusXML(b, "ResponseStatus", resp.ResponseStatus)
	writeElem(b, "ServiceStartedTime", resp.ServiceStartedTime)
	b.WriteString("</SubscriptionResponse>")
}

func writeTerminateRequestXML(b *strings.Builder, req *siri.TerminateSubscriptionRequest) {
	b.WriteString("<TerminateSubscriptionRequest>")
	writeElem(b, "RequestTimestamp", req.RequestTimestamp)
	writeElem(b, "RequestorRef", req.RequestorRef)
	writeElem(b, "MessageIdentifier", req.MessageIdentifier)
	writeElem(b, "SubscriptionRef", req.SubscriptionRef)
	b.WriteString("</TerminateSubscriptionRequest>")
}

func writeTerminateResponseXML(b *strings.Builder, resp *siri.TerminateSubscriptionResponse) {
	b.WriteString("<TerminateSubscriptionResponse>")
	writeElem(b, "ResponseTimestamp", resp.ResponseTimestamp)
	writeElem(b, "ResponderRef", resp.ResponderRef)
	writeResponseStatusXML(b, "TerminationResponseStatus", resp.TerminationResponseStatus)
	b.WriteString("</TerminateSubscriptionResponse>")
}

func writeResponseStatusXML(b *strings.Builder, name string, st siri.ResponseStatus) {
	b.WriteString("<" + name + ">")
	writeElem(b, "ResponseTimestamp", st.ResponseTimestamp)
	writeElem(b, "SubscriberRef", st.SubscriberRef)
	writeElem(b, "SubscriptionRef", st.SubscriptionRef)
	writeElem(b, "Status", st.Status)
	b.WriteString("</" + name + ">")
}

// writeElem writes <name>value</name>, skipping empty values.
func writeElem(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString("<")
	b.WriteString(name)
	b.WriteString(">")
	b.WriteString(xmlEscape(value))
	b.WriteString("</")
	b.WriteString(name)
	b.WriteString(">")
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
