package siri

// VehicleMonitoringDelivery represents the VehicleMonitoring delivery
type VehicleMonitoringDelivery struct {
	ResponseTimestamp     string            `xml:"ResponseTimestamp"`
	RequestMessageRef     string            `xml:"RequestMessageRef"`
	ValidUntil            string            `xml:"ValidUntil"`
	ShortestPossibleCycle string            `xml:"ShortestPossibleCycle"`
	VehicleActivity       []VehicleActivity `xml:"VehicleActivity"`
}

// VehicleActivity represents a single vehicle's activity
type VehicleActivity struct {
	RecordedAtTime          string                  `xml:"RecordedAtTime"`
	ItemIdentifier          string                  `xml:"ItemIdentifier"`
	ValidUntilTime          string                  `xml:"ValidUntilTime"`
	MonitoredVehicleJourney MonitoredVehicleJourney `xml:"MonitoredVehicleJourney"`
}

// MonitoredVehicleJourney contains details about a monitored vehicle journey
type MonitoredVehicleJourney struct {
	LineRef                  string                   `xml:"LineRef"`
	DirectionRef             string                   `xml:"DirectionRef"`
	FramedVehicleJourneyRef  *FramedVehicleJourneyRef `xml:"FramedVehicleJourneyRef"`
	PublishedLineName        string                   `xml:"PublishedLineName"`
	OperatorRef              string                   `xml:"OperatorRef"`
	OriginRef                string                   `xml:"OriginRef"`
	OriginName               string                   `xml:"OriginName"`
	DestinationRef           string                   `xml:"DestinationRef"`
	DestinationName          string                   `xml:"DestinationName"`
	OriginAimedDepartureTime string                   `xml:"OriginAimedDepartureTime"`
	VehicleLocation          *VehicleLocation         `xml:"VehicleLocation"`
	Bearing                  string                   `xml:"Bearing"`
	Occupancy                string                   `xml:"Occupancy"`
	BlockRef                 string                   `xml:"BlockRef"`
	VehicleJourneyRef        string                   `xml:"VehicleJourneyRef"`
	VehicleRef               string                   `xml:"VehicleRef"`
}

// FramedVehicleJourneyRef identifies the dated journey a vehicle is working
type FramedVehicleJourneyRef struct {
	DataFrameRef           string `xml:"DataFrameRef"`
	DatedVehicleJourneyRef string `xml:"DatedVehicleJourneyRef"`
}

// VehicleLocation holds raw coordinates as delivered
type VehicleLocation struct {
	Longitude string `xml:"Longitude"`
	Latitude  string `xml:"Latitude"`
}

// DatedVehicleJourneyRef returns the framed journey ref or empty.
func (m MonitoredVehicleJourney) DatedVehicleJourneyRef() string {
	if m.FramedVehicleJourneyRef == nil {
		return ""
	}
	return m.FramedVehicleJourneyRef.DatedVehicleJourneyRef
}
