package model

import "time"

// VehicleActivityRecord is one validated, persisted vehicle position.
// ID is assigned by the store and increases monotonically.
type VehicleActivityRecord struct {
	ID                       int64      `json:"id"`
	OperatorRef              string     `json:"operatorRef"`
	VehicleRef               string     `json:"vehicleRef"`
	LineRef                  string     `json:"lineRef"`
	PublishedLineName        string     `json:"publishedLineName,omitempty"`
	DirectionRef             string     `json:"directionRef,omitempty"`
	RecordedAtTime           time.Time  `json:"recordedAtTime"`
	ValidUntilTime           time.Time  `json:"validUntilTime"`
	Longitude                float64    `json:"longitude"`
	Latitude                 float64    `json:"latitude"`
	Bearing                  string     `json:"bearing,omitempty"`
	Occupancy                string     `json:"occupancy,omitempty"`
	OriginRef                string     `json:"originRef,omitempty"`
	OriginName               string     `json:"originName,omitempty"`
	DestinationRef           string     `json:"destinationRef,omitempty"`
	DestinationName          string     `json:"destinationName,omitempty"`
	OriginAimedDepartureTime *time.Time `json:"originAimedDepartureTime,omitempty"`
	DatedVehicleJourneyRef   string     `json:"datedVehicleJourneyRef,omitempty"`
	DataFrameRef             string     `json:"dataFrameRef,omitempty"`
	BlockRef                 string     `json:"blockRef,omitempty"`
	VehicleJourneyRef        string     `json:"vehicleJourneyRef,omitempty"`
	ProducerRef              string     `json:"producerRef,omitempty"`
	RouteID                  *string    `json:"routeId,omitempty"`
	TripID                   *string    `json:"tripId,omitempty"`
	SubscriptionID           string     `json:"subscriptionId"`
	ItemID                   string     `json:"itemId,omitempty"`
}

// Matched reports whether both the route and the trip were identified.
func (r VehicleActivityRecord) Matched() bool {
	return r.RouteID != nil && r.TripID != nil
}

// Severity classifies a ValidationError.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityNonCritical Severity = "non-critical"
)

// ValidationError records one rejected VehicleActivity element.
type ValidationError struct {
	ID                string    `json:"id"`
	SubscriptionID    string    `json:"subscriptionId"`
	Severity          Severity  `json:"level"`
	Name              string    `json:"name"`
	Details           string    `json:"details"`
	ResponseTimestamp string    `json:"responseTimestamp,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
}
