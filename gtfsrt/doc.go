// Package gtfsrt renders the current fleet as a GTFS-Realtime
// VehiclePositions feed.
//
// The feed is always a FULL_DATASET snapshot. A TripDescriptor is attached
// only to records matched to both a route and a trip; its start date and
// start time come from the journey's origin aimed departure time.
package gtfsrt
