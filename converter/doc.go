// Package converter turns persisted vehicle activity records back into
// SIRI VehicleActivity elements for the outbound feed and consumer
// deliveries.
//
// Coordinates are written with six decimal places. Timestamps are written
// in UTC. Empty optional fields are left empty so the formatter omits them.
package converter
