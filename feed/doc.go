// Package feed aggregates the current fleet into the hub's outbound
// representations and publishes snapshot objects.
//
// Reads go through store.Records.CurrentFleet, so every render shows one
// record per operator and vehicle, the latest by RecordedAtTime. Two
// renders are produced: SIRI-VM XML and a GTFS-Realtime VehiclePositions
// protobuf. Publish uploads both to fixed object keys, overwriting the
// previous snapshot.
package feed
