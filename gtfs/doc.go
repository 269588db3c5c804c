/*
Package gtfs loads scheduled-service reference data used to match live
vehicle activity to routes and trips.

Only the columns matching needs are indexed:

  - agency.txt: agency_id, agency_noc (operator national code)
  - routes.txt: route_id, agency_id, route_short_name
  - trips.txt: trip_id, route_id, vehicle_journey_code, block_id

# Matching

A route is identified by its operator code plus its public line name, the
same pair a SIRI-VM producer sends as OperatorRef and PublishedLineName.
Within those routes a trip is identified by vehicle_journey_code, compared
against DatedVehicleJourneyRef. Match only reports an id when exactly one
candidate exists; ambiguity is reported as unmatched.

# Loading

	idx, err := gtfs.NewIndexFromFile("/data/gtfs.zip")

	// or download at startup, keeping a parsed copy for restarts
	idx, err := gtfs.LoadIndex(ctx, httpClient, cfg.GTFS)

The index is immutable once built and safe for concurrent reads.
*/
package gtfs
