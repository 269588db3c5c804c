package gtfs

// Route is the subset of routes.txt used for matching
type Route struct {
	ID        string
	AgencyID  string
	AgencyNOC string
	ShortName string
}

// Trip is the subset of trips.txt used for matching
type Trip struct {
	ID                 string
	RouteID            string
	VehicleJourneyCode string
	BlockID            string
}

// Match is the outcome of resolving a vehicle activity against the index.
// Nil ids mean unmatched.
type Match struct {
	RouteID *string
	TripID  *string
}
