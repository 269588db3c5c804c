package gtfs

import "strings"

type routeKey struct {
	noc       string
	shortName string
}

// GTFSIndex stores reference data in memory for fast matching lookups.
// Fields are exported for gob caching only.
type GTFSIndex struct {
	AgencyNOC map[string]string // agency_id -> agency_noc
	Routes    map[string]Route  // route_id -> route
	Trips     map[string][]Trip // route_id -> trips
	byKey     map[routeKey][]string
}

// NewGTFSIndex creates a new empty GTFS index
func NewGTFSIndex() *GTFSIndex {
	return &GTFSIndex{
		AgencyNOC: map[string]string{},
		Routes:    map[string]Route{},
		Trips:     map[string][]Trip{},
		byKey:     map[routeKey][]string{},
	}
}

// finalize resolves route operator codes and rebuilds the lookup key map.
// It runs after loading since agency.txt may follow routes.txt in the zip.
func (g *GTFSIndex) finalize() {
	g.byKey = make(map[routeKey][]string, len(g.Routes))
	for id, r := range g.Routes {
		if noc, ok := g.AgencyNOC[r.AgencyID]; ok {
			r.AgencyNOC = noc
			g.Routes[id] = r
		}
		if r.AgencyNOC == "" || r.ShortName == "" {
			continue
		}
		k := routeKey{noc: strings.ToUpper(r.AgencyNOC), shortName: strings.ToUpper(r.ShortName)}
		g.byKey[k] = append(g.byKey[k], id)
	}
}

// RouteCount returns the number of indexed routes.
func (g *GTFSIndex) RouteCount() int { return len(g.Routes) }

// RoutesFor returns the route ids whose operator code and short name match.
func (g *GTFSIndex) RoutesFor(operatorRef, lineName string) []string {
	return g.byKey[routeKey{noc: strings.ToUpper(operatorRef), shortName: strings.ToUpper(lineName)}]
}

// Match resolves an operator, line name and journey code to a route and trip.
// A single trip carrying the journey code across the candidate routes sets
// both the trip and its route. Without one, the route is set only when
// exactly one route carries the operator and line.
func (g *GTFSIndex) Match(operatorRef, lineName, journeyCode string) Match {
	var m Match
	if g == nil || operatorRef == "" || lineName == "" {
		return m
	}
	routes := g.RoutesFor(operatorRef, lineName)
	if len(routes) == 0 {
		return m
	}
	if len(routes) == 1 {
		id := routes[0]
		m.RouteID = &id
	}
	if journeyCode == "" {
		return m
	}
	var found []Trip
	for _, rid := range routes {
		for _, t := range g.Trips[rid] {
			if t.VehicleJourneyCode == journeyCode {
				found = append(found, t)
			}
		}
	}
	if len(found) == 1 {
		tripID, routeID := found[0].ID, found[0].RouteID
		m.TripID = &tripID
		m.RouteID = &routeID
	}
	return m
}
