// Package api is the hub's HTTP surface: producer subscription management,
// the data ingestion endpoint, the aggregated feed, consumer subscription
// management, health and Prometheus metrics.
//
// Management endpoints speak JSON and report failures as {"error": "..."}.
// Every request gets a request id; unexpected errors are logged with it.
package api
