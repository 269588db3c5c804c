// Package model holds the persisted entities shared by the ingestion,
// feed and fan-out paths: producer subscriptions, vehicle activity
// records, validation errors and consumer subscriptions.
package model
