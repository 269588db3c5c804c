// Package store persists subscriptions, vehicle activity records and
// validation errors.
//
// Two record store backends exist: Postgres (pgx) for deployments and
// Memory for local runs and tests. Validation errors live in Redis with a
// TTL, or in Memory with the same expiry semantics.
//
// Current-fleet reads are latest-wins: one record per operator and vehicle,
// the one with the greatest RecordedAtTime (ties go to the later insert).
// Filters are applied after that selection, so a vehicle whose latest
// position left a bounding box is not represented by an older position.
package store
