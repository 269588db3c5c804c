// Package utils provides internal time helpers shared by the SIRI and
// GTFS-RT renderers and the ingestion parser.
package utils
