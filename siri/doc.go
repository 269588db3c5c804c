// Package siri defines SIRI (Service Interface for Real-time Information) data types.
//
// SIRI is a European standard (CEN/TS 15531) for real-time public transport information.
// This package covers the parts of SIRI the hub exchanges with producers and consumers:
//
//   - VehicleMonitoringDelivery (VM): vehicle activities posted by producers
//   - HeartbeatNotification: producer liveness
//   - SubscriptionRequest / SubscriptionResponse: producer subscription handshake
//   - TerminateSubscriptionRequest / TerminateSubscriptionResponse: teardown
//
// Types carry XML struct tags for decoding inbound documents. Values that must
// be validated later (coordinates, timestamps, bearing) are kept as raw strings
// so a malformed value is reported rather than rejected by the decoder.
// Outbound documents are written by package formatter.
package siri
