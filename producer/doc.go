// Package producer manages the hub's subscriptions to upstream SIRI-VM
// producers.
//
// A subscription moves pending -> live when the producer accepts the SIRI
// SubscriptionRequest, and live -> inactive on unsubscribe. live -> error
// is taken by the heartbeat watchdog once a producer stops sending
// heartbeats. Credentials live in the secret store, never in the row.
package producer
