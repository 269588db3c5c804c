// Package fanout delivers new vehicle activity records to consumer
// subscriptions at their chosen cadence.
//
// Scheduling has two levels. A coarse re-armer runs once a minute and arms
// every live consumer subscription; arming enqueues one delayed message per
// step of the subscription's ladder (for a 20 second cadence: 20s, 40s,
// 60s). A Worker claims due messages from the queue and runs a Deliverer
// tick for each one.
//
// A tick posts only records newer than the subscription's cursor and moves
// the cursor only after the consumer answers 2xx, so delivery is
// at-least-once.
package fanout
