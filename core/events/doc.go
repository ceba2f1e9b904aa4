// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - SolveEvent: outcome of one MPC solve
//   - AllocationEvent: dispatch share computed for a subcentral
//   - PublishEvent: dispatch publication result
package events
