// Package events defines the assignment related events emitted on the event bus.
//
// Available event types:
//   - IncidentEvent: new incident received for assignment
//   - RecommendationEvent: ranked recommendations computed for an incident
//   - AckEvent: unit acknowledgment result
//   - FallbackEvent: manager moved on to the next candidate
//   - UnitEvent: unit telemetry merged into the registry
package events
