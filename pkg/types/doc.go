// Package types defines the core data model of the temporal knowledge
// engine: entities with alias sets and merge forwarding pointers, facts with
// event-clock validity intervals and an authority-status state machine,
// mention and provenance links, the immutable query spec, and the typed
// error taxonomy shared by every component.
package types
