// Package types defines the shared record types for the tiered session store.
//
// Records are versioned, explicitly-tagged structs. Three record families:
//   - SessionRecord: one tracked terminal/conversation instance
//   - WorkspaceRecord: a bounded tab group of sessions sharing a layout
//   - ArchiveEntry: index metadata for a compressed, cold-stored session
//
// All timestamps are wall-clock Unix seconds. Records are opaque to the
// storage tiers: nothing in this module interprets transcript contents.
package types
