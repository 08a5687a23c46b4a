// Package main is the maintenance CLI for the session storage engine.
//
// It operates directly on a storage root, so run it while no other
// process owns the same directory.
//
// The tool provides:
//   - Creating a new empty session with a freshly minted ID
//   - One-shot archive sweeps over active history
//   - Archive search by name, directory, and time range
//   - Index rebuild from the archive tree
//   - Archive statistics
//   - Restoring a single archived session to stdout
//
// Configuration:
//   - Environment variables (STORAGE_ROOT and friends)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Archive everything older than 60 days
//	./sessionctl -root ~/.local/share/sessions -sweep -age-days 60
//
//	# Find archived sessions by name
//	./sessionctl -root ~/.local/share/sessions -search deploy -limit 10
package main
