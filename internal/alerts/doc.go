// Package alerts maintains the persistent per-site match state: discovery
// upserts, recheck liveness merges, and the manual review actions, all
// serialized through one store and persisted with atomic replace.
package alerts
