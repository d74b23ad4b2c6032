// Package eventstore is the optional install journal: an append-only SQLite
// record of what each installer run did, keyed by a per-run UUID.
package eventstore
