// Package storage persists plantit's object graph.
//
// A Store answers queries (by id, by plant, sorted listings) and applies a
// ChangeSet atomically: every put and delete in the set lands, or none does.
// Deleting a plant cascades to its activities, schedules and photos;
// deleting a village clears the village reference on its plants.
//
// Drivers:
//   - "memory": process-local, used by tests and dry runs
//   - "file":   JSON snapshot rewritten via atomic rename + JSONL audit log
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// The store also carries the audit log (import commits, reminder actions)
// and the notifier's dedup state so it survives restarts.
package storage
