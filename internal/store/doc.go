// Package store provides the SQLite database the fan-out demo queries.
//
// It holds a single users table keyed by UUID and exposes a plain
// synchronous query API returning materialised row sets. Asynchronous
// execution lives one layer up, in package session.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// An in-memory database (":memory:") is pinned to one connection, since
// every new connection would otherwise see its own empty database.
package store
