// Package store executes compiled queryir queries against SQLite.
//
// Rows come back as ordered maps keyed by column name, in the column order
// the database reports, so JSON output keeps the SELECT order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Values are always bound as parameters; see package querysql.
package store
