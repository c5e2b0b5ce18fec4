// Package store provides the SQLite-backed deploy ledger.
//
// The ledger records, per stack:
//   - Deploys: every evaluation with its decision, reason and template hash
//   - Function versions: the version hash each function was deployed with
//   - Filter deletions: subscription filters removed during reconciliation
//
// The ledger is advisory. Deployment necessity is always evaluated against
// the remote bucket and functions, never against these tables; the ledger
// supplies the last deployed version hash to the compiler and the history
// command.
//
// # Idempotency
//
// Every write is keyed: deploys by id, function versions by
// (stack, function, hash), deletions by (deploy_id, log_group, filter_name).
// Writing the same row twice updates it in place.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
