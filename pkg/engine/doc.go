// Package engine implements the state reconciliation core of rbxsync.
//
// The engine keeps remotely hosted resources (game passes, badges, developer
// products) aligned with a human-declared desired state while maintaining a
// durable checkpoint of the last successfully applied state. It is built from
// four pieces that share one data model:
//
//   - Planner: compares desired state against the checkpoint and produces an
//     ordered SyncPlan of Create/Update/Skip actions.
//   - Reconciler: executes a SyncPlan against a Provider, persisting the
//     checkpoint after every individual remote mutation.
//   - DriftDetector: pulls live remote state and performs a three-way merge
//     against desired state and checkpoint, resolving or reporting icon
//     conflicts.
//   - Rename: local-only rekeying that preserves checkpoint linkage.
//
// Execution is strictly sequential: kinds in a fixed order (pass, badge,
// product), keys within a kind in lexicographic order, at most one provider
// call in flight. The determinism exists for reproducible plans and logs, not
// performance; every step is latency-bound by a remote call anyway.
//
// The engine never deletes a remote resource. Checkpoint entries whose desired
// counterpart disappeared are reported as warnings and left in place.
package engine
