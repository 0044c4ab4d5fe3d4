// Package deployment implements the signature deployment orchestrator: it
// expands a deployment request into concrete mailbox targets, resolves and
// renders a signature per target, pushes it to the mail provider, and tracks
// the outcome of the whole fan-out as one aggregate record with per-target
// history.
//
// One target's failure never aborts the batch. The aggregate finalizes as
// failed only when every single target failed.
package deployment
