// Package runner executes compiled plans as local subprocesses.
//
// Steps run in plan order with phase boundaries as barriers; only the
// per-format build steps of a multi-format plan run concurrently, bounded by
// Options.ParallelFormats. Every subprocess gets its own process group and a
// scrubbed environment: an allowlisted slice of the host environment plus the
// plan's environment contract. On timeout or cancellation the whole group is
// sent SIGTERM, then SIGKILL after a grace period.
//
// The first failing step aborts the run; steps that never started are
// recorded as skipped. Each step keeps the last 200 lines of combined output
// for the build history.
package runner
