// Package plan compiles a resolved manifest into a deterministic sequence of
// build steps. The same configuration always compiles to the same plan, and
// the plan's digest is the identity build history is keyed on. Plans carry
// everything the runner needs; nothing is decided at execution time except
// the build ID.
package plan
