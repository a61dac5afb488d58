// Package manifest loads, validates, and resolves declarative documentation
// build manifests (the .readthedocs.yaml v2 format).
//
// Loading is a pipeline with two validation layers:
//
//  1. Structural: the YAML document is unified with an embedded CUE schema
//     (schema.cue). Closed structs reject unknown keys, enums constrain
//     choices, and regular expressions guard version and package strings.
//     Every violation becomes a coded Diagnostic with file position.
//  2. Semantic: cross-field rules that a schema cannot express (mutually
//     exclusive sections, at-least-one constraints, path containment)
//     are checked in Go, collect-all (never fail-fast).
//
// A structurally and semantically valid File is then resolved into a Config:
// defaults applied, "all" lists expanded, entry points discovered on disk,
// and every path normalized project-relative. Config is the only type the
// planner consumes.
package manifest
