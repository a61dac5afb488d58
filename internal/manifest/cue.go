package manifest

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE []byte

// validateStructure unifies the manifest document with the embedded CUE
// schema and converts every violation into a positioned Diagnostic.
// filename is used for positions only.
func validateStructure(filename string, data []byte) Diagnostics {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		// The schema is embedded; failing to compile it is a programming
		// error, reported rather than panicked so callers stay recoverable.
		return Diagnostics{errorf(CodeGeneric, "schema", "internal schema error: %v", err)}
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return cueDiagnostics(err, CodeYAMLSyntax)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return cueDiagnostics(err, CodeYAMLSyntax)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return cueDiagnostics(err, CodeSchema)
	}
	return nil
}

// cueDiagnostics flattens a CUE error list into Diagnostics, classifying
// each error by its failing path and message.
func cueDiagnostics(err error, fallback string) Diagnostics {
	var out Diagnostics
	for _, e := range cueerrors.Errors(err) {
		field := strings.Join(e.Path(), ".")
		msg := trimFieldPrefix(e.Error(), field)
		pos := bestPosition(e)

		d := errorf(classifyCUEError(field, msg, fallback), field, "%s", msg)
		if pos.IsValid() {
			d.Line = pos.Line()
			d.Column = pos.Column()
		}
		out = append(out, d)
	}
	if out == nil {
		out = Diagnostics{errorf(fallback, "", "%v", err)}
	}
	return out
}

// bestPosition prefers a position inside the manifest over one inside the
// embedded schema.
func bestPosition(e cueerrors.Error) token.Pos {
	for _, p := range cueerrors.Positions(e) {
		if p.IsValid() && p.Filename() != "schema.cue" {
			return p
		}
	}
	return e.Position()
}

// classifyCUEError maps a CUE failure onto the narrowest diagnostic code.
// The path decides where a regex or bound came from; the message text
// separates missing keys from wrong types from unknown fields.
func classifyCUEError(field, msg, fallback string) string {
	// Install entries are a disjunction of two closed shapes, and CUE may
	// surface a failed disjunction as its per-disjunct errors. Every
	// structural failure under python.install means the entry does not
	// match either shape.
	if strings.HasPrefix(field, "python.install") {
		return CodeInstallAmbiguous
	}

	switch {
	case strings.Contains(msg, "field not allowed"):
		return CodeUnknownKey
	case strings.Contains(msg, "incomplete value"):
		return CodeMissingRequired
	}

	switch {
	case field == "version":
		return CodeUnsupportedVersion
	case strings.HasPrefix(field, "build.tools"):
		// Bad tool names are unknown fields (handled above); anything else
		// here is a malformed version string.
		return CodeInvalidToolVersion
	case strings.HasPrefix(field, "build.apt_packages"):
		return CodeInvalidPackageName
	case strings.HasPrefix(field, "search.ranking"):
		return CodeRankingOutOfRange
	case field == "formats" || strings.HasPrefix(field, "formats."):
		return CodeInvalidFormat
	case field == "build.os", strings.HasSuffix(field, ".builder"):
		return CodeInvalidChoice
	case strings.Contains(msg, "conflicting values"):
		return CodeInvalidType
	}
	return fallback
}

// trimFieldPrefix drops the "path: " prefix CUE puts in error strings so the
// message is not stuttered next to the Field.
func trimFieldPrefix(msg, field string) string {
	if field == "" {
		return msg
	}
	return strings.TrimPrefix(msg, fmt.Sprintf("%s: ", field))
}
