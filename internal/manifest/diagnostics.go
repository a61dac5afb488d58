package manifest

import "fmt"

// Diagnostic codes. E0xx cover loading and IO, E1xx cover manifest content,
// W2xx are non-fatal findings.
const (
	CodeGeneric       = "E001" // unclassified error
	CodeNotFound      = "E002" // no manifest file in the project
	CodeReadFailed    = "E003" // manifest unreadable
	CodeYAMLSyntax    = "E004" // YAML syntax error
	CodeSchema        = "E005" // schema violation not mapped to a narrower code
	CodeWriteFailed   = "E006" // generated file write error
	CodeEmptyManifest = "E007" // zero-byte manifest

	CodeUnsupportedVersion = "E101" // version missing or not 2
	CodeUnknownKey         = "E102" // key not in the schema
	CodeInvalidChoice      = "E103" // value outside an enum
	CodeInvalidType        = "E104" // wrong YAML type for a key
	CodeConflictingKeys    = "E105" // mutually exclusive sections both present
	CodeMissingRequired    = "E106" // required key absent
	CodeInvalidToolVersion = "E107" // malformed toolchain version string
	CodeUnsafePath         = "E108" // absolute path or escape from the project
	CodeInvalidPackageName = "E109" // malformed apt package name
	CodeExtrasRequirePip   = "E110" // extra_requirements with a non-pip method
	CodeRankingOutOfRange  = "E111" // search ranking outside [-10, 10]
	CodeInvalidFormat      = "E112" // bad or duplicate output format
	CodeInstallAmbiguous   = "E113" // install entry must be requirements XOR path
	CodeFileNotFound       = "E114" // referenced file missing on disk

	CodeToolConfigDiscovered = "W201" // entry point omitted, discovery used
	CodeFormatsIgnored       = "W202" // offline formats requested with mkdocs
	CodeImplicitTool         = "W203" // no doc tool declared, sphinx assumed
)

// Severity classifies a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a single finding about a manifest. Field is a dotted path
// into the document ("build.tools.python"); Line and Column are 1-based
// positions in the manifest file when known.
type Diagnostic struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", d.Code, d.Line, d.Field, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Code, d.Field, d.Message)
}

// errorf builds an error-severity Diagnostic.
func errorf(code, field, format string, args ...any) Diagnostic {
	return Diagnostic{
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
		Code:     code,
		Severity: SeverityError,
	}
}

// warnf builds a warning-severity Diagnostic.
func warnf(code, field, format string, args ...any) Diagnostic {
	return Diagnostic{
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
		Code:     code,
		Severity: SeverityWarning,
	}
}

// Diagnostics is an ordered collection of findings.
type Diagnostics []Diagnostic

// HasErrors reports whether any diagnostic is error-severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the warning-severity diagnostics.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}
