package fhirflat

// IssueSeverity represents the severity of a conversion or validation issue.
type IssueSeverity string

const (
	// SeverityFatal indicates the issue is fatal and processing cannot continue.
	SeverityFatal IssueSeverity = "fatal"
	// SeverityError indicates the row or resource is invalid and will be rejected.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a potential problem that should be reviewed.
	SeverityWarning IssueSeverity = "warning"
	// SeverityInformation indicates informational feedback.
	SeverityInformation IssueSeverity = "information"
)

// IssueType classifies what kind of problem was found.
type IssueType string

const (
	// IssueTypeStructure indicates a structural issue with the resource.
	IssueTypeStructure IssueType = "structure"
	// IssueTypeRequired indicates a required field is missing.
	IssueTypeRequired IssueType = "required"
	// IssueTypeValue indicates an invalid value.
	IssueTypeValue IssueType = "value"
	// IssueTypeCardinality indicates a scalar/list mismatch against the resource spec.
	IssueTypeCardinality IssueType = "cardinality"
	// IssueTypeMapping indicates a problem applying the mapping sheet.
	IssueTypeMapping IssueType = "mapping"
	// IssueTypeReference indicates a malformed or unknown resource reference.
	IssueTypeReference IssueType = "reference"
	// IssueTypeCodeInvalid indicates a malformed system|code value.
	IssueTypeCodeInvalid IssueType = "code-invalid"
	// IssueTypeExtension indicates an extension-related issue.
	IssueTypeExtension IssueType = "extension"
	// IssueTypeInvariant indicates a resource-level invariant violation.
	IssueTypeInvariant IssueType = "invariant"
	// IssueTypeProcessing indicates an internal processing error.
	IssueTypeProcessing IssueType = "processing"
	// IssueTypeNotSupported indicates the operation or format is not supported.
	IssueTypeNotSupported IssueType = "not-supported"
)

// Issue represents a single problem found while mapping, converting or
// validating a resource row.
type Issue struct {
	// Severity of the issue
	Severity IssueSeverity `json:"severity"`

	// Code identifying the type of issue
	Code IssueType `json:"code"`

	// Diagnostics contains human-readable details about the issue
	Diagnostics string `json:"diagnostics,omitempty"`

	// Expression contains dotted FHIRflat path(s) to the field(s) in error
	Expression []string `json:"expression,omitempty"`

	// Row is the source row number in the raw data file (1-based, if known)
	Row int `json:"row,omitempty"`

	// Phase is the validation phase that generated this issue
	Phase string `json:"phase,omitempty"`

	// InvariantKey is set when this issue comes from a FHIRPath invariant
	InvariantKey string `json:"invariantKey,omitempty"`
}

// IsError returns true if this is an error or fatal issue.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError || i.Severity == SeverityFatal
}

// IsWarning returns true if this is a warning.
func (i Issue) IsWarning() bool {
	return i.Severity == SeverityWarning
}

// String returns a human-readable representation of the issue.
func (i Issue) String() string {
	path := ""
	if len(i.Expression) > 0 {
		path = " at " + i.Expression[0]
	}
	return string(i.Severity) + ": " + i.Diagnostics + path
}

// IssueBuilder provides a fluent API for building issues.
type IssueBuilder struct {
	issue Issue
}

// NewIssue creates a new IssueBuilder.
func NewIssue(severity IssueSeverity, code IssueType) *IssueBuilder {
	return &IssueBuilder{
		issue: Issue{
			Severity: severity,
			Code:     code,
		},
	}
}

// Error creates an error issue.
func Error(code IssueType) *IssueBuilder {
	return NewIssue(SeverityError, code)
}

// Warning creates a warning issue.
func Warning(code IssueType) *IssueBuilder {
	return NewIssue(SeverityWarning, code)
}

// Info creates an informational issue.
func Info(code IssueType) *IssueBuilder {
	return NewIssue(SeverityInformation, code)
}

// Diagnostics sets the diagnostic message.
func (b *IssueBuilder) Diagnostics(msg string) *IssueBuilder {
	b.issue.Diagnostics = msg
	return b
}

// At sets the flat field path.
func (b *IssueBuilder) At(path string) *IssueBuilder {
	b.issue.Expression = []string{path}
	return b
}

// AtPaths sets multiple flat field paths.
func (b *IssueBuilder) AtPaths(paths ...string) *IssueBuilder {
	b.issue.Expression = paths
	return b
}

// Row sets the source row number.
func (b *IssueBuilder) Row(row int) *IssueBuilder {
	b.issue.Row = row
	return b
}

// Phase sets the validation phase.
func (b *IssueBuilder) Phase(phase string) *IssueBuilder {
	b.issue.Phase = phase
	return b
}

// Invariant sets the invariant key.
func (b *IssueBuilder) Invariant(key string) *IssueBuilder {
	b.issue.InvariantKey = key
	return b
}

// Build returns the constructed issue.
func (b *IssueBuilder) Build() Issue {
	return b.issue
}
