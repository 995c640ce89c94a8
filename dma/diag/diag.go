// Package diag carries structured findings produced by capability validation
// and pool health checks. Findings are plain data; rendering lives in
// package render.
package diag

import (
	"fmt"
	"strings"
)

// Severity classifies how serious a finding is.
type Severity int

const (
	SevInfo    Severity = iota // Informational (unusual but valid)
	SevWarning                 // Inconsistent with the device family, still usable
	SevError                   // Fails validation
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the severity by name so JSON and YAML output stay readable.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "INFO":
		*s = SevInfo
	case "WARNING":
		*s = SevWarning
	case "ERROR":
		*s = SevError
	default:
		return fmt.Errorf("diag: unknown severity %q", b)
	}
	return nil
}

// Category classifies the kind of check that produced a finding.
type Category int

const (
	CatRange       Category = iota // A single field outside its legal range
	CatConsistency                 // Fields that disagree with each other or with the device family
	CatIdentity                    // Name and registry key disagree
	CatHealth                      // Runtime allocator health
)

func (c Category) String() string {
	switch c {
	case CatRange:
		return "RANGE"
	case CatConsistency:
		return "CONSISTENCY"
	case CatIdentity:
		return "IDENTITY"
	case CatHealth:
		return "HEALTH"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a category name.
func (c *Category) UnmarshalText(b []byte) error {
	for _, cat := range []Category{CatRange, CatConsistency, CatIdentity, CatHealth} {
		if strings.EqualFold(cat.String(), string(b)) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("diag: unknown category %q", b)
}

// Finding is a single severity-tagged observation.
type Finding struct {
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Subject  string   `json:"subject"`         // device name or pool label
	Field    string   `json:"field,omitempty"` // offending field, if any
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	if f.Field == "" {
		return fmt.Sprintf("%s: %s: %s", f.Severity, f.Subject, f.Message)
	}
	return fmt.Sprintf("%s: %s.%s: %s", f.Severity, f.Subject, f.Field, f.Message)
}

// Summary counts findings by severity.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// Report collects the findings for one subject.
type Report struct {
	Subject  string    `json:"subject"`
	Findings []Finding `json:"findings"`
	Summary  Summary   `json:"summary"`
}

// NewReport creates an empty report for subject.
func NewReport(subject string) *Report {
	return &Report{Subject: subject, Findings: []Finding{}}
}

// Add appends f and updates the summary. An empty Subject is filled from the report.
func (r *Report) Add(f Finding) {
	if f.Subject == "" {
		f.Subject = r.Subject
	}
	r.Findings = append(r.Findings, f)
	switch f.Severity {
	case SevError:
		r.Summary.Errors++
	case SevWarning:
		r.Summary.Warnings++
	case SevInfo:
		r.Summary.Info++
	}
}

// Addf is shorthand for Add with a formatted message.
func (r *Report) Addf(sev Severity, cat Category, field, format string, args ...any) {
	r.Add(Finding{Severity: sev, Category: cat, Field: field, Message: fmt.Sprintf(format, args...)})
}

// OK reports whether the report has no ERROR findings.
func (r *Report) OK() bool {
	return r.Summary.Errors == 0
}

// BySeverity returns the findings with severity s, in insertion order.
func (r *Report) BySeverity(s Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// Merge appends every finding of other.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for _, f := range other.Findings {
		r.Add(f)
	}
}
