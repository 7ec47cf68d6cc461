// Package normalize maps raw, scanner-specific output into the canonical
// secagent.Finding representation.
//
// Two raw shapes are supported: dependency-audit reports (pip-audit style
// JSON) and static-analysis reports (bandit style JSON). Normalization is
// total: a record missing fields is defaulted, never rejected, so one bad
// entry cannot abort scoring of the rest.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/secagent/go-api/secagent"
)

// Vulnerability is one raw vulnerability entry on a scanned dependency.
// Severity and CVSSScore are both optional; when both are present the
// explicit label wins.
type Vulnerability struct {
	ID          string   `json:"id"`
	Severity    string   `json:"severity,omitempty"`
	CVSSScore   *float64 `json:"cvss_score,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	FixVersions []string `json:"fix_versions,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Dependency is one scanned package with its vulnerability entries.
type Dependency struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Vulns   []Vulnerability `json:"vulns,omitempty"`
}

// Fix is a remediation entry from the dependency audit report.
type Fix struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DependencyReport is the raw dependency-audit payload.
type DependencyReport struct {
	Dependencies []Dependency `json:"dependencies"`
	Fixes        []Fix        `json:"fixes,omitempty"`
}

// Issue is one raw static-analysis finding.
type Issue struct {
	Filename        string `json:"filename"`
	LineNumber      int    `json:"line_number"`
	TestID          string `json:"test_id"`
	TestName        string `json:"test_name,omitempty"`
	IssueSeverity   string `json:"issue_severity"`
	IssueConfidence string `json:"issue_confidence"`
	IssueText       string `json:"issue_text,omitempty"`
}

// StaticReport is the raw static-analysis payload.
type StaticReport struct {
	Results []Issue `json:"results"`
}

// DependencyFinding normalizes one vulnerability on one dependency.
//
// Severity resolution order: explicit label first, then numeric score
// bucket, then MEDIUM. Dependency findings carry no confidence axis and are
// treated as confidence HIGH.
func DependencyFinding(dep Dependency, v Vulnerability) secagent.Finding {
	return secagent.Finding{
		Category:    secagent.CategoryDependency,
		Severity:    dependencySeverity(v),
		Confidence:  secagent.ConfidenceHigh,
		Identifier:  v.ID,
		Package:     dep.Name,
		Description: v.Description,
		HasFix:      len(v.FixVersions) > 0,
		AliasCount:  len(v.Aliases),
	}
}

// dependencySeverity resolves the canonical severity for a raw vulnerability
// entry. The label takes precedence over the numeric score when both exist.
func dependencySeverity(v Vulnerability) secagent.Severity {
	if v.Severity != "" {
		return secagent.SeverityFromLabel(v.Severity)
	}
	if v.CVSSScore != nil {
		return secagent.SeverityFromScore(*v.CVSSScore)
	}
	return secagent.SeverityMedium
}

// CodeFinding normalizes one static-analysis issue. Severity and confidence
// are copied from the scanner's own labels; unrecognized values become LOW.
func CodeFinding(issue Issue) secagent.Finding {
	return secagent.Finding{
		Category:    secagent.CategoryCode,
		Severity:    secagent.SeverityFromLabel(issue.IssueSeverity),
		Confidence:  secagent.ConfidenceFromLabel(issue.IssueConfidence),
		Identifier:  issue.TestID,
		Location:    fmt.Sprintf("%s:%d", issue.Filename, issue.LineNumber),
		Description: issue.IssueText,
	}
}

// NormalizeDependencyReport flattens a dependency report into findings, one
// per vulnerability entry. Dependencies without vulnerabilities contribute
// nothing here but still count toward the scanned total.
func NormalizeDependencyReport(r DependencyReport) []secagent.Finding {
	var findings []secagent.Finding
	for _, dep := range r.Dependencies {
		for _, v := range dep.Vulns {
			findings = append(findings, DependencyFinding(dep, v))
		}
	}
	return findings
}

// NormalizeStaticReport maps a static-analysis report into findings.
func NormalizeStaticReport(r StaticReport) []secagent.Finding {
	var findings []secagent.Finding
	for _, issue := range r.Results {
		findings = append(findings, CodeFinding(issue))
	}
	return findings
}

// ParseDependencyReport decodes a raw dependency-audit payload. Missing keys
// decode to zero values; the defaults in DependencyFinding apply downstream.
// An empty payload yields an empty report, not an error.
func ParseDependencyReport(raw []byte) (DependencyReport, error) {
	var r DependencyReport
	if len(raw) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return DependencyReport{}, fmt.Errorf("parse dependency report: %w", err)
	}
	return r, nil
}

// ParseStaticReport decodes a raw static-analysis payload.
func ParseStaticReport(raw []byte) (StaticReport, error) {
	var r StaticReport
	if len(raw) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return StaticReport{}, fmt.Errorf("parse static-analysis report: %w", err)
	}
	return r, nil
}
