package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/secagent/go-api/secagent"
)

// CombinedReport is the persisted raw-results envelope: one scan's
// dependency-audit and static-analysis payloads side by side. Either
// section may be absent.
type CombinedReport struct {
	PipAudit json.RawMessage `json:"pip_audit,omitempty"`
	Bandit   json.RawMessage `json:"bandit,omitempty"`
}

// ParseCombined decodes a persisted raw-results envelope into its two
// reports. Absent sections decode to empty reports.
func ParseCombined(raw []byte) (DependencyReport, StaticReport, error) {
	var combined CombinedReport
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &combined); err != nil {
			return DependencyReport{}, StaticReport{}, fmt.Errorf("parse combined scan results: %w", err)
		}
	}

	depReport, err := ParseDependencyReport(combined.PipAudit)
	if err != nil {
		return DependencyReport{}, StaticReport{}, err
	}
	staticReport, err := ParseStaticReport(combined.Bandit)
	if err != nil {
		return DependencyReport{}, StaticReport{}, err
	}
	return depReport, staticReport, nil
}

// NormalizeCombined parses a raw-results envelope and returns all findings
// plus the scanned dependency total the scorer normalizes by.
func NormalizeCombined(raw []byte) ([]secagent.Finding, int, error) {
	depReport, staticReport, err := ParseCombined(raw)
	if err != nil {
		return nil, 0, err
	}
	findings := NormalizeDependencyReport(depReport)
	findings = append(findings, NormalizeStaticReport(staticReport)...)
	return findings, len(depReport.Dependencies), nil
}
