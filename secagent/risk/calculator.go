// Package risk computes the severity-weighted risk model for a scan.
//
// Calculate is a pure function of its input: no I/O, deterministic, and
// total — malformed or empty input yields a zero score, never an error.
package risk

import (
	"math"

	"github.com/secagent/go-api/secagent"
)

// severityWeight is the shared weight scale for severities. Confidence
// reuses the same scale (divided by 10) when weighting code findings.
var severityWeight = map[secagent.Severity]float64{
	secagent.SeverityCritical: 10.0,
	secagent.SeverityHigh:     8.0,
	secagent.SeverityMedium:   5.0,
	secagent.SeverityLow:      2.0,
	secagent.SeverityInfo:     0.5,
}

var confidenceWeight = map[secagent.Confidence]float64{
	secagent.ConfidenceHigh:   8.0,
	secagent.ConfidenceMedium: 5.0,
	secagent.ConfidenceLow:    2.0,
}

// highRiskRules are static-analysis rule ids whose findings are weighted
// 1.5x: hardcoded credentials, shell-injection-prone subprocess calls, raw
// SQL string construction.
var highRiskRules = map[string]struct{}{
	"B105": {}, // hardcoded_password_string
	"B106": {}, // hardcoded_password_funcarg
	"B107": {}, // hardcoded_password_default
	"B602": {}, // subprocess_popen_with_shell_equals_true
	"B603": {}, // subprocess_without_shell_equals_true
	"B608": {}, // hardcoded_sql_expressions
}

// mediumRiskRules are weighted 1.2x: assert/exec constructs, debug-mode
// flags, unsafe deserialization.
var mediumRiskRules = map[string]struct{}{
	"B101": {}, // assert_used
	"B102": {}, // exec_used
	"B201": {}, // flask_debug_true
	"B301": {}, // pickle
	"B302": {}, // marshal
}

// Calculate scores a set of normalized findings. dependenciesScanned is the
// total number of dependencies the scanner examined, vulnerable or not; the
// dependency component normalizes by it so the score tracks risk density
// rather than raw vulnerability count.
func Calculate(findings []secagent.Finding, dependenciesScanned int) secagent.RiskScore {
	var depFindings, codeFindings []secagent.Finding
	for _, f := range findings {
		switch f.Category {
		case secagent.CategoryDependency:
			depFindings = append(depFindings, f)
		case secagent.CategoryCode:
			codeFindings = append(codeFindings, f)
		}
	}

	depRisk, depFactors := calculateDependencyRisk(depFindings, dependenciesScanned)
	codeRisk, codeFactors := calculateCodeRisk(codeFindings)

	depRisk = round2(depRisk)
	codeRisk = round2(codeRisk)
	overall := round2(depRisk*0.6 + codeRisk*0.4)

	return secagent.RiskScore{
		Overall:        overall,
		DependencyRisk: depRisk,
		CodeRisk:       codeRisk,
		Factors: secagent.RiskFactors{
			DependencyFactors: depFactors,
			CodeFactors:       codeFactors,
			TotalDependencies: dependenciesScanned,
			TotalCodeIssues:   len(codeFindings),
		},
		Recommendations: recommendations(depRisk, codeRisk, depFactors, codeFactors),
	}
}

// calculateDependencyRisk sums weight(severity) x multiplier over all
// dependency findings, normalized by the scanned dependency count.
func calculateDependencyRisk(findings []secagent.Finding, dependenciesScanned int) (float64, secagent.DependencyFactors) {
	factors := secagent.DependencyFactors{
		DependenciesScanned: dependenciesScanned,
	}

	total := 0.0
	for _, f := range findings {
		factors.VulnerabilityCount++
		switch f.Severity {
		case secagent.SeverityCritical:
			factors.CriticalVulnerabilities++
		case secagent.SeverityHigh:
			factors.HighVulnerabilities++
		case secagent.SeverityMedium:
			factors.MediumVulnerabilities++
		default:
			factors.LowVulnerabilities++
		}
		if f.HasFix {
			factors.AvailableFixes++
		}

		weight, ok := severityWeight[f.Severity]
		if !ok {
			weight = severityWeight[secagent.SeverityLow]
		}
		total += weight * vulnerabilityMultiplier(f)
	}

	risk := clamp10(total / float64(max(dependenciesScanned, 1)) * 2)
	return risk, factors
}

// vulnerabilityMultiplier composes the per-finding risk multipliers: 1.5x
// when no fixed version exists, 1.2x when the vulnerability is widely
// cross-referenced. Both may apply.
func vulnerabilityMultiplier(f secagent.Finding) float64 {
	m := 1.0
	if !f.HasFix {
		m *= 1.5
	}
	if f.AliasCount > 2 {
		m *= 1.2
	}
	return m
}

// calculateCodeRisk sums severity x (confidence/10) x rule multiplier over
// all code findings, normalized by the finding count.
func calculateCodeRisk(findings []secagent.Finding) (float64, secagent.CodeFactors) {
	factors := secagent.CodeFactors{
		TotalFindings:       len(findings),
		SeverityBreakdown:   map[string]int{},
		ConfidenceBreakdown: map[string]int{},
	}

	total := 0.0
	for _, f := range findings {
		sevWeight, ok := severityWeight[f.Severity]
		if !ok {
			sevWeight = severityWeight[secagent.SeverityLow]
		}
		confWeight, ok := confidenceWeight[f.Confidence]
		if !ok {
			confWeight = confidenceWeight[secagent.ConfidenceLow]
		}

		total += sevWeight * (confWeight / 10.0) * ruleMultiplier(f.Identifier)

		factors.SeverityBreakdown[string(f.Severity)]++
		factors.ConfidenceBreakdown[string(f.Confidence)]++
	}

	factors.HighSeverityIssues = factors.SeverityBreakdown[string(secagent.SeverityHigh)]
	factors.MediumSeverityIssues = factors.SeverityBreakdown[string(secagent.SeverityMedium)]

	risk := clamp10(total / float64(max(len(findings), 1)) * 3)
	return risk, factors
}

// ruleMultiplier looks up the fixed per-rule adjustment.
func ruleMultiplier(ruleID string) float64 {
	if _, ok := highRiskRules[ruleID]; ok {
		return 1.5
	}
	if _, ok := mediumRiskRules[ruleID]; ok {
		return 1.2
	}
	return 1.0
}

// recommendations generates the ordered, deduplicated advice lines. At
// least one line is always produced.
func recommendations(depRisk, codeRisk float64, dep secagent.DependencyFactors, code secagent.CodeFactors) []string {
	var recs []string

	if depRisk > 5.0 {
		recs = append(recs, "🚨 HIGH PRIORITY: Address critical dependency vulnerabilities immediately")
	} else if depRisk > 3.0 {
		recs = append(recs, "⚠️ MEDIUM PRIORITY: Update vulnerable dependencies")
	}

	if dep.CriticalVulnerabilities > 0 {
		recs = append(recs, "🔴 CRITICAL: Fix critical vulnerabilities before deployment")
	}

	if dep.AvailableFixes > 0 {
		recs = append(recs, "✅ Updates available: Upgrade affected packages to their fixed versions")
	}

	if codeRisk > 5.0 {
		recs = append(recs, "🔍 HIGH PRIORITY: Review and fix high-severity code issues")
	} else if codeRisk > 3.0 {
		recs = append(recs, "📝 MEDIUM PRIORITY: Address code security issues")
	}

	if code.HighSeverityIssues > 0 {
		recs = append(recs, "🔴 CRITICAL: Fix high-severity code issues before merge")
	}

	if depRisk+codeRisk > 7.0 {
		recs = append(recs, "🛡️ SECURITY REVIEW: Consider security team review before release")
	}

	if len(recs) == 0 {
		recs = append(recs, "✅ No immediate security concerns detected")
	}

	return recs
}

func clamp10(v float64) float64 {
	return math.Min(v, 10.0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
