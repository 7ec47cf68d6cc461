package risk

import (
	"testing"

	"github.com/secagent/go-api/secagent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func depFinding(severity secagent.Severity, hasFix bool, aliasCount int) secagent.Finding {
	return secagent.Finding{
		Category:   secagent.CategoryDependency,
		Severity:   severity,
		Confidence: secagent.ConfidenceHigh,
		Identifier: "CVE-2024-0001",
		HasFix:     hasFix,
		AliasCount: aliasCount,
	}
}

func codeFinding(severity secagent.Severity, confidence secagent.Confidence, ruleID string) secagent.Finding {
	return secagent.Finding{
		Category:   secagent.CategoryCode,
		Severity:   severity,
		Confidence: confidence,
		Identifier: ruleID,
	}
}

func TestCalculateEmptyInput(t *testing.T) {
	score := Calculate(nil, 0)

	assert.Equal(t, 0.0, score.DependencyRisk)
	assert.Equal(t, 0.0, score.CodeRisk)
	assert.Equal(t, 0.0, score.Overall)
	assert.Equal(t, []string{"✅ No immediate security concerns detected"}, score.Recommendations)
}

func TestCalculateCriticalNoFixManyAliases(t *testing.T) {
	// weight 10, no fix x1.5, >2 aliases x1.2 => contribution 18; one
	// dependency scanned => min(18/1*2, 10) = 10.0
	score := Calculate([]secagent.Finding{depFinding(secagent.SeverityCritical, false, 3)}, 1)

	assert.Equal(t, 10.0, score.DependencyRisk)
	assert.Equal(t, 0.0, score.CodeRisk)
	assert.Equal(t, 6.0, score.Overall)
}

func TestCalculateHighRiskRuleCode(t *testing.T) {
	// 8 * (8/10) * 1.5 = 9.6; one finding => min(9.6/1*3, 10) = 10.0
	score := Calculate([]secagent.Finding{codeFinding(secagent.SeverityHigh, secagent.ConfidenceHigh, "B602")}, 0)

	assert.Equal(t, 10.0, score.CodeRisk)
	assert.Equal(t, 0.0, score.DependencyRisk)
	assert.Equal(t, 4.0, score.Overall)
}

func TestCalculateOverallIsConvexCombination(t *testing.T) {
	findings := []secagent.Finding{
		depFinding(secagent.SeverityMedium, true, 0),
		depFinding(secagent.SeverityHigh, false, 1),
		codeFinding(secagent.SeverityMedium, secagent.ConfidenceMedium, "B404"),
		codeFinding(secagent.SeverityLow, secagent.ConfidenceLow, "B110"),
	}
	score := Calculate(findings, 20)

	expected := round2(score.DependencyRisk*0.6 + score.CodeRisk*0.4)
	assert.Equal(t, expected, score.Overall)
}

func TestCalculateScoresStayInRange(t *testing.T) {
	var findings []secagent.Finding
	for i := 0; i < 50; i++ {
		findings = append(findings, depFinding(secagent.SeverityCritical, false, 5))
		findings = append(findings, codeFinding(secagent.SeverityHigh, secagent.ConfidenceHigh, "B608"))
	}
	score := Calculate(findings, 1)

	assert.LessOrEqual(t, score.DependencyRisk, 10.0)
	assert.LessOrEqual(t, score.CodeRisk, 10.0)
	assert.LessOrEqual(t, score.Overall, 10.0)
	assert.GreaterOrEqual(t, score.DependencyRisk, 0.0)
	assert.GreaterOrEqual(t, score.CodeRisk, 0.0)
	assert.GreaterOrEqual(t, score.Overall, 0.0)
}

func TestCalculateRiskDensityNormalization(t *testing.T) {
	// Same single vulnerability, larger scanned surface => lower risk.
	vuln := depFinding(secagent.SeverityHigh, true, 0)

	small := Calculate([]secagent.Finding{vuln}, 2)
	large := Calculate([]secagent.Finding{vuln}, 100)

	assert.Greater(t, small.DependencyRisk, large.DependencyRisk)
}

func TestRuleMultipliers(t *testing.T) {
	assert.Equal(t, 1.5, ruleMultiplier("B105"))
	assert.Equal(t, 1.5, ruleMultiplier("B608"))
	assert.Equal(t, 1.2, ruleMultiplier("B101"))
	assert.Equal(t, 1.2, ruleMultiplier("B301"))
	assert.Equal(t, 1.0, ruleMultiplier("B404"))
	assert.Equal(t, 1.0, ruleMultiplier(""))
}

func TestVulnerabilityMultiplierComposition(t *testing.T) {
	assert.Equal(t, 1.0, vulnerabilityMultiplier(depFinding(secagent.SeverityLow, true, 0)))
	assert.Equal(t, 1.5, vulnerabilityMultiplier(depFinding(secagent.SeverityLow, false, 0)))
	assert.Equal(t, 1.2, vulnerabilityMultiplier(depFinding(secagent.SeverityLow, true, 3)))
	assert.InDelta(t, 1.8, vulnerabilityMultiplier(depFinding(secagent.SeverityLow, false, 3)), 1e-9)
}

func TestRecommendationOrder(t *testing.T) {
	// High dependency risk with criticals and fixes, high code risk with
	// high-severity findings: all eight rules except the baseline fire.
	findings := []secagent.Finding{
		depFinding(secagent.SeverityCritical, true, 0),
		depFinding(secagent.SeverityCritical, false, 4),
		codeFinding(secagent.SeverityHigh, secagent.ConfidenceHigh, "B105"),
		codeFinding(secagent.SeverityHigh, secagent.ConfidenceHigh, "B602"),
	}
	score := Calculate(findings, 1)

	require.Equal(t, []string{
		"🚨 HIGH PRIORITY: Address critical dependency vulnerabilities immediately",
		"🔴 CRITICAL: Fix critical vulnerabilities before deployment",
		"✅ Updates available: Upgrade affected packages to their fixed versions",
		"🔍 HIGH PRIORITY: Review and fix high-severity code issues",
		"🔴 CRITICAL: Fix high-severity code issues before merge",
		"🛡️ SECURITY REVIEW: Consider security team review before release",
	}, score.Recommendations)
}

func TestRecommendationMediumTiers(t *testing.T) {
	// One MEDIUM vulnerability with a fix across two scanned dependencies:
	// 5 * 1.0 / 2 * 2 = 5.0 => medium dependency tier (not high).
	score := Calculate([]secagent.Finding{depFinding(secagent.SeverityMedium, true, 0)}, 2)

	assert.Equal(t, 5.0, score.DependencyRisk)
	assert.Contains(t, score.Recommendations, "⚠️ MEDIUM PRIORITY: Update vulnerable dependencies")
	assert.NotContains(t, score.Recommendations, "🚨 HIGH PRIORITY: Address critical dependency vulnerabilities immediately")
}

func TestCalculateFactors(t *testing.T) {
	findings := []secagent.Finding{
		depFinding(secagent.SeverityCritical, false, 0),
		depFinding(secagent.SeverityHigh, true, 0),
		depFinding(secagent.SeverityMedium, true, 0),
		depFinding(secagent.SeverityLow, false, 0),
		codeFinding(secagent.SeverityHigh, secagent.ConfidenceMedium, "B102"),
		codeFinding(secagent.SeverityMedium, secagent.ConfidenceLow, "B110"),
	}
	score := Calculate(findings, 10)

	dep := score.Factors.DependencyFactors
	assert.Equal(t, 4, dep.VulnerabilityCount)
	assert.Equal(t, 1, dep.CriticalVulnerabilities)
	assert.Equal(t, 1, dep.HighVulnerabilities)
	assert.Equal(t, 1, dep.MediumVulnerabilities)
	assert.Equal(t, 1, dep.LowVulnerabilities)
	assert.Equal(t, 2, dep.AvailableFixes)
	assert.Equal(t, 10, dep.DependenciesScanned)

	code := score.Factors.CodeFactors
	assert.Equal(t, 2, code.TotalFindings)
	assert.Equal(t, 1, code.HighSeverityIssues)
	assert.Equal(t, 1, code.MediumSeverityIssues)
	assert.Equal(t, 1, code.ConfidenceBreakdown["MEDIUM"])
	assert.Equal(t, 1, code.ConfidenceBreakdown["LOW"])

	assert.Equal(t, 10, score.Factors.TotalDependencies)
	assert.Equal(t, 2, score.Factors.TotalCodeIssues)
}
