package secagent

import (
	"strings"
	"time"
)

// ========================= Severity =========================

// Severity is the canonical severity scale shared by dependency
// vulnerabilities and static-analysis findings.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// SeverityFromLabel maps a scanner-provided severity label to the canonical
// scale. Matching is case-insensitive; unrecognized labels map to LOW.
func SeverityFromLabel(label string) Severity {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MEDIUM", "MODERATE":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	case "INFO", "INFORMATIONAL":
		return SeverityInfo
	default:
		return SeverityLow
	}
}

// SeverityFromScore buckets a numeric CVSS-style score into the canonical
// scale: >=9.0 CRITICAL, >=7.0 HIGH, >=4.0 MEDIUM, else LOW.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ========================= Confidence =========================

// Confidence is the scanner's confidence in a code finding.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// ConfidenceFromLabel maps a scanner-provided confidence label to the
// canonical scale. Unrecognized or empty labels map to LOW.
func ConfidenceFromLabel(label string) Confidence {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "HIGH":
		return ConfidenceHigh
	case "MEDIUM":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ========================= Finding =========================

// Category distinguishes the two finding sources.
type Category string

const (
	CategoryDependency Category = "dependency"
	CategoryCode       Category = "code"
)

// Finding is one normalized security observation: either a dependency
// vulnerability or a static-analysis issue. Findings are created fresh per
// scan from raw scanner output and are immutable after normalization.
type Finding struct {
	Category    Category   `json:"category"`
	Severity    Severity   `json:"severity"`
	Confidence  Confidence `json:"confidence"`
	Identifier  string     `json:"identifier"` // CVE id or rule/test id
	Package     string     `json:"package,omitempty"`
	Location    string     `json:"location,omitempty"` // file:line for code findings
	Description string     `json:"description,omitempty"`
	HasFix      bool       `json:"hasFix,omitempty"`     // dependency findings only
	AliasCount  int        `json:"aliasCount,omitempty"` // dependency findings only
}

// ========================= RiskScore =========================

// DependencyFactors is the dependency-side breakdown behind a risk score.
type DependencyFactors struct {
	VulnerabilityCount      int `json:"vulnerability_count"`
	CriticalVulnerabilities int `json:"critical_vulnerabilities"`
	HighVulnerabilities     int `json:"high_vulnerabilities"`
	MediumVulnerabilities   int `json:"medium_vulnerabilities"`
	LowVulnerabilities      int `json:"low_vulnerabilities"`
	AvailableFixes          int `json:"available_fixes"`
	DependenciesScanned     int `json:"dependencies_scanned"`
}

// CodeFactors is the code-side breakdown behind a risk score.
type CodeFactors struct {
	TotalFindings        int            `json:"total_findings"`
	SeverityBreakdown    map[string]int `json:"severity_breakdown"`
	ConfidenceBreakdown  map[string]int `json:"confidence_breakdown"`
	HighSeverityIssues   int            `json:"high_severity_issues"`
	MediumSeverityIssues int            `json:"medium_severity_issues"`
}

// RiskFactors carries the full structured breakdown for a RiskScore.
type RiskFactors struct {
	DependencyFactors DependencyFactors `json:"dependency_factors"`
	CodeFactors       CodeFactors       `json:"code_factors"`
	TotalDependencies int               `json:"total_dependencies"`
	TotalCodeIssues   int               `json:"total_code_issues"`
}

// RiskScore is the scored risk model for one scan. Overall is always the
// 0.6/0.4 convex combination of the dependency and code components; all
// three values are clamped to [0,10].
type RiskScore struct {
	Overall         float64     `json:"overall_score"`
	DependencyRisk  float64     `json:"dependency_risk"`
	CodeRisk        float64     `json:"code_risk"`
	Factors         RiskFactors `json:"factors"`
	Recommendations []string    `json:"recommendations"`
}

// ========================= Scan record DTOs =========================

// ScanSummary is the compact read model for scan listings.
type ScanSummary struct {
	ScanID                    string    `json:"scan_id"`
	TargetPath                string    `json:"target_path"`
	ScanTimestamp             time.Time `json:"scan_timestamp"`
	OverallRiskScore          float64   `json:"overall_risk_score"`
	DependencyRiskScore       float64   `json:"dependency_risk_score"`
	CodeRiskScore             float64   `json:"code_risk_score"`
	DependencyVulnerabilities int       `json:"dependency_vulnerabilities"`
	CodeIssues                int       `json:"code_issues"`
	ProjectName               string    `json:"project_name,omitempty"`
	BranchName                string    `json:"branch_name,omitempty"`
	CommitHash                string    `json:"commit_hash,omitempty"`
	Success                   bool      `json:"success"`
}

// ScanDetails is the full read model for a single scan, raw payload included.
type ScanDetails struct {
	ScanSummary
	ScanResults     []byte       `json:"scan_results"` // opaque raw scanner payload
	RiskFactors     *RiskFactors `json:"risk_factors,omitempty"`
	Recommendations []string     `json:"recommendations,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	ScanDuration    *float64     `json:"scan_duration_seconds,omitempty"`
}

// ========================= Aggregates =========================

// TrendPoint is one calendar day (UTC) of aggregated scan history. Risk
// scores are daily means, finding counts are daily sums. Only successful
// scans contribute.
type TrendPoint struct {
	Date                      string  `json:"date"` // YYYY-MM-DD
	OverallRiskScore          float64 `json:"overall_risk_score"`
	DependencyRiskScore       float64 `json:"dependency_risk_score"`
	CodeRiskScore             float64 `json:"code_risk_score"`
	DependencyVulnerabilities int     `json:"dependency_vulnerabilities"`
	CodeIssues                int     `json:"code_issues"`
}

// DashboardStats is the point-in-time rollup over the whole record store.
type DashboardStats struct {
	TotalScans              int        `json:"total_scans"`
	RecentScans             int        `json:"recent_scans"` // trailing 7 days
	AverageRiskScore        float64    `json:"average_risk_score"`
	HighRiskScans           int        `json:"high_risk_scans"` // overall > 7.0
	CriticalVulnerabilities int        `json:"critical_vulnerabilities"`
	HighSeverityCodeIssues  int        `json:"high_severity_code_issues"`
	LastScanDate            *time.Time `json:"last_scan_date,omitempty"`
}
