// File: scan_record.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// ScanRecord is the persisted row for one scan invocation. Created once per
// scan, append-only: the risk columns may be overwritten by a re-score, but
// ScanID, ScanTimestamp and ScanResults never change after creation.
type ScanRecord struct {
	gorm.Model
	ScanID        string    `gorm:"uniqueIndex;not null" json:"scan_id"`
	TargetPath    string    `gorm:"not null" json:"target_path"`
	ScanTimestamp time.Time `gorm:"index;not null" json:"scan_timestamp"`

	// Risk scores (0-10)
	OverallRiskScore    float64 `gorm:"not null" json:"overall_risk_score"`
	DependencyRiskScore float64 `gorm:"not null" json:"dependency_risk_score"`
	CodeRiskScore       float64 `gorm:"not null" json:"code_risk_score"`

	// Summary counts
	DependencyVulnerabilities int `gorm:"default:0" json:"dependency_vulnerabilities"`
	CodeIssues                int `gorm:"default:0" json:"code_issues"`

	// Raw results and scored breakdown, JSON-encoded
	ScanResults     []byte `gorm:"not null" json:"scan_results"`
	RiskFactors     []byte `json:"risk_factors,omitempty"`
	Recommendations []byte `json:"recommendations,omitempty"`

	// Scan metadata
	ScanDurationSeconds *float64 `json:"scan_duration_seconds,omitempty"`
	Success             bool     `gorm:"default:true" json:"success"`
	ErrorMessage        string   `gorm:"type:text" json:"error_message,omitempty"`

	// Optional source labels
	ProjectName string `gorm:"index" json:"project_name,omitempty"`
	BranchName  string `json:"branch_name,omitempty"`
	CommitHash  string `json:"commit_hash,omitempty"`
}
