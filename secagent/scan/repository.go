// Package scan is the record-store client for scored scans: creation,
// lookup, filtered listing, re-scoring, and the dashboard/trend aggregates
// derived from scan history.
package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/secagent/go-api/secagent"
	"github.com/secagent/go-api/secagent/normalize"
	"github.com/secagent/go-api/secagent/postgres/models"
	"github.com/secagent/go-api/secagent/risk"
	"gorm.io/gorm"
)

// ErrScanNotFound is returned when a scan id has no record.
var ErrScanNotFound = errors.New("scan record not found")

// Repository provides scan record operations against an explicitly passed
// database handle. The caller owns the handle's lifecycle.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a Repository on the given handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateScanInput carries everything needed to persist one scan.
type CreateScanInput struct {
	TargetPath   string
	ScanResults  []byte // raw combined scanner payload, stored as-is
	Risk         secagent.RiskScore
	ProjectName  string
	BranchName   string
	CommitHash   string
	ScanDuration *float64
	Success      bool
	ErrorMessage string
}

// Create persists a new scan record and returns its generated scan id.
// The timestamp is assigned here, once, in UTC.
func (r *Repository) Create(input CreateScanInput) (string, error) {
	scanID := uuid.NewString()

	factors, err := json.Marshal(input.Risk.Factors)
	if err != nil {
		return "", fmt.Errorf("encode risk factors: %w", err)
	}
	recs, err := json.Marshal(input.Risk.Recommendations)
	if err != nil {
		return "", fmt.Errorf("encode recommendations: %w", err)
	}

	record := models.ScanRecord{
		ScanID:                    scanID,
		TargetPath:                input.TargetPath,
		ScanTimestamp:             time.Now().UTC(),
		OverallRiskScore:          input.Risk.Overall,
		DependencyRiskScore:       input.Risk.DependencyRisk,
		CodeRiskScore:             input.Risk.CodeRisk,
		DependencyVulnerabilities: input.Risk.Factors.DependencyFactors.VulnerabilityCount,
		CodeIssues:                input.Risk.Factors.CodeFactors.TotalFindings,
		ScanResults:               input.ScanResults,
		RiskFactors:               factors,
		Recommendations:           recs,
		ScanDurationSeconds:       input.ScanDuration,
		Success:                   input.Success,
		ErrorMessage:              input.ErrorMessage,
		ProjectName:               input.ProjectName,
		BranchName:                input.BranchName,
		CommitHash:                input.CommitHash,
	}

	if err := r.db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("create scan record: %w", err)
	}

	return scanID, nil
}

// GetByID returns the full details for one scan, or ErrScanNotFound.
func (r *Repository) GetByID(scanID string) (*secagent.ScanDetails, error) {
	var record models.ScanRecord
	err := r.db.Where("scan_id = ?", scanID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query scan %s: %w", scanID, err)
	}
	return toDetails(record)
}

// ListRecent returns the newest scans, newest first.
func (r *Repository) ListRecent(limit int) ([]secagent.ScanSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []models.ScanRecord
	err := r.db.Order("scan_timestamp DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list recent scans: %w", err)
	}
	return toSummaries(records), nil
}

// ListByProject returns a project's scans, newest first.
func (r *Repository) ListByProject(projectName string, limit int) ([]secagent.ScanSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []models.ScanRecord
	err := r.db.Where("project_name = ?", projectName).
		Order("scan_timestamp DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list scans for project %s: %w", projectName, err)
	}
	return toSummaries(records), nil
}

// ListSince returns all scans with a timestamp at or after t, oldest first.
func (r *Repository) ListSince(t time.Time) ([]secagent.ScanSummary, error) {
	var records []models.ScanRecord
	err := r.db.Where("scan_timestamp >= ?", t).
		Order("scan_timestamp ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list scans since %s: %w", t.Format(time.RFC3339), err)
	}
	return toSummaries(records), nil
}

// Filters narrows a scan listing. Zero values mean "no filter".
type Filters struct {
	Limit       int
	Offset      int
	ProjectName string
	BranchName  string
	Success     *bool
	StartTime   *time.Time
	EndTime     *time.Time
}

// List returns scans matching the filters, newest first, plus the total
// match count before pagination.
func (r *Repository) List(filters Filters) ([]secagent.ScanSummary, int, error) {
	query := r.db.Model(&models.ScanRecord{})

	if filters.ProjectName != "" {
		query = query.Where("project_name = ?", filters.ProjectName)
	}
	if filters.BranchName != "" {
		query = query.Where("branch_name = ?", filters.BranchName)
	}
	if filters.Success != nil {
		query = query.Where("success = ?", *filters.Success)
	}
	if filters.StartTime != nil {
		query = query.Where("scan_timestamp >= ?", filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("scan_timestamp <= ?", filters.EndTime)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count scans: %w", err)
	}

	if filters.Limit <= 0 {
		filters.Limit = 50
	}
	if filters.Limit > 500 {
		filters.Limit = 500
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	var records []models.ScanRecord
	err := query.Order("scan_timestamp DESC").
		Limit(filters.Limit).
		Offset(filters.Offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list scans: %w", err)
	}

	return toSummaries(records), int(total), nil
}

// UpdateRiskFields overwrites a record's risk scores, breakdown and finding
// counts with a freshly computed score. The scan id, timestamp and raw
// payload are never touched.
func (r *Repository) UpdateRiskFields(scanID string, rs secagent.RiskScore) error {
	factors, err := json.Marshal(rs.Factors)
	if err != nil {
		return fmt.Errorf("encode risk factors: %w", err)
	}
	recs, err := json.Marshal(rs.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}

	result := r.db.Model(&models.ScanRecord{}).
		Where("scan_id = ?", scanID).
		Updates(map[string]interface{}{
			"overall_risk_score":         rs.Overall,
			"dependency_risk_score":      rs.DependencyRisk,
			"code_risk_score":            rs.CodeRisk,
			"dependency_vulnerabilities": rs.Factors.DependencyFactors.VulnerabilityCount,
			"code_issues":                rs.Factors.CodeFactors.TotalFindings,
			"risk_factors":               factors,
			"recommendations":            recs,
		})
	if result.Error != nil {
		return fmt.Errorf("update risk fields for scan %s: %w", scanID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrScanNotFound
	}
	return nil
}

// Rescore re-runs normalization and scoring against a record's stored raw
// payload and overwrites its risk fields in place.
func (r *Repository) Rescore(scanID string) error {
	details, err := r.GetByID(scanID)
	if err != nil {
		return err
	}

	findings, dependenciesScanned, err := normalize.NormalizeCombined(details.ScanResults)
	if err != nil {
		return fmt.Errorf("rescore scan %s: %w", scanID, err)
	}

	return r.UpdateRiskFields(scanID, risk.Calculate(findings, dependenciesScanned))
}

// toSummary maps a database row to the read DTO.
func toSummary(record models.ScanRecord) secagent.ScanSummary {
	return secagent.ScanSummary{
		ScanID:                    record.ScanID,
		TargetPath:                record.TargetPath,
		ScanTimestamp:             record.ScanTimestamp,
		OverallRiskScore:          record.OverallRiskScore,
		DependencyRiskScore:       record.DependencyRiskScore,
		CodeRiskScore:             record.CodeRiskScore,
		DependencyVulnerabilities: record.DependencyVulnerabilities,
		CodeIssues:                record.CodeIssues,
		ProjectName:               record.ProjectName,
		BranchName:                record.BranchName,
		CommitHash:                record.CommitHash,
		Success:                   record.Success,
	}
}

func toSummaries(records []models.ScanRecord) []secagent.ScanSummary {
	summaries := make([]secagent.ScanSummary, len(records))
	for i, record := range records {
		summaries[i] = toSummary(record)
	}
	return summaries
}

func toDetails(record models.ScanRecord) (*secagent.ScanDetails, error) {
	details := secagent.ScanDetails{
		ScanSummary:  toSummary(record),
		ScanResults:  record.ScanResults,
		ErrorMessage: record.ErrorMessage,
		ScanDuration: record.ScanDurationSeconds,
	}

	if len(record.RiskFactors) > 0 {
		var factors secagent.RiskFactors
		if err := json.Unmarshal(record.RiskFactors, &factors); err != nil {
			return nil, fmt.Errorf("decode risk factors for scan %s: %w", record.ScanID, err)
		}
		details.RiskFactors = &factors
	}
	if len(record.Recommendations) > 0 {
		if err := json.Unmarshal(record.Recommendations, &details.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations for scan %s: %w", record.ScanID, err)
		}
	}

	return &details, nil
}
