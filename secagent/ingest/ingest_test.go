package ingest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/secagent/go-api/secagent/postgres/models"
	"github.com/secagent/go-api/secagent/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *scan.Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.ScanRecord{}))
	return scan.NewRepository(db)
}

func TestProcessScoresAndPersists(t *testing.T) {
	repo := newTestRepo(t)
	p := NewProcessor(repo, nil, nil)

	payload := ScanPayload{
		TargetPath:  "/srv/app",
		ProjectName: "billing",
		PipAudit: json.RawMessage(`{"dependencies": [
			{"name": "legacylib", "vulns": [
				{"id": "CVE-2024-9999", "severity": "CRITICAL", "aliases": ["a", "b", "c"]}
			]}
		]}`),
		Bandit: json.RawMessage(`{"results": []}`),
	}

	scanID, score, err := p.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, 10.0, score.DependencyRisk)
	assert.Equal(t, 6.0, score.Overall)

	details, err := repo.GetByID(scanID)
	require.NoError(t, err)
	assert.True(t, details.Success)
	assert.Equal(t, "billing", details.ProjectName)
	assert.Equal(t, 6.0, details.OverallRiskScore)
	assert.Equal(t, 1, details.DependencyVulnerabilities)

	// The stored raw payload round-trips back through re-scoring.
	require.NoError(t, repo.Rescore(scanID))
	details, err = repo.GetByID(scanID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, details.OverallRiskScore)
}

func TestProcessScannerErrorPersistsFailedRecord(t *testing.T) {
	repo := newTestRepo(t)
	p := NewProcessor(repo, nil, nil)

	scanID, score, err := p.Process(context.Background(), ScanPayload{
		TargetPath: "/srv/app",
		Error:      "pip-audit is not installed",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.Overall)

	details, err := repo.GetByID(scanID)
	require.NoError(t, err)
	assert.False(t, details.Success)
	assert.Equal(t, "pip-audit is not installed", details.ErrorMessage)
	assert.Equal(t, 0.0, details.OverallRiskScore)
}

func TestProcessMalformedReportStillScoresTheOther(t *testing.T) {
	repo := newTestRepo(t)
	p := NewProcessor(repo, nil, nil)

	scanID, score, err := p.Process(context.Background(), ScanPayload{
		TargetPath: "/srv/app",
		PipAudit:   json.RawMessage(`this is not json`),
		Bandit: json.RawMessage(`{"results": [
			{"filename": "x.py", "line_number": 3, "test_id": "B602",
			 "issue_severity": "HIGH", "issue_confidence": "HIGH"}
		]}`),
	})
	require.NoError(t, err)

	// The static-analysis side still scored.
	assert.Equal(t, 10.0, score.CodeRisk)

	details, err := repo.GetByID(scanID)
	require.NoError(t, err)
	assert.False(t, details.Success)
	assert.Contains(t, details.ErrorMessage, "parse dependency report")
	assert.Equal(t, 1, details.CodeIssues)
}

func TestHandleMessageMalformedEnvelope(t *testing.T) {
	repo := newTestRepo(t)
	p := NewProcessor(repo, nil, nil)

	// Must log and skip, never panic.
	p.HandleMessage("{{{ not an envelope")

	scans, err := repo.ListRecent(10)
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestHandleMessagePersistsScan(t *testing.T) {
	repo := newTestRepo(t)
	p := NewProcessor(repo, nil, nil)

	msg, err := json.Marshal(ScanPayload{
		TargetPath: "/srv/app",
		PipAudit:   json.RawMessage(`{"dependencies": []}`),
		Bandit:     json.RawMessage(`{"results": []}`),
	})
	require.NoError(t, err)

	p.HandleMessage(string(msg))

	scans, err := repo.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.True(t, scans[0].Success)
	assert.Equal(t, 0.0, scans[0].OverallRiskScore)
}

func TestProcessRescoreRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	p := NewProcessor(repo, nil, nil)

	scanID, _, err := p.Process(context.Background(), ScanPayload{
		TargetPath: "/srv/app",
		PipAudit: json.RawMessage(`{"dependencies": [
			{"name": "a", "vulns": [{"id": "CVE-1", "severity": "HIGH", "fix_versions": ["2.0"]}]}
		]}`),
	})
	require.NoError(t, err)

	before, err := repo.GetByID(scanID)
	require.NoError(t, err)

	require.NoError(t, p.Rescore(context.Background(), scanID))

	after, err := repo.GetByID(scanID)
	require.NoError(t, err)
	assert.Equal(t, before.OverallRiskScore, after.OverallRiskScore)
	assert.Equal(t, before.ScanID, after.ScanID)
	assert.True(t, before.ScanTimestamp.Equal(after.ScanTimestamp))
	assert.Equal(t, before.ScanResults, after.ScanResults)
}
