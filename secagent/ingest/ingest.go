// Package ingest consumes raw scanner-adapter payloads, normalizes and
// scores them, and persists the resulting scan records.
//
// Scoring and persistence are independent failure domains: a computed
// RiskScore is always returned (and audited) even when the record store
// write fails.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/secagent/go-api/secagent"
	"github.com/secagent/go-api/secagent/audit"
	"github.com/secagent/go-api/secagent/normalize"
	"github.com/secagent/go-api/secagent/queue"
	"github.com/secagent/go-api/secagent/risk"
	"github.com/secagent/go-api/secagent/scan"
	"github.com/secagent/go-api/secagent/store"
)

// ScanPayload is the message envelope scanner adapters publish after a scan
// run. PipAudit and Bandit carry each tool's raw JSON output verbatim;
// Error is set when the adapter itself failed.
type ScanPayload struct {
	TargetPath          string          `json:"target_path"`
	ProjectName         string          `json:"project_name,omitempty"`
	BranchName          string          `json:"branch_name,omitempty"`
	CommitHash          string          `json:"commit_hash,omitempty"`
	ScanDurationSeconds *float64        `json:"scan_duration_seconds,omitempty"`
	PipAudit            json.RawMessage `json:"pip_audit,omitempty"`
	Bandit              json.RawMessage `json:"bandit,omitempty"`
	Error               string          `json:"error,omitempty"`
}

// Processor wires the scoring pipeline to its collaborators. All handles
// are constructed by the caller and passed in.
type Processor struct {
	repo     *scan.Repository
	kv       store.KVStore
	recorder *audit.Recorder
}

// NewProcessor creates a Processor. kv and recorder may be nil when caching
// and auditing are not wanted.
func NewProcessor(repo *scan.Repository, kv store.KVStore, recorder *audit.Recorder) *Processor {
	return &Processor{repo: repo, kv: kv, recorder: recorder}
}

// HandleMessage adapts Process to the queue's MessageProcessor contract. A
// malformed envelope is logged and skipped; processing errors are logged
// but never crash the listener.
func (p *Processor) HandleMessage(msg string) {
	var payload ScanPayload
	if err := json.Unmarshal([]byte(msg), &payload); err != nil {
		slog.Warn("Skipping malformed scan payload", "error", err)
		return
	}

	scanID, score, err := p.Process(context.Background(), payload)
	if err != nil {
		slog.Error("Scan persistence failed", "target", payload.TargetPath, "overall", score.Overall, "error", err)
		return
	}
	slog.Info("Scan scored",
		"scan_id", scanID,
		"target", payload.TargetPath,
		"overall", score.Overall,
		"dependency_risk", score.DependencyRisk,
		"code_risk", score.CodeRisk,
	)
}

// Process normalizes and scores one payload, persists the record, and
// invalidates the dashboard cache. The returned RiskScore is valid even
// when the returned error is non-nil (store failure).
func (p *Processor) Process(ctx context.Context, payload ScanPayload) (string, secagent.RiskScore, error) {
	findings, dependenciesScanned, parseErrs := normalizePayload(payload)

	score := risk.Calculate(findings, dependenciesScanned)

	success := payload.Error == "" && len(parseErrs) == 0
	errorMessage := payload.Error
	if errorMessage == "" && len(parseErrs) > 0 {
		errorMessage = strings.Join(parseErrs, "; ")
	}

	raw, err := json.Marshal(normalize.CombinedReport{
		PipAudit: payload.PipAudit,
		Bandit:   payload.Bandit,
	})
	if err != nil {
		return "", score, fmt.Errorf("encode raw scan results: %w", err)
	}

	scanID, err := p.repo.Create(scan.CreateScanInput{
		TargetPath:   payload.TargetPath,
		ScanResults:  raw,
		Risk:         score,
		ProjectName:  payload.ProjectName,
		BranchName:   payload.BranchName,
		CommitHash:   payload.CommitHash,
		ScanDuration: payload.ScanDurationSeconds,
		Success:      success,
		ErrorMessage: errorMessage,
	})
	if err != nil {
		p.record(audit.KindStoreError, "", fmt.Sprintf("target=%s overall=%.2f: %v", payload.TargetPath, score.Overall, err))
		return "", score, err
	}

	p.record(audit.KindScored, scanID, fmt.Sprintf("overall=%.2f", score.Overall))
	p.record(audit.KindPersisted, scanID, payload.TargetPath)

	if p.kv != nil {
		scan.InvalidateDashboardCache(ctx, p.kv)
	}

	return scanID, score, nil
}

// Rescore re-runs scoring against an already-persisted record's raw payload.
func (p *Processor) Rescore(ctx context.Context, scanID string) error {
	if err := p.repo.Rescore(scanID); err != nil {
		p.record(audit.KindStoreError, scanID, err.Error())
		return err
	}
	p.record(audit.KindRescored, scanID, "")
	if p.kv != nil {
		scan.InvalidateDashboardCache(ctx, p.kv)
	}
	return nil
}

// Listen consumes the scan-results queue until ctx is cancelled.
func (p *Processor) Listen(ctx context.Context) {
	queue.ListenWithRetry(ctx, queue.ScanResultsQueue, p.HandleMessage)
}

// normalizePayload converts both raw reports into findings. A report that
// fails to parse contributes no findings and a note; it never aborts the
// other report's scoring.
func normalizePayload(payload ScanPayload) ([]secagent.Finding, int, []string) {
	var (
		findings  []secagent.Finding
		parseErrs []string
	)

	depReport, err := normalize.ParseDependencyReport(payload.PipAudit)
	if err != nil {
		parseErrs = append(parseErrs, err.Error())
	} else {
		findings = append(findings, normalize.NormalizeDependencyReport(depReport)...)
	}

	staticReport, err := normalize.ParseStaticReport(payload.Bandit)
	if err != nil {
		parseErrs = append(parseErrs, err.Error())
	} else {
		findings = append(findings, normalize.NormalizeStaticReport(staticReport)...)
	}

	return findings, len(depReport.Dependencies), parseErrs
}

func (p *Processor) record(kind audit.EventKind, scanID, detail string) {
	if p.recorder != nil {
		p.recorder.Record(kind, scanID, detail)
	}
}
