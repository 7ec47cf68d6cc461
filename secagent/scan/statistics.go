package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/secagent/go-api/secagent"
	"github.com/secagent/go-api/secagent/postgres/models"
	"github.com/secagent/go-api/secagent/store"
)

const (
	// CacheKeyDashboardStats is the cache key for dashboard statistics.
	CacheKeyDashboardStats = "dashboard:stats"
	// CacheTTL is the dashboard cache time-to-live in seconds (5 minutes).
	CacheTTL = 300
)

// DashboardStats computes the point-in-time rollup over the whole record
// store. "Recent" means the trailing 7 days before now.
func (r *Repository) DashboardStats(now time.Time) (secagent.DashboardStats, error) {
	var stats secagent.DashboardStats

	var total int64
	if err := r.db.Model(&models.ScanRecord{}).Count(&total).Error; err != nil {
		return stats, fmt.Errorf("count scans: %w", err)
	}
	stats.TotalScans = int(total)

	since := now.UTC().AddDate(0, 0, -7)
	var recent int64
	if err := r.db.Model(&models.ScanRecord{}).
		Where("scan_timestamp >= ?", since).
		Count(&recent).Error; err != nil {
		return stats, fmt.Errorf("count recent scans: %w", err)
	}
	stats.RecentScans = int(recent)

	var avg *float64
	if err := r.db.Model(&models.ScanRecord{}).
		Select("AVG(overall_risk_score)").
		Scan(&avg).Error; err != nil {
		return stats, fmt.Errorf("average risk score: %w", err)
	}
	if avg != nil {
		stats.AverageRiskScore = round2(*avg)
	}

	var highRisk int64
	if err := r.db.Model(&models.ScanRecord{}).
		Where("overall_risk_score > ?", 7.0).
		Count(&highRisk).Error; err != nil {
		return stats, fmt.Errorf("count high-risk scans: %w", err)
	}
	stats.HighRiskScans = int(highRisk)

	var withVulns int64
	if err := r.db.Model(&models.ScanRecord{}).
		Where("dependency_vulnerabilities > 0").
		Count(&withVulns).Error; err != nil {
		return stats, fmt.Errorf("count scans with vulnerabilities: %w", err)
	}
	stats.CriticalVulnerabilities = int(withVulns)

	var withIssues int64
	if err := r.db.Model(&models.ScanRecord{}).
		Where("code_issues > 0").
		Count(&withIssues).Error; err != nil {
		return stats, fmt.Errorf("count scans with code issues: %w", err)
	}
	stats.HighSeverityCodeIssues = int(withIssues)

	var last models.ScanRecord
	err := r.db.Order("scan_timestamp DESC").First(&last).Error
	if err == nil {
		t := last.ScanTimestamp
		stats.LastScanDate = &t
	}

	return stats, nil
}

// trendBucket accumulates one UTC calendar day of scan history.
type trendBucket struct {
	overall  float64
	depRisk  float64
	codeRisk float64
	count    int
	depVulns int
	issues   int
}

// RiskTrends aggregates successful scans from the trailing windowDays into a
// daily-bucketed series, ascending by date. Each risk dimension is averaged
// independently per day; finding counts are summed. Days without scans
// produce no entry.
func (r *Repository) RiskTrends(windowDays int, now time.Time) ([]secagent.TrendPoint, error) {
	since := now.UTC().AddDate(0, 0, -windowDays)

	var records []models.ScanRecord
	err := r.db.Where("scan_timestamp >= ?", since).
		Where("success = ?", true).
		Order("scan_timestamp ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query scans for trends: %w", err)
	}

	buckets := make(map[string]*trendBucket)
	for _, record := range records {
		day := record.ScanTimestamp.UTC().Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &trendBucket{}
			buckets[day] = b
		}
		b.overall += record.OverallRiskScore
		b.depRisk += record.DependencyRiskScore
		b.codeRisk += record.CodeRiskScore
		b.count++
		b.depVulns += record.DependencyVulnerabilities
		b.issues += record.CodeIssues
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	trends := make([]secagent.TrendPoint, 0, len(days))
	for _, day := range days {
		b := buckets[day]
		n := float64(b.count)
		trends = append(trends, secagent.TrendPoint{
			Date:                      day,
			OverallRiskScore:          round2(b.overall / n),
			DependencyRiskScore:       round2(b.depRisk / n),
			CodeRiskScore:             round2(b.codeRisk / n),
			DependencyVulnerabilities: b.depVulns,
			CodeIssues:                b.issues,
		})
	}

	return trends, nil
}

// CachedDashboardStats returns cached dashboard statistics when fresh,
// otherwise computes them and caches the result best-effort. A cache
// failure never fails the call.
func (r *Repository) CachedDashboardStats(ctx context.Context, kv store.KVStore, now time.Time) (secagent.DashboardStats, error) {
	cached, err := kv.GetValue(ctx, CacheKeyDashboardStats)
	if err == nil {
		var stats secagent.DashboardStats
		if err := json.Unmarshal([]byte(cached), &stats); err == nil {
			return stats, nil
		}
		slog.Debug("Dashboard cache unmarshal failed, recalculating")
	}

	stats, err := r.DashboardStats(now)
	if err != nil {
		return stats, err
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := kv.SetValueWithTTL(ctx, CacheKeyDashboardStats, string(data), CacheTTL); err != nil {
			slog.Debug("Dashboard cache write failed", "error", err)
		}
	}

	return stats, nil
}

// InvalidateDashboardCache clears cached dashboard statistics. Called after
// a new scan record lands; best effort.
func InvalidateDashboardCache(ctx context.Context, kv store.KVStore) {
	if err := kv.DeleteValue(ctx, CacheKeyDashboardStats); err != nil {
		slog.Debug("Dashboard cache invalidation failed", "error", err)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
