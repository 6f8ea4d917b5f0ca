package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/sahzadahmad246/perfectceiling/internal/model"
	"github.com/sahzadahmad246/perfectceiling/internal/ratelimit"
	"github.com/sahzadahmad246/perfectceiling/internal/repo"
)

const (
	PatternHighFailureRate = "HIGH_FAILURE_RATE"
	PatternRapidAttempts   = "RAPID_ATTEMPTS"
	PatternOutsideHours    = "OUTSIDE_HOURS_ACCESS"
)

// Detector thresholds. These flag advisory signals for review; nothing
// here blocks access on its own.
const (
	suspiciousFailureCount = 3
	rapidAttemptCount      = 5
	rapidAttemptSpan       = 5 * time.Minute
	businessHourStart      = 8
	businessHourEnd        = 20
	outsideHoursShare      = 0.30
	failureRateThreshold   = 0.50
	topQuotationLimit      = 5
)

// MonitorService aggregates audit events, access records, and the live
// rate-limiter snapshot into sharing and security metrics.
type MonitorService struct {
	audits           *repo.AuditRepo
	accesses         *repo.AccessRepo
	limiter          *ratelimit.Limiter
	recentAuditLimit uint
}

func NewMonitorService(audits *repo.AuditRepo, accesses *repo.AccessRepo, limiter *ratelimit.Limiter, recentAuditLimit uint) *MonitorService {
	if recentAuditLimit == 0 {
		recentAuditLimit = 50
	}
	return &MonitorService{audits: audits, accesses: accesses, limiter: limiter, recentAuditLimit: recentAuditLimit}
}

type SharingMetrics struct {
	TotalShares                 int64                       `json:"total_shares"`
	TotalRevocations            int64                       `json:"total_revocations"`
	TotalAttempts               int64                       `json:"total_attempts"`
	SuccessfulAttempts          int64                       `json:"successful_attempts"`
	FailedAttempts              int64                       `json:"failed_attempts"`
	AverageAccessesPerQuotation float64                     `json:"average_accesses_per_quotation"`
	TopQuotations               []repo.QuotationAccessCount `json:"top_quotations"`
	RecentEvents                []model.AuditEvent          `json:"recent_events"`
}

// SharingMetrics is pure aggregation over the collaborators; no side
// effects.
func (s *MonitorService) SharingMetrics(ctx context.Context, from, to time.Time) (*SharingMetrics, error) {
	actionCounts, err := s.audits.CountByActionRange(ctx, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	total, successful, err := s.accesses.CountRange(ctx, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	top, err := s.accesses.TopAccessed(ctx, from.Unix(), to.Unix(), topQuotationLimit)
	if err != nil {
		return nil, err
	}
	accessedQuotations, err := s.accesses.AccessedQuotationCount(ctx, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	recent, err := s.audits.ListRecent(ctx, s.recentAuditLimit)
	if err != nil {
		return nil, err
	}
	metrics := &SharingMetrics{
		TotalShares:        actionCounts[model.AuditActionShared],
		TotalRevocations:   actionCounts[model.AuditActionRevoked],
		TotalAttempts:      total,
		SuccessfulAttempts: successful,
		FailedAttempts:     total - successful,
		TopQuotations:      top,
		RecentEvents:       recent,
	}
	if accessedQuotations > 0 {
		metrics.AverageAccessesPerQuotation = float64(successful) / float64(accessedQuotations)
	}
	return metrics, nil
}

type SecurityPattern struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type SecurityMetrics struct {
	SuspiciousIPs []repo.IPFailureCount `json:"suspicious_ips"`
	RateLimiter   ratelimit.Stats       `json:"rate_limiter"`
	Patterns      []SecurityPattern     `json:"patterns"`
}

// SecurityMetrics surfaces IPs with repeated failures, the limiter
// snapshot, and the heuristic pattern detectors.
func (s *MonitorService) SecurityMetrics(ctx context.Context, from, to time.Time) (*SecurityMetrics, error) {
	failures, err := s.accesses.FailuresByIP(ctx, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	suspicious := make([]repo.IPFailureCount, 0)
	for _, item := range failures {
		if item.Failures >= suspiciousFailureCount {
			suspicious = append(suspicious, item)
		}
	}
	records, err := s.accesses.ListRange(ctx, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	return &SecurityMetrics{
		SuspiciousIPs: suspicious,
		RateLimiter:   s.limiter.Stats(),
		Patterns:      detectPatterns(records),
	}, nil
}

// detectPatterns runs the advisory heuristics over a range of access
// records, ordered by accessed_at ascending.
func detectPatterns(records []model.AccessRecord) []SecurityPattern {
	patterns := make([]SecurityPattern, 0)
	if len(records) == 0 {
		return patterns
	}

	var failures, outsideHours int
	byIP := make(map[string][]int64)
	for _, rec := range records {
		if !rec.Successful {
			failures++
		}
		hour := time.Unix(rec.AccessedAt, 0).Hour()
		if hour < businessHourStart || hour >= businessHourEnd {
			outsideHours++
		}
		byIP[rec.IPAddress] = append(byIP[rec.IPAddress], rec.AccessedAt)
	}

	if rate := float64(failures) / float64(len(records)); rate > failureRateThreshold {
		patterns = append(patterns, SecurityPattern{
			Type:        PatternHighFailureRate,
			Severity:    "high",
			Description: "more than half of verification attempts in range failed",
		})
	}
	for ip, times := range byIP {
		if hasRapidBurst(times) {
			patterns = append(patterns, SecurityPattern{
				Type:        PatternRapidAttempts,
				Severity:    "high",
				Description: "rapid attempt burst from " + ip,
			})
		}
	}
	if share := float64(outsideHours) / float64(len(records)); share > outsideHoursShare {
		patterns = append(patterns, SecurityPattern{
			Type:        PatternOutsideHours,
			Severity:    "medium",
			Description: "a large share of attempts happened outside business hours",
		})
	}
	return patterns
}

// hasRapidBurst reports whether any rapidAttemptCount consecutive
// timestamps fall inside rapidAttemptSpan. Input is ascending.
func hasRapidBurst(times []int64) bool {
	if len(times) < rapidAttemptCount {
		return false
	}
	span := int64(rapidAttemptSpan / time.Second)
	for i := 0; i+rapidAttemptCount-1 < len(times); i++ {
		if times[i+rapidAttemptCount-1]-times[i] <= span {
			return true
		}
	}
	return false
}

// ScanAndAlert runs the pattern detectors over [from, to] and raises a
// security alert for each pattern found. A pattern type already alerted
// inside the window is skipped, so a scheduled scan does not page twice
// for the same episode. Returns the number of alerts raised.
func (s *MonitorService) ScanAndAlert(ctx context.Context, from, to time.Time) (int, error) {
	records, err := s.accesses.ListRange(ctx, from.Unix(), to.Unix())
	if err != nil {
		return 0, err
	}
	patterns := detectPatterns(records)
	if len(patterns) == 0 {
		return 0, nil
	}
	events, err := s.audits.ListRange(ctx, from.Unix(), to.Unix())
	if err != nil {
		return 0, err
	}
	alerted := make(map[string]bool)
	for _, event := range events {
		if event.Action == model.AuditActionSecurityAlert {
			alerted[event.Metadata["alert_type"]] = true
		}
	}
	raised := 0
	for _, pattern := range patterns {
		if alerted[pattern.Type] {
			continue
		}
		// Stamped at the window end so the next scan over an
		// overlapping window sees it and stays quiet.
		if err := s.alertAt(ctx, pattern.Type, pattern.Severity, pattern.Description, nil, to.Unix()); err != nil {
			return raised, err
		}
		raised++
	}
	return raised, nil
}

// CreateSecurityAlert writes an alert into the audit trail and the
// operational log. External paging is an integration point, not built in.
func (s *MonitorService) CreateSecurityAlert(ctx context.Context, alertType, severity, description string, metadata map[string]string) error {
	return s.alertAt(ctx, alertType, severity, description, metadata, time.Now().Unix())
}

func (s *MonitorService) alertAt(ctx context.Context, alertType, severity, description string, metadata map[string]string, at int64) error {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metadata["alert_type"] = alertType
	metadata["severity"] = severity
	metadata["description"] = description
	event := &model.AuditEvent{
		ID:       newID(),
		Action:   model.AuditActionSecurityAlert,
		Actor:    "monitor",
		Metadata: metadata,
		Ctime:    at,
	}
	if err := s.audits.Append(ctx, event); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Warn("security alert",
		zap.String("type", alertType),
		zap.String("severity", severity),
		zap.String("description", description),
	)
	return nil
}
