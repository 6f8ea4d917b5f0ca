package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/sahzadahmad246/perfectceiling/internal/service"
)

// SecurityScanJob periodically runs the access-pattern detectors and
// raises alerts into the audit trail for anything they flag.
type SecurityScanJob struct {
	monitor *service.MonitorService
	window  time.Duration
}

func NewSecurityScanJob(monitor *service.MonitorService, window time.Duration) *SecurityScanJob {
	if window <= 0 {
		window = time.Hour
	}
	return &SecurityScanJob{monitor: monitor, window: window}
}

func (j *SecurityScanJob) Name() string {
	return "security_scan"
}

func (j *SecurityScanJob) Run(ctx context.Context) error {
	to := time.Now()
	from := to.Add(-j.window)
	raised, err := j.monitor.ScanAndAlert(ctx, from, to)
	if err != nil {
		return err
	}
	if raised > 0 {
		logutil.GetLogger(ctx).Warn("security scan raised alerts", zap.Int("raised", raised))
	} else {
		logutil.GetLogger(ctx).Info("security scan clean")
	}
	return nil
}
