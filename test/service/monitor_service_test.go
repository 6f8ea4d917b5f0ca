package service_test

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sahzadahmad246/perfectceiling/internal/model"
	"github.com/sahzadahmad246/perfectceiling/internal/ratelimit"
	"github.com/sahzadahmad246/perfectceiling/internal/repo"
	"github.com/sahzadahmad246/perfectceiling/internal/service"
	"github.com/sahzadahmad246/perfectceiling/test/testutil"
)

func newTestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// isolatedWindow picks a random range in the past so rows seeded by other
// tests against the shared database cannot fall inside it.
func isolatedWindow() (int64, int64) {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	base := time.Now().AddDate(-5, 0, 0).Unix() + int64(binary.BigEndian.Uint32(buf))
	return base, base + 600
}

func seedAccess(t *testing.T, accesses *repo.AccessRepo, quotationID, ip string, at int64, successful bool) {
	t.Helper()
	require.NoError(t, accesses.Append(context.Background(), &model.AccessRecord{
		ID:          newTestID(),
		QuotationID: quotationID,
		IPAddress:   ip,
		AccessedAt:  at,
		Attempts:    1,
		Successful:  successful,
	}))
}

func TestSharingMetrics_AverageAccesses(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	audits := repo.NewAuditRepo(conn)
	accesses := repo.NewAccessRepo(conn)
	monitor := service.NewMonitorService(audits, accesses, ratelimit.New(ratelimit.DefaultConfig()), 50)

	from, to := isolatedWindow()
	q1, q2 := newTestID(), newTestID()
	seedAccess(t, accesses, q1, "10.0.0.1", from+1, true)
	seedAccess(t, accesses, q1, "10.0.0.1", from+2, true)
	seedAccess(t, accesses, q1, "10.0.0.2", from+3, true)
	seedAccess(t, accesses, q2, "10.0.0.3", from+4, true)
	seedAccess(t, accesses, q2, "10.0.0.4", from+5, false)
	seedAccess(t, accesses, newTestID(), "10.0.0.5", from+6, false)

	metrics, err := monitor.SharingMetrics(context.Background(), time.Unix(from, 0), time.Unix(to, 0))
	require.NoError(t, err)
	require.Equal(t, int64(6), metrics.TotalAttempts)
	require.Equal(t, int64(4), metrics.SuccessfulAttempts)
	require.Equal(t, int64(2), metrics.FailedAttempts)

	// Two quotations got in, four successful accesses between them. The
	// average must cover every accessed quotation, not just a top slice.
	require.InDelta(t, 2.0, metrics.AverageAccessesPerQuotation, 0.001)
}

func TestScanAndAlert_RaisesOncePerWindow(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	audits := repo.NewAuditRepo(conn)
	accesses := repo.NewAccessRepo(conn)
	monitor := service.NewMonitorService(audits, accesses, ratelimit.New(ratelimit.DefaultConfig()), 50)
	ctx := context.Background()

	from, to := isolatedWindow()
	quotationID := newTestID()
	ip := "10.9.8.7"
	for i := 0; i < 5; i++ {
		seedAccess(t, accesses, quotationID, ip, from+int64(i*10), false)
	}

	scanFrom, scanTo := time.Unix(from, 0), time.Unix(to, 0)
	raised, err := monitor.ScanAndAlert(ctx, scanFrom, scanTo)
	require.NoError(t, err)
	require.Greater(t, raised, 0)

	events, err := audits.ListRange(ctx, scanFrom.Unix(), scanTo.Unix())
	require.NoError(t, err)
	found := false
	for _, event := range events {
		if event.Action == model.AuditActionSecurityAlert && event.Metadata["alert_type"] == service.PatternRapidAttempts {
			found = true
		}
	}
	require.True(t, found, "rapid-attempt alert not appended to audit trail")

	// A second scan over the same window sees the existing alerts and
	// stays quiet.
	raised, err = monitor.ScanAndAlert(ctx, scanFrom, scanTo)
	require.NoError(t, err)
	require.Zero(t, raised)
}
