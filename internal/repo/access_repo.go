package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/sahzadahmad246/perfectceiling/internal/model"
	"github.com/sahzadahmad246/perfectceiling/internal/pkg/dbutil"
)

type AccessRepo struct {
	db *sql.DB
}

func NewAccessRepo(db *sql.DB) *AccessRepo {
	return &AccessRepo{db: db}
}

func (r *AccessRepo) Append(ctx context.Context, rec *model.AccessRecord) error {
	data := map[string]interface{}{
		"id":           rec.ID,
		"quotation_id": rec.QuotationID,
		"ip_address":   rec.IPAddress,
		"user_agent":   rec.UserAgent,
		"accessed_at":  rec.AccessedAt,
		"attempts":     rec.Attempts,
		"successful":   rec.Successful,
	}
	sqlStr, args, err := builder.BuildInsert("access_records", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *AccessRepo) ListRange(ctx context.Context, from, to int64) ([]model.AccessRecord, error) {
	where := map[string]interface{}{
		"accessed_at >=": from,
		"accessed_at <=": to,
		"_orderby":       "accessed_at asc",
	}
	fields := []string{"id", "quotation_id", "ip_address", "user_agent", "accessed_at", "attempts", "successful"}
	sqlStr, args, err := builder.BuildSelect("access_records", where, fields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.AccessRecord, 0)
	for rows.Next() {
		var rec model.AccessRecord
		if err := rows.Scan(&rec.ID, &rec.QuotationID, &rec.IPAddress, &rec.UserAgent, &rec.AccessedAt, &rec.Attempts, &rec.Successful); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

type QuotationAccessCount struct {
	QuotationID string `json:"quotation_id"`
	Accesses    int64  `json:"accesses"`
}

// TopAccessed ranks quotations by successful accesses inside [from, to].
func (r *AccessRepo) TopAccessed(ctx context.Context, from, to int64, limit uint) ([]QuotationAccessCount, error) {
	sqlStr := `
		SELECT quotation_id, COUNT(*) AS accesses
		FROM access_records
		WHERE accessed_at >= ? AND accessed_at <= ? AND successful = TRUE
		GROUP BY quotation_id
		ORDER BY accesses DESC
		LIMIT ?
	`
	args := []interface{}{from, to, limit}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]QuotationAccessCount, 0)
	for rows.Next() {
		var item QuotationAccessCount
		if err := rows.Scan(&item.QuotationID, &item.Accesses); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AccessedQuotationCount counts distinct quotations with at least one
// successful access inside [from, to].
func (r *AccessRepo) AccessedQuotationCount(ctx context.Context, from, to int64) (int64, error) {
	sqlStr := `
		SELECT COUNT(DISTINCT quotation_id)
		FROM access_records
		WHERE accessed_at >= ? AND accessed_at <= ? AND successful = TRUE
	`
	args := []interface{}{from, to}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var count int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

type IPFailureCount struct {
	IPAddress string `json:"ip_address"`
	Failures  int64  `json:"failures"`
}

// FailuresByIP counts failed attempts per source IP inside [from, to].
func (r *AccessRepo) FailuresByIP(ctx context.Context, from, to int64) ([]IPFailureCount, error) {
	sqlStr := `
		SELECT ip_address, COUNT(*) AS failures
		FROM access_records
		WHERE accessed_at >= ? AND accessed_at <= ? AND successful = FALSE
		GROUP BY ip_address
		ORDER BY failures DESC
	`
	args := []interface{}{from, to}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]IPFailureCount, 0)
	for rows.Next() {
		var item IPFailureCount
		if err := rows.Scan(&item.IPAddress, &item.Failures); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountRange returns total and successful attempt counts inside [from, to].
func (r *AccessRepo) CountRange(ctx context.Context, from, to int64) (total int64, successful int64, err error) {
	sqlStr := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE successful)
		FROM access_records
		WHERE accessed_at >= ? AND accessed_at <= ?
	`
	args := []interface{}{from, to}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	if err := row.Scan(&total, &successful); err != nil {
		return 0, 0, err
	}
	return total, successful, nil
}
