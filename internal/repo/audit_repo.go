package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/sahzadahmad246/perfectceiling/internal/model"
	"github.com/sahzadahmad246/perfectceiling/internal/pkg/dbutil"
)

// AuditRepo is append-only; nothing here updates or deletes rows.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Append(ctx context.Context, event *model.AuditEvent) error {
	metadata := "{}"
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
		metadata = string(raw)
	}
	data := map[string]interface{}{
		"id":           event.ID,
		"quotation_id": event.QuotationID,
		"action":       event.Action,
		"actor":        event.Actor,
		"user_agent":   event.UserAgent,
		"metadata":     metadata,
		"ctime":        event.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("audit_events", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *AuditRepo) ListRecent(ctx context.Context, limit uint) ([]model.AuditEvent, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc",
		"_limit":   []uint{0, limit},
	}
	return r.list(ctx, where)
}

func (r *AuditRepo) ListRange(ctx context.Context, from, to int64) ([]model.AuditEvent, error) {
	where := map[string]interface{}{
		"ctime >=": from,
		"ctime <=": to,
		"_orderby": "ctime desc",
	}
	return r.list(ctx, where)
}

// CountByActionRange aggregates events per action inside [from, to].
func (r *AuditRepo) CountByActionRange(ctx context.Context, from, to int64) (map[string]int64, error) {
	sqlStr := "SELECT action, COUNT(*) FROM audit_events WHERE ctime >= ? AND ctime <= ? GROUP BY action"
	args := []interface{}{from, to}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

func (r *AuditRepo) list(ctx context.Context, where map[string]interface{}) ([]model.AuditEvent, error) {
	fields := []string{"id", "quotation_id", "action", "actor", "user_agent", "metadata", "ctime"}
	sqlStr, args, err := builder.BuildSelect("audit_events", where, fields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.AuditEvent, 0)
	for rows.Next() {
		var event model.AuditEvent
		var metadata string
		if err := rows.Scan(&event.ID, &event.QuotationID, &event.Action, &event.Actor, &event.UserAgent, &metadata, &event.Ctime); err != nil {
			return nil, err
		}
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &event.Metadata); err != nil {
				return nil, err
			}
		}
		items = append(items, event)
	}
	return items, rows.Err()
}
