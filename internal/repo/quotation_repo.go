package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/sahzadahmad246/perfectceiling/internal/model"
	"github.com/sahzadahmad246/perfectceiling/internal/pkg/dbutil"
	appErr "github.com/sahzadahmad246/perfectceiling/internal/pkg/errors"
)

var quotationFields = []string{
	"id", "customer_name", "customer_phone", "service_summary", "items",
	"subtotal", "discount", "total", "status", "customer_note", "rejection_reason",
	"is_shared", "share_token", "shared_at", "shared_by", "access_count", "last_accessed_at",
	"ctime", "mtime",
}

type QuotationRepo struct {
	db *sql.DB
}

func NewQuotationRepo(db *sql.DB) *QuotationRepo {
	return &QuotationRepo{db: db}
}

func (r *QuotationRepo) Create(ctx context.Context, q *model.Quotation) error {
	items, err := json.Marshal(q.Items)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":               q.ID,
		"customer_name":    q.CustomerName,
		"customer_phone":   q.CustomerPhone,
		"service_summary":  q.ServiceSummary,
		"items":            string(items),
		"subtotal":         q.Subtotal,
		"discount":         q.Discount,
		"total":            q.Total,
		"status":           q.Status,
		"customer_note":    q.CustomerNote,
		"rejection_reason": q.RejectionReason,
		"is_shared":        q.Sharing.IsShared,
		"share_token":      nullableToken(q.Sharing.ShareToken),
		"shared_at":        q.Sharing.SharedAt,
		"shared_by":        q.Sharing.SharedBy,
		"access_count":     q.Sharing.AccessCount,
		"last_accessed_at": q.Sharing.LastAccessedAt,
		"ctime":            q.Ctime,
		"mtime":            q.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("quotations", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *QuotationRepo) GetByID(ctx context.Context, id string) (*model.Quotation, error) {
	return r.getOne(ctx, map[string]interface{}{"id": id})
}

// GetByShareToken resolves a quotation from a live share link. Revoked or
// never-shared quotations are indistinguishable from missing ones.
func (r *QuotationRepo) GetByShareToken(ctx context.Context, token string) (*model.Quotation, error) {
	return r.getOne(ctx, map[string]interface{}{"share_token": token, "is_shared": true})
}

func (r *QuotationRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Quotation, error) {
	sqlStr, args, err := builder.BuildSelect("quotations", where, quotationFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanQuotation(rows)
}

func (r *QuotationRepo) List(ctx context.Context, status string, limit, offset uint) ([]model.Quotation, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc",
		"_limit":   []uint{offset, limit},
	}
	if status != "" {
		where["status"] = status
	}
	sqlStr, args, err := builder.BuildSelect("quotations", where, quotationFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Quotation, 0)
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *q)
	}
	return items, rows.Err()
}

// SetSharing marks the quotation shared and stores its token.
func (r *QuotationRepo) SetSharing(ctx context.Context, id, shareToken, sharedBy string, now int64) error {
	where := map[string]interface{}{"id": id}
	update := map[string]interface{}{
		"is_shared":   true,
		"share_token": shareToken,
		"shared_at":   now,
		"shared_by":   sharedBy,
		"mtime":       now,
	}
	return r.update(ctx, where, update)
}

// ClearSharing revokes the share link. The token column goes NULL so a
// guessed old token can never resolve again.
func (r *QuotationRepo) ClearSharing(ctx context.Context, id string, now int64) error {
	where := map[string]interface{}{"id": id}
	update := map[string]interface{}{
		"is_shared":   false,
		"share_token": nil,
		"mtime":       now,
	}
	return r.update(ctx, where, update)
}

// UpdateDetails rewrites the customer-facing fields of the quotation.
func (r *QuotationRepo) UpdateDetails(ctx context.Context, q *model.Quotation) error {
	items, err := json.Marshal(q.Items)
	if err != nil {
		return err
	}
	where := map[string]interface{}{"id": q.ID}
	update := map[string]interface{}{
		"customer_name":   q.CustomerName,
		"customer_phone":  q.CustomerPhone,
		"service_summary": q.ServiceSummary,
		"items":           string(items),
		"subtotal":        q.Subtotal,
		"discount":        q.Discount,
		"total":           q.Total,
		"mtime":           q.Mtime,
	}
	return r.update(ctx, where, update)
}

// RecordAccess bumps the access counters after a successful verification.
func (r *QuotationRepo) RecordAccess(ctx context.Context, id string, now int64) error {
	sqlStr := "UPDATE quotations SET access_count = access_count + 1, last_accessed_at = ?, mtime = ? WHERE id = ?"
	args := []interface{}{now, now, id}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// UpdateStatusFrom transitions status only when the current status matches
// expect, so concurrent customer responses cannot double-apply.
func (r *QuotationRepo) UpdateStatusFrom(ctx context.Context, id, expect, status, note, rejectionReason string, now int64) error {
	where := map[string]interface{}{"id": id, "status": expect}
	update := map[string]interface{}{
		"status":           status,
		"customer_note":    note,
		"rejection_reason": rejectionReason,
		"mtime":            now,
	}
	sqlStr, args, err := builder.BuildUpdate("quotations", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrConflict
	}
	return nil
}

func (r *QuotationRepo) update(ctx context.Context, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("quotations", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func nullableToken(token string) interface{} {
	if token == "" {
		return nil
	}
	return token
}

func scanQuotation(rows *sql.Rows) (*model.Quotation, error) {
	var q model.Quotation
	var items string
	var shareToken sql.NullString
	if err := rows.Scan(
		&q.ID, &q.CustomerName, &q.CustomerPhone, &q.ServiceSummary, &items,
		&q.Subtotal, &q.Discount, &q.Total, &q.Status, &q.CustomerNote, &q.RejectionReason,
		&q.Sharing.IsShared, &shareToken, &q.Sharing.SharedAt, &q.Sharing.SharedBy,
		&q.Sharing.AccessCount, &q.Sharing.LastAccessedAt,
		&q.Ctime, &q.Mtime,
	); err != nil {
		return nil, err
	}
	q.Sharing.ShareToken = shareToken.String
	if err := json.Unmarshal([]byte(items), &q.Items); err != nil {
		return nil, err
	}
	return &q, nil
}
