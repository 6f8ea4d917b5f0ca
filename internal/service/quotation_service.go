package service

import (
	"context"
	"strings"
	"time"

	"github.com/sahzadahmad246/perfectceiling/internal/model"
	appErr "github.com/sahzadahmad246/perfectceiling/internal/pkg/errors"
	"github.com/sahzadahmad246/perfectceiling/internal/repo"
)

type QuotationService struct {
	quotations *repo.QuotationRepo
	audits     *repo.AuditRepo
	now        func() time.Time
}

func NewQuotationService(quotations *repo.QuotationRepo, audits *repo.AuditRepo) *QuotationService {
	return &QuotationService{quotations: quotations, audits: audits, now: time.Now}
}

type QuotationCreateInput struct {
	CustomerName   string
	CustomerPhone  string
	ServiceSummary string
	Items          []model.QuotationItem
	Discount       int64
}

func (s *QuotationService) Create(ctx context.Context, input QuotationCreateInput) (*model.Quotation, error) {
	if strings.TrimSpace(input.CustomerName) == "" || len(input.Items) == 0 {
		return nil, appErr.ErrInvalid
	}
	var subtotal int64
	for _, item := range input.Items {
		if strings.TrimSpace(item.Description) == "" || item.Amount < 0 {
			return nil, appErr.ErrInvalid
		}
		subtotal += item.Amount
	}
	if input.Discount < 0 || input.Discount > subtotal {
		return nil, appErr.ErrInvalid
	}
	now := s.now().Unix()
	q := &model.Quotation{
		ID:             newID(),
		CustomerName:   strings.TrimSpace(input.CustomerName),
		CustomerPhone:  strings.TrimSpace(input.CustomerPhone),
		ServiceSummary: strings.TrimSpace(input.ServiceSummary),
		Items:          input.Items,
		Subtotal:       subtotal,
		Discount:       input.Discount,
		Total:          subtotal - input.Discount,
		Status:         model.QuotationStatusPending,
		Ctime:          now,
		Mtime:          now,
	}
	if err := s.quotations.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Update rewrites the customer and line-item details of a pending
// quotation. Settled quotations are immutable.
func (s *QuotationService) Update(ctx context.Context, id string, input QuotationCreateInput) (*model.Quotation, error) {
	if strings.TrimSpace(input.CustomerName) == "" || len(input.Items) == 0 {
		return nil, appErr.ErrInvalid
	}
	var subtotal int64
	for _, item := range input.Items {
		if strings.TrimSpace(item.Description) == "" || item.Amount < 0 {
			return nil, appErr.ErrInvalid
		}
		subtotal += item.Amount
	}
	if input.Discount < 0 || input.Discount > subtotal {
		return nil, appErr.ErrInvalid
	}
	q, err := s.quotations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != model.QuotationStatusPending {
		return nil, appErr.ErrConflict
	}
	q.CustomerName = strings.TrimSpace(input.CustomerName)
	q.CustomerPhone = strings.TrimSpace(input.CustomerPhone)
	q.ServiceSummary = strings.TrimSpace(input.ServiceSummary)
	q.Items = input.Items
	q.Subtotal = subtotal
	q.Discount = input.Discount
	q.Total = subtotal - input.Discount
	q.Mtime = s.now().Unix()
	if err := s.quotations.UpdateDetails(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuotationService) Get(ctx context.Context, id string) (*model.Quotation, error) {
	return s.quotations.GetByID(ctx, id)
}

func (s *QuotationService) List(ctx context.Context, status string, limit, offset uint) ([]model.Quotation, error) {
	if limit == 0 || limit > 200 {
		limit = 50
	}
	return s.quotations.List(ctx, status, limit, offset)
}

// UpdateStatus is the staff-side transition; unlike the customer path it
// may move a quotation out of any current state.
func (s *QuotationService) UpdateStatus(ctx context.Context, userID, id, status, reason string) (*model.Quotation, error) {
	switch status {
	case model.QuotationStatusPending, model.QuotationStatusAccepted, model.QuotationStatusRejected:
	default:
		return nil, appErr.ErrInvalid
	}
	q, err := s.quotations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.quotations.UpdateStatusFrom(ctx, id, q.Status, status, q.CustomerNote, reason, s.now().Unix()); err != nil {
		return nil, err
	}
	event := &model.AuditEvent{
		ID:          newID(),
		QuotationID: id,
		Action:      model.AuditActionStatusChanged,
		Actor:       userID,
		Metadata:    map[string]string{"from": q.Status, "to": status},
		Ctime:       s.now().Unix(),
	}
	if err := s.audits.Append(ctx, event); err != nil {
		return nil, err
	}
	return s.quotations.GetByID(ctx, id)
}
