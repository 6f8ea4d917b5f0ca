package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/sahzadahmad246/perfectceiling/internal/model"
	appErr "github.com/sahzadahmad246/perfectceiling/internal/pkg/errors"
	"github.com/sahzadahmad246/perfectceiling/internal/pkg/phone"
	"github.com/sahzadahmad246/perfectceiling/internal/pkg/token"
	"github.com/sahzadahmad246/perfectceiling/internal/ratelimit"
	"github.com/sahzadahmad246/perfectceiling/internal/repo"
)

const tokenCacheSize = 1024

// SharingService owns the share-link lifecycle: minting and revoking
// tokens, verifying customer access behind the phone-digit gate, and
// feeding the audit trail. Audit and access-record writes never block or
// fail the primary flow.
type SharingService struct {
	quotations *repo.QuotationRepo
	audits     *repo.AuditRepo
	accesses   *repo.AccessRepo
	limiter    *ratelimit.Limiter
	tokenCache *lru.Cache[string, string]
	baseURL    string
	now        func() time.Time
}

func NewSharingService(quotations *repo.QuotationRepo, audits *repo.AuditRepo, accesses *repo.AccessRepo, limiter *ratelimit.Limiter, baseURL string) *SharingService {
	cache, _ := lru.New[string, string](tokenCacheSize)
	return &SharingService{
		quotations: quotations,
		audits:     audits,
		accesses:   accesses,
		limiter:    limiter,
		tokenCache: cache,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

type ShareInfo struct {
	QuotationID string `json:"quotation_id"`
	Token       string `json:"token"`
	URL         string `json:"url"`
	SharedAt    int64  `json:"shared_at"`
	SharedBy    string `json:"shared_by"`
}

func (s *SharingService) shareURL(tok string) string {
	return fmt.Sprintf("%s/quotations/shared/%s", s.baseURL, tok)
}

// CreateShare mints a share link for the quotation, or returns the
// existing one if it is already shared. The quotation must carry a
// customer phone number, since the last four digits are the access gate.
func (s *SharingService) CreateShare(ctx context.Context, userID, quotationID string) (*ShareInfo, error) {
	q, err := s.quotations.GetByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if phone.Sanitize(q.CustomerPhone) == "" {
		return nil, appErr.ErrInvalid
	}
	if q.Sharing.IsShared && q.Sharing.ShareToken != "" {
		return &ShareInfo{
			QuotationID: q.ID,
			Token:       q.Sharing.ShareToken,
			URL:         s.shareURL(q.Sharing.ShareToken),
			SharedAt:    q.Sharing.SharedAt,
			SharedBy:    q.Sharing.SharedBy,
		}, nil
	}
	tok, err := token.Generate()
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	if err := s.quotations.SetSharing(ctx, q.ID, tok, userID, now); err != nil {
		return nil, err
	}
	s.tokenCache.Add(tok, q.ID)
	s.auditAsync(q.ID, model.AuditActionShared, userID, "", nil)
	return &ShareInfo{
		QuotationID: q.ID,
		Token:       tok,
		URL:         s.shareURL(tok),
		SharedAt:    now,
		SharedBy:    userID,
	}, nil
}

// RevokeShare clears the share fields so the old link stops resolving.
func (s *SharingService) RevokeShare(ctx context.Context, userID, quotationID string) error {
	q, err := s.quotations.GetByID(ctx, quotationID)
	if err != nil {
		return err
	}
	if !q.Sharing.IsShared {
		return appErr.ErrConflict
	}
	if err := s.quotations.ClearSharing(ctx, q.ID, s.now().Unix()); err != nil {
		return err
	}
	if q.Sharing.ShareToken != "" {
		s.tokenCache.Remove(q.Sharing.ShareToken)
	}
	s.auditAsync(q.ID, model.AuditActionRevoked, userID, "", nil)
	return nil
}

type ShareState struct {
	Sharing model.Sharing `json:"sharing"`
	URL     string        `json:"url,omitempty"`
}

func (s *SharingService) GetShareState(ctx context.Context, quotationID string) (*ShareState, error) {
	q, err := s.quotations.GetByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	state := &ShareState{Sharing: q.Sharing}
	if q.Sharing.IsShared && q.Sharing.ShareToken != "" {
		state.URL = s.shareURL(q.Sharing.ShareToken)
	}
	return state, nil
}

type VerifyOutcome int

const (
	VerifyOK VerifyOutcome = iota
	VerifyMalformedToken
	VerifyRateLimited
	VerifyBadDigits
	VerifyNotFound
	VerifyMismatch
)

type VerifyInput struct {
	Token       string
	PhoneDigits string
	IPAddress   string
	UserAgent   string
}

// VerifyResult expresses every rejection as data rather than an error, so
// the handler can return the right status with the right payload. The
// error path of VerifyAccess is reserved for storage failures.
type VerifyResult struct {
	Outcome   VerifyOutcome
	Message   string
	RateLimit ratelimit.Status
	Quotation *model.PublicQuotation
}

// VerifyAccess runs the full gate in order: token format, rate limit,
// digit validation, lookup, digit comparison. Malformed digits and
// mismatches both count against the caller's attempt budget; a malformed
// token or an unresolvable one does not.
func (s *SharingService) VerifyAccess(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if !token.IsValidFormat(input.Token) {
		return &VerifyResult{Outcome: VerifyMalformedToken, Message: "invalid share link"}, nil
	}
	key := ratelimit.Key(input.IPAddress, input.Token)
	if status := s.limiter.Check(key); status.Blocked {
		return &VerifyResult{Outcome: VerifyRateLimited, Message: "too many attempts, try again later", RateLimit: status}, nil
	}

	validated := phone.ValidateInput(input.PhoneDigits)
	if !validated.IsValid {
		status := s.limiter.RecordFailed(key)
		// Malformed guesses against a live link still feed the audit
		// trail and the pattern detectors. Attribution is best effort;
		// the response does not depend on whether the token resolves.
		if q, lookupErr := s.lookupByToken(ctx, input.Token); lookupErr == nil {
			s.auditAsync(q.ID, model.AuditActionVerificationFailed, input.IPAddress, input.UserAgent, map[string]string{"reason": "invalid_digits"})
			s.recordAccessAsync(q.ID, input, false)
		}
		return &VerifyResult{Outcome: VerifyBadDigits, Message: validated.Error, RateLimit: status}, nil
	}

	q, err := s.lookupByToken(ctx, input.Token)
	if err != nil {
		if appErr.IsNotFound(err) {
			// Deliberately indistinguishable from a revoked link.
			return &VerifyResult{Outcome: VerifyNotFound, Message: "this link is no longer valid or has been revoked"}, nil
		}
		return nil, err
	}

	if !phone.Verify(validated.Sanitized, q.CustomerPhone) {
		status := s.limiter.RecordFailed(key)
		s.auditAsync(q.ID, model.AuditActionVerificationFailed, input.IPAddress, input.UserAgent, nil)
		s.recordAccessAsync(q.ID, input, false)
		return &VerifyResult{
			Outcome:   VerifyMismatch,
			Message:   "the digits you entered don't match our records",
			RateLimit: status,
		}, nil
	}

	s.limiter.RecordSuccess(key)
	if err := s.quotations.RecordAccess(ctx, q.ID, s.now().Unix()); err != nil {
		return nil, err
	}
	s.auditAsync(q.ID, model.AuditActionAccessed, input.IPAddress, input.UserAgent, nil)
	s.recordAccessAsync(q.ID, input, true)
	return &VerifyResult{Outcome: VerifyOK, Quotation: q.Public()}, nil
}

type StatusUpdateInput struct {
	Token     string
	Status    string
	Note      string
	IPAddress string
	UserAgent string
}

// UpdateStatusByToken applies the customer's accept/reject decision. Only
// pending quotations can transition; anything else conflicts.
func (s *SharingService) UpdateStatusByToken(ctx context.Context, input StatusUpdateInput) (*model.PublicQuotation, error) {
	if !token.IsValidFormat(input.Token) {
		return nil, appErr.ErrInvalid
	}
	if input.Status != model.QuotationStatusAccepted && input.Status != model.QuotationStatusRejected {
		return nil, appErr.ErrInvalid
	}
	q, err := s.lookupByToken(ctx, input.Token)
	if err != nil {
		return nil, err
	}
	note := ""
	reason := ""
	if input.Status == model.QuotationStatusRejected {
		reason = input.Note
	} else {
		note = input.Note
	}
	now := s.now().Unix()
	if err := s.quotations.UpdateStatusFrom(ctx, q.ID, model.QuotationStatusPending, input.Status, note, reason, now); err != nil {
		return nil, err
	}
	s.auditAsync(q.ID, model.AuditActionStatusChanged, input.IPAddress, input.UserAgent, map[string]string{
		"from": model.QuotationStatusPending,
		"to":   input.Status,
	})
	q, err = s.quotations.GetByID(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	return q.Public(), nil
}

// lookupByToken resolves a live share token to its quotation, going through
// the LRU first. A cache hit is re-validated against the row so revocation
// from another path can never serve a stale share.
func (s *SharingService) lookupByToken(ctx context.Context, tok string) (*model.Quotation, error) {
	if id, ok := s.tokenCache.Get(tok); ok {
		q, err := s.quotations.GetByID(ctx, id)
		if err == nil && q.Sharing.IsShared && q.Sharing.ShareToken == tok {
			return q, nil
		}
		s.tokenCache.Remove(tok)
		if err != nil && !appErr.IsNotFound(err) {
			return nil, err
		}
	}
	q, err := s.quotations.GetByShareToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	s.tokenCache.Add(tok, q.ID)
	return q, nil
}

// auditAsync appends an audit event off the request path. Failures are
// logged and dropped; observability never blocks sharing.
func (s *SharingService) auditAsync(quotationID, action, actor, userAgent string, metadata map[string]string) {
	event := &model.AuditEvent{
		ID:          newID(),
		QuotationID: quotationID,
		Action:      action,
		Actor:       actor,
		UserAgent:   userAgent,
		Metadata:    metadata,
		Ctime:       s.now().Unix(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audits.Append(ctx, event); err != nil {
			logutil.GetLogger(ctx).Warn("append audit event failed",
				zap.String("quotation_id", quotationID),
				zap.String("action", action),
				zap.Error(err),
			)
		}
	}()
}

func (s *SharingService) recordAccessAsync(quotationID string, input VerifyInput, successful bool) {
	rec := &model.AccessRecord{
		ID:          newID(),
		QuotationID: quotationID,
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
		AccessedAt:  s.now().Unix(),
		Attempts:    1,
		Successful:  successful,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.accesses.Append(ctx, rec); err != nil {
			logutil.GetLogger(ctx).Warn("append access record failed",
				zap.String("quotation_id", quotationID),
				zap.Error(err),
			)
		}
	}()
}
