package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sahzadahmad246/perfectceiling/internal/pkg/errcode"
	"github.com/sahzadahmad246/perfectceiling/internal/pkg/response"
	"github.com/sahzadahmad246/perfectceiling/internal/service"
)

type ShareHandler struct {
	sharing *service.SharingService
}

func NewShareHandler(sharing *service.SharingService) *ShareHandler {
	return &ShareHandler{sharing: sharing}
}

func (h *ShareHandler) Create(c *gin.Context) {
	info, err := h.sharing.CreateShare(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, info)
}

func (h *ShareHandler) Revoke(c *gin.Context) {
	if err := h.sharing.RevokeShare(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ShareHandler) GetState(c *gin.Context) {
	state, err := h.sharing.GetShareState(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, state)
}

type verifyAccessRequest struct {
	PhoneDigits string `json:"phone_digits"`
}

type updateStatusByTokenRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// PublicVerify is the customer-facing gate. Rejections carry the limiter
// state so the page can show remaining attempts or a retry-after hint, and
// never anything about the stored phone number.
func (h *ShareHandler) PublicVerify(c *gin.Context) {
	var req verifyAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.sharing.VerifyAccess(c.Request.Context(), service.VerifyInput{
		Token:       c.Param("token"),
		PhoneDigits: req.PhoneDigits,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	switch result.Outcome {
	case service.VerifyOK:
		response.Success(c, result.Quotation)
	case service.VerifyMalformedToken:
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidToken, result.Message)
	case service.VerifyRateLimited:
		response.ErrorData(c, http.StatusTooManyRequests, errcode.ErrTooMany, result.Message, result.RateLimit)
	case service.VerifyBadDigits:
		response.ErrorData(c, http.StatusBadRequest, errcode.ErrInvalidPhoneDigits, result.Message, result.RateLimit)
	case service.VerifyNotFound:
		response.Error(c, http.StatusNotFound, errcode.ErrShareRevoked, result.Message)
	case service.VerifyMismatch:
		status := http.StatusBadRequest
		if result.RateLimit.Blocked {
			status = http.StatusTooManyRequests
		}
		response.ErrorData(c, status, errcode.ErrVerificationFailed, result.Message, result.RateLimit)
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}

func (h *ShareHandler) PublicUpdateStatus(c *gin.Context) {
	var req updateStatusByTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	q, err := h.sharing.UpdateStatusByToken(c.Request.Context(), service.StatusUpdateInput{
		Token:     c.Param("token"),
		Status:    req.Status,
		Note:      req.Note,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, q)
}
