package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sahzadahmad246/perfectceiling/internal/model"
	"github.com/sahzadahmad246/perfectceiling/internal/pkg/errcode"
	"github.com/sahzadahmad246/perfectceiling/internal/pkg/response"
	"github.com/sahzadahmad246/perfectceiling/internal/service"
)

type QuotationHandler struct {
	quotations *service.QuotationService
}

func NewQuotationHandler(quotations *service.QuotationService) *QuotationHandler {
	return &QuotationHandler{quotations: quotations}
}

type createQuotationRequest struct {
	CustomerName   string                `json:"customer_name"`
	CustomerPhone  string                `json:"customer_phone"`
	ServiceSummary string                `json:"service_summary"`
	Items          []model.QuotationItem `json:"items"`
	Discount       int64                 `json:"discount"`
}

type updateQuotationStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *QuotationHandler) Create(c *gin.Context) {
	var req createQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	q, err := h.quotations.Create(c.Request.Context(), service.QuotationCreateInput{
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		ServiceSummary: req.ServiceSummary,
		Items:          req.Items,
		Discount:       req.Discount,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, q)
}

func (h *QuotationHandler) Update(c *gin.Context) {
	var req createQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	q, err := h.quotations.Update(c.Request.Context(), c.Param("id"), service.QuotationCreateInput{
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		ServiceSummary: req.ServiceSummary,
		Items:          req.Items,
		Discount:       req.Discount,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, q)
}

func (h *QuotationHandler) Get(c *gin.Context) {
	q, err := h.quotations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, q)
}

func (h *QuotationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	items, err := h.quotations.List(c.Request.Context(), c.Query("status"), uint(limit), uint(offset))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *QuotationHandler) UpdateStatus(c *gin.Context) {
	var req updateQuotationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	q, err := h.quotations.UpdateStatus(c.Request.Context(), getUserID(c), c.Param("id"), req.Status, req.Reason)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, q)
}
