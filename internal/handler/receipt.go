package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/GoPolymarket/guardgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/guardgate/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxArchiveLimit = 1000

// ReceiptArchive is the durable receipt history, outliving the in-memory store.
type ReceiptArchive interface {
	List(ctx context.Context, offerID uuid.UUID, limit int) ([]*model.FillReceipt, error)
	Get(ctx context.Context, receiptID uuid.UUID) (*model.FillReceipt, error)
}

type ReceiptHandler struct {
	archive ReceiptArchive
}

// NewReceiptHandler accepts a nil archive; only Verify is served then.
func NewReceiptHandler(archive ReceiptArchive) *ReceiptHandler {
	return &ReceiptHandler{archive: archive}
}

func (h *ReceiptHandler) Get(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("receipt id must be a uuid"))
		return
	}
	receipt, err := h.archive.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrReceiptNotFound) {
		c.Error(apperrors.New(apperrors.ErrNotFound, "receipt not found", err))
		return
	}
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *ReceiptHandler) ListByOffer(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	id, ok := offerID(c)
	if !ok {
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.Error(apperrors.NewInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxArchiveLimit)
	}
	receipts, err := h.archive.List(c.Request.Context(), id, limit)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, receipts)
}

// Verify recomputes the digest of a receipt the caller holds.
func (h *ReceiptHandler) Verify(c *gin.Context) {
	var receipt model.FillReceipt
	if err := c.ShouldBindJSON(&receipt); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}
	if receipt.Digest == "" {
		c.Error(apperrors.NewInvalidRequest("receipt has no digest"))
		return
	}
	expected, err := receipt.ComputeDigest()
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":    expected == receipt.Digest,
		"digest":   receipt.Digest,
		"expected": expected,
	})
}

func (h *ReceiptHandler) enabled(c *gin.Context) bool {
	if h.archive == nil {
		c.Error(apperrors.NewNotFound("receipt archive is not configured"))
		return false
	}
	return true
}
