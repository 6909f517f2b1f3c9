package handler

import (
	"net/http"
	"strconv"

	"github.com/GoPolymarket/guardgate/internal/middleware"
	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/GoPolymarket/guardgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/guardgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OfferHandler struct {
	svc *service.OfferService
}

func NewOfferHandler(svc *service.OfferService) *OfferHandler {
	return &OfferHandler{svc: svc}
}

func (h *OfferHandler) Create(c *gin.Context) {
	var req model.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	offer, err := h.svc.CreateOffer(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "offer_id", offer.ID.String())

	c.JSON(http.StatusCreated, model.CreateOfferResponse{
		Offer:   offer,
		Summary: offer.Guardrails.Summary(),
	})
}

func (h *OfferHandler) List(c *gin.Context) {
	activeOnly := false
	if raw := c.Query("active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("active must be a boolean"))
			return
		}
		activeOnly = parsed
	}

	offers, err := h.svc.ListOffers(c.Request.Context(), activeOnly)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, offers)
}

func (h *OfferHandler) Get(c *gin.Context) {
	id, ok := offerID(c)
	if !ok {
		return
	}
	offer, err := h.svc.GetOffer(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

// Receipts lists the offer's receipts as summaries, or in full with ?full=true.
func (h *OfferHandler) Receipts(c *gin.Context) {
	id, ok := offerID(c)
	if !ok {
		return
	}
	receipts, err := h.svc.Receipts(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	if full, _ := strconv.ParseBool(c.Query("full")); full {
		c.JSON(http.StatusOK, receipts)
		return
	}
	summaries := make([]model.ReceiptSummary, 0, len(receipts))
	for _, r := range receipts {
		summaries = append(summaries, r.Summary())
	}
	c.JSON(http.StatusOK, summaries)
}

// Fill answers 200 for every evaluated attempt, accepted or rejected; the
// verdict is in the body. Non-2xx means the attempt was not evaluated.
func (h *OfferHandler) Fill(c *gin.Context) {
	id, ok := offerID(c)
	if !ok {
		return
	}
	var req model.FillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	receipt, err := h.svc.Fill(c.Request.Context(), id, req)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "offer_id", id.String())
	middleware.AddAuditContext(c, "receipt_id", receipt.ReceiptID.String())
	middleware.AddAuditContext(c, "outcome", string(receipt.Outcome.Status))

	c.JSON(http.StatusOK, model.FillResponse{
		Receipt: receipt.Summary(),
		Outcome: receipt.Outcome,
		Digest:  receipt.Digest,
	})
}

func (h *OfferHandler) Cancel(c *gin.Context) {
	id, ok := offerID(c)
	if !ok {
		return
	}
	var req model.CancelOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}
	offer, err := h.svc.Cancel(c.Request.Context(), id, req.MakerID)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "offer_id", id.String())
	c.JSON(http.StatusOK, offer)
}

func offerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("offer id must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}
