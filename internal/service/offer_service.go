package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoPolymarket/guardgate/internal/codec"
	"github.com/GoPolymarket/guardgate/internal/engine"
	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/GoPolymarket/guardgate/internal/manager"
	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/GoPolymarket/guardgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/guardgate/internal/pkg/logger"
	"github.com/GoPolymarket/guardgate/internal/pkg/metrics"
	"github.com/GoPolymarket/guardgate/internal/rejection"
	"github.com/GoPolymarket/guardgate/internal/repository"
	"github.com/GoPolymarket/guardgate/internal/sandbox"
	"github.com/google/uuid"
)

// OfferStore is the state the lifecycle runs against. Status only changes
// through TransitionIfActive.
type OfferStore interface {
	PutOffer(ctx context.Context, offer *model.Offer) error
	GetOffer(ctx context.Context, id uuid.UUID, now time.Time) (*model.Offer, error)
	ListOffers(ctx context.Context, activeOnly bool, now time.Time) ([]*model.Offer, error)
	TransitionIfActive(ctx context.Context, id uuid.UUID, to model.OfferStatus, now time.Time) (*model.Offer, error)
	AppendReceipt(ctx context.Context, receipt *model.FillReceipt) error
	ListReceipts(ctx context.Context, offerID uuid.UUID) ([]*model.FillReceipt, error)
}

// EvidenceVerifier checks feed signatures before evaluation.
type EvidenceVerifier interface {
	Verify(evidence []guardrail.FeedEvidence) error
}

// Prover re-runs an encoded evaluation in the proof sandbox.
type Prover interface {
	Prove(ctx context.Context, input []byte) (*sandbox.Proof, error)
}

type Option func(*OfferService)

func WithClock(clock func() time.Time) Option {
	return func(s *OfferService) { s.clock = clock }
}

func WithSettler(settler Settler) Option {
	return func(s *OfferService) { s.settler = settler }
}

func WithVerifier(v EvidenceVerifier) Option {
	return func(s *OfferService) { s.verifier = v }
}

func WithNonces(n *manager.NonceManager) Option {
	return func(s *OfferService) { s.nonces = n }
}

func WithDispatcher(d *ReceiptDispatcher) Option {
	return func(s *OfferService) { s.dispatcher = d }
}

// WithSandboxReplay re-proves every accepted fill and reports divergence.
func WithSandboxReplay(p Prover) Option {
	return func(s *OfferService) { s.prover = p }
}

// OfferService runs the offer lifecycle: create, read with lazy expiry,
// fill through the engine, cancel. Every fill attempt leaves a receipt.
type OfferService struct {
	store      OfferStore
	clock      func() time.Time
	settler    Settler
	verifier   EvidenceVerifier
	dispatcher *ReceiptDispatcher
	prover     Prover
	nonces     *manager.NonceManager
}

func NewOfferService(store OfferStore, opts ...Option) *OfferService {
	s := &OfferService{
		store:   store,
		clock:   time.Now,
		settler: LogSettler{},
		nonces:  manager.NewNonceManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OfferService) now() time.Time {
	return s.clock().UTC().Truncate(time.Second)
}

// CreateOffer stores a new Active offer. The guardrails arrive already
// compiled; the server binds them to the new offer id and the maker's next
// nonce.
func (s *OfferService) CreateOffer(ctx context.Context, req model.CreateOfferRequest) (*model.Offer, error) {
	if req.Guardrails == nil {
		return nil, apperrors.NewInvalidRequest("guardrails are required")
	}
	now := s.now()
	id := uuid.New()
	doc := req.Guardrails.Clone()
	doc.OfferID = guardrail.OfferIDFromUUID(id)
	if err := doc.Validate(); err != nil {
		return nil, apperrors.Wrap(err)
	}
	if !doc.Expiry().After(now) {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("guardrail expiry %s is not in the future", doc.Expiry().Format(time.RFC3339)))
	}

	offer := &model.Offer{
		ID:           id,
		Spec:         req.Spec,
		Guardrails:   doc,
		Status:       model.OfferActive,
		CreatedAt:    now,
		ExpiresAt:    doc.Expiry(),
		MakerID:      req.MakerID,
		OriginalText: req.Text,
	}
	offer.Guardrails.Nonce = s.nonces.Next(req.MakerID)
	if err := s.store.PutOffer(ctx, offer); err != nil {
		return nil, apperrors.Wrap(err)
	}
	metrics.OffersTotal.WithLabelValues(string(model.OfferActive)).Inc()
	logger.Info("offer created", "offer_id", id, "maker_id", req.MakerID, "expires_at", offer.ExpiresAt)
	return offer, nil
}

func (s *OfferService) GetOffer(ctx context.Context, id uuid.UUID) (*model.Offer, error) {
	offer, err := s.store.GetOffer(ctx, id, s.now())
	if errors.Is(err, repository.ErrOfferNotFound) {
		return nil, apperrors.New(apperrors.ErrNotFound, "offer not found", err)
	}
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return offer, nil
}

func (s *OfferService) ListOffers(ctx context.Context, activeOnly bool) ([]*model.Offer, error) {
	offers, err := s.store.ListOffers(ctx, activeOnly, s.now())
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return offers, nil
}

// Receipts returns the offer's receipt trail, oldest first.
func (s *OfferService) Receipts(ctx context.Context, id uuid.UUID) ([]*model.FillReceipt, error) {
	if _, err := s.GetOffer(ctx, id); err != nil {
		return nil, err
	}
	receipts, err := s.store.ListReceipts(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	return receipts, nil
}

// Cancel withdraws an Active offer. Only its maker may do so.
func (s *OfferService) Cancel(ctx context.Context, id uuid.UUID, makerID string) (*model.Offer, error) {
	offer, err := s.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if offer.MakerID != makerID {
		return nil, apperrors.New(apperrors.ErrForbidden, "only the maker can cancel this offer", nil)
	}
	cancelled, err := s.store.TransitionIfActive(ctx, id, model.OfferCancelled, s.now())
	var statusErr *repository.StatusError
	if errors.As(err, &statusErr) {
		return nil, apperrors.New(apperrors.ErrConflict, fmt.Sprintf("offer is %s", statusErr.Status), err)
	}
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	metrics.OffersTotal.WithLabelValues(string(model.OfferCancelled)).Inc()
	logger.Info("offer cancelled", "offer_id", id, "maker_id", makerID)
	return cancelled, nil
}

// Fill evaluates one fill attempt and records its receipt. Business
// rejections come back inside the receipt, not as an error; an error means the
// attempt could not be evaluated at all.
func (s *OfferService) Fill(ctx context.Context, id uuid.UUID, req model.FillRequest) (*model.FillReceipt, error) {
	now := s.now()
	evidence := guardrail.FillEvidence{
		TakerID:           req.TakerID,
		FillSize:          req.FillSize,
		FillPrice:         req.FillPrice,
		FeedEvidence:      req.FeedEvidence,
		EvaluationTime:    uint64(now.Unix()),
		TransferLegCount:  engine.DvPLegCount,
		HasExtraTransfers: req.HasExtraTransfers,
	}
	if req.TransferLegCount != nil {
		evidence.TransferLegCount = *req.TransferLegCount
	}
	if err := evidence.Validate(); err != nil {
		return nil, apperrors.Wrap(err)
	}

	offer, err := s.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := offer.Guardrails.ValidateAssets(&evidence); err != nil {
		return nil, apperrors.Wrap(err)
	}
	if s.verifier != nil {
		if err := s.verifier.Verify(evidence.FeedEvidence); err != nil {
			return nil, apperrors.New(apperrors.ErrBadSignature, err.Error(), err)
		}
	}

	attempt := model.FillAttempt{
		ID:          uuid.New(),
		OfferID:     id,
		Evidence:    evidence,
		AttemptedAt: now,
	}

	var reason rejection.Reason
	snapshot := offer
	if offer.Status.IsTerminal() {
		reason = terminalReason(offer.Status, offer.Guardrails.ExpiryTime, closedAtUnix(offer.ClosedAt), evidence.EvaluationTime)
	} else {
		reason = engine.Evaluate(offer.Guardrails, &evidence)
		if reason == nil {
			var filled *model.Offer
			filled, reason, err = s.claim(ctx, offer, evidence.EvaluationTime, now)
			if err != nil {
				return nil, err
			}
			if filled != nil {
				snapshot = filled
			}
		}
	}

	outcome := model.Rejected(reason)
	if reason == nil {
		outcome = model.Accepted(model.NewSettlementIntent(offer.Spec, &evidence))
	}
	receipt, err := model.RecordReceipt(snapshot, offer.Guardrails, attempt, outcome, now)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	if err := s.store.AppendReceipt(ctx, receipt); err != nil {
		return nil, apperrors.Wrap(err)
	}
	s.afterFill(ctx, receipt)
	return receipt, nil
}

// claim performs the Active to Filled compare-and-swap and returns the filled
// offer. Losing the race is a business rejection, not an error.
func (s *OfferService) claim(ctx context.Context, offer *model.Offer, evalTime uint64, now time.Time) (*model.Offer, rejection.Reason, error) {
	filled, err := s.store.TransitionIfActive(ctx, offer.ID, model.OfferFilled, now)
	if err == nil {
		metrics.OffersTotal.WithLabelValues(string(model.OfferFilled)).Inc()
		return filled, nil, nil
	}
	var statusErr *repository.StatusError
	if errors.As(err, &statusErr) {
		return nil, terminalReason(statusErr.Status, offer.Guardrails.ExpiryTime, uint64(statusErr.ClosedAt.Unix()), evalTime), nil
	}
	return nil, nil, apperrors.Wrap(err)
}

func (s *OfferService) afterFill(ctx context.Context, receipt *model.FillReceipt) {
	log := logger.With("offer_id", receipt.Offer.ID, "receipt_id", receipt.ReceiptID, "taker_id", receipt.Fill.Evidence.TakerID)
	if reason := receipt.Outcome.Reason; reason != nil {
		metrics.FillsTotal.WithLabelValues(string(model.OutcomeRejected)).Inc()
		metrics.Rejections.WithLabelValues(string(reason.Code())).Inc()
		log.Info("fill rejected", "code", reason.Code(), "reason", reason.Message())
	} else {
		metrics.FillsTotal.WithLabelValues(string(model.OutcomeAccepted)).Inc()
		log.Info("fill accepted")
	}

	if s.dispatcher != nil {
		s.dispatcher.Publish(receipt)
	}
	if !receipt.IsAccepted() {
		return
	}
	if s.prover != nil {
		if err := s.replay(ctx, receipt); err != nil {
			metrics.SandboxDivergence.Inc()
			log.Error("sandbox replay diverged from host verdict", "error", err)
		}
	}
	if err := s.settler.Settle(ctx, receipt); err != nil {
		log.Error("settlement hand-off failed", "error", err)
	}
}

// replay encodes the accepted input and checks the sandbox proves it too.
func (s *OfferService) replay(ctx context.Context, receipt *model.FillReceipt) error {
	fill := receipt.Fill.Evidence
	input, err := codec.EncodeInput(codec.Input{Guardrails: receipt.Guardrails, Fill: &fill})
	if err != nil {
		return err
	}
	proof, err := s.prover.Prove(ctx, input)
	if err != nil {
		return err
	}
	return sandbox.Verify(proof, input, receipt.Offer.GuardrailID())
}

// terminalReason is the rejection for an attempt against a non-active offer.
func terminalReason(status model.OfferStatus, expiry, closedAt, attemptedAt uint64) rejection.Reason {
	switch status {
	case model.OfferFilled:
		return rejection.AlreadyFilled{FilledAt: closedAt}
	case model.OfferCancelled:
		return rejection.OfferCancelled{CancelledAt: closedAt}
	default:
		return rejection.OfferExpired{ExpiredAt: expiry, AttemptedAt: attemptedAt}
	}
}

func closedAtUnix(t *time.Time) uint64 {
	if t == nil || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}
