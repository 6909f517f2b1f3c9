package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/google/uuid"
)

var (
	ErrOfferNotFound = errors.New("offer not found")
	ErrOfferExists   = errors.New("offer already exists")
)

// StatusError is returned by TransitionIfActive when the offer had already
// left Active. Status and ClosedAt describe the state that won.
type StatusError struct {
	OfferID  uuid.UUID
	Status   model.OfferStatus
	ClosedAt time.Time
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("offer %s is %s", e.OfferID, e.Status)
}

// MemoryStore is the authoritative offer and receipt store. Offers and
// receipts live in separate lock domains; they are never updated together.
// Every read hands out copies.
type MemoryStore struct {
	offersMu sync.RWMutex
	offers   map[uuid.UUID]*model.Offer

	receiptsMu sync.RWMutex
	receipts   map[uuid.UUID][]*model.FillReceipt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		offers:   make(map[uuid.UUID]*model.Offer),
		receipts: make(map[uuid.UUID][]*model.FillReceipt),
	}
}

// PutOffer inserts a new offer.
func (s *MemoryStore) PutOffer(ctx context.Context, offer *model.Offer) error {
	s.offersMu.Lock()
	defer s.offersMu.Unlock()

	if _, ok := s.offers[offer.ID]; ok {
		return fmt.Errorf("%w: %s", ErrOfferExists, offer.ID)
	}
	s.offers[offer.ID] = offer.Clone()
	return nil
}

// GetOffer returns the offer, promoting it to Expired first if its time has come.
func (s *MemoryStore) GetOffer(ctx context.Context, id uuid.UUID, now time.Time) (*model.Offer, error) {
	s.offersMu.RLock()
	offer, ok := s.offers[id]
	stale := ok && offer.Status == model.OfferActive && offer.IsExpiredAt(now)
	var out *model.Offer
	if ok && !stale {
		out = offer.Clone()
	}
	s.offersMu.RUnlock()

	if !ok {
		return nil, ErrOfferNotFound
	}
	if out != nil {
		return out, nil
	}

	s.offersMu.Lock()
	defer s.offersMu.Unlock()
	offer = s.offers[id]
	expireLocked(offer, now)
	return offer.Clone(), nil
}

// ListOffers returns offers ordered by creation time. Lazy expiry is applied
// to everything it touches, so activeOnly never returns an expired offer. The
// scan runs under the read lock; the write lock is only taken when some offer
// is due to expire.
func (s *MemoryStore) ListOffers(ctx context.Context, activeOnly bool, now time.Time) ([]*model.Offer, error) {
	s.offersMu.RLock()
	out, due := s.listLocked(activeOnly, now)
	s.offersMu.RUnlock()

	if due {
		s.offersMu.Lock()
		for _, offer := range s.offers {
			expireLocked(offer, now)
		}
		out, _ = s.listLocked(activeOnly, now)
		s.offersMu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// listLocked copies the matching offers. due reports an Active offer past its
// expiry, in which case the result must not be used.
func (s *MemoryStore) listLocked(activeOnly bool, now time.Time) (out []*model.Offer, due bool) {
	out = make([]*model.Offer, 0, len(s.offers))
	for _, offer := range s.offers {
		if offer.Status == model.OfferActive && offer.IsExpiredAt(now) {
			return nil, true
		}
		if activeOnly && !offer.IsActiveAt(now) {
			continue
		}
		out = append(out, offer.Clone())
	}
	return out, false
}

// TransitionIfActive moves an offer from Active to `to` in one step. If the
// offer is no longer Active (or has just expired) it returns *StatusError and
// leaves the offer as it is.
func (s *MemoryStore) TransitionIfActive(ctx context.Context, id uuid.UUID, to model.OfferStatus, now time.Time) (*model.Offer, error) {
	if to == model.OfferActive {
		return nil, fmt.Errorf("invalid transition target %q", to)
	}

	s.offersMu.Lock()
	defer s.offersMu.Unlock()

	offer, ok := s.offers[id]
	if !ok {
		return nil, ErrOfferNotFound
	}
	expireLocked(offer, now)
	if offer.Status.IsTerminal() {
		return nil, &StatusError{OfferID: id, Status: offer.Status, ClosedAt: closedAt(offer)}
	}
	offer.Status = to
	closed := now.UTC()
	offer.ClosedAt = &closed
	return offer.Clone(), nil
}

// AppendReceipt adds a receipt to its offer's trail. Receipts are never
// modified or removed.
func (s *MemoryStore) AppendReceipt(ctx context.Context, receipt *model.FillReceipt) error {
	if receipt == nil {
		return errors.New("nil receipt")
	}
	s.receiptsMu.Lock()
	defer s.receiptsMu.Unlock()

	s.receipts[receipt.Offer.ID] = append(s.receipts[receipt.Offer.ID], receipt.Clone())
	return nil
}

// ListReceipts returns the offer's receipts in the order they were recorded.
func (s *MemoryStore) ListReceipts(ctx context.Context, offerID uuid.UUID) ([]*model.FillReceipt, error) {
	s.receiptsMu.RLock()
	defer s.receiptsMu.RUnlock()

	src := s.receipts[offerID]
	out := make([]*model.FillReceipt, len(src))
	for i, r := range src {
		out[i] = r.Clone()
	}
	return out, nil
}

func expireLocked(offer *model.Offer, now time.Time) {
	if offer.Status == model.OfferActive && offer.IsExpiredAt(now) {
		offer.Status = model.OfferExpired
		closed := offer.ExpiresAt
		offer.ClosedAt = &closed
	}
}

func closedAt(offer *model.Offer) time.Time {
	if offer.ClosedAt != nil {
		return *offer.ClosedAt
	}
	return time.Time{}
}
