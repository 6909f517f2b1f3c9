package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/GoPolymarket/guardgate/internal/rejection"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 21, 22, 53, 20, 0, time.UTC)

func receipt(t *testing.T, taker string, reason rejection.Reason) *model.FillReceipt {
	t.Helper()
	id := uuid.New()
	doc := guardrail.NewDocument(guardrail.OfferIDFromUUID(id))
	doc.ExpiryTime = uint64(t0.Add(time.Minute).Unix())
	offer := &model.Offer{ID: id, Guardrails: doc, Status: model.OfferActive, CreatedAt: t0, ExpiresAt: doc.Expiry()}
	fill := guardrail.FillEvidence{TakerID: taker, FillSize: 5, FillPrice: 7, EvaluationTime: uint64(t0.Unix())}
	outcome := model.Accepted(model.SettlementIntent{MakerDebit: 7, MakerCredit: 5, TakerDebit: 5, TakerCredit: 7})
	if reason != nil {
		outcome = model.Rejected(reason)
	}
	r, err := model.RecordReceipt(offer, doc, model.FillAttempt{ID: uuid.New(), OfferID: id, Evidence: fill, AttemptedAt: t0}, outcome, t0)
	require.NoError(t, err)
	return r
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestSnapshotThenLiveEvents(t *testing.T) {
	hub := NewHub(10)
	ctx := context.Background()
	first := receipt(t, "taker-1", nil)
	require.NoError(t, hub.Insert(ctx, first))

	conn := dial(t, hub)

	var snap Event
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, EventSnapshot, snap.Type)
	require.Len(t, snap.Receipts, 1)
	assert.Equal(t, first.ReceiptID, snap.Receipts[0].ReceiptID)

	second := receipt(t, "taker-2", rejection.UnauthorizedTaker{Taker: "taker-2", AllowedTakers: []string{"taker-1"}})
	require.NoError(t, hub.Insert(ctx, second))

	var live Event
	require.NoError(t, conn.ReadJSON(&live))
	assert.Equal(t, EventReceipt, live.Type)
	require.NotNil(t, live.Receipt)
	assert.Equal(t, second.ReceiptID, live.Receipt.ReceiptID)
	assert.Equal(t, "REJECTED", live.Receipt.Status)
	assert.Equal(t, rejection.CodeUnauthorizedTaker, live.Receipt.ReasonCode)
}

func TestRecentIsBounded(t *testing.T) {
	hub := NewHub(3)
	var last []uuid.UUID
	for i := 0; i < 5; i++ {
		r := receipt(t, "taker", nil)
		require.NoError(t, hub.Insert(context.Background(), r))
		last = append(last, r.ReceiptID)
	}
	recent := hub.Recent()
	require.Len(t, recent, 3)
	for i, s := range recent {
		assert.Equal(t, last[2+i], s.ReceiptID)
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(1)
	conn := dial(t, hub)

	var snap Event
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, 1, hub.ClientCount())

	hub.Close()
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}
