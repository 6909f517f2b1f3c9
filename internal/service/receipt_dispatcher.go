package service

import (
	"context"
	"sync"
	"time"

	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/GoPolymarket/guardgate/internal/pkg/logger"
	"github.com/GoPolymarket/guardgate/internal/pkg/metrics"
)

// ReceiptSink receives a copy of every recorded receipt. Sinks are secondary:
// the in-memory store stays authoritative and a failing sink never fails a fill.
type ReceiptSink interface {
	Name() string
	Insert(ctx context.Context, receipt *model.FillReceipt) error
}

// ReceiptDispatcher fans receipts out to sinks on a background goroutine.
type ReceiptDispatcher struct {
	ch      chan *model.FillReceipt
	sinks   []ReceiptSink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewReceiptDispatcher(buffer int, sinks ...ReceiptSink) *ReceiptDispatcher {
	if buffer <= 0 {
		buffer = 1000
	}
	d := &ReceiptDispatcher{
		ch:      make(chan *model.FillReceipt, buffer),
		sinks:   sinks,
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish queues the receipt. When the buffer is full, or the dispatcher is
// already closed, the receipt is dropped for the sinks and counted; the store
// already has it.
func (d *ReceiptDispatcher) Publish(receipt *model.FillReceipt) {
	if len(d.sinks) == 0 {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		logger.Warn("receipt dispatcher closed, dropping", "receipt_id", receipt.ReceiptID)
		metrics.SinkErrors.WithLabelValues("dispatcher").Inc()
		return
	}
	select {
	case d.ch <- receipt:
	default:
		logger.Warn("receipt dispatch buffer full, dropping", "receipt_id", receipt.ReceiptID)
		metrics.SinkErrors.WithLabelValues("dispatcher").Inc()
	}
}

func (d *ReceiptDispatcher) run() {
	defer close(d.done)
	for receipt := range d.ch {
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			if err := sink.Insert(ctx, receipt); err != nil {
				metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
				logger.Error("receipt sink write failed",
					"sink", sink.Name(),
					"receipt_id", receipt.ReceiptID,
					"offer_id", receipt.Offer.ID,
					"error", err)
			}
			cancel()
		}
	}
}

// Close drains the queue and waits for the sinks to finish.
func (d *ReceiptDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	<-d.done
}
