// Package signal implements the completion channel for the wallet
// approval flow. Three independent sources race to finish an attempt: a
// relayed success message, a shared-storage poll, and a popup-closed
// report. The first valid one wins; a consumed flag makes every later
// signal a silent no-op, so capture can be requested at most once per
// order id.
package signal

import (
	"context"
	"sync/atomic"
	"time"

	"storefront-checkout/internal/logging"
	"storefront-checkout/internal/metrics"

	"go.uber.org/zap"
)

const (
	SourceMessage  = "message"
	SourceStorage  = "storage"
	SourceClosed   = "closed"
	SourceTimeout  = "timeout"
	SourceShutdown = "shutdown"
)

// Payload of a successful wallet approval.
type Payload struct {
	OrderID string `json:"orderId"`
	PayerID string `json:"payerId,omitempty"`
}

// Signal is what lands in the watch inbox. Cancelled signals carry no
// payload beyond the order id.
type Signal struct {
	Payload   Payload
	Cancelled bool
	Source    string
}

// Watch waits for exactly one completion signal for one wallet order.
type Watch struct {
	orderID   string
	slot      Slot
	pollEvery time.Duration

	inbox    chan Signal
	consumed atomic.Bool
	stopPoll context.CancelFunc
	logger   *zap.Logger
}

func NewWatch(orderID string, slot Slot, pollEvery time.Duration) *Watch {
	return &Watch{
		orderID:   orderID,
		slot:      slot,
		pollEvery: pollEvery,
		inbox:     make(chan Signal, 1),
		logger:    logging.GetLogger(),
	}
}

// Start arms the shared-storage poll. The relay and closed-report sources
// are armed implicitly: callers invoke Relay/ReportClosed directly.
func (w *Watch) Start(ctx context.Context) {
	pollCtx, cancel := context.WithCancel(ctx)
	w.stopPoll = cancel

	go func() {
		ticker := time.NewTicker(w.pollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				p, ok, err := w.slot.Get(pollCtx, w.orderID)
				if err != nil {
					w.logger.Warn("storage slot poll failed",
						zap.String("order_id", w.orderID),
						zap.Error(err))
					continue
				}
				if ok {
					w.deliver(Signal{Payload: p, Source: SourceStorage})
					return
				}
			}
		}
	}()
}

// Relay feeds the cross-window success message into the inbox. Returns
// false when the payload is for another order or the watch is consumed.
func (w *Watch) Relay(p Payload) bool {
	if p.OrderID != w.orderID {
		return false
	}
	return w.deliver(Signal{Payload: p, Source: SourceMessage})
}

// ReportClosed handles the popup-closed report: the slot is checked once
// for a success payload written before the window went away; an empty
// slot means the user cancelled.
func (w *Watch) ReportClosed(ctx context.Context) {
	if w.consumed.Load() {
		return
	}
	p, ok, err := w.slot.Get(ctx, w.orderID)
	if err != nil {
		w.logger.Warn("storage slot check on close failed",
			zap.String("order_id", w.orderID),
			zap.Error(err))
	}
	if ok {
		w.deliver(Signal{Payload: p, Source: SourceClosed})
		return
	}
	w.deliver(Signal{Cancelled: true, Source: SourceClosed})
}

// deliver is the single-consumer guard: the first signal flips consumed
// and tears the poll down; everything after is dropped.
func (w *Watch) deliver(sig Signal) bool {
	if !w.consumed.CompareAndSwap(false, true) {
		metrics.WalletSignalsIgnoredTotal.Inc()
		return false
	}
	if w.stopPoll != nil {
		w.stopPoll()
	}
	w.inbox <- sig
	return true
}

// Consumed reports whether a signal has already won.
func (w *Watch) Consumed() bool {
	return w.consumed.Load()
}

// Wait blocks until a signal wins or the deadline passes. Expiry and
// shutdown go through the same guard, so a real signal that races them
// still wins cleanly. The slot is cleared once a success is consumed.
func (w *Watch) Wait(ctx context.Context, timeout time.Duration) Signal {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var sig Signal
	select {
	case sig = <-w.inbox:
	case <-timer.C:
		w.deliver(Signal{Cancelled: true, Source: SourceTimeout})
		sig = <-w.inbox
	case <-ctx.Done():
		w.deliver(Signal{Cancelled: true, Source: SourceShutdown})
		sig = <-w.inbox
	}

	if !sig.Cancelled {
		clearCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.slot.Clear(clearCtx, w.orderID); err != nil {
			w.logger.Warn("clear storage slot failed",
				zap.String("order_id", w.orderID),
				zap.Error(err))
		}
	}
	return sig
}
