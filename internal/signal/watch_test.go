package signal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySlot struct {
	mu    sync.Mutex
	slots map[string]Payload
}

func newMemorySlot() *memorySlot {
	return &memorySlot{slots: make(map[string]Payload)}
}

func (m *memorySlot) Put(_ context.Context, orderID string, p Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[orderID] = p
	return nil
}

func (m *memorySlot) Get(_ context.Context, orderID string) (Payload, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.slots[orderID]
	return p, ok, nil
}

func (m *memorySlot) Clear(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, orderID)
	return nil
}

func TestRelayWinsAndIsConsumedOnce(t *testing.T) {
	slot := newMemorySlot()
	w := NewWatch("X", slot, 10*time.Millisecond)
	w.Start(context.Background())

	delivered := w.Relay(Payload{OrderID: "X", PayerID: "P1"})
	assert.True(t, delivered)

	sig := w.Wait(context.Background(), time.Second)
	assert.False(t, sig.Cancelled)
	assert.Equal(t, "X", sig.Payload.OrderID)
	assert.Equal(t, SourceMessage, sig.Source)
}

func TestRelayRejectsForeignOrder(t *testing.T) {
	w := NewWatch("X", newMemorySlot(), 10*time.Millisecond)

	assert.False(t, w.Relay(Payload{OrderID: "Y"}))
	assert.False(t, w.Consumed())
}

func TestConcurrentSignalsDeliverExactlyOnce(t *testing.T) {
	slot := newMemorySlot()
	require.NoError(t, slot.Put(context.Background(), "X", Payload{OrderID: "X", PayerID: "P1"}))

	w := NewWatch("X", slot, time.Hour) // poll disarmed; race the other two

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.Relay(Payload{OrderID: "X", PayerID: "P1"})
	}()
	go func() {
		defer wg.Done()
		w.ReportClosed(context.Background())
	}()
	wg.Wait()

	sig := w.Wait(context.Background(), time.Second)
	assert.False(t, sig.Cancelled)
	assert.Equal(t, "X", sig.Payload.OrderID)

	// Inbox must hold exactly the one winning signal.
	select {
	case extra := <-w.inbox:
		t.Fatalf("second signal delivered: %+v", extra)
	default:
	}
}

func TestStoragePollRecoversMissedMessage(t *testing.T) {
	slot := newMemorySlot()
	w := NewWatch("X", slot, 5*time.Millisecond)
	w.Start(context.Background())

	// Payload lands after the watch is armed, with no relayed message.
	require.NoError(t, slot.Put(context.Background(), "X", Payload{OrderID: "X"}))

	sig := w.Wait(context.Background(), time.Second)
	assert.False(t, sig.Cancelled)
	assert.Equal(t, SourceStorage, sig.Source)

	// Slot is cleared once consumed.
	_, ok, err := slot.Get(context.Background(), "X")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClosedWithoutPayloadCancels(t *testing.T) {
	w := NewWatch("X", newMemorySlot(), time.Hour)

	w.ReportClosed(context.Background())

	sig := w.Wait(context.Background(), time.Second)
	assert.True(t, sig.Cancelled)
	assert.Equal(t, SourceClosed, sig.Source)
}

func TestClosedReportAfterConsumedIsNoOp(t *testing.T) {
	slot := newMemorySlot()
	w := NewWatch("X", slot, time.Hour)

	require.True(t, w.Relay(Payload{OrderID: "X"}))
	sig := w.Wait(context.Background(), time.Second)
	require.False(t, sig.Cancelled)

	// Popup-closed poll fires late: no further transition, no new signal.
	w.ReportClosed(context.Background())
	select {
	case extra := <-w.inbox:
		t.Fatalf("late closed report delivered a signal: %+v", extra)
	default:
	}
}

func TestWaitTimesOut(t *testing.T) {
	w := NewWatch("X", newMemorySlot(), time.Hour)
	w.Start(context.Background())

	sig := w.Wait(context.Background(), 10*time.Millisecond)
	assert.True(t, sig.Cancelled)
	assert.Equal(t, SourceTimeout, sig.Source)

	// Late relay after expiry is dropped.
	assert.False(t, w.Relay(Payload{OrderID: "X"}))
}
