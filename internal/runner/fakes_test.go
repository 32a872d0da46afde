package runner

import (
	"context"
	"fmt"
	"sync"

	"divergence_bot/internal/models"
)

type fakeRecorder struct {
	mu   sync.Mutex
	recs []models.TradeRecord
}

func (f *fakeRecorder) Append(rec models.TradeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
}

func (f *fakeRecorder) records() []models.TradeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TradeRecord(nil), f.recs...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Send(_ context.Context, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeNotifier) Sendf(ctx context.Context, format string, args ...any) {
	f.Send(ctx, fmt.Sprintf(format, args...))
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

// fakeTicks: лента цен, которой управляет тест.
type fakeTicks struct {
	mu        sync.Mutex
	streams   map[string]chan models.Tick
	lastPrice float64
	lastErr   error
	subErr    error
}

func newFakeTicks() *fakeTicks {
	return &fakeTicks{streams: make(map[string]chan models.Tick)}
}

func (f *fakeTicks) stream(symbol string) chan models.Tick {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.streams[symbol]
	if !ok {
		ch = make(chan models.Tick)
		f.streams[symbol] = ch
	}
	return ch
}

func (f *fakeTicks) SubscribeTicks(_ context.Context, symbol string) (<-chan models.Tick, error) {
	f.mu.Lock()
	err := f.subErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.stream(symbol), nil
}

func (f *fakeTicks) LastPrice(_ context.Context, _ string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrice, f.lastErr
}
