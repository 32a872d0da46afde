package service

import (
	"math"
	"sync/atomic"
	"time"
)

// State: то, что отдают /readyz и /healthz. Пишет раннер, читают хендлеры.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastScanUnix  atomic.Int64 // unix seconds
	openPositions atomic.Int64
	balanceBits   atomic.Uint64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) TouchScan(t time.Time) { s.lastScanUnix.Store(t.Unix()) }
func (s *State) LastScan() time.Time {
	u := s.lastScanUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) SetPortfolio(open int, balance float64) {
	s.openPositions.Store(int64(open))
	s.balanceBits.Store(math.Float64bits(balance))
}

func (s *State) OpenPositions() int { return int(s.openPositions.Load()) }
func (s *State) Balance() float64   { return math.Float64frombits(s.balanceBits.Load()) }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
