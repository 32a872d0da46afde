package runner

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"divergence_bot/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Recorder принимает запись о закрытой сделке. Вызывается под мьютексом леджера,
// поэтому Append не должен ходить в сеть/диск, только ставить в очередь.
type Recorder interface {
	Append(rec models.TradeRecord)
}

// Reservation: занятый слот (PENDING) до FinalizeOpen.
type Reservation struct {
	symbol string
	id     string
}

func (r *Reservation) Symbol() string { return r.symbol }
func (r *Reservation) ID() string     { return r.id }

type OpenParams struct {
	EntryPrice      float64
	EntryTime       time.Time
	Size            float64
	StopPrice       float64
	TakeProfitPrice float64
	TrailingEnabled bool
	ATR             float64
	CommissionRate  float64
	Analytics       models.Analytics
}

// Progress: поля, которые пишет только вотчер позиции.
type Progress struct {
	Status          models.PositionStatus
	StopPrice       float64
	TakeProfitPrice float64
	HighestPrice    float64
}

type Snapshot struct {
	Positions []models.Position
	Count     int
	Balance   float64
}

type entry struct {
	pos  models.Position
	rate decimal.Decimal
}

// Ledger: реестр открытых позиций, слоты и баланс под одним мьютексом.
// Мьютекс не держим во время сети и долгой работы.
type Ledger struct {
	mu        sync.Mutex
	positions map[string]*entry
	balance   decimal.Decimal

	rec Recorder
	log *zap.Logger
	now func() time.Time
}

func NewLedger(balance float64, rec Recorder, log *zap.Logger) *Ledger {
	return &Ledger{
		positions: make(map[string]*entry),
		balance:   decimal.NewFromFloat(balance),
		rec:       rec,
		log:       log.Named("ledger"),
		now:       time.Now,
	}
}

// TryOpen занимает слот под symbol. ErrSlotUnavailable: символ уже открыт или слоты кончились.
func (l *Ledger) TryOpen(symbol string, maxPositions int) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[symbol]; ok {
		return nil, fmt.Errorf("%s already open: %w", symbol, models.ErrSlotUnavailable)
	}
	if len(l.positions) >= maxPositions {
		return nil, fmt.Errorf("%d/%d slots used: %w", len(l.positions), maxPositions, models.ErrSlotUnavailable)
	}

	res := &Reservation{symbol: symbol, id: uuid.NewString()}
	l.positions[symbol] = &entry{pos: models.Position{
		ID:     res.id,
		Symbol: symbol,
		Status: models.StatusPending,
	}}
	return res, nil
}

// FinalizeOpen переводит PENDING в ARMED. До этого вотчер не стартует.
func (l *Ledger) FinalizeOpen(res *Reservation, p OpenParams) (models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.lookup(res)
	if err != nil {
		return models.Position{}, err
	}
	if e.pos.Status != models.StatusPending {
		return models.Position{}, fmt.Errorf("finalize %s: status %s", res.symbol, e.pos.Status)
	}

	e.pos.EntryPrice = p.EntryPrice
	e.pos.EntryTime = p.EntryTime
	e.pos.Size = p.Size
	e.pos.StopPrice = p.StopPrice
	e.pos.TakeProfitPrice = p.TakeProfitPrice
	e.pos.HighestPrice = p.EntryPrice
	e.pos.TrailingEnabled = p.TrailingEnabled
	e.pos.ATR = p.ATR
	e.pos.Analytics = p.Analytics.Clone()
	e.pos.Status = models.StatusArmed
	e.rate = decimal.NewFromFloat(p.CommissionRate)

	return e.pos.Clone(), nil
}

// Release освобождает слот без записи в журнал: подтверждение не прошло или вотчер не запустился.
func (l *Ledger) Release(res *Reservation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.lookup(res); err != nil {
		return false
	}
	delete(l.positions, res.symbol)
	return true
}

// Track публикует состояние вотчера. Статус назад не откатывается, стоп в TRAILING не опускается.
func (l *Ledger) Track(symbol string, p Progress) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.positions[symbol]
	if !ok {
		return fmt.Errorf("track %s: %w", symbol, models.ErrPositionNotFound)
	}
	if p.Status.Rank() < e.pos.Status.Rank() || p.Status == models.StatusClosed {
		return fmt.Errorf("track %s: bad transition %s -> %s", symbol, e.pos.Status, p.Status)
	}
	if e.pos.Status == models.StatusTrailing && p.StopPrice < e.pos.StopPrice {
		return fmt.Errorf("track %s: stop lowered %.8f -> %.8f", symbol, e.pos.StopPrice, p.StopPrice)
	}

	e.pos.Status = p.Status
	e.pos.StopPrice = p.StopPrice
	e.pos.TakeProfitPrice = p.TakeProfitPrice
	e.pos.HighestPrice = p.HighestPrice
	return nil
}

// Close: удаление позиции, PnL, баланс и запись в журнал за один заход под мьютексом.
func (l *Ledger) Close(symbol string, exitPrice float64, reason models.CloseReason) (models.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.positions[symbol]
	if !ok {
		return models.TradeRecord{}, fmt.Errorf("close %s: %w", symbol, models.ErrPositionNotFound)
	}
	if e.pos.Status == models.StatusPending {
		return models.TradeRecord{}, fmt.Errorf("close %s: position is not finalized", symbol)
	}

	r := Realize(
		decimal.NewFromFloat(e.pos.EntryPrice),
		decimal.NewFromFloat(exitPrice),
		decimal.NewFromFloat(e.pos.Size),
		e.rate,
	)
	l.balance = r.Apply(l.balance)
	delete(l.positions, symbol)

	rec := models.TradeRecord{
		ID:            e.pos.ID,
		Token:         symbol,
		PurchaseTime:  e.pos.EntryTime,
		SaleTime:      l.now(),
		PurchasePrice: e.pos.EntryPrice,
		SalePrice:     exitPrice,
		Result:        reason,
		Size:          e.pos.Size,
		NetPnL:        r.NetPnL.InexactFloat64(),
		Commission:    r.Commission.InexactFloat64(),
		BalanceAfter:  l.balance.InexactFloat64(),
		Analytics:     e.pos.Analytics,
	}
	if l.rec != nil {
		l.rec.Append(rec)
	}

	l.log.Info("position closed",
		zap.String("symbol", symbol),
		zap.String("reason", string(reason)),
		zap.Float64("exit", exitPrice),
		zap.String("net_pnl", r.NetPnL.StringFixed(4)),
		zap.String("balance", l.balance.StringFixed(2)),
	)
	return rec, nil
}

// Snapshot: копия открытых позиций по времени входа.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := Snapshot{
		Positions: make([]models.Position, 0, len(l.positions)),
		Count:     len(l.positions),
		Balance:   l.balance.InexactFloat64(),
	}
	for _, e := range l.positions {
		out.Positions = append(out.Positions, e.pos.Clone())
	}
	sort.Slice(out.Positions, func(i, j int) bool {
		a, b := out.Positions[i], out.Positions[j]
		if !a.EntryTime.Equal(b.EntryTime) {
			return a.EntryTime.Before(b.EntryTime)
		}
		return a.Symbol < b.Symbol
	})
	return out
}

func (l *Ledger) Has(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.positions[symbol]
	return ok
}

func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions)
}

func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

func (l *Ledger) lookup(res *Reservation) (*entry, error) {
	if res == nil {
		return nil, fmt.Errorf("nil reservation: %w", models.ErrPositionNotFound)
	}
	e, ok := l.positions[res.symbol]
	if !ok || e.pos.ID != res.id {
		return nil, fmt.Errorf("reservation %s: %w", res.symbol, models.ErrPositionNotFound)
	}
	return e, nil
}
