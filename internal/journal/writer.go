package journal

import (
	"context"
	"sync"
	"time"

	"divergence_bot/internal/models"

	"go.uber.org/zap"
)

const sinkTimeout = 10 * time.Second

// Writer: асинхронный журнал. Append только кладёт запись в очередь и не блокируется,
// одна горутина пишет записи по порядку во все sinks. Ошибки sinks уходят в лог.
type Writer struct {
	sinks []Sink
	log   *zap.Logger

	mu      sync.Mutex
	queue   []models.TradeRecord
	closed  bool
	wake    chan struct{}
	stopped chan struct{}

	startOnce sync.Once
	done      chan struct{}
}

func NewWriter(log *zap.Logger, sinks ...Sink) *Writer {
	return &Writer{
		sinks:   sinks,
		log:     log.Named("journal"),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (w *Writer) Append(rec models.TradeRecord) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.log.Error("journal closed, trade not recorded", zap.String("token", rec.Token), zap.String("id", rec.ID))
		return
	}
	w.queue = append(w.queue, rec)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Writer) Start() {
	w.startOnce.Do(func() {
		go w.loop()
	})
}

// Close дописывает очередь и закрывает sinks.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	already := w.closed
	w.closed = true
	w.mu.Unlock()
	if !already {
		close(w.stopped)
	}

	w.Start()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer close(w.done)
	defer func() {
		for _, s := range w.sinks {
			if err := s.Close(); err != nil {
				w.log.Warn("close sink", zap.String("sink", s.Name()), zap.Error(err))
			}
		}
	}()

	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.stopped:
			w.flush()
			return
		}
	}
}

func (w *Writer) flush() {
	w.mu.Lock()
	batch := w.queue
	w.queue = nil
	w.mu.Unlock()

	for _, rec := range batch {
		for _, s := range w.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			err := s.Write(ctx, rec)
			cancel()
			if err != nil {
				w.log.Error("journal write failed",
					zap.String("sink", s.Name()),
					zap.String("token", rec.Token),
					zap.Error(err),
				)
			}
		}
		w.log.Info("trade recorded", zap.String("token", rec.Token), zap.String("result", string(rec.Result)))
	}
}
