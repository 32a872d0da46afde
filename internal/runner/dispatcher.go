package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDispatcherClosed = errors.New("dispatcher closed")
	ErrDispatcherBusy   = errors.New("dispatcher queue is full")
)

const dispatcherQueue = 256

// Task получает корневой контекст диспетчера.
type Task func(ctx context.Context) error

// Dispatcher исполняет фоновую работу (вотчеры, проверки тренда) в одном errgroup.
// Сабмит не блокируется; после остановки принятые задачи всё равно выполняются
// с отменённым контекстом, чтобы вотчеры успели закрыть позиции.
type Dispatcher struct {
	log   *zap.Logger
	queue chan Task

	mu     sync.RWMutex
	closed bool

	done chan struct{}
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		log:   log.Named("dispatcher"),
		queue: make(chan Task, dispatcherQueue),
		done:  make(chan struct{}),
	}
}

// Go ставит задачу в очередь.
func (d *Dispatcher) Go(fn Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- fn:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

// Call выполняет fn на диспетчере и ждёт результат. Отмена ctx вызывающего
// отменяет и саму задачу.
func (d *Dispatcher) Call(ctx context.Context, fn Task) error {
	res := make(chan error, 1)
	err := d.Go(func(root context.Context) (err error) {
		jobCtx, cancel := context.WithCancel(root)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panic: %v", r)
			}
			res <- err
		}()
		return fn(jobCtx)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run крутит очередь до отмены ctx, потом дожидается всех задач.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)

	var g errgroup.Group
	for {
		select {
		case fn := <-d.queue:
			d.spawn(ctx, &g, fn)
		case <-ctx.Done():
			d.mu.Lock()
			d.closed = true
			d.mu.Unlock()

			for drained := false; !drained; {
				select {
				case fn := <-d.queue:
					d.spawn(ctx, &g, fn)
				default:
					drained = true
				}
			}
			d.log.Info("dispatcher stopping, waiting for tasks")
			return g.Wait()
		}
	}
}

// Done закрывается, когда Run вернулся.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

func (d *Dispatcher) spawn(ctx context.Context, g *errgroup.Group, fn Task) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("task panic",
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = nil
			}
		}()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Warn("task failed", zap.Error(fmt.Errorf("dispatch: %w", err)))
		}
		return nil
	})
}
