package signals

import (
	"context"
	"course_gating_backend/pkg/logger"
	"course_gating_backend/pkg/monitoring"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Receiver func(ctx context.Context, evt Event) error

type namedReceiver struct {
	name string
	fn   Receiver
}

// Result is the outcome of one receiver for one Send.
type Result struct {
	Receiver string
	Err      error
}

type Dispatcher struct {
	mu        sync.RWMutex
	receivers map[Signal][]namedReceiver
	log       *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		receivers: make(map[Signal][]namedReceiver),
		log:       logger.Named(log, "signals"),
	}
}

// Connect registers fn under name; connecting the same name twice replaces the receiver.
func (d *Dispatcher) Connect(sig Signal, name string, fn Receiver) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.receivers[sig]
	for i := range list {
		if list[i].name == name {
			list[i].fn = fn
			return
		}
	}
	d.receivers[sig] = append(list, namedReceiver{name: name, fn: fn})
}

func (d *Dispatcher) Disconnect(sig Signal, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.receivers[sig]
	for i := range list {
		if list[i].name == name {
			d.receivers[sig] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Dispatcher) HasReceivers(sig Signal) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.receivers[sig]) > 0
}

// Send calls every receiver of sig in registration order. A failing or panicking
// receiver is logged and does not stop the remaining ones.
func (d *Dispatcher) Send(ctx context.Context, sig Signal, payload interface{}) []Result {
	d.mu.RLock()
	list := make([]namedReceiver, len(d.receivers[sig]))
	copy(list, d.receivers[sig])
	d.mu.RUnlock()

	monitoring.SignalsSent.WithLabelValues(string(sig)).Inc()

	evt := Event{
		ID:      uuid.NewString(),
		Signal:  sig,
		SentAt:  time.Now(),
		Payload: payload,
	}

	results := make([]Result, 0, len(list))
	for _, r := range list {
		err := d.call(ctx, r, evt)
		if err != nil {
			d.log.Error("signal receiver failed",
				zap.String("signal", string(sig)),
				zap.String("receiver", r.name),
				zap.Error(err))
		}
		results = append(results, Result{Receiver: r.name, Err: err})
	}
	return results
}

func (d *Dispatcher) call(ctx context.Context, r namedReceiver, evt Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("receiver panic: %v", p)
		}
	}()
	return r.fn(ctx, evt)
}
