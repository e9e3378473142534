package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cyberinferno/wordduel/logger"
	"github.com/cyberinferno/wordduel/metrics"
)

// IntakeBuffer is the capacity of the dispatcher's intake channel.
const IntakeBuffer = 256

// ErrStopped is returned by Post once the dispatcher has been stopped.
var ErrStopped = errors.New("dispatcher stopped")

// Dispatcher moves posted envelopes onto the bus from a single goroutine, so
// sessions never block on fan-out and never publish concurrently.
type Dispatcher struct {
	Logger  logger.Logger
	Bus     *Bus
	Running atomic.Bool

	intake   chan Envelope
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDispatcher creates a stopped dispatcher that publishes to bus.
//
// Parameters:
//   - bus: The bus to fan envelopes out on
//   - log: Logger for lifecycle and prune events
//
// Returns:
//   - The new Dispatcher; call Start to begin draining
func NewDispatcher(bus *Bus, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		Logger: log,
		Bus:    bus,
		intake: make(chan Envelope, IntakeBuffer),
		done:   make(chan struct{}),
	}
}

// Start launches the drain goroutine. It is safe to call only when the
// dispatcher is not already running.
//
// Returns:
//   - An error if the dispatcher is already running
func (d *Dispatcher) Start() error {
	if d.Running.Load() {
		d.Logger.Error("dispatcher already running")
		return errors.New("dispatcher already running")
	}

	d.Running.Store(true)
	d.wg.Add(1)
	go d.run()

	d.Logger.Info("dispatcher started")
	return nil
}

// Stop stops the dispatcher. Envelopes already posted are still published
// before the drain goroutine exits; Post fails with ErrStopped afterwards.
// Safe to call when the dispatcher is not running, and safe to call twice.
func (d *Dispatcher) Stop() {
	if !d.Running.Load() {
		return
	}

	d.Running.Store(false)
	d.stopOnce.Do(func() { close(d.done) })
	d.wg.Wait()

	d.Logger.Info("dispatcher stopped")
}

// Post queues an envelope for fan-out.
//
// Parameters:
//   - env: The envelope to publish
//
// Returns:
//   - ErrStopped when the dispatcher has been stopped
func (d *Dispatcher) Post(env Envelope) error {
	select {
	case <-d.done:
		return ErrStopped
	default:
	}

	select {
	case d.intake <- env:
		return nil
	case <-d.done:
		return ErrStopped
	}
}

// run drains the intake channel until Stop, then flushes whatever is left.
func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case env := <-d.intake:
			d.publish(env)
		case <-d.done:
			for {
				select {
				case env := <-d.intake:
					d.publish(env)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) publish(env Envelope) {
	delivered, pruned := d.Bus.Publish(env)
	metrics.EnvelopesPublished.Inc()

	if pruned > 0 {
		metrics.SubscribersPruned.Add(float64(pruned))
		d.Logger.Warn("pruned slow subscribers",
			logger.Field{Key: "pruned", Value: pruned},
			logger.Field{Key: "delivered", Value: delivered},
			logger.Field{Key: "recipient", Value: env.RecipientID})
	}
}
