package notify

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
)

type messageKind int

const (
	kindOTP messageKind = iota
	kindAccountLocked
)

type message struct {
	kind           messageKind
	email          string
	code           string
	expiry         time.Time
	lockoutMinutes int
}

// Sender performs the actual delivery of one message. Implementations may
// block; the dispatcher keeps them off the request path.
type Sender interface {
	SendOTP(ctx context.Context, email, code string, expiry time.Time) error
	SendAccountLocked(ctx context.Context, email string, lockoutMinutes int) error
}

// Dispatcher implements the notifier port as a fixed pool of workers sharded
// by recipient address, so notifications to the same user are delivered in
// order. Enqueueing never blocks: when a shard's buffer is full the message
// is dropped and logged, since delivery is best-effort and must never stall
// or fail a login request.
type Dispatcher struct {
	workers []chan message
	sender  Sender
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sender Sender, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan message, numWorkers),
		sender:  sender,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan message, channelBuffer)
	}
	return d
}

// Start launches the worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// SendOTP queues delivery of a login passcode.
func (d *Dispatcher) SendOTP(_ context.Context, email, code string, expiry time.Time) {
	d.enqueue(message{kind: kindOTP, email: email, code: code, expiry: expiry})
}

// SendAccountLocked queues a lockout notification.
func (d *Dispatcher) SendAccountLocked(_ context.Context, email string, lockoutMinutes int) {
	d.enqueue(message{kind: kindAccountLocked, email: email, lockoutMinutes: lockoutMinutes})
}

func (d *Dispatcher) enqueue(m message) {
	select {
	case d.workers[d.shardIndex(m.email)] <- m:
	default:
		d.log.Error().Str("email", m.email).Msg("notification queue full, message dropped")
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			d.deliver(ctx, id, m)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, workerID int, m message) {
	var err error
	switch m.kind {
	case kindOTP:
		err = d.sender.SendOTP(ctx, m.email, m.code, m.expiry)
	case kindAccountLocked:
		err = d.sender.SendAccountLocked(ctx, m.email, m.lockoutMinutes)
	}
	if err != nil {
		// Best-effort: the state transition already committed.
		d.log.Error().Err(err).
			Str("email", m.email).
			Int("worker_id", workerID).
			Msg("notification delivery failed")
		return
	}
	d.log.Info().Str("email", m.email).Msg("notification delivered")
}
