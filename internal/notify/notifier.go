// Package notify delivers best-effort email notifications off the
// recognition path.
package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"attendance/internal/logger"
)

// DefaultQueueSize is used when a non-positive size is configured.
const DefaultQueueSize = 64

// Attachment is a file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one notification to one recipient.
type Message struct {
	Recipient  string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Gateway delivers a message. Implementations bound their own timeouts.
type Gateway interface {
	Notify(ctx context.Context, msg Message) error
}

// Stats counts notifier activity since start.
type Stats struct {
	Enqueued uint64
	Dropped  uint64
	Sent     uint64
	Failed   uint64
}

// Notifier consumes a bounded queue on a single goroutine. Each message is
// attempted once; failures are logged and discarded.
type Notifier struct {
	gateway Gateway
	queue   chan Message
	logger  *logger.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	start  sync.Once
	stop   sync.Once

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	sent     atomic.Uint64
	failed   atomic.Uint64
}

// NewNotifier creates a notifier. Call Start to begin delivery.
func NewNotifier(gateway Gateway, size int, logger *logger.Logger) *Notifier {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Notifier{
		gateway: gateway,
		queue:   make(chan Message, size),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (n *Notifier) Start() {
	n.start.Do(func() {
		go n.run()
	})
}

// Enqueue places msg on the queue without blocking. It reports false when the
// queue is full or the notifier is stopped.
func (n *Notifier) Enqueue(msg Message) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.dropped.Add(1)
		n.logger.Warning("Notifier stopped, dropping %q to %s", msg.Subject, msg.Recipient)
		return false
	}

	select {
	case n.queue <- msg:
		n.enqueued.Add(1)
		return true
	default:
		n.dropped.Add(1)
		n.logger.Warning("Notification queue full, dropping %q to %s", msg.Subject, msg.Recipient)
		return false
	}
}

// Stop closes the queue and waits for queued messages to be attempted, or
// for ctx to end.
func (n *Notifier) Stop(ctx context.Context) error {
	n.stop.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
		// A notifier that was never started still drains.
		n.Start()
	})

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (n *Notifier) Stats() Stats {
	return Stats{
		Enqueued: n.enqueued.Load(),
		Dropped:  n.dropped.Load(),
		Sent:     n.sent.Load(),
		Failed:   n.failed.Load(),
	}
}

func (n *Notifier) run() {
	defer close(n.done)

	for msg := range n.queue {
		if err := n.gateway.Notify(context.Background(), msg); err != nil {
			n.failed.Add(1)
			n.logger.Error("Failed to send %q to %s: %v", msg.Subject, msg.Recipient, err)
			continue
		}
		n.sent.Add(1)
		n.logger.Info("Email sent successfully to %s", msg.Recipient)
	}
}
