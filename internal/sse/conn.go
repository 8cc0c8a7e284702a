// Package sse streams CRM mutation events to browsers as server-sent events.
package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/events"
)

// Default connection settings.
const (
	DefaultKeepAlive = 30 * time.Second
	DefaultQueueSize = 64
)

// Frame types sent outside the mutation events.
const (
	TypeConnected = "connected"
	TypePing      = "ping"
)

// Sink is the byte stream a connection writes frames to.
type Sink interface {
	Write(p []byte) (int, error)
	Flush() error
}

// Options tunes a connection.
type Options struct {
	KeepAlive time.Duration
	QueueSize int
}

func (o Options) withDefaults() Options {
	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	return o
}

// Conn is one subscriber's stream. It moves from open to closed exactly
// once. Frames are queued by publishers and written in order by Run.
type Conn struct {
	channel  *events.Channel
	resource events.Resource
	sink     Sink
	opts     Options

	queue chan []byte
	done  chan struct{}

	mu     sync.Mutex
	closed bool
	sub    *events.Subscription
	ticker *time.Ticker

	closeOnce sync.Once
}

// NewConn creates a connection for resource r on channel ch.
func NewConn(ch *events.Channel, r events.Resource, sink Sink, opts Options) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		channel:  ch,
		resource: r,
		sink:     sink,
		opts:     opts,
		queue:    make(chan []byte, opts.QueueSize),
		done:     make(chan struct{}),
	}
}

// Open queues the connected frame, registers the mutation listeners and
// arms the keep-alive ticker.
func (c *Conn) Open() {
	c.Enqueue(events.Event{Type: TypeConnected})

	sub := c.channel.Subscribe(func(ev events.Event) { c.Enqueue(ev) }, events.Types(c.resource)...)
	ticker := time.NewTicker(c.opts.KeepAlive)

	c.mu.Lock()
	c.sub = sub
	c.ticker = ticker
	closed := c.closed
	c.mu.Unlock()

	// Close raced with Open.
	if closed {
		sub.Unsubscribe()
		ticker.Stop()
	}
}

// Enqueue marshals v and queues it for writing. It never blocks. It returns
// false when the connection is closed or when the queue is full, in which
// case the connection is closed as a slow consumer.
func (c *Conn) Enqueue(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		zap.L().Debug("sse: marshal frame", zap.Error(err))
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	select {
	case c.queue <- data:
		c.mu.Unlock()
		return true
	default:
		c.mu.Unlock()
	}

	zap.L().Debug("sse: queue full, dropping subscriber",
		zap.String("resource", string(c.resource)))
	c.Close()
	return false
}

// Run writes queued frames until ctx is cancelled, a write fails, or the
// connection is closed. It always leaves the connection closed.
func (c *Conn) Run(ctx context.Context) error {
	defer c.Close()

	c.mu.Lock()
	ticker := c.ticker
	c.mu.Unlock()
	if ticker == nil {
		return eris.New("sse: run before open")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case <-ticker.C:
			c.Enqueue(events.Event{Type: TypePing})
		case data := <-c.queue:
			if err := c.write(data); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) write(data []byte) error {
	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)

	if _, err := c.sink.Write(frame); err != nil {
		return eris.Wrap(err, "sse: write frame")
	}
	if err := c.sink.Flush(); err != nil {
		return eris.Wrap(err, "sse: flush frame")
	}
	return nil
}

// Close releases the connection. Safe to call more than once and from any
// goroutine.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		sub, ticker := c.sub, c.ticker
		c.mu.Unlock()

		if ticker != nil {
			ticker.Stop()
		}
		if sub != nil {
			sub.Unsubscribe()
		}
		close(c.done)
	})
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Closed reports whether Close has run.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
