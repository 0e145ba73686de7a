package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	connectionName   = "tutor-notifier"
	dlxExchangeName  = "notify.dlx"
	dialTimeout      = 15 * time.Second
	heartbeat        = 10 * time.Second
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
)

// RabbitMQ owns the broker connection. The per-channel work queues and their
// dead-letter queues are declared once per connection.
type RabbitMQ struct {
	url string

	mu       sync.RWMutex
	dialMu   sync.Mutex
	conn     *amqp.Connection
	declared bool
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	r := &RabbitMQ{url: url}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if _, err := r.connection(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Ping reports whether the broker connection is open.
func (r *RabbitMQ) Ping() error {
	if r.current() == nil {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.declared = false
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// channel opens an AMQP channel, redialing once if the connection dropped
// between the liveness check and the open.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err == nil {
		return ch, nil
	}

	r.forget(conn)
	if conn, err = r.connection(ctx); err != nil {
		return nil, err
	}
	ch, err = conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel after redial: %w", err)
	}
	return ch, nil
}

// current returns the open connection, or nil.
func (r *RabbitMQ) current() *amqp.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn
}

func (r *RabbitMQ) forget(conn *amqp.Connection) {
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
		r.declared = false
	}
	r.mu.Unlock()
}

// connection returns a live connection with topology declared, dialing with
// exponential backoff until ctx ends.
func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	if conn := r.current(); conn != nil && r.isDeclared() {
		return conn, nil
	}

	r.dialMu.Lock()
	defer r.dialMu.Unlock()

	conn := r.current()
	if conn == nil {
		var err error
		if conn, err = r.dial(ctx); err != nil {
			return nil, err
		}
	}

	if !r.isDeclared() {
		if err := declareTopology(conn); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.declared = true
		r.mu.Unlock()
	}
	return conn, nil
}

func (r *RabbitMQ) isDeclared() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.declared
}

func (r *RabbitMQ) dial(ctx context.Context) (*amqp.Connection, error) {
	cfg := amqp.Config{
		Heartbeat:  heartbeat,
		Properties: amqp.Table{"connection_name": connectionName},
	}

	wait := reconnectBackoff
	for {
		conn, err := amqp.DialConfig(r.url, cfg)
		if err == nil {
			r.mu.Lock()
			r.conn = conn
			r.declared = false
			r.mu.Unlock()

			go r.watch(conn)
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq dial canceled after %v: %w", err, ctx.Err())
		case <-time.After(wait):
		}
		wait = min(wait*2, maxBackoff)
	}
}

// watch drops the cached connection as soon as the broker closes it so the
// next caller redials.
func (r *RabbitMQ) watch(conn *amqp.Connection) {
	<-conn.NotifyClose(make(chan *amqp.Error, 1))
	r.forget(conn)
}

type queueSpec struct {
	name string
	dlq  string
	key  string
}

func topology() []queueSpec {
	specs := make([]queueSpec, 0, len(domain.Channels))
	for _, channel := range domain.Channels {
		specs = append(specs, queueSpec{
			name: QueueName(channel),
			dlq:  DLQName(channel),
			key:  channel.String(),
		})
	}
	return specs
}

func declareTopology(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open topology channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlx exchange: %w", err)
	}

	for _, spec := range topology() {
		if _, err := ch.QueueDeclare(spec.dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dlq %q: %w", spec.dlq, err)
		}
		if err := ch.QueueBind(spec.dlq, spec.key, dlxExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind dlq %q: %w", spec.dlq, err)
		}

		args := amqp.Table{
			"x-dead-letter-exchange":    dlxExchangeName,
			"x-dead-letter-routing-key": spec.key,
		}
		if _, err := ch.QueueDeclare(spec.name, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", spec.name, err)
		}
	}
	return nil
}
