package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

// Publisher publishes dispatch requests to the channel work queue.
type Publisher interface {
	Publish(ctx context.Context, msg DispatchMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message. Returning an error marked
// with Permanent dead-letters the message; any other error requeues it once.
type MessageHandler func(ctx context.Context, msg DispatchMessage) error

// Consumer consumes dispatch messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const queuePrefix = "notify"

// QueueName returns the channel work queue name, e.g. notify.sms.
func QueueName(channel domain.Channel) string {
	return fmt.Sprintf("%s.%s", queuePrefix, channel)
}

// DLQName returns the dead-letter queue name for a channel, e.g. notify.sms.dlq.
func DLQName(channel domain.Channel) string {
	return QueueName(channel) + ".dlq"
}

func WorkQueueNames() []string {
	queues := make([]string, 0, len(domain.Channels))
	for _, channel := range domain.Channels {
		queues = append(queues, QueueName(channel))
	}
	return queues
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that no redelivery can fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
