/*
Package rabbitmq implements rpc.Bus on an AMQP 0-9-1 topic exchange.

Subjects are used as routing keys. Subscription patterns translate the full
wildcard ">" into the AMQP "#"; "*" has the same meaning in both. Every
subscription consumes from its own exclusive, auto-deleted queue bound to
the exchange, and reply subjects travel in the AMQP reply-to property.
*/
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kbirk/protonats/pkg/rpc"
)

const (
	DefaultExchange = "protonats"
	exchangeType    = "topic"
	contentType     = "application/octet-stream"
)

type Config struct {
	URL         string
	Exchange    string
	Name        string
	ConnTimeout time.Duration
}

type Bus struct {
	conf     Config
	exchange string
	conn     *amqp.Connection
	pubMu    *sync.Mutex
	pub      *amqp.Channel
}

// Connect dials the broker and declares the exchange.
func Connect(conf Config) (*Bus, error) {
	if conf.URL == "" {
		return nil, errors.New("rabbitmq url required")
	}
	exchange := conf.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	timeout := conf.ConnTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	product := conf.Name
	if product == "" {
		product = "protonats"
	}

	conn, err := amqp.DialConfig(conf.URL, amqp.Config{
		Locale:     "en_US",
		Properties: amqp.Table{"product": product},
		Dial:       amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := pub.ExchangeDeclare(exchange, exchangeType, true, false, false, false, nil); err != nil {
		_ = pub.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &Bus{
		conf:     conf,
		exchange: exchange,
		conn:     conn,
		pubMu:    &sync.Mutex{},
		pub:      pub,
	}, nil
}

// RoutingPattern translates a subject pattern into an AMQP binding key.
func RoutingPattern(subject string) string {
	tokens := strings.Split(subject, rpc.SubjectDelimiter)
	if tokens[len(tokens)-1] == ">" {
		tokens[len(tokens)-1] = "#"
	}
	return strings.Join(tokens, rpc.SubjectDelimiter)
}

func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	return b.PublishWithReply(ctx, subject, "", data)
}

func (b *Bus) PublishWithReply(ctx context.Context, subject string, reply string, data []byte) error {
	if b.conn.IsClosed() {
		return rpc.ErrBusClosed
	}
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	return b.pub.PublishWithContext(ctx, b.exchange, subject, false, false, amqp.Publishing{
		ContentType: contentType,
		ReplyTo:     reply,
		Body:        data,
	})
}

// Request publishes as mandatory on a dedicated channel so a message that
// no queue is bound for comes back as rpc.ErrNoResponders.
func (b *Bus) Request(ctx context.Context, subject string, data []byte) (*rpc.Msg, error) {
	inbox := b.NewInbox()
	sub, err := b.Subscribe(ctx, inbox)
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, b.channelError(err)
	}
	defer ch.Close()

	returns := ch.NotifyReturn(make(chan amqp.Return, 1))

	err = ch.PublishWithContext(ctx, b.exchange, subject, true, false, amqp.Publishing{
		ContentType: contentType,
		ReplyTo:     inbox,
		Body:        data,
	})
	if err != nil {
		return nil, err
	}

	replies := make(chan *rpc.Msg, 1)
	errs := make(chan error, 1)
	go func() {
		msg, err := sub.Next(ctx)
		if err != nil {
			errs <- err
			return
		}
		replies <- msg
	}()

	select {
	case <-returns:
		return nil, rpc.ErrNoResponders
	case msg := <-replies:
		return msg, nil
	case err := <-errs:
		return nil, err
	}
}

func (b *Bus) Subscribe(ctx context.Context, subject string) (rpc.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, b.channelError(err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, RoutingPattern(subject), b.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to bind %s: %w", subject, err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to consume %s: %w", subject, err)
	}

	return &subscription{
		ch:         ch,
		deliveries: deliveries,
	}, nil
}

func (b *Bus) NewInbox() string {
	return rpc.NewInboxSubject()
}

func (b *Bus) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	return b.conn.Close()
}

func (b *Bus) channelError(err error) error {
	if b.conn.IsClosed() {
		return fmt.Errorf("%w: %w", rpc.ErrBusClosed, err)
	}
	return err
}

type subscription struct {
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	once       sync.Once
}

func (s *subscription) Next(ctx context.Context) (*rpc.Msg, error) {
	select {
	case d, ok := <-s.deliveries:
		if !ok {
			return nil, rpc.ErrSubscriptionClosed
		}
		return &rpc.Msg{
			Subject: d.RoutingKey,
			Reply:   d.ReplyTo,
			Data:    d.Body,
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		// closing the channel cancels the consumer and deletes the
		// auto-delete queue
		err = s.ch.Close()
		if errors.Is(err, amqp.ErrClosed) {
			err = nil
		}
	})
	return err
}
