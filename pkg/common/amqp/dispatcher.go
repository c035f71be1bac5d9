package amqp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"shopcore/pkg/common/domain"
)

const (
	dialAttempts   = 5
	publishTimeout = 5 * time.Second
)

// Dispatcher publishes domain events to a topic exchange, routing key equal
// to the event type. Delivery is fire-and-forget; callers log and move on
// when Dispatch fails.
type Dispatcher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewDispatcher(url, exchange string) (*Dispatcher, error) {
	var conn *amqp.Connection
	dial := func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	if err := backoff.Retry(dial, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), dialAttempts)); err != nil {
		return nil, errors.Wrap(err, "dial amqp broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open amqp channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "declare exchange")
	}

	return &Dispatcher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (d *Dispatcher) Dispatch(event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = d.ch.PublishWithContext(ctx, d.exchange, event.Type(), false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	return errors.Wrapf(err, "publish %s", event.Type())
}

// ClearCart tells the cart collaborator to empty a user's cart after a
// committed checkout. Best-effort, like event dispatch.
func (d *Dispatcher) ClearCart(ctx context.Context, userID string) error {
	body, err := json.Marshal(map[string]string{"userID": userID})
	if err != nil {
		return errors.Wrap(err, "marshal cart clear message")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = d.ch.PublishWithContext(ctx, d.exchange, "cart:clear", false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	return errors.Wrap(err, "publish cart:clear")
}

func (d *Dispatcher) Close() error {
	if err := d.ch.Close(); err != nil {
		return errors.Wrap(err, "close amqp channel")
	}
	return errors.Wrap(d.conn.Close(), "close amqp connection")
}
