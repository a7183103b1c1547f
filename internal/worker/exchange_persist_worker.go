package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"contaixt-gateway/internal/model"
	"contaixt-gateway/internal/platform/logger"
)

type ExchangeStore interface {
	Create(ctx context.Context, exchange *model.ChatExchange) error
}

// ExchangePersistWorker drains the audit queue into the exchange store.
type ExchangePersistWorker struct {
	conn      *amqp.Connection
	store     ExchangeStore
	queueName string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewExchangePersistWorker(conn *amqp.Connection, store ExchangeStore, queueName string, log *logger.Logger) *ExchangePersistWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &ExchangePersistWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		log:       log.With("component", "exchange_persist_worker", "queue", queueName),
	}
}

func (w *ExchangePersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("delivery channel closed")
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					w.log.Error("persist exchange failed", "error", err, "message_id", d.MessageId)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.log.Info("worker started")
	return nil
}

func (w *ExchangePersistWorker) handle(ctx context.Context, body []byte) error {
	var exchange model.ChatExchange
	if err := json.Unmarshal(body, &exchange); err != nil {
		return fmt.Errorf("decode exchange failed: %w", err)
	}
	if exchange.RequestID == "" {
		return errors.New("decode exchange failed: missing request_id")
	}
	// the store assigns its own primary key
	exchange.ID = 0
	return w.store.Create(ctx, &exchange)
}

func (w *ExchangePersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
