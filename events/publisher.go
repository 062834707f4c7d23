package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ValeryMukhin1712/tournaments-sub001/services"
	"github.com/streadway/amqp"
)

const (
	exchangeName         = "tournament.events"
	routingKeyCompleted  = "match.completed"
	connectionHeartbeat  = 10 * time.Second
	connectionDialWindow = 5 * time.Second
)

// Publisher публикует события завершения матчей во внешнюю шину для
// коллабораторов (табло, телеграм-бот, внешние таблицы). Публикация
// идёт после коммита и не влияет на судьбу подачи.
type Publisher struct {
	url     string
	logger  *slog.Logger
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewPublisher(url string, logger *slog.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// ensureChannel лениво устанавливает соединение и объявляет exchange.
// При обрыве соединение сбрасывается и пересоздаётся на следующей публикации.
func (p *Publisher) ensureChannel() (*amqp.Channel, error) {
	if p.channel != nil && p.conn != nil && !p.conn.IsClosed() {
		return p.channel, nil
	}

	config := amqp.Config{
		Heartbeat: connectionHeartbeat,
		Dial:      amqp.DefaultDial(connectionDialWindow),
	}
	conn, err := amqp.DialConfig(p.url, config)
	if err != nil {
		return nil, fmt.Errorf("failed to dial AMQP broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchangeName, err)
	}

	p.conn = conn
	p.channel = channel
	p.logger.Info("AMQP publisher connected", slog.String("exchange", exchangeName))
	return channel, nil
}

// NotifyMatchCompleted реализует services.CompletionNotifier.
func (p *Publisher) NotifyMatchCompleted(ctx context.Context, event services.MatchCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal match completed event: %w", err)
	}

	channel, err := p.ensureChannel()
	if err != nil {
		return err
	}

	err = channel.Publish(exchangeName, routingKeyCompleted, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		// Сбрасываем соединение: следующая публикация переподключится.
		p.reset()
		return fmt.Errorf("failed to publish %s: %w", routingKeyCompleted, err)
	}
	return nil
}

func (p *Publisher) reset() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
