// Package events publishes order lifecycle messages for downstream
// fulfilment.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const TypeOrderPaid = "order.paid"

type OrderPaid struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"orderId"`
	ClientID   string             `json:"clientId"`
	Items      []models.OrderItem `json:"items"`
	Total      int64              `json:"total"`
	PaidAmount decimal.Decimal    `json:"paidAmount"`
	Delivery   models.Delivery    `json:"delivery"`
	CapturedAt time.Time          `json:"capturedAt"`
}

func NewOrderPaid(o *models.Order) OrderPaid {
	ev := OrderPaid{
		Type:       TypeOrderPaid,
		OrderID:    o.ID,
		ClientID:   o.ClientID,
		Items:      o.Items,
		Total:      o.Total,
		PaidAmount: o.PaidAmount,
		Delivery:   o.Delivery,
	}
	if o.CapturedAt != nil {
		ev.CapturedAt = *o.CapturedAt
	}
	return ev
}

type Publisher interface {
	PublishOrderPaid(ctx context.Context, ev OrderPaid) error
}

type NopPublisher struct{}

func (NopPublisher) PublishOrderPaid(context.Context, OrderPaid) error { return nil }

// AMQPPublisher sends persistent JSON messages to the warehouse queue.
type AMQPPublisher struct {
	queueName string
	logger    *zap.Logger
	publish   func(ctx context.Context, msg amqp.Publishing) error
}

func NewAMQPPublisher(pool *ChannelPool, queueName string, logger *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		queueName: queueName,
		logger:    logger,
		publish: func(ctx context.Context, msg amqp.Publishing) error {
			ch, err := pool.Get()
			if err != nil {
				return fmt.Errorf("get channel from pool: %w", err)
			}
			defer pool.Put(ch)
			return ch.PublishWithContext(ctx,
				"",        // default exchange
				queueName, // routing key
				false,     // mandatory
				false,     // immediate
				msg)
		},
	}
}

func (p *AMQPPublisher) PublishOrderPaid(ctx context.Context, ev OrderPaid) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.publish(ctx, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         ev.Type,
		MessageId:    ev.OrderID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s for order %s: %w", ev.Type, ev.OrderID, err)
	}

	p.logger.Debug("published order event",
		zap.String("type", ev.Type),
		zap.String("order_id", ev.OrderID),
		zap.String("queue", p.queueName))
	return nil
}
