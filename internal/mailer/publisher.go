package mailer

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/talentdesk/employer-access/backend/internal/domain"
	"github.com/talentdesk/employer-access/backend/internal/metrics"
)

type Publisher interface {
	Publish(ctx context.Context, msg domain.MailMessage) error
}

type AMQPPublisher struct {
	ch      *amqp.Channel
	queue   string
	timeout time.Duration
}

func NewAMQPPublisher(ch *amqp.Channel, queue string, timeout time.Duration) *AMQPPublisher {
	return &AMQPPublisher{
		ch:      ch,
		queue:   queue,
		timeout: timeout,
	}
}

// 声明持久化队列，API 和 mail worker 启动时都会调用
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,  // 队列名称
		true,  // 是否持久化
		false, // 是否自动删除
		false, // 是否独占
		false, // 是否不等待
		nil,   // 额外参数
	)
}

func (p *AMQPPublisher) Publish(ctx context.Context, msg domain.MailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	); err != nil {
		return err
	}

	metrics.MailsPublished.WithLabelValues(msg.Type).Inc()
	return nil
}
