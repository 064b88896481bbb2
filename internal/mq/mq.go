package mq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeclareQueues 声明持久化的队列，api、worker 和 mail 启动时都会调用
func DeclareQueues(ch *amqp.Channel, queues ...string) error {
	for _, queue := range queues {
		_, err := ch.QueueDeclare(
			queue, // 队列名称
			true,  // 是否持久化
			false, // 是否自动删除，设置为 false 可以避免没有消费者的时候自动删除队列
			false, // 是否独占
			false, // 是否不等待
			nil,   // 额外参数
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Consume 以手动确认的方式消费队列，prefetch 限制同时处理的消息数量
func Consume(ch *amqp.Channel, queue string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}

	return ch.Consume(
		queue, // 队列
		"",    // 消费者标识，由 RabbitMQ 自动分配
		false, // 不自动确认
		false, // 不独占队列
		false, // RabbitMQ 不支持 noLocal
		false, // 等待 RabbitMQ 响应
		nil,
	)
}

type Publisher struct {
	ch      *amqp.Channel
	timeout time.Duration
}

func NewPublisher(ch *amqp.Channel, timeout time.Duration) *Publisher {
	return &Publisher{ch: ch, timeout: timeout}
}

// Message 把 v 编码为持久化的 JSON 消息
func Message(messageID string, v any) (amqp.Publishing, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return amqp.Publishing{}, err
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	}, nil
}

func (p *Publisher) PublishJSON(parent context.Context, queue string, messageID string, v any) error {
	msg, err := Message(messageID, v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(ctx, "", queue, true, false, msg)
}
