package kafka

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/psds-microservice/ticket-feed-service/internal/updates"
	"github.com/segmentio/kafka-go"
)

// Producer пишет события тикетов в push-топики (best-effort, не блокирует
// вызывающего надолго). Используется командой replay-events и любым
// сервисом-источником мутаций.
type Producer struct {
	writer      *kafka.Writer
	topicPrefix string
}

// NewProducer создаёт продюсер. Если brokers пустой — методы no-op.
func NewProducer(brokers []string, topicPrefix string) *Producer {
	if len(brokers) == 0 {
		return &Producer{}
	}
	return &Producer{
		topicPrefix: topicPrefix,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// ProduceTicketEvent отправляет событие в топик канала (ключ — значение
// статуса либо general).
func (p *Producer) ProduceTicketEvent(ctx context.Context, channelKey string, ev updates.Event) {
	if p.writer == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("kafka: marshal ticket event: %v", err)
		return
	}
	msg := kafka.Message{Topic: Topic(p.topicPrefix, channelKey), Value: body}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("kafka: write ticket event: %v", err)
	}
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Topic — имя топика push-канала.
func Topic(prefix, channelKey string) string {
	return prefix + "." + channelKey
}

// ParseBrokers разбивает строку брокеров "host1:9092,host2:9092" на слайс.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
