package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/psds-microservice/ticket-feed-service/internal/updates"
	"github.com/segmentio/kafka-go"
)

var groupSeq uint64

// Consumer реализует updates.Subscriber поверх Kafka: подписка на канал —
// это Reader на топик "<prefix>.<ключ>". Каждой подписке — своя
// consumer-группа, чтобы все сессии получали все события канала.
type Consumer struct {
	brokers     []string
	topicPrefix string
	groupPrefix string
}

func NewConsumer(brokers []string, topicPrefix, groupPrefix string) *Consumer {
	return &Consumer{brokers: brokers, topicPrefix: topicPrefix, groupPrefix: groupPrefix}
}

// Subscribe открывает поток событий канала. Канал закрывается при отмене
// контекста или ошибке чтения; переподписка — забота вызывающего.
func (c *Consumer) Subscribe(ctx context.Context, channelKey string) (<-chan updates.Event, error) {
	if len(c.brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		Topic:       Topic(c.topicPrefix, channelKey),
		GroupID:     c.groupID(channelKey),
		StartOffset: kafka.LastOffset,
		MaxWait:     500 * time.Millisecond,
	})

	out := make(chan updates.Event)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("kafka: read %q: %v", channelKey, err)
				}
				return
			}
			var ev updates.Event
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				log.Printf("kafka: drop undecodable event on %q: %v", channelKey, err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// groupID уникален на подписку: сессии не должны делить оффсеты.
func (c *Consumer) groupID(channelKey string) string {
	return fmt.Sprintf("%s-%s-%d-%d", c.groupPrefix, channelKey, time.Now().UnixNano(), atomic.AddUint64(&groupSeq, 1))
}
