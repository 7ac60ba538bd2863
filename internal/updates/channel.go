// Package updates мостит внешний push-фид в события ленты, ограниченные
// областью видимости активного фильтра.
package updates

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/psds-microservice/ticket-feed-service/internal/filter"
	"github.com/psds-microservice/ticket-feed-service/internal/model"
)

type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event — событие push-фида в сыром виде.
type Event struct {
	Action   Action        `json:"action"`
	Ticket   *model.Ticket `json:"ticket,omitempty"`
	TicketID uint64        `json:"ticket_id,omitempty"`
}

// ID тикета события: для delete тело может отсутствовать.
func (e Event) ID() uint64 {
	if e.Ticket != nil {
		return e.Ticket.ID
	}
	return e.TicketID
}

// Subscriber — внешний push-транспорт. Канал закрывается при отмене
// контекста или обрыве фида; переподписка — забота Channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channelKey string) (<-chan Event, error)
}

// scope — поля, изменение которых требует переподписки: ключ канала
// (статус) и параметры предиката принадлежности.
type scope struct {
	userID   uint64
	status   model.TicketStatus
	showAll  bool
	queueKey string
}

func scopeOf(userID uint64, f filter.State) scope {
	return scope{
		userID:   userID,
		status:   f.Status,
		showAll:  f.ShowAll,
		queueKey: fmt.Sprint(f.QueueIDs),
	}
}

// Channel владеет подпиской на push-фид: единственный владелец хэндла,
// потребители получают события только через sink. Переподписывается при
// смене области видимости, переживает обрывы фида с бэкоффом.
type Channel struct {
	sub Subscriber

	mu      sync.Mutex
	cur     scope
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewChannel(sub Subscriber) *Channel {
	return &Channel{sub: sub}
}

// Apply выравнивает подписку под новый фильтр. Если статус, show_all,
// оператор и набор очередей не менялись — подписка остаётся прежней и
// Apply возвращает false. При переподписке события идут в новый sink;
// sink вызывается из горутины подписки. Возврат true позволяет
// потребителю отличать события старой области от событий новой.
func (c *Channel) Apply(userID uint64, f filter.State, sink func(Event)) bool {
	f = f.Normalize()
	sc := scopeOf(userID, f)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started && sc == c.cur {
		return false
	}
	c.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.cur = sc
	c.started = true
	c.wg.Add(1)
	go c.run(ctx, f.ChannelKey(), sc, f, sink)
	return true
}

// Close полностью освобождает подписку.
func (c *Channel) Close() {
	c.mu.Lock()
	c.stopLocked()
	c.started = false
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Channel) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Channel) run(ctx context.Context, key string, sc scope, f filter.State, sink func(Event)) {
	defer c.wg.Done()
	backoff := time.Second
	for {
		events, err := c.sub.Subscribe(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("updates: subscribe %q: %v (retry in %s)", key, err, backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second
	recv:
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					break recv
				}
				if admit(ev, sc, f) {
					sink(ev)
				}
			}
		}
		if ctx.Err() != nil {
			return
		}
		// Фид оборвался: пагинация продолжает работать, подписку восстанавливаем.
		log.Printf("updates: feed %q disconnected, resubscribing", key)
		if !sleep(ctx, backoff) {
			return
		}
	}
}

// admit решает, относится ли событие к видимой области оператора.
// Битые события (update без тикета, delete без id) отбрасываются молча.
func admit(ev Event, sc scope, f filter.State) bool {
	switch ev.Action {
	case ActionUpdate:
		t := ev.Ticket
		if t == nil {
			log.Printf("updates: drop malformed update event")
			return false
		}
		owned := t.UserID == nil || *t.UserID == sc.userID || sc.showAll
		inQueue := t.QueueID == nil || f.HasQueue(*t.QueueID)
		return owned && inQueue
	case ActionDelete:
		if ev.ID() == 0 {
			log.Printf("updates: drop malformed delete event")
			return false
		}
		return true
	default:
		log.Printf("updates: drop event with unknown action %q", ev.Action)
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
