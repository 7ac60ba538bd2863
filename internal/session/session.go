// Package session — сердце синхронизации ленты: сериализованный цикл
// событий на оператора, в котором сходятся страницы выборки, push-события
// и смены фильтра. Все мутации ленты выполняются в одной горутине, поэтому
// слияние атомарно без блокировок.
package session

import (
	"context"
	"log"
	"sync"

	"github.com/psds-microservice/ticket-feed-service/internal/errs"
	"github.com/psds-microservice/ticket-feed-service/internal/filter"
	"github.com/psds-microservice/ticket-feed-service/internal/model"
	"github.com/psds-microservice/ticket-feed-service/internal/query"
	"github.com/psds-microservice/ticket-feed-service/internal/reducer"
	"github.com/psds-microservice/ticket-feed-service/internal/updates"
)

// DeleteBehavior — реакция ленты на push-событие удаления.
type DeleteBehavior string

const (
	// DeleteReset — исторически наблюдаемое поведение: любое удаление
	// сбрасывает ленту целиком.
	DeleteReset DeleteBehavior = "reset"
	// DeleteRemove — точечное удаление тикета по id.
	DeleteRemove DeleteBehavior = "remove"
)

type Options struct {
	DeleteBehavior DeleteBehavior
}

// Snapshot — читаемый снимок состояния ленты для потребителя.
type Snapshot struct {
	Tickets    []model.Ticket `json:"tickets"`
	TotalCount int64          `json:"total_count"`
	Page       int            `json:"page"`
	HasMore    bool           `json:"has_more"`
	State      string         `json:"state"`
	Error      string         `json:"error,omitempty"`
}

// Session — контекст одного потребителя ленты. Команды (смена фильтра,
// сигнал прокрутки, доставка страницы, push-событие) исполняются строго
// по одной в цикле run; лента принадлежит только этому циклу.
type Session struct {
	id     string
	userID uint64
	opts   Options

	query   *query.Service
	channel *updates.Channel

	cmds      chan func()
	done      chan struct{}
	closeOnce sync.Once

	// Поля ниже читаются и пишутся только из горутины run.
	filter       filter.State
	gen          uint64
	scopeGen     uint64
	list         []model.Ticket
	pager        paginator
	total        int64
	lastErr      error
	listeners    map[int]func()
	nextListener int
}

// New открывает сессию и сразу запрашивает первую страницу под initial.
func New(id string, userID uint64, fetcher query.Fetcher, sub updates.Subscriber, opts Options, initial filter.State) *Session {
	if opts.DeleteBehavior != DeleteRemove {
		opts.DeleteBehavior = DeleteReset
	}
	s := &Session{
		id:        id,
		userID:    userID,
		opts:      opts,
		query:     query.NewService(fetcher),
		cmds:      make(chan func(), 64),
		done:      make(chan struct{}),
		listeners: make(map[int]func()),
	}
	s.channel = updates.NewChannel(sub)
	go s.run()
	_ = s.SetFilter(initial)
	return s
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() uint64 { return s.userID }

func (s *Session) run() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.done:
			return
		}
	}
}

func (s *Session) dispatch(fn func()) error {
	// Закрытие проверяется до постановки в очередь: после Close команды
	// не принимаются, даже пока буфер очереди свободен.
	select {
	case <-s.done:
		return errs.ErrSessionClosed
	default:
	}
	select {
	case <-s.done:
		return errs.ErrSessionClosed
	case s.cmds <- fn:
		return nil
	}
}

// SetFilter заменяет активный фильтр. Смена по значению сбрасывает ленту
// и пагинацию, выравнивает push-подписку и запрашивает первую страницу;
// повторная установка эквивалентного фильтра — no-op.
func (s *Session) SetFilter(f filter.State) error {
	f = f.Normalize()
	return s.dispatch(func() {
		if s.gen > 0 && f.Equal(s.filter) {
			return
		}
		s.filter = f
		s.gen++
		s.list = reducer.Reset()
		s.total = 0
		s.lastErr = nil
		s.pager.reset()
		// Поколение области видимости растёт только при реальной
		// переподписке: смена одного поиска оставляет подписку (и её
		// события) в силе. События старой подписки, ещё идущие по
		// каналу, отсеиваются по устаревшему поколению в onPush.
		scopeGen := s.scopeGen + 1
		if s.channel.Apply(s.userID, f, func(ev updates.Event) { s.onPush(ev, scopeGen) }) {
			s.scopeGen = scopeGen
		}
		s.startFetch(f, 1, s.gen)
		s.notify()
	})
}

// ScrollNearEnd — сигнал позиции потребления: лента почти показана до
// конца. Запрашивает следующую страницу, если загрузка не идёт и выдача
// не исчерпана.
func (s *Session) ScrollNearEnd() error {
	return s.dispatch(func() {
		page, ok := s.pager.requestNext()
		if !ok {
			return
		}
		s.startFetch(s.filter, page, s.gen)
	})
}

// Snapshot возвращает копию текущего состояния ленты. Нельзя звать из
// колбэка OnListChanged — колбэки исполняются в цикле сессии.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	ready := make(chan struct{})
	err := s.dispatch(func() {
		defer close(ready)
		tickets := make([]model.Ticket, len(s.list))
		copy(tickets, s.list)
		snap = Snapshot{
			Tickets:    tickets,
			TotalCount: s.total,
			Page:       s.pager.page,
			HasMore:    s.pager.state != stateExhausted,
			State:      s.pager.state.String(),
		}
		if s.lastErr != nil {
			snap.Error = s.lastErr.Error()
		}
	})
	if err != nil {
		return Snapshot{}, err
	}
	select {
	case <-ready:
		return snap, nil
	case <-s.done:
		return Snapshot{}, errs.ErrSessionClosed
	}
}

// OnListChanged регистрирует уведомление об изменении ленты. Колбэк
// вызывается в цикле сессии и не должен блокироваться: сигнальте в
// буферизованный канал и читайте снимок снаружи. Возвращает отписку.
func (s *Session) OnListChanged(fn func()) (func(), error) {
	var id int
	err := s.dispatch(func() {
		id = s.nextListener
		s.nextListener++
		s.listeners[id] = fn
	})
	if err != nil {
		return nil, err
	}
	return func() {
		_ = s.dispatch(func() { delete(s.listeners, id) })
	}, nil
}

// Close освобождает push-подписку, отменяет выборку в полёте и
// останавливает цикл.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.channel.Close()
		s.query.CancelInflight()
		close(s.done)
	})
}

func (s *Session) startFetch(f filter.State, page int, gen uint64) {
	go func() {
		p, err := s.query.Fetch(context.Background(), f, s.userID, page)
		_ = s.dispatch(func() { s.finishFetch(p, err, gen) })
	}()
}

func (s *Session) finishFetch(p *query.Page, err error, gen uint64) {
	// Страница выборки, выданной до смены фильтра, отбрасывается целиком.
	if gen != s.gen {
		return
	}
	if err != nil {
		s.lastErr = err
		s.pager.failed()
		log.Printf("session %s: fetch: %v", s.id, err)
		s.notify()
		return
	}
	if p.Superseded {
		return
	}
	s.list = reducer.Merge(s.list, p.Tickets)
	s.total = p.TotalCount
	s.pager.delivered(p.PageNumber, p.HasMore)
	s.notify()
}

// onPush — sink push-канала; события уже отфильтрованы по области
// видимости. Исполняется через тот же сериализованный цикл, что и
// страницы выборки; событие подписки прошлой области отбрасывается.
func (s *Session) onPush(ev updates.Event, scopeGen uint64) {
	_ = s.dispatch(func() {
		if scopeGen != s.scopeGen {
			return
		}
		switch ev.Action {
		case updates.ActionUpdate:
			s.list = reducer.Merge(s.list, []model.Ticket{*ev.Ticket})
		case updates.ActionDelete:
			if s.opts.DeleteBehavior == DeleteRemove {
				s.list = reducer.Remove(s.list, ev.ID())
			} else {
				s.list = reducer.Reset()
			}
		}
		s.notify()
	})
}

func (s *Session) notify() {
	for _, fn := range s.listeners {
		fn()
	}
}
