package query

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/psds-microservice/ticket-feed-service/internal/errs"
	"github.com/psds-microservice/ticket-feed-service/internal/filter"
	"github.com/psds-microservice/ticket-feed-service/internal/model"
)

// PageSize — фиксированный размер страницы ленты.
const PageSize = 40

// Page — одна страница выдачи. Потребляется редьюсером один раз.
type Page struct {
	PageNumber int
	Tickets    []model.Ticket
	TotalCount int64
	HasMore    bool
	// Superseded выставлен, если выборку обогнал более новый запрос.
	// Такая страница пуста, не ошибка и не должна попадать в редьюсер.
	Superseded bool
}

// Fetcher — слой данных: отфильтрованная страница тикетов для оператора.
type Fetcher interface {
	FetchPage(ctx context.Context, f filter.State, userID uint64, pageNumber int) (*Page, error)
}

// Service выдаёт страницы через Fetcher и гарантирует не более одной
// выборки в полёте на потребителя: новый Fetch немедленно отменяет
// предыдущий незавершённый. Токен отмены — context на конкретный вызов,
// никакого глобального разделяемого хэндла.
type Service struct {
	fetcher Fetcher

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewService(fetcher Fetcher) *Service {
	return &Service{fetcher: fetcher}
}

// Fetch выбирает страницу под фильтр. Отменённая (перегнанная) выборка
// возвращает пустую страницу с Superseded=true и nil-ошибкой; сбой слоя
// данных заворачивается в errs.ErrQuery.
func (s *Service) Fetch(ctx context.Context, f filter.State, userID uint64, pageNumber int) (*Page, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	page, err := s.fetcher.FetchPage(fetchCtx, f, userID, pageNumber)
	// Состояние отмены снимается до cancel(): после него Err() непустой
	// у любого контекста, включая контекст самой свежей выборки.
	superseded := fetchCtx.Err() != nil

	s.mu.Lock()
	current := seq == s.seq
	if current {
		s.cancel = nil
	}
	s.mu.Unlock()
	cancel()

	if !current || superseded {
		log.Printf("query: page %d superseded", pageNumber)
		return &Page{PageNumber: pageNumber, Superseded: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", errs.ErrQuery, pageNumber, err)
	}
	return page, nil
}

// CancelInflight отменяет текущую незавершённую выборку, если есть.
// Вызывается при закрытии сессии.
func (s *Service) CancelInflight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
}

// HasMore — общая формула постраничной выдачи.
func HasMore(totalCount int64, pageNumber, returned int) bool {
	offset := PageSize * (pageNumber - 1)
	return totalCount > int64(offset+returned)
}
