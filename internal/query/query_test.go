package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/ticket-feed-service/internal/errs"
	"github.com/psds-microservice/ticket-feed-service/internal/filter"
	"github.com/psds-microservice/ticket-feed-service/internal/model"
)

// blockingFetcher отдаёт страницу только после release, уважая отмену контекста.
type blockingFetcher struct {
	mu      sync.Mutex
	pages   map[int]*Page
	err     error
	release chan struct{}
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{pages: map[int]*Page{}, release: make(chan struct{})}
}

func (f *blockingFetcher) FetchPage(ctx context.Context, _ filter.State, _ uint64, pageNumber int) (*Page, error) {
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.pages[pageNumber]; ok {
		return p, nil
	}
	return &Page{PageNumber: pageNumber}, nil
}

func TestFetchDeliversPage(t *testing.T) {
	fetcher := newBlockingFetcher()
	fetcher.pages[1] = &Page{
		PageNumber: 1,
		Tickets:    []model.Ticket{{ID: 1}, {ID: 2}},
		TotalCount: 2,
	}
	close(fetcher.release)
	svc := NewService(fetcher)

	// Единственная выборка без конкурентов не должна считаться перегнанной.
	p, err := svc.Fetch(context.Background(), filter.State{}, 1, 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Superseded {
		t.Fatalf("sole fetch resolved superseded: %+v", p)
	}
	if len(p.Tickets) != 2 || p.TotalCount != 2 {
		t.Fatalf("page = %+v, want 2 tickets", p)
	}
}

func TestFetchSupersedesInflight(t *testing.T) {
	fetcher := newBlockingFetcher()
	fetcher.pages[2] = &Page{
		PageNumber: 2,
		Tickets:    []model.Ticket{{ID: 41}},
		TotalCount: 85,
		HasMore:    false,
	}
	svc := NewService(fetcher)

	type result struct {
		page *Page
		err  error
	}
	resA := make(chan result, 1)
	go func() {
		p, err := svc.Fetch(context.Background(), filter.State{}, 1, 1)
		resA <- result{p, err}
	}()

	// Fetch A must be in flight before B supersedes it.
	waitInflight(t, svc)

	resB := make(chan result, 1)
	go func() {
		p, err := svc.Fetch(context.Background(), filter.State{}, 1, 2)
		resB <- result{p, err}
	}()

	a := <-resA
	if a.err != nil {
		t.Fatalf("superseded fetch must not error: %v", a.err)
	}
	if !a.page.Superseded || len(a.page.Tickets) != 0 {
		t.Fatalf("superseded fetch must resolve empty, got %+v", a.page)
	}

	close(fetcher.release)
	b := <-resB
	if b.err != nil {
		t.Fatalf("fetch B: %v", b.err)
	}
	if b.page.Superseded || len(b.page.Tickets) != 1 || b.page.Tickets[0].ID != 41 {
		t.Fatalf("fetch B page = %+v", b.page)
	}
}

func TestFetchWrapsDataLayerError(t *testing.T) {
	fetcher := newBlockingFetcher()
	fetcher.err = errors.New("connection refused")
	close(fetcher.release)
	svc := NewService(fetcher)

	_, err := svc.Fetch(context.Background(), filter.State{}, 1, 1)
	if !errors.Is(err, errs.ErrQuery) {
		t.Fatalf("err = %v, want ErrQuery", err)
	}
}

func TestCancelInflight(t *testing.T) {
	fetcher := newBlockingFetcher()
	svc := NewService(fetcher)

	res := make(chan *Page, 1)
	go func() {
		p, _ := svc.Fetch(context.Background(), filter.State{}, 1, 1)
		res <- p
	}()
	waitInflight(t, svc)
	svc.CancelInflight()

	p := <-res
	if !p.Superseded {
		t.Fatalf("cancelled fetch page = %+v, want superseded", p)
	}
}

func TestHasMoreMath(t *testing.T) {
	cases := []struct {
		total    int64
		page     int
		returned int
		want     bool
	}{
		{85, 1, 40, true},
		{85, 2, 40, true},
		{85, 3, 5, false},
		{40, 1, 40, false},
		{0, 1, 0, false},
	}
	for _, c := range cases {
		if got := HasMore(c.total, c.page, c.returned); got != c.want {
			t.Fatalf("HasMore(%d, page %d, %d) = %v, want %v", c.total, c.page, c.returned, got, c.want)
		}
	}
}

func waitInflight(t *testing.T, svc *Service) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		svc.mu.Lock()
		inflight := svc.cancel != nil
		svc.mu.Unlock()
		if inflight {
			return
		}
		select {
		case <-deadline:
			t.Fatal("fetch never became inflight")
		case <-time.After(time.Millisecond):
		}
	}
}
