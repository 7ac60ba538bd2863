package reducer

import (
	"testing"

	"github.com/psds-microservice/ticket-feed-service/internal/model"
)

func ticket(id uint64, unread int) model.Ticket {
	return model.Ticket{ID: id, Status: model.TicketStatusOpen, UnreadMessages: unread}
}

func ids(list []model.Ticket) []uint64 {
	out := make([]uint64, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

func assertOrder(t *testing.T, list []model.Ticket, want ...uint64) {
	t.Helper()
	got := ids(list)
	if len(got) != len(want) {
		t.Fatalf("list ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("list ids = %v, want %v", got, want)
		}
	}
}

func TestMergeAppendsNewTickets(t *testing.T) {
	list := Merge(nil, []model.Ticket{ticket(1, 0), ticket(2, 0)})
	list = Merge(list, []model.Ticket{ticket(3, 0)})
	assertOrder(t, list, 1, 2, 3)
}

func TestMergeReplacesInPlace(t *testing.T) {
	list := Merge(nil, []model.Ticket{ticket(1, 0), ticket(2, 0), ticket(3, 0)})
	updated := ticket(2, 0)
	updated.LastMessage = "hello"
	list = Merge(list, []model.Ticket{updated})
	assertOrder(t, list, 1, 2, 3)
	if list[1].LastMessage != "hello" {
		t.Fatalf("ticket 2 not replaced: %+v", list[1])
	}
}

func TestMergeMovesUnreadToFront(t *testing.T) {
	list := Merge(nil, []model.Ticket{ticket(1, 0), ticket(2, 0), ticket(3, 0)})
	list = Merge(list, []model.Ticket{ticket(3, 2)})
	assertOrder(t, list, 3, 1, 2)
}

func TestMergeNewUnreadTicketSurfacesFirst(t *testing.T) {
	list := Merge(nil, []model.Ticket{ticket(1, 0), ticket(2, 0)})
	list = Merge(list, []model.Ticket{ticket(9, 1)})
	assertOrder(t, list, 9, 1, 2)
}

func TestMergeNeverDuplicatesIDs(t *testing.T) {
	var list []model.Ticket
	batches := [][]model.Ticket{
		{ticket(1, 0), ticket(2, 1)},
		{ticket(2, 3), ticket(1, 0)},
		{ticket(3, 0), ticket(2, 0), ticket(3, 1)},
	}
	for _, b := range batches {
		list = Merge(list, b)
		seen := make(map[uint64]bool, len(list))
		for _, tk := range list {
			if seen[tk.ID] {
				t.Fatalf("duplicate id %d in %v", tk.ID, ids(list))
			}
			seen[tk.ID] = true
		}
	}
}

func TestMergeUnreadBatchOrderWins(t *testing.T) {
	// Within one batch the later unread ticket ends up closer to the front.
	list := Merge(nil, []model.Ticket{ticket(1, 0)})
	list = Merge(list, []model.Ticket{ticket(2, 1), ticket(3, 1)})
	assertOrder(t, list, 3, 2, 1)
}

func TestMergeIdempotentReplace(t *testing.T) {
	base := Merge(nil, []model.Ticket{ticket(1, 0), ticket(2, 0)})
	once := Merge(base, []model.Ticket{ticket(2, 5)})
	twice := Merge(once, []model.Ticket{ticket(2, 5)})
	assertOrder(t, once, 2, 1)
	assertOrder(t, twice, 2, 1)
	if once[0].UnreadMessages != twice[0].UnreadMessages {
		t.Fatal("repeated merge changed ticket data")
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	base := Merge(nil, []model.Ticket{ticket(1, 0), ticket(2, 0), ticket(3, 0)})
	_ = Merge(base, []model.Ticket{ticket(3, 1)})
	assertOrder(t, base, 1, 2, 3)
}

func TestRemove(t *testing.T) {
	list := Merge(nil, []model.Ticket{ticket(1, 0), ticket(2, 0), ticket(3, 0)})
	list = Remove(list, 2)
	assertOrder(t, list, 1, 3)
	list = Remove(list, 42)
	assertOrder(t, list, 1, 3)
}

func TestResetClears(t *testing.T) {
	list := Merge(nil, []model.Ticket{ticket(1, 0), ticket(2, 1)})
	if len(list) != 2 {
		t.Fatalf("setup: %v", ids(list))
	}
	list = Reset()
	if len(list) != 0 {
		t.Fatalf("reset list = %v, want empty", ids(list))
	}
}
