package filter

import (
	"testing"
	"time"

	"github.com/psds-microservice/ticket-feed-service/internal/model"
)

func TestNormalizeSortsAndDeduplicates(t *testing.T) {
	s := State{QueueIDs: []uint64{3, 1, 3, 2}, TagIDs: []uint64{7, 7}}.Normalize()
	wantQueues := []uint64{1, 2, 3}
	if len(s.QueueIDs) != len(wantQueues) {
		t.Fatalf("queue ids = %v, want %v", s.QueueIDs, wantQueues)
	}
	for i, id := range wantQueues {
		if s.QueueIDs[i] != id {
			t.Fatalf("queue ids = %v, want %v", s.QueueIDs, wantQueues)
		}
	}
	if len(s.TagIDs) != 1 || s.TagIDs[0] != 7 {
		t.Fatalf("tag ids = %v, want [7]", s.TagIDs)
	}
}

func TestNormalizeDoesNotMutateOriginal(t *testing.T) {
	orig := State{QueueIDs: []uint64{3, 1}}
	_ = orig.Normalize()
	if orig.QueueIDs[0] != 3 {
		t.Fatalf("original mutated: %v", orig.QueueIDs)
	}
}

func TestEqualByValue(t *testing.T) {
	a := State{Status: model.TicketStatusOpen, QueueIDs: []uint64{2, 1}}.Normalize()
	b := State{Status: model.TicketStatusOpen, QueueIDs: []uint64{1, 2, 2}}.Normalize()
	if !a.Equal(b) {
		t.Fatal("expected equal states")
	}
	c := b
	c.ShowAll = true
	if a.Equal(c) {
		t.Fatal("expected different states")
	}
}

func TestEqualComparesDateByCalendarDay(t *testing.T) {
	morning := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	evening := time.Date(2025, 3, 10, 22, 30, 0, 0, time.Local)
	nextDay := morning.AddDate(0, 0, 1)

	a := State{Date: &morning}
	b := State{Date: &evening}
	if !a.Equal(b) {
		t.Fatal("same calendar day must compare equal")
	}
	c := State{Date: &nextDay}
	if a.Equal(c) {
		t.Fatal("different days must not compare equal")
	}
}

func TestChannelKey(t *testing.T) {
	if got := (State{}).ChannelKey(); got != GeneralChannel {
		t.Fatalf("channel key = %q, want %q", got, GeneralChannel)
	}
	s := State{Status: model.TicketStatusPending}
	if got := s.ChannelKey(); got != "pending" {
		t.Fatalf("channel key = %q, want %q", got, "pending")
	}
}

func TestHasQueue(t *testing.T) {
	s := State{QueueIDs: []uint64{5, 1, 9}}.Normalize()
	if !s.HasQueue(5) {
		t.Fatal("expected queue 5 in set")
	}
	if s.HasQueue(2) {
		t.Fatal("queue 2 must not be in set")
	}
}
