package filter

import (
	"slices"
	"time"

	"github.com/psds-microservice/ticket-feed-service/internal/model"
)

// GeneralChannel — ключ push-канала, когда статус в фильтре не задан.
const GeneralChannel = "general"

// State — снимок параметров фильтра ленты. Создаётся заново на каждое
// изменение фильтра и после Normalize не мутируется; сравнение — по значению.
type State struct {
	Status             model.TicketStatus `json:"status,omitempty"`
	SearchParam        string             `json:"search_param,omitempty"`
	ShowAll            bool               `json:"show_all"`
	QueueIDs           []uint64           `json:"queue_ids,omitempty"`
	TagIDs             []uint64           `json:"tag_ids,omitempty"`
	Date               *time.Time         `json:"date,omitempty"`
	UpdatedAt          *time.Time         `json:"updated_at,omitempty"`
	WithUnreadMessages bool               `json:"with_unread_messages"`
}

// Normalize возвращает копию с отсортированными и дедуплицированными
// наборами id. Все потребители (сессия, канал, запросы) работают только
// с нормализованным значением.
func (s State) Normalize() State {
	out := s
	out.QueueIDs = normalizeIDs(s.QueueIDs)
	out.TagIDs = normalizeIDs(s.TagIDs)
	return out
}

// Equal — сравнение по значению (оба операнда должны быть нормализованы).
func (s State) Equal(other State) bool {
	return s.Status == other.Status &&
		s.SearchParam == other.SearchParam &&
		s.ShowAll == other.ShowAll &&
		s.WithUnreadMessages == other.WithUnreadMessages &&
		slices.Equal(s.QueueIDs, other.QueueIDs) &&
		slices.Equal(s.TagIDs, other.TagIDs) &&
		equalDay(s.Date, other.Date) &&
		equalDay(s.UpdatedAt, other.UpdatedAt)
}

// ChannelKey — ключ push-канала: значение статуса либо общий канал.
func (s State) ChannelKey() string {
	if s.Status != "" {
		return string(s.Status)
	}
	return GeneralChannel
}

// HasQueue сообщает, входит ли очередь в набор фильтра.
func (s State) HasQueue(id uint64) bool {
	_, ok := slices.BinarySearch(s.QueueIDs, id)
	return ok
}

func normalizeIDs(ids []uint64) []uint64 {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func equalDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
