package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/psds-microservice/ticket-feed-service/internal/filter"
	"github.com/psds-microservice/ticket-feed-service/internal/model"
	"github.com/psds-microservice/ticket-feed-service/internal/query"
	"gorm.io/gorm"
)

// TagMatch — политика фильтра по тегам.
type TagMatch string

const (
	// TagMatchAny — тикет подходит, если помечен хотя бы одним из тегов (по умолчанию).
	TagMatchAny TagMatch = "any"
	// TagMatchAll — тикет подходит, только если помечен всеми тегами.
	TagMatchAll TagMatch = "all"
)

// TicketService — слой данных ленты: составляет SQL под фильтр и
// отдаёт страницу с общим количеством. Реализует query.Fetcher.
type TicketService struct {
	db       *gorm.DB
	tagMatch TagMatch
}

func NewTicketService(db *gorm.DB, tagMatch TagMatch) *TicketService {
	if tagMatch != TagMatchAll {
		tagMatch = TagMatchAny
	}
	return &TicketService{db: db, tagMatch: tagMatch}
}

// FetchPage выбирает страницу тикетов под фильтр оператора.
//
// Композиция условий видимости:
//
//  1. база: тикет принадлежит оператору ИЛИ в статусе pending, И очередь
//     тикета входит в набор фильтра либо не задана; show_all снимает
//     ограничение принадлежности, правило очередей остаётся;
//  2. статус, если задан, сужает выборку;
//  3. поиск ЗАМЕНЯЕТ альтернативу принадлежности: совпадение по имени
//     контакта, номеру или телу сообщения видно независимо от владельца,
//     правило очередей продолжает действовать;
//  4. date/updated_at ограничивают календарным днём (локальные границы);
//  5. with_unread_messages заменяет правила 1–4 целиком: свои или pending,
//     очередь из набора оператора либо не задана, unread_messages > 0;
//  6. набор тегов сначала разрешается в набор id тикетов (политика
//     TagMatch), затем пересекается с видимым набором; пустое разрешение
//     даёт пустую страницу.
func (s *TicketService) FetchPage(ctx context.Context, f filter.State, userID uint64, pageNumber int) (*query.Page, error) {
	tx := s.db.WithContext(ctx).Model(&model.Ticket{})

	if len(f.TagIDs) > 0 {
		ids, err := s.resolveTagTickets(ctx, f.TagIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve tags: %w", err)
		}
		if len(ids) == 0 {
			return &query.Page{PageNumber: pageNumber}, nil
		}
		tx = tx.Where("tickets.id IN ?", ids)
	}

	if f.WithUnreadMessages {
		queueIDs, err := s.userQueueIDs(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("user queues: %w", err)
		}
		tx = tx.Where("(tickets.user_id = ? OR tickets.status = ?)", userID, model.TicketStatusPending)
		tx = queueScope(tx, queueIDs)
		tx = tx.Where("tickets.unread_messages > 0")
	} else {
		if f.SearchParam != "" {
			term := "%" + strings.ToLower(f.SearchParam) + "%"
			tx = tx.Joins("JOIN contacts ON contacts.id = tickets.contact_id").
				Where("(LOWER(contacts.name) LIKE ? OR contacts.number LIKE ? OR EXISTS (SELECT 1 FROM messages m WHERE m.ticket_id = tickets.id AND LOWER(m.body) LIKE ?))",
					term, term, term)
		} else if !f.ShowAll {
			tx = tx.Where("(tickets.user_id = ? OR tickets.status = ?)", userID, model.TicketStatusPending)
		}
		tx = queueScope(tx, f.QueueIDs)
		if f.Status != "" {
			tx = tx.Where("tickets.status = ?", f.Status)
		}
		if f.Date != nil {
			from, to := dayBounds(*f.Date)
			tx = tx.Where("tickets.created_at >= ? AND tickets.created_at < ?", from, to)
		}
		if f.UpdatedAt != nil {
			from, to := dayBounds(*f.UpdatedAt)
			tx = tx.Where("tickets.updated_at >= ? AND tickets.updated_at < ?", from, to)
		}
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}

	offset := query.PageSize * (pageNumber - 1)
	var items []model.Ticket
	if err := tx.Preload("Contact").Preload("Tags").
		Order("tickets.updated_at DESC").
		Limit(query.PageSize).Offset(offset).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	return &query.Page{
		PageNumber: pageNumber,
		Tickets:    items,
		TotalCount: total,
		HasMore:    query.HasMore(total, pageNumber, len(items)),
	}, nil
}

// ListAll отдаёт все тикеты (команда replay-events).
func (s *TicketService) ListAll(ctx context.Context) ([]model.Ticket, error) {
	var items []model.Ticket
	if err := s.db.WithContext(ctx).Preload("Contact").Preload("Tags").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list all tickets: %w", err)
	}
	return items, nil
}

func (s *TicketService) resolveTagTickets(ctx context.Context, tagIDs []uint64) ([]uint64, error) {
	var ids []uint64
	tx := s.db.WithContext(ctx).Model(&model.TicketTag{}).Where("tag_id IN ?", tagIDs)
	if s.tagMatch == TagMatchAll {
		err := tx.Group("ticket_id").
			Having("COUNT(DISTINCT tag_id) = ?", len(tagIDs)).
			Pluck("ticket_id", &ids).Error
		return ids, err
	}
	err := tx.Distinct("ticket_id").Pluck("ticket_id", &ids).Error
	return ids, err
}

func (s *TicketService) userQueueIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&model.UserQueue{}).
		Where("user_id = ?", userID).
		Pluck("queue_id", &ids).Error
	return ids, err
}

// queueScope: очередь тикета в наборе либо не задана; пустой набор
// оставляет только тикеты без очереди, а не всю выдачу.
func queueScope(tx *gorm.DB, queueIDs []uint64) *gorm.DB {
	if len(queueIDs) > 0 {
		return tx.Where("(tickets.queue_id IN ? OR tickets.queue_id IS NULL)", queueIDs)
	}
	return tx.Where("tickets.queue_id IS NULL")
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 0, 1)
}
