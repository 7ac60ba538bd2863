package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/ticket-feed-service/internal/errs"
	"github.com/psds-microservice/ticket-feed-service/internal/filter"
	"github.com/psds-microservice/ticket-feed-service/internal/model"
	"github.com/psds-microservice/ticket-feed-service/internal/session"
)

// SessionHandler — HTTP-поверхность ленты: сессия на потребителя,
// снимки списка и SSE-поток уведомлений.
type SessionHandler struct {
	mgr *session.Manager
}

func NewSessionHandler(mgr *session.Manager) *SessionHandler {
	return &SessionHandler{mgr: mgr}
}

type filterPayload struct {
	Status             string   `json:"status"`
	SearchParam        string   `json:"search_param"`
	ShowAll            bool     `json:"show_all"`
	QueueIDs           []uint64 `json:"queue_ids"`
	TagIDs             []uint64 `json:"tag_ids"`
	Date               string   `json:"date"`
	UpdatedAt          string   `json:"updated_at"`
	WithUnreadMessages bool     `json:"with_unread_messages"`
}

const dayLayout = "2006-01-02"

func (p filterPayload) toState() (filter.State, error) {
	s := filter.State{
		Status:             model.TicketStatus(p.Status),
		SearchParam:        p.SearchParam,
		ShowAll:            p.ShowAll,
		QueueIDs:           p.QueueIDs,
		TagIDs:             p.TagIDs,
		WithUnreadMessages: p.WithUnreadMessages,
	}
	if p.Date != "" {
		d, err := time.ParseInLocation(dayLayout, p.Date, time.Local)
		if err != nil {
			return filter.State{}, err
		}
		s.Date = &d
	}
	if p.UpdatedAt != "" {
		d, err := time.ParseInLocation(dayLayout, p.UpdatedAt, time.Local)
		if err != nil {
			return filter.State{}, err
		}
		s.UpdatedAt = &d
	}
	return s, nil
}

type openSessionRequest struct {
	UserID uint64        `json:"user_id" binding:"required"`
	Filter filterPayload `json:"filter"`
}

// Open создаёт сессию ленты с начальным фильтром.
func (h *SessionHandler) Open(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	f, err := req.Filter.toState()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter date, want YYYY-MM-DD"})
		return
	}
	s := h.mgr.Open(req.UserID, f)
	snap, err := s.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": s.ID(), "list": snap})
}

// List — читаемый снимок текущего состояния ленты.
func (h *SessionHandler) List(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SetFilter заменяет фильтр сессии; лента сбрасывается и перечитывается.
func (h *SessionHandler) SetFilter(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var p filterPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	f, err := p.toState()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter date, want YYYY-MM-DD"})
		return
	}
	if err := s.SetFilter(f); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Scroll — сигнал приближения к концу видимой части ленты.
func (h *SessionHandler) Scroll(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.ScrollNearEnd(); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// Close закрывает сессию и освобождает push-подписку.
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.mgr.Close(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream — SSE-поток: снимок ленты на каждое изменение.
func (h *SessionHandler) Stream(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	changed := make(chan struct{}, 1)
	unsubscribe, err := s.OnListChanged(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	defer unsubscribe()

	snap, err := s.Snapshot()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.SSEvent("tickets", snap)
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case <-changed:
			snap, err := s.Snapshot()
			if err != nil {
				return false
			}
			c.SSEvent("tickets", snap)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *SessionHandler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.mgr.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, errs.ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": "session closed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
