package server

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"termsweeper/game"
)

var (
	ErrNotFound = errors.New("game not found")
	ErrHubFull  = errors.New("too many games")
)

// Hub はセッションを ID で管理します
type Hub struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxSessions int
	ttl         time.Duration
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewHub(maxSessions int, ttl time.Duration, logger logrus.FieldLogger) *Hub {
	return &Hub{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		ttl:         ttl,
		log:         logger,
		now:         time.Now,
	}
}

// Create は新しい盤面でセッションを作ります
func (h *Hub) Create(width, height, mines int, rng *rand.Rand) (*Session, error) {
	field, err := game.New(width, height, mines, rng)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxSessions > 0 && len(h.sessions) >= h.maxSessions {
		h.removeExpiredLocked()
		if len(h.sessions) >= h.maxSessions {
			return nil, errors.Wrapf(ErrHubFull, "limit %d", h.maxSessions)
		}
	}

	s := newSession(uuid.NewString(), field, rng, h.now())
	h.sessions[s.ID] = s
	h.log.WithFields(logrus.Fields{
		"session": s.ID, "width": width, "height": height, "mines": mines,
	}).Info("game created")
	return s, nil
}

func (h *Hub) Get(id string) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return s, nil
}

func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if ok {
		s.close()
		h.log.WithField("session", id).Info("game removed")
	}
	return ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CleanupExpired は TTL を過ぎたセッションを削除し、その数を返します
func (h *Hub) CleanupExpired() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeExpiredLocked()
}

func (h *Hub) removeExpiredLocked() int {
	now := h.now()
	n := 0
	for id, s := range h.sessions {
		if s.expired(h.ttl, now) {
			delete(h.sessions, id)
			s.close()
			n++
		}
	}
	if n > 0 {
		h.log.WithField("count", n).Info("expired games removed")
	}
	return n
}

// Maintain は ctx が終わるまで定期的に CleanupExpired を呼びます
func (h *Hub) Maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.CleanupExpired()
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.sessions {
		s.close()
	}
	h.sessions = make(map[string]*Session)
}
