package session

import (
	"context"
	"sync"
	"time"

	"SkillChat/internal/ai"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry хранит сессии в памяти по идентификатору из cookie.
type Registry struct {
	opts    Options
	factory ai.Factory
	logger  *zap.SugaredLogger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(opts Options, factory ai.Factory, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		opts:     opts,
		factory:  factory,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create открывает новую сессию с пустым журналом и параметрами по умолчанию.
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	s := newSession(id, r.opts, r.factory, r.logger, r.now)
	r.mu.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()
	r.logger.Infow("Сессия создана", "session", id, "total", n)
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrCreate возвращает существующую сессию или создаёт новую (created=true).
func (r *Registry) GetOrCreate(id string) (s *Session, created bool) {
	if s, ok := r.Get(id); ok {
		return s, false
	}
	return r.Create(), true
}

// Remove завершает сессию.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep удаляет сессии без активности дольше ttl. Занятые сессии не трогаются.
func (r *Registry) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.Busy() || s.IdleFor() < ttl {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	if removed > 0 {
		r.logger.Infow("Неактивные сессии удалены", "removed", removed, "left", len(r.sessions))
	}
	return removed
}

// Run периодически чистит сессии до отмены контекста.
func (r *Registry) Run(ctx context.Context, interval, ttl time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-t.C:
			r.Sweep(ttl)
		}
	}
}
