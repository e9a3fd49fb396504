package chat

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatstream/internal/model"
	"github.com/capitalize-ai/chatstream/pkg/logger"
	"github.com/capitalize-ai/chatstream/pkg/metrics"
)

// Registry keeps the live sessions of a gateway process.
type Registry struct {
	cfg  Config
	deps Deps
	log  *logger.Logger

	// In-memory only; saved transcripts live in the sinks.
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewRegistry creates a registry building sessions from cfg and deps.
// cfg.Username is replaced by the owner of each session.
func NewRegistry(cfg Config, deps Deps) *Registry {
	return &Registry{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Logger.OrNop(),
		sessions: make(map[string]*Session),
	}
}

// Create opens a session for username, replaying req.Messages if given.
func (r *Registry) Create(username string, req *model.CreateChatRequest) (*Session, error) {
	cfg := r.cfg
	cfg.Username = username
	s := NewSession(cfg, r.deps)

	if req != nil && (len(req.Messages) > 0 || req.ChatStarted != "") {
		if err := s.Restore(req.ChatStarted, req.Messages); err != nil {
			return nil, fmt.Errorf("restore chat: %w", err)
		}
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	metrics.SessionsActive.Inc()

	r.log.Info("chat created",
		zap.String("chat_id", s.ID),
		zap.String("username", username),
		zap.Int("messages", len(s.Messages())),
	)
	return s, nil
}

// Get returns the session id owned by username.
func (r *Registry) Get(username, id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok || s.Username() != username {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns the sessions of username, oldest first.
func (r *Registry) List(username string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, s := range r.sessions {
		if s.Username() == username {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete stops and drops a session.
func (r *Registry) Delete(username, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.Username() != username {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	s.Close()
	metrics.SessionsActive.Dec()
	return nil
}

// Close stops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.Close()
		delete(r.sessions, id)
		metrics.SessionsActive.Dec()
	}
}
