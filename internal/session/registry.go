package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrTooMany  = errors.New("too many open sessions")
)

// Factory builds the machine for a new session.
type Factory func(id string) (*execution.Machine, error)

type Config struct {
	Factory      Factory
	TickInterval time.Duration // staleness re-evaluation, default 1s
	IdleTimeout  time.Duration // 0 disables reaping
	MaxSessions  int           // 0 means unlimited
	Now          func() time.Time
	Logger       *logrus.Logger
}

type entry struct {
	machine  *execution.Machine
	stop     context.CancelFunc
	lastUsed time.Time
}

// Registry owns one state machine per session. Each session has exactly one
// owner; closing it resets the machine so nothing resumes later.
type Registry struct {
	cfg    Config
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("session registry: factory is nil")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:      cfg,
		base:     base,
		cancel:   cancel,
		sessions: make(map[string]*entry),
	}, nil
}

// Create opens a session and starts its staleness watcher.
func (r *Registry) Create() (string, *execution.Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		return "", nil, ErrTooMany
	}

	id := uuid.NewString()
	m, err := r.cfg.Factory(id)
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	ctx, stop := context.WithCancel(r.base)
	go m.Watch(ctx, r.cfg.TickInterval)

	r.sessions[id] = &entry{machine: m, stop: stop, lastUsed: r.cfg.Now()}
	r.cfg.Logger.WithField("session", id).Info("session opened")
	return id, m, nil
}

// Get returns the session's machine and marks it used.
func (r *Registry) Get(id string) (*execution.Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastUsed = r.cfg.Now()
	return e.machine, nil
}

// Close tears a session down: the watcher stops and the machine goes back to
// idle, discarding any in-flight result.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	e.stop()
	e.machine.Close()
	r.cfg.Logger.WithField("session", id).Info("session closed")
	return nil
}

// Len is the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap closes sessions unused for longer than IdleTimeout and returns how
// many it closed.
func (r *Registry) Reap() int {
	if r.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := r.cfg.Now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	var idle []string
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, id := range idle {
		if r.Close(id) == nil {
			n++
		}
	}
	if n > 0 {
		r.cfg.Logger.WithField("count", n).Info("reaped idle sessions")
	}
	return n
}

// RunReaper calls Reap every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration) {
	if r.cfg.IdleTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = r.cfg.IdleTimeout / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap()
		}
	}
}

// CloseAll tears down every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		_ = r.Close(id)
	}
	r.cancel()
}
