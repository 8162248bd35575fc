package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/gsp-board/game/economy"
	"github.com/wricardo/gsp-board/game/engine"
	"github.com/wricardo/gsp-board/game/resolver"
	"github.com/wricardo/gsp-board/game/scene"
	"github.com/wricardo/gsp-board/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// Option configures a Manager
type Option func(*Manager)

// WithDisplay sets how each match shows its path options
func WithDisplay(display func(matchID string) engine.PathDisplay) Option {
	return func(m *Manager) { m.display = display }
}

// WithDice sets the die source for new matches
func WithDice(dice func() engine.DieRoller) Option {
	return func(m *Manager) { m.dice = dice }
}

// WithLogger sets the logger matches and the manager write to
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager handles match lifecycle
type Manager struct {
	sessions map[string]*service.Match
	display  func(matchID string) engine.PathDisplay
	dice     func() engine.DieRoller
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewManager creates a new session manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*service.Match),
		display:  service.DisplayFor(nil),
		dice:     func() engine.DieRoller { return engine.NewRandomDie(0) },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create builds a match with its board, die, resolver and turn machine
func (m *Manager) Create(id, configID string, config *engine.MatchConfig) (*service.Match, error) {
	if id == "" {
		id = m.generateSessionID()
	}
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "/ ") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	if config == nil {
		config = engine.DefaultMatchConfig()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check if session already exists (case-insensitive)
	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	logger := m.logger.With("match", id)
	registry := scene.NewRegistry(scene.DefaultPrefabs(), economy.DefaultMaxWeight)
	dice := m.dice()
	res := resolver.New(registry, config, dice, logger)

	machine, err := engine.NewMachine(config, engine.Collaborators{
		Dice:     dice,
		Resolver: res,
		Display:  m.display(id),
		Factory:  registry,
	}, engine.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create machine: %w", err)
	}

	now := time.Now()
	match := &service.Match{
		ID:             id,
		ConfigID:       configID,
		Config:         config,
		Machine:        machine,
		Registry:       registry,
		Resolver:       res,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	m.sessions[strings.ToLower(id)] = match
	return match, nil
}

// Get retrieves a match by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	match, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return match, nil
}

// List returns all active matches, oldest first
func (m *Manager) List() []*service.Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Match, 0, len(m.sessions))
	for _, match := range m.sessions {
		result = append(result, match)
	}
	sortByCreation(result)
	return result
}

// Delete removes a match
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	if _, exists := m.sessions[lowerID]; !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, lowerID)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a match
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return ErrSessionNotFound
	}
	match.LastAccessedAt = time.Now()
	return nil
}

// LastAccessed returns when a match was last used. Readers must go through here
// because UpdateLastAccessed writes the timestamp under the manager lock.
func (m *Manager) LastAccessed(id string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	match, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return time.Time{}, ErrSessionNotFound
	}
	return match.LastAccessedAt, nil
}

// CleanupExpiredSessions removes matches that haven't been accessed in the given duration
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, match := range m.sessions {
		if match.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("expired matches removed", "count", removed)
	}
	return removed
}

// Count returns the number of active matches
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// 2 random bytes are 4 hex characters; retry on the rare collision
	for {
		bytes := make([]byte, 2)
		rand.Read(bytes)
		id := hex.EncodeToString(bytes)
		if !m.sessionExists(id) {
			return id
		}
	}
}

// sessionExists checks if a session exists (case-insensitive)
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}

func sortByCreation(matches []*service.Match) {
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
}
