package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/gsp-board/game/economy"
	"github.com/wricardo/gsp-board/game/engine"
	"github.com/wricardo/gsp-board/game/resolver"
	"github.com/wricardo/gsp-board/game/scene"
)

var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrConfigNotFound = errors.New("config not found")
	ErrInvalidInput   = errors.New("invalid input")
)

// GameService defines all match-related operations
type GameService interface {
	// Match Management
	CreateMatch(ctx context.Context, configName string) (*MatchInfo, error)
	GetMatch(ctx context.Context, matchID string) (*MatchInfo, error)
	ListMatches(ctx context.Context) ([]*MatchInfo, error)
	DeleteMatch(ctx context.Context, matchID string) error

	// Turn Signals
	Confirm(ctx context.Context, matchID string) (*TurnResult, error)
	RequestAction(ctx context.Context, matchID string) (*TurnResult, error)
	TriggerAction(ctx context.Context, matchID, actionType, resourceType string) (*TurnResult, error)
	Acknowledge(ctx context.Context, matchID string) (*TurnResult, error)
	EndTurn(ctx context.Context, matchID string) (*TurnResult, error)
	Advance(ctx context.Context, matchID string) (*TurnResult, error)
	Tick(ctx context.Context, matchID string) (*TurnResult, error)

	// Economy
	GetEntity(ctx context.Context, matchID, entityID string) (*EntityInfo, error)
	Pickup(ctx context.Context, matchID, entityID string, req PickupRequest) (*EntityInfo, error)
	Sell(ctx context.Context, matchID, entityID string) (*SaleResult, error)
	AdjustCurrency(ctx context.Context, matchID, entityID string, delta int) (*CurrencyResult, error)
	SetMaxWeight(ctx context.Context, matchID, entityID string, maxWeight int) (*EntityInfo, error)

	// Allies
	SpawnAlly(ctx context.Context, matchID, ownerID string) (*EntityInfo, error)
	RemoveAlly(ctx context.Context, matchID, ownerID, allyID string, destroy bool) (*EntityInfo, error)
	RemoveAllAllies(ctx context.Context, matchID, ownerID string, destroy bool) (*AllyRemoval, error)

	// History
	GetHistory(ctx context.Context, matchID string, opts HistoryOptions) (*HistoryResponse, error)
	GetEvents(ctx context.Context, matchID string) ([]resolver.Outcome, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.MatchConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.MatchConfig) error
}

// SessionManager defines match storage operations
type SessionManager interface {
	Create(id, configID string, config *engine.MatchConfig) (*Match, error)
	Get(id string) (*Match, error)
	List() []*Match
	Delete(id string) error
	UpdateLastAccessed(id string) error
	LastAccessed(id string) (time.Time, error)
}

// ConfigManager handles match configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.MatchConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.MatchConfig
	SaveConfig(name string, config *engine.MatchConfig) error
}

// Notifier pushes match events to connected clients
type Notifier interface {
	BroadcastEvent(matchID string, event string, data interface{})
}

// Match is one running hot-seat match and everything it owns.
// LastAccessedAt is written by the SessionManager under its own lock; read it
// through SessionManager.LastAccessed.
type Match struct {
	ID             string
	ConfigID       string
	Config         *engine.MatchConfig
	Machine        *engine.Machine
	Registry       *scene.Registry
	Resolver       *resolver.Resolver
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// entity returns the economy-bearing entity with the given ID
func (m *Match) entity(id string) (*scene.Entity, *economy.Economy, error) {
	ent, err := m.Registry.Get(id)
	if err != nil {
		return nil, nil, err
	}
	return ent, ent.Economy, nil
}
