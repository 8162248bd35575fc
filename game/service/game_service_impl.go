package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/gsp-board/game/economy"
	"github.com/wricardo/gsp-board/game/engine"
	"github.com/wricardo/gsp-board/game/resolver"
	"github.com/wricardo/gsp-board/game/scene"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	notifier Notifier
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewGameService creates a new game service instance. notifier may be nil.
func NewGameService(sessions SessionManager, configs ConfigManager, notifier Notifier, logger *slog.Logger) GameService {
	if logger == nil {
		logger = slog.Default()
	}
	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		notifier: notifier,
		logger:   logger,
	}
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

// CreateMatch starts a new match and runs it up to the first dice roll
func (s *gameServiceImpl) CreateMatch(ctx context.Context, configName string) (*MatchInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		cfg      *engine.MatchConfig
		configID = configName
		err      error
	)
	if configName != "" {
		cfg, err = s.configs.LoadConfig(configName)
		if err != nil {
			if strings.Contains(err.Error(), "configuration not found") {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, c := range availableConfigs {
						configIDs = append(configIDs, c.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		cfg = s.configs.GetDefault()
		configID = s.getConfigID(cfg.Name)
	}

	match, err := s.sessions.Create("", configID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	if _, err := match.Machine.Settle(0); err != nil {
		return nil, fmt.Errorf("failed to start match: %w", err)
	}

	info := s.matchInfo(match)
	s.logger.Info("match created", "match", match.ID, "config", configID, "players", cfg.NumPlayers)
	s.notify(match.ID, EventMatchCreated, info)
	return info, nil
}

// GetMatch retrieves match information
func (s *gameServiceImpl) GetMatch(ctx context.Context, matchID string) (*MatchInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	return s.matchInfo(match), nil
}

// ListMatches returns all active matches
func (s *gameServiceImpl) ListMatches(ctx context.Context) ([]*MatchInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.sessions.List()
	result := make([]*MatchInfo, 0, len(matches))
	for _, m := range matches {
		result = append(result, s.matchInfo(m))
	}
	return result, nil
}

// DeleteMatch removes a match
func (s *gameServiceImpl) DeleteMatch(ctx context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(matchID); err != nil {
		return fmt.Errorf("%w: %w", ErrMatchNotFound, err)
	}
	s.logger.Info("match deleted", "match", matchID)
	s.notify(matchID, EventMatchDeleted, nil)
	return nil
}

// Confirm presses the action button for the current player
func (s *gameServiceImpl) Confirm(ctx context.Context, matchID string) (*TurnResult, error) {
	return s.signal(matchID, "confirm", true, func(m *Match) (*resolver.Outcome, error) {
		return nil, m.Machine.Confirm()
	})
}

// RequestAction asks for the default map event
func (s *gameServiceImpl) RequestAction(ctx context.Context, matchID string) (*TurnResult, error) {
	return s.signal(matchID, "request_action", true, func(m *Match) (*resolver.Outcome, error) {
		return nil, m.Machine.RequestAction()
	})
}

// TriggerAction forces a specific map event
func (s *gameServiceImpl) TriggerAction(ctx context.Context, matchID, actionType, resourceType string) (*TurnResult, error) {
	actionType = strings.ToUpper(strings.TrimSpace(actionType))
	resourceType = strings.ToUpper(strings.TrimSpace(resourceType))
	return s.signal(matchID, "trigger_action", true, func(m *Match) (*resolver.Outcome, error) {
		if err := m.Machine.TriggerAction(actionType, resourceType); err != nil {
			return nil, err
		}
		if out, running := m.Resolver.Current(); running {
			return &out, nil
		}
		return nil, nil
	})
}

// Acknowledge finishes the running map event
func (s *gameServiceImpl) Acknowledge(ctx context.Context, matchID string) (*TurnResult, error) {
	return s.signal(matchID, "acknowledge", true, func(m *Match) (*resolver.Outcome, error) {
		out, err := m.Resolver.Acknowledge()
		if err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// EndTurn forces the end of the current turn
func (s *gameServiceImpl) EndTurn(ctx context.Context, matchID string) (*TurnResult, error) {
	return s.signal(matchID, "end_turn", true, func(m *Match) (*resolver.Outcome, error) {
		m.Machine.EndTurnNow()
		return nil, nil
	})
}

// Advance steps to the next state without running its work
func (s *gameServiceImpl) Advance(ctx context.Context, matchID string) (*TurnResult, error) {
	return s.signal(matchID, "advance", false, func(m *Match) (*resolver.Outcome, error) {
		m.Machine.AdvanceToNextState()
		return nil, nil
	})
}

// Tick runs a single machine tick
func (s *gameServiceImpl) Tick(ctx context.Context, matchID string) (*TurnResult, error) {
	return s.signal(matchID, "tick", false, func(m *Match) (*resolver.Outcome, error) {
		_, _, err := m.Machine.Tick()
		return nil, err
	})
}

// signal applies fn to a match and, when settle is set, runs the machine until it waits again
func (s *gameServiceImpl) signal(matchID, name string, settle bool, fn func(m *Match) (*resolver.Outcome, error)) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}

	mark := match.Machine.TransitionCount()
	outcome, err := fn(match)
	if err != nil {
		return nil, err
	}

	if settle {
		if _, err := match.Machine.Settle(0); err != nil {
			return nil, fmt.Errorf("settle: %w", err)
		}
	}
	fired := match.Machine.TransitionsSince(mark)

	turn := match.Machine.Snapshot()
	result := &TurnResult{
		MatchID:     match.ID,
		Signal:      name,
		Transitions: fired,
		Turn:        turn,
		Outcome:     outcome,
		Message:     turn.Status.Prompt,
		Timestamp:   time.Now(),
	}

	s.logger.Debug("signal", "match", match.ID, "signal", name, "state", turn.State, "player", turn.PlayerIndex, "transitions", len(fired))
	s.notify(match.ID, EventTurnUpdate, result)
	return result, nil
}

// GetEntity returns an entity and its economy
func (s *gameServiceImpl) GetEntity(ctx context.Context, matchID, entityID string) (*EntityInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	ent, _, err := match.entity(entityID)
	if err != nil {
		return nil, err
	}
	info := entityInfo(ent)
	return &info, nil
}

// Pickup adds a resource to an entity's pack
func (s *gameServiceImpl) Pickup(ctx context.Context, matchID, entityID string, req PickupRequest) (*EntityInfo, error) {
	return s.economyOp(matchID, entityID, func(ent *scene.Entity, e *economy.Economy) error {
		if req.Kind != "" {
			return e.PickupNamed(strings.ToUpper(req.Kind), req.Value, req.Weight)
		}
		return e.PickupResource(req.Value, req.Weight)
	})
}

// SetMaxWeight changes an entity's carry capacity
func (s *gameServiceImpl) SetMaxWeight(ctx context.Context, matchID, entityID string, maxWeight int) (*EntityInfo, error) {
	return s.economyOp(matchID, entityID, func(ent *scene.Entity, e *economy.Economy) error {
		e.SetMaxWeight(maxWeight)
		return nil
	})
}

// RemoveAlly drops one ally of an owner
func (s *gameServiceImpl) RemoveAlly(ctx context.Context, matchID, ownerID, allyID string, destroy bool) (*EntityInfo, error) {
	return s.economyOp(matchID, ownerID, func(ent *scene.Entity, e *economy.Economy) error {
		return e.RemoveAlly(allyID, destroy)
	})
}

func (s *gameServiceImpl) economyOp(matchID, entityID string, fn func(*scene.Entity, *economy.Economy) error) (*EntityInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	ent, e, err := match.entity(entityID)
	if err != nil {
		return nil, err
	}
	if err := fn(ent, e); err != nil {
		return nil, err
	}

	info := entityInfo(ent)
	s.notify(match.ID, EventEconomyUpdate, info)
	return &info, nil
}

// Sell converts an entity's pack into currency for it or its owner
func (s *gameServiceImpl) Sell(ctx context.Context, matchID, entityID string) (*SaleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	ent, e, err := match.entity(entityID)
	if err != nil {
		return nil, err
	}

	credited, to := e.SellResources()
	result := &SaleResult{
		Credited:   credited,
		CreditedTo: to.ID(),
		Seller:     entityInfo(ent),
		Recipient:  entityInfo(ent),
	}
	if to != e {
		if recipient, err := match.Registry.Get(to.ID()); err == nil {
			result.Recipient = entityInfo(recipient)
		}
	}

	s.notify(match.ID, EventEconomyUpdate, result)
	return result, nil
}

// AdjustCurrency adds a positive delta or removes a negative one
func (s *gameServiceImpl) AdjustCurrency(ctx context.Context, matchID, entityID string, delta int) (*CurrencyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	ent, e, err := match.entity(entityID)
	if err != nil {
		return nil, err
	}

	applied := delta
	if delta >= 0 {
		if err := e.AddCurrency(delta); err != nil {
			return nil, err
		}
	} else {
		removed, err := e.RemoveCurrency(-delta)
		if err != nil {
			return nil, err
		}
		applied = -removed
	}

	result := &CurrencyResult{Requested: delta, Applied: applied, Entity: entityInfo(ent)}
	s.notify(match.ID, EventEconomyUpdate, result.Entity)
	return result, nil
}

// SpawnAlly places a new ally beside its owner
func (s *gameServiceImpl) SpawnAlly(ctx context.Context, matchID, ownerID string) (*EntityInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	owner, e, err := match.entity(ownerID)
	if err != nil {
		return nil, err
	}

	pos := owner.Position
	pos.X += 48 * float64(e.NumAllies()+1)
	ally, err := match.Registry.Instantiate(match.Config.MapEvents.AllyPrefab, pos)
	if err != nil {
		return nil, fmt.Errorf("spawn ally: %w", err)
	}
	if err := e.AddAlly(ally.Economy); err != nil {
		if derr := match.Registry.Destroy(ally.ID); derr != nil {
			s.logger.Warn("failed to clean up ally", "match", match.ID, "ally", ally.ID, "error", derr)
		}
		return nil, err
	}

	info := entityInfo(ally)
	s.notify(match.ID, EventEconomyUpdate, entityInfo(owner))
	return &info, nil
}

// RemoveAllAllies removes every ally an owner has
func (s *gameServiceImpl) RemoveAllAllies(ctx context.Context, matchID, ownerID string, destroy bool) (*AllyRemoval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	owner, e, err := match.entity(ownerID)
	if err != nil {
		return nil, err
	}

	removed, err := e.RemoveAllAllies(destroy)
	if err != nil {
		return nil, err
	}
	result := &AllyRemoval{Removed: removed, Owner: entityInfo(owner)}
	s.notify(match.ID, EventEconomyUpdate, result.Owner)
	return result, nil
}

// GetHistory returns paginated transition history
func (s *gameServiceImpl) GetHistory(ctx context.Context, matchID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}

	history := match.Machine.History()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}
	if opts.Order != "asc" && opts.Order != "desc" {
		return nil, fmt.Errorf("%w: order must be asc or desc, got %q", ErrInvalidInput, opts.Order)
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var transitions []engine.Transition
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			transitions = append(transitions, history[i])
		}
	} else if start < total {
		transitions = history[start:end]
	}

	if transitions == nil {
		transitions = []engine.Transition{}
	}

	return &HistoryResponse{
		Transitions:      transitions,
		TotalTransitions: total,
		Page:             opts.Page,
		PageSize:         opts.Limit,
		TotalPages:       totalPages,
		HasNext:          opts.Page < totalPages,
		HasPrevious:      opts.Page > 1,
	}, nil
}

// GetEvents returns the finished map events of a match, oldest first
func (s *gameServiceImpl) GetEvents(ctx context.Context, matchID string) ([]resolver.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	return match.Resolver.Outcomes(), nil
}

// ListConfigs returns available match configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific match configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.MatchConfig, error) {
	cfg, err := s.configs.LoadConfig(configName)
	if err != nil && strings.Contains(err.Error(), "configuration not found") {
		return nil, fmt.Errorf("%w: %w", ErrConfigNotFound, err)
	}
	return cfg, err
}

// SaveConfig saves a match configuration to disk. Zero carry limits, capacities
// and tolls are kept; build on engine.NewMatchConfig for their defaults.
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.MatchConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is required", ErrInvalidInput)
	}
	engine.FillDefaults(config)
	return s.configs.SaveConfig(configName, config)
}

func (s *gameServiceImpl) getMatch(matchID string) (*Match, error) {
	match, err := s.sessions.Get(matchID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMatchNotFound, err)
	}
	s.sessions.UpdateLastAccessed(matchID)
	return match, nil
}

func (s *gameServiceImpl) notify(matchID, event string, data interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastEvent(matchID, event, data)
}

func (s *gameServiceImpl) matchInfo(m *Match) *MatchInfo {
	info := &MatchInfo{
		ID:             m.ID,
		ConfigName:     m.ConfigID,
		CreatedAt:      m.CreatedAt,
		LastAccessedAt: m.CreatedAt,
		Turn:           m.Machine.Snapshot(),
		Players:        []EntityInfo{},
		Allies:         []EntityInfo{},
		MatchConfig:    m.Config,
	}
	if at, err := s.sessions.LastAccessed(m.ID); err == nil {
		info.LastAccessedAt = at
	}
	for _, ent := range m.Registry.All() {
		switch ent.Tag {
		case scene.TagPlayer:
			info.Players = append(info.Players, entityInfo(ent))
		case scene.TagAlly:
			info.Allies = append(info.Allies, entityInfo(ent))
		}
	}
	if out, running := m.Resolver.Current(); running {
		info.RunningEvent = &out
	}
	return info
}

func entityInfo(ent *scene.Entity) EntityInfo {
	info := EntityInfo{
		ID:       ent.ID,
		Tag:      ent.Tag,
		Prefab:   ent.Prefab,
		Position: ent.Position,
	}
	if ent.Economy != nil {
		info.Economy = ent.Economy.Snapshot()
	}
	return info
}

// IsNotFound reports whether err means a match, entity or config does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMatchNotFound) || errors.Is(err, ErrConfigNotFound) || errors.Is(err, scene.ErrEntityNotFound)
}
