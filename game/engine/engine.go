package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wricardo/gsp-board/game/economy"
	"github.com/wricardo/gsp-board/game/scene"
)

var (
	ErrMissingCollaborator = errors.New("missing collaborator")
	ErrPlayerIndex         = errors.New("player index out of range")
	ErrNotAwaitingInput    = errors.New("machine is not waiting for input")
	ErrAlreadyConfirmed    = errors.New("input already given in this state")
	ErrUnknownEvent        = errors.New("unknown map event")
	ErrNotSettled          = errors.New("machine did not settle")
)

// Option configures a Machine
type Option func(*Machine)

// WithLogger sets the logger transitions are written to
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Machine runs the turn cycle of a hot-seat match
type Machine struct {
	cfg    *MatchConfig
	deps   Collaborators
	logger *slog.Logger

	state           State
	players         []*scene.Entity
	current         int
	lastRoll        int
	travelDistance  int
	pendingAction   string
	pendingResource string

	confirmed       bool
	actionRequested bool
	presented       bool

	status  Status
	history []Transition
	fired   int
	ticks   int

	mu sync.Mutex
}

// Snapshot is a consistent copy of the machine's state
type Snapshot struct {
	State           State  `json:"state"`
	PlayerIndex     int    `json:"player_index"`
	NumPlayers      int    `json:"num_players"`
	LastRoll        int    `json:"last_roll"`
	TravelDistance  int    `json:"travel_distance"`
	PendingAction   string `json:"pending_action"`
	PendingResource string `json:"pending_resource"`
	Confirmed       bool   `json:"confirmed"`
	ActionRequested bool   `json:"action_requested"`
	AwaitingInput   bool   `json:"awaiting_input"`
	Ticks           int    `json:"ticks"`
	Status          Status `json:"status"`
}

// NewMachine validates cfg, spawns the players through the factory and
// returns a machine in BeginTurn with player 1 to move.
func NewMachine(cfg *MatchConfig, deps Collaborators, opts ...Option) (*Machine, error) {
	if cfg == nil {
		cfg = DefaultMatchConfig()
	}
	if err := ValidateMatchConfig(cfg); err != nil {
		return nil, err
	}

	switch {
	case deps.Dice == nil:
		return nil, fmt.Errorf("%w: die roller", ErrMissingCollaborator)
	case deps.Resolver == nil:
		return nil, fmt.Errorf("%w: action resolver", ErrMissingCollaborator)
	case deps.Display == nil:
		return nil, fmt.Errorf("%w: path display", ErrMissingCollaborator)
	case deps.Factory == nil:
		return nil, fmt.Errorf("%w: entity factory", ErrMissingCollaborator)
	}

	m := &Machine{
		cfg:           cfg,
		deps:          deps,
		logger:        slog.Default(),
		state:         BeginTurn,
		current:       1,
		pendingAction: EventNothing,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.spawnPlayers(); err != nil {
		return nil, err
	}
	m.resetStatus()

	m.logger.Info("match started", "players", len(m.players), "formula", cfg.DistanceFormula)
	return m, nil
}

// SpawnPosition returns where the i-th player (0-based) is placed on the board
func SpawnPosition(i int) scene.Position {
	return scene.Position{X: 32, Y: 32 + 64*float64(i+1), Z: -1.6}
}

func (m *Machine) spawnPlayers() error {
	for i := 0; i < m.cfg.NumPlayers; i++ {
		ent, err := m.deps.Factory.Instantiate(scene.PrefabCharacter, SpawnPosition(i))
		if err != nil {
			return fmt.Errorf("spawn player %d: %w", i+1, err)
		}
		if ent.Economy == nil {
			return fmt.Errorf("spawn player %d: entity %s has no economy", i+1, ent.ID)
		}
		ent.Economy.SetMaxWeight(m.cfg.StartingMaxWeight)
		if err := ent.Economy.AddCurrency(m.cfg.StartingCurrency); err != nil {
			return fmt.Errorf("spawn player %d: %w", i+1, err)
		}
	}

	players, err := m.deps.Factory.FindAllTagged(scene.TagPlayer)
	if err != nil {
		return fmt.Errorf("find players: %w", err)
	}
	if len(players) != m.cfg.NumPlayers {
		return fmt.Errorf("find players: expected %d, found %d", m.cfg.NumPlayers, len(players))
	}
	m.players = players
	return nil
}

// Config returns the match configuration
func (m *Machine) Config() *MatchConfig {
	return m.cfg
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PlayerIndex returns the 1-based index of the player whose turn it is
func (m *Machine) PlayerIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastRoll returns the most recent die roll of this turn
func (m *Machine) LastRoll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRoll
}

// TravelDistance returns the distance computed this turn
func (m *Machine) TravelDistance() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.travelDistance
}

// Status returns a copy of the status bar values
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// History returns the recorded transitions, oldest first
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// TransitionCount returns how many transitions the machine has ever made,
// including those trimmed from History
func (m *Machine) TransitionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fired
}

// TransitionsSince returns the transitions made after mark, a value taken
// from TransitionCount. Only the retained part of history can be returned.
func (m *Machine) TransitionsSince(mark int) []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.fired - mark
	if n <= 0 {
		return []Transition{}
	}
	if n > len(m.history) {
		n = len(m.history)
	}
	out := make([]Transition, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

// Players returns the player entities in turn order
func (m *Machine) Players() []*scene.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*scene.Entity, len(m.players))
	copy(out, m.players)
	return out
}

// CurrentPlayer returns the entity whose turn it is
func (m *Machine) CurrentPlayer() (*scene.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentPlayer()
}

func (m *Machine) currentPlayer() (*scene.Entity, error) {
	if m.current < 1 || m.current > len(m.players) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPlayerIndex, m.current, len(m.players))
	}
	return m.players[m.current-1], nil
}

// Snapshot returns the machine's state taken under one lock
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:           m.state,
		PlayerIndex:     m.current,
		NumPlayers:      len(m.players),
		LastRoll:        m.lastRoll,
		TravelDistance:  m.travelDistance,
		PendingAction:   m.pendingAction,
		PendingResource: m.pendingResource,
		Confirmed:       m.confirmed,
		ActionRequested: m.actionRequested,
		AwaitingInput:   m.state.AwaitsInput(),
		Ticks:           m.ticks,
		Status:          m.status,
	}
}

// Confirm presses the action button. It is accepted once per visit to
// RollDice or SelectPath.
func (m *Machine) Confirm() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.AwaitsInput() {
		return fmt.Errorf("%w: confirm in %s", ErrNotAwaitingInput, m.state)
	}
	if m.confirmed {
		return fmt.Errorf("%w: confirm in %s", ErrAlreadyConfirmed, m.state)
	}
	m.confirmed = true
	return nil
}

// RequestAction asks for the default map event while selecting a path
func (m *Machine) RequestAction() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != SelectPath {
		return fmt.Errorf("%w: action request in %s", ErrNotAwaitingInput, m.state)
	}
	if m.actionRequested {
		return fmt.Errorf("%w: action request in %s", ErrAlreadyConfirmed, m.state)
	}
	m.actionRequested = true
	return nil
}

// TriggerAction forces DoAction and starts the resolver with the given event
func (m *Machine) TriggerAction(actionType, resourceType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !IsKnownEvent(actionType) {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, actionType)
	}
	player, err := m.currentPlayer()
	if err != nil {
		return err
	}
	if err := m.deps.Resolver.Begin(player, actionType, resourceType); err != nil {
		return fmt.Errorf("begin %s: %w", actionType, err)
	}
	m.pendingAction = actionType
	m.pendingResource = resourceType
	m.force(DoAction, "action triggered")
	return nil
}

// EndTurnNow forces EndTurn
func (m *Machine) EndTurnNow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.force(EndTurn, "end turn forced")
}

// AdvanceToNextState moves to the enum successor, wrapping EndTurn to BeginTurn
func (m *Machine) AdvanceToNextState() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state + 1
	if m.state == EndTurn {
		next = BeginTurn
	}
	m.force(next, "advanced")
	return m.state
}

// Tick runs the work of the current state and fires at most one transition.
// The bool reports whether a transition fired.
func (m *Machine) Tick() (Transition, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step()
}

// Settle ticks until the machine waits for a player or the resolver.
// A limit of zero or less uses DefaultSettle.
func (m *Machine) Settle(limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = DefaultSettle
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var fired []Transition
	for i := 0; i < limit; i++ {
		tr, moved, err := m.step()
		if err != nil {
			return fired, err
		}
		if !moved {
			return fired, nil
		}
		fired = append(fired, tr)
	}
	return fired, fmt.Errorf("%w after %d ticks in %s", ErrNotSettled, limit, m.state)
}

func (m *Machine) step() (Transition, bool, error) {
	m.ticks++
	msg := m.cfg.Messages

	switch m.state {
	case BeginTurn:
		player, err := m.currentPlayer()
		if err != nil {
			return Transition{}, false, err
		}
		m.status.PlayerTurn = m.current
		m.status.PlayerID = player.ID
		if m.cfg.Snapshots() {
			m.snapshotEconomy(player.Economy)
		}
		return m.transition(RollDice, "turn begins"), true, nil

	case RollDice:
		m.status.Prompt = fmt.Sprintf(msg.RollPrompt, m.current)
		m.status.ActionLabel = msg.ActionRoll
		m.status.DiceBox = msg.DiceIdle
		if !m.confirmed {
			return Transition{}, false, nil
		}
		m.lastRoll = m.deps.Dice.Roll(m.cfg.DieMin, m.cfg.DieMax)
		tr := m.transition(CalcDistance, "dice rolled")
		tr.Roll = m.lastRoll
		m.history[len(m.history)-1].Roll = m.lastRoll
		return tr, true, nil

	case CalcDistance:
		m.status.Prompt = msg.CalcDistance
		m.travelDistance = TravelDistance(m.cfg.DistanceFormula, m.lastRoll, m.status.Weight, m.status.MaxWeight)
		m.confirmed = false
		return m.transition(DisplayDistance, "distance computed"), true, nil

	case DisplayDistance:
		m.status.Prompt = msg.DisplayDistance
		m.status.DiceBox = fmt.Sprintf(msg.DiceDistance, m.travelDistance)
		return m.transition(SelectPath, "distance shown"), true, nil

	case SelectPath:
		m.status.Prompt = msg.SelectPath
		m.status.ActionLabel = msg.ActionEndTurn
		if !m.presented {
			m.deps.Display.Present(m.travelDistance)
			m.presented = true
		}
		if m.confirmed {
			return m.transition(EndTurn, "path confirmed"), true, nil
		}
		if m.actionRequested {
			m.actionRequested = false
			player, err := m.currentPlayer()
			if err != nil {
				return Transition{}, false, err
			}
			if err := m.deps.Resolver.Begin(player, m.cfg.DefaultAction, ""); err != nil {
				return Transition{}, false, fmt.Errorf("begin %s: %w", m.cfg.DefaultAction, err)
			}
			m.pendingAction = m.cfg.DefaultAction
			m.pendingResource = ""
			return m.transition(DoAction, "action requested"), true, nil
		}
		return Transition{}, false, nil

	case DoAction:
		m.status.Prompt = msg.DoAction
		if m.deps.Resolver.IsRunning() {
			return Transition{}, false, nil
		}
		return m.transition(SelectPath, "action finished"), true, nil

	case EndTurn:
		m.status.Prompt = msg.EndTurn
		m.current++
		if m.current > len(m.players) {
			m.current = 1
		}
		m.resetTurn()
		return m.transition(BeginTurn, "turn ended"), true, nil
	}

	return Transition{}, false, fmt.Errorf("unknown state %s", m.state)
}

func (m *Machine) snapshotEconomy(e *economy.Economy) {
	if e == nil {
		return
	}
	m.status.Gold = e.Currency()
	m.status.Weight = e.ResourceWeight()
	m.status.MaxWeight = e.MaxWeight()
	m.status.Ore = e.Holding(economy.Ore)
	m.status.Wool = e.Holding(economy.Wool)
}

// resetTurn clears everything a turn accumulates
func (m *Machine) resetTurn() {
	m.lastRoll = 0
	m.travelDistance = 0
	m.pendingAction = EventNothing
	m.pendingResource = ""
	m.confirmed = false
	m.actionRequested = false
	m.resetStatus()
}

func (m *Machine) resetStatus() {
	m.status = Status{
		PlayerTurn:  m.current,
		MaxWeight:   m.cfg.StatusMaxWeight,
		ActionLabel: m.cfg.Messages.ActionIdle,
		DiceBox:     m.cfg.Messages.DiceIdle,
	}
	if player, err := m.currentPlayer(); err == nil {
		m.status.PlayerID = player.ID
	}
}

func (m *Machine) force(to State, reason string) {
	m.confirmed = false
	m.actionRequested = false
	m.transition(to, reason)
}

func (m *Machine) transition(to State, reason string) Transition {
	tr := Transition{
		Tick:   m.ticks,
		From:   m.state,
		To:     to,
		Player: m.current,
		Reason: reason,
	}
	m.state = to
	m.presented = false

	m.fired++
	m.history = append(m.history, tr)
	if len(m.history) > MaxHistory {
		m.history = m.history[len(m.history)-MaxHistory:]
	}

	m.logger.Debug("transition", "from", tr.From, "to", tr.To, "player", tr.Player, "reason", reason)
	return tr
}
