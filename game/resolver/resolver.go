// Package resolver plays out map events for the player whose turn it is.
//
// An event starts with Begin and keeps the resolver running until Acknowledge, which is
// how the turn machine knows to stay in DoAction while the player reads the result.
// NOTHING finishes immediately.
package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/wricardo/gsp-board/game/engine"
	"github.com/wricardo/gsp-board/game/scene"
)

// MaxOutcomes is how many finished events the resolver remembers
const MaxOutcomes = 100

var (
	ErrBusy            = errors.New("a map event is already running")
	ErrNotRunning      = errors.New("no map event is running")
	ErrNoPlayer        = errors.New("player has no economy")
	ErrUnknownResource = errors.New("unknown resource kind")
)

// Spawner places new entities on the board
type Spawner interface {
	Instantiate(prefab string, pos scene.Position) (*scene.Entity, error)
}

// Outcome is what one map event did to a player
type Outcome struct {
	Event    string    `json:"event"`
	Resource string    `json:"resource,omitempty"`
	PlayerID string    `json:"player_id"`
	Roll     int       `json:"roll,omitempty"`
	GoldLost int       `json:"gold_lost,omitempty"`
	Value    int       `json:"value,omitempty"`
	Weight   int       `json:"weight,omitempty"`
	AllyID   string    `json:"ally_id,omitempty"`
	Rejected string    `json:"rejected,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Resolver implements engine.ActionResolver
type Resolver struct {
	spawner Spawner
	cfg     *engine.MatchConfig
	dice    engine.DieRoller
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	current  Outcome
	outcomes []Outcome
}

// New creates a resolver. Enemy tolls and random items are rolled with dice.
func New(spawner Spawner, cfg *engine.MatchConfig, dice engine.DieRoller, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		spawner: spawner,
		cfg:     cfg,
		dice:    dice,
		logger:  logger,
	}
}

// Begin starts a map event for player
func (r *Resolver) Begin(player *scene.Entity, eventType, resourceType string) error {
	if player == nil || player.Economy == nil {
		return ErrNoPlayer
	}
	if !engine.IsKnownEvent(eventType) {
		return fmt.Errorf("%w: %q", engine.ErrUnknownEvent, eventType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("%w: %s", ErrBusy, r.current.Event)
	}

	out := Outcome{Event: eventType, Resource: resourceType, PlayerID: player.ID, At: time.Now()}
	var err error
	switch eventType {
	case engine.EventNothing:
		out.Message = "Nothing happens"
	case engine.EventEnemy:
		err = r.enemy(player, &out)
	case engine.EventItem:
		err = r.item(player, &out)
	case engine.EventAlly:
		err = r.ally(player, &out)
	}
	if err != nil {
		return err
	}

	r.logger.Info("map event", "event", eventType, "player", player.ID, "message", out.Message)

	if eventType == engine.EventNothing {
		r.record(out)
		return nil
	}
	r.current = out
	r.running = true
	return nil
}

func (r *Resolver) enemy(player *scene.Entity, out *Outcome) error {
	out.Roll = r.dice.Roll(r.cfg.DieMin, r.cfg.DieMax)
	lost, err := player.Economy.RemoveCurrency(out.Roll * r.cfg.MapEvents.EnemyToll)
	if err != nil {
		return fmt.Errorf("enemy toll: %w", err)
	}
	out.GoldLost = lost
	out.Message = fmt.Sprintf("An enemy ambush costs %d gold", lost)
	return nil
}

func (r *Resolver) item(player *scene.Entity, out *Outcome) error {
	kind := out.Resource
	if kind == "" {
		kinds := r.itemKinds()
		if len(kinds) == 0 {
			return fmt.Errorf("%w: item table is empty", ErrUnknownResource)
		}
		kind = kinds[r.dice.Roll(1, len(kinds))-1]
		out.Resource = kind
	}

	spec, ok := r.cfg.MapEvents.Items[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownResource, kind)
	}

	if err := player.Economy.PickupNamed(kind, spec.Value, spec.Weight); err != nil {
		// Too heavy is a result the player sees, not a failure of the event
		out.Rejected = err.Error()
		out.Message = fmt.Sprintf("Found %s but it is too heavy to carry", kind)
		return nil
	}
	out.Value = spec.Value
	out.Weight = spec.Weight
	out.Message = fmt.Sprintf("Picked up %s worth %d", kind, spec.Value)
	return nil
}

func (r *Resolver) ally(player *scene.Entity, out *Outcome) error {
	pos := player.Position
	pos.X += 48 * float64(player.Economy.NumAllies()+1)

	ent, err := r.spawner.Instantiate(r.cfg.MapEvents.AllyPrefab, pos)
	if err != nil {
		return fmt.Errorf("spawn ally: %w", err)
	}
	if err := player.Economy.AddAlly(ent.Economy); err != nil {
		return fmt.Errorf("add ally: %w", err)
	}
	out.AllyID = ent.ID
	out.Message = "A wanderer joins your party"
	return nil
}

func (r *Resolver) itemKinds() []string {
	kinds := make([]string, 0, len(r.cfg.MapEvents.Items))
	for k := range r.cfg.MapEvents.Items {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// IsRunning reports whether an event waits to be acknowledged
func (r *Resolver) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Current returns the running event, if any
func (r *Resolver) Current() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.running
}

// Acknowledge finishes the running event and returns its outcome
func (r *Resolver) Acknowledge() (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return Outcome{}, ErrNotRunning
	}
	out := r.current
	r.running = false
	r.current = Outcome{}
	r.record(out)
	return out, nil
}

// Outcomes returns finished events, oldest first
func (r *Resolver) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

func (r *Resolver) record(out Outcome) {
	r.outcomes = append(r.outcomes, out)
	if len(r.outcomes) > MaxOutcomes {
		r.outcomes = r.outcomes[len(r.outcomes)-MaxOutcomes:]
	}
}
