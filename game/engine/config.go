package engine

import (
	"fmt"
	"strings"

	"github.com/wricardo/gsp-board/game/economy"
	"github.com/wricardo/gsp-board/game/scene"
)

// MatchConfig represents the rules of a match, loaded from JSON or YAML
type MatchConfig struct {
	Name              string         `json:"name" yaml:"name"`
	Description       string         `json:"description" yaml:"description"`
	NumPlayers        int            `json:"num_players" yaml:"num_players"`
	StartingCurrency  int            `json:"starting_currency" yaml:"starting_currency"`
	StartingMaxWeight int            `json:"starting_max_weight" yaml:"starting_max_weight"`
	StatusMaxWeight   int            `json:"status_max_weight" yaml:"status_max_weight"`
	SnapshotOnBegin   *bool          `json:"snapshot_on_begin,omitempty" yaml:"snapshot_on_begin,omitempty"`
	DistanceFormula   string         `json:"distance_formula" yaml:"distance_formula"`
	DefaultAction     string         `json:"default_action" yaml:"default_action"`
	DieMin            int            `json:"die_min" yaml:"die_min"`
	DieMax            int            `json:"die_max" yaml:"die_max"`
	MapEvents         MapEventConfig `json:"map_events" yaml:"map_events"`
	Messages          Messages       `json:"messages" yaml:"messages"`
}

// MapEventConfig tunes what map events do to a player
type MapEventConfig struct {
	// EnemyToll is the gold lost per die pip in an enemy encounter
	EnemyToll  int                 `json:"enemy_toll" yaml:"enemy_toll"`
	Items      map[string]ItemSpec `json:"items" yaml:"items"`
	AllyPrefab string              `json:"ally_prefab" yaml:"ally_prefab"`
}

// ItemSpec is the value and weight of one unit of a resource kind
type ItemSpec struct {
	Value  int `json:"value" yaml:"value"`
	Weight int `json:"weight" yaml:"weight"`
}

// Messages are the status bar texts for each state
type Messages struct {
	RollPrompt      string `json:"roll_prompt" yaml:"roll_prompt"`
	CalcDistance    string `json:"calc_distance" yaml:"calc_distance"`
	DisplayDistance string `json:"display_distance" yaml:"display_distance"`
	SelectPath      string `json:"select_path" yaml:"select_path"`
	DoAction        string `json:"do_action" yaml:"do_action"`
	EndTurn         string `json:"end_turn" yaml:"end_turn"`
	ActionIdle      string `json:"action_idle" yaml:"action_idle"`
	ActionRoll      string `json:"action_roll" yaml:"action_roll"`
	ActionEndTurn   string `json:"action_end_turn" yaml:"action_end_turn"`
	DiceIdle        string `json:"dice_idle" yaml:"dice_idle"`
	DiceDistance    string `json:"dice_distance" yaml:"dice_distance"`
}

// Snapshots reports whether BeginTurn copies the player's economy into the status bar
func (c *MatchConfig) Snapshots() bool {
	return c.SnapshotOnBegin == nil || *c.SnapshotOnBegin
}

// DefaultMatchConfig returns the built-in two player match
func DefaultMatchConfig() *MatchConfig {
	cfg := &MatchConfig{
		Name:        "default",
		Description: "Two players, literal travel formula",
	}
	ApplyDefaults(cfg)
	return cfg
}

// Defaults for fields where zero is a valid setting
const (
	DefaultStatusMaxWeight = 100
	DefaultEnemyToll       = 5
)

// NewMatchConfig returns a config holding the defaults of the fields where zero
// is meaningful. Decoding a document over it leaves absent keys at those defaults
// and keeps explicit zeros; FillDefaults then completes the rest.
func NewMatchConfig() MatchConfig {
	return MatchConfig{
		StartingMaxWeight: economy.DefaultMaxWeight,
		StatusMaxWeight:   DefaultStatusMaxWeight,
		MapEvents:         MapEventConfig{EnemyToll: DefaultEnemyToll},
	}
}

// ApplyDefaults fills unset fields with the built-in values. A zero carry limit,
// status capacity or enemy toll counts as unset here; configs decoded over
// NewMatchConfig keep explicit zeros by calling FillDefaults instead.
func ApplyDefaults(cfg *MatchConfig) {
	if cfg.StartingMaxWeight == 0 {
		cfg.StartingMaxWeight = economy.DefaultMaxWeight
	}
	if cfg.StatusMaxWeight == 0 {
		cfg.StatusMaxWeight = DefaultStatusMaxWeight
	}
	if cfg.MapEvents.EnemyToll == 0 {
		cfg.MapEvents.EnemyToll = DefaultEnemyToll
	}
	FillDefaults(cfg)
}

// FillDefaults fills the fields for which zero is never a valid setting
func FillDefaults(cfg *MatchConfig) {
	if cfg.NumPlayers == 0 {
		cfg.NumPlayers = 2
	}
	if cfg.DistanceFormula == "" {
		cfg.DistanceFormula = FormulaLiteral
	}
	if cfg.DefaultAction == "" {
		cfg.DefaultAction = EventEnemy
	}
	if cfg.DieMin == 0 && cfg.DieMax == 0 {
		cfg.DieMin, cfg.DieMax = 1, 6
	}

	ev := &cfg.MapEvents
	if ev.Items == nil {
		ev.Items = map[string]ItemSpec{
			economy.Ore:  {Value: 30, Weight: 40},
			economy.Wool: {Value: 15, Weight: 10},
		}
	}
	if ev.AllyPrefab == "" {
		ev.AllyPrefab = scene.PrefabAlly
	}

	m := &cfg.Messages
	setDefault(&m.RollPrompt, "Player %d roll dice")
	setDefault(&m.CalcDistance, "Calculate Distance")
	setDefault(&m.DisplayDistance, "Display Distance")
	setDefault(&m.SelectPath, "Select Path To Take\nPress 1 to End Turn,\nPress 2 to Do Action")
	setDefault(&m.DoAction, "Do Action/Map Event")
	setDefault(&m.EndTurn, "End Turn")
	setDefault(&m.ActionIdle, "Action\nButton")
	setDefault(&m.ActionRoll, "Action\nRoll Dice")
	setDefault(&m.ActionEndTurn, "End Turn")
	setDefault(&m.DiceIdle, "DICE ROLL\n[Press Action\nButton]")
	setDefault(&m.DiceDistance, "Travel Dist.\n\n%d")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// ValidateMatchConfig validates a match configuration for correctness and playability
func ValidateMatchConfig(cfg *MatchConfig) error {
	if cfg == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if cfg.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	if cfg.NumPlayers < MinPlayers || cfg.NumPlayers > MaxPlayers {
		return fmt.Errorf("config validation: num_players must be between %d and %d, got %d", MinPlayers, MaxPlayers, cfg.NumPlayers)
	}
	if cfg.StartingCurrency < 0 {
		return fmt.Errorf("config validation: starting_currency must not be negative, got %d", cfg.StartingCurrency)
	}
	if cfg.StartingMaxWeight < 0 {
		return fmt.Errorf("config validation: starting_max_weight must not be negative, got %d", cfg.StartingMaxWeight)
	}
	if cfg.StatusMaxWeight < 0 {
		return fmt.Errorf("config validation: status_max_weight must not be negative, got %d", cfg.StatusMaxWeight)
	}

	if cfg.DieMin < 1 || cfg.DieMax < cfg.DieMin {
		return fmt.Errorf("config validation: die range must satisfy 1 <= die_min <= die_max, got %d..%d", cfg.DieMin, cfg.DieMax)
	}

	switch cfg.DistanceFormula {
	case FormulaLiteral, FormulaScaled:
	default:
		return fmt.Errorf("config validation: distance_formula must be %q or %q, got %q", FormulaLiteral, FormulaScaled, cfg.DistanceFormula)
	}

	if !IsKnownEvent(cfg.DefaultAction) {
		return fmt.Errorf("config validation: default_action %q is not a known map event", cfg.DefaultAction)
	}

	if cfg.MapEvents.EnemyToll < 0 {
		return fmt.Errorf("config validation: map_events.enemy_toll must not be negative, got %d", cfg.MapEvents.EnemyToll)
	}
	for kind, item := range cfg.MapEvents.Items {
		if kind == "" {
			return fmt.Errorf("config validation: map_events.items has an empty resource kind")
		}
		if item.Value < 0 || item.Weight < 0 {
			return fmt.Errorf("config validation: map_events.items[%s] must have non-negative value and weight", kind)
		}
	}
	if cfg.MapEvents.AllyPrefab == "" {
		return fmt.Errorf("config validation: map_events.ally_prefab is required")
	}

	if !strings.Contains(cfg.Messages.RollPrompt, "%d") {
		return fmt.Errorf("config validation: messages.roll_prompt must contain %%d for the player number")
	}
	if !strings.Contains(cfg.Messages.DiceDistance, "%d") {
		return fmt.Errorf("config validation: messages.dice_distance must contain %%d for the travel distance")
	}

	return nil
}

// IsKnownEvent reports whether eventType is a map event the resolver understands
func IsKnownEvent(eventType string) bool {
	switch eventType {
	case EventNothing, EventEnemy, EventItem, EventAlly:
		return true
	}
	return false
}

// TravelDistance computes how far a player may move this turn.
//
// The literal formula is (max - weight) / max in integer arithmetic, which is 1 for an
// empty pack and 0 for any load below capacity; the die roll does not enter it. The scaled
// formula multiplies the roll by the free share of capacity. A zero max yields zero.
func TravelDistance(formula string, roll, weight, maxWeight int) int {
	if maxWeight <= 0 {
		return 0
	}
	if formula == FormulaScaled {
		free := maxWeight - weight
		if free < 0 {
			free = 0
		}
		return roll * free / maxWeight
	}
	return (maxWeight - weight) / maxWeight
}
