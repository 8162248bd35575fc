package engine

import (
	"fmt"

	"github.com/wricardo/gsp-board/game/scene"
)

// State is one step of a player's turn
type State int

const (
	BeginTurn State = iota
	RollDice
	CalcDistance
	DisplayDistance
	SelectPath
	DoAction
	EndTurn
)

const (
	// Map event types understood by the resolver
	EventNothing = "NOTHING"
	EventEnemy   = "ENEMY"
	EventItem    = "ITEM"
	EventAlly    = "ALLY"

	// Distance formulas
	FormulaLiteral = "literal"
	FormulaScaled  = "scaled"

	// Validation constants
	MinPlayers    = 1
	MaxPlayers    = 8
	MaxHistory    = 1000
	DefaultSettle = 32
)

var stateNames = [...]string{
	BeginTurn:       "BEGIN_TURN",
	RollDice:        "ROLL_DICE",
	CalcDistance:    "CALC_DISTANCE",
	DisplayDistance: "DISPLAY_DISTANCE",
	SelectPath:      "SELECT_PATH",
	DoAction:        "DO_ACTION",
	EndTurn:         "END_TURN",
}

func (s State) String() string {
	if s < BeginTurn || s > EndTurn {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// AwaitsInput reports whether the state only moves on a player signal
func (s State) AwaitsInput() bool {
	return s == RollDice || s == SelectPath
}

// DieRoller rolls a die between min and max inclusive
type DieRoller interface {
	Roll(min, max int) int
}

// ActionResolver runs map events for a player
type ActionResolver interface {
	Begin(player *scene.Entity, eventType, resourceType string) error
	IsRunning() bool
}

// PathDisplay shows the paths a player may take
type PathDisplay interface {
	Present(travelDistance int)
}

// EntityFactory spawns and tracks board entities
type EntityFactory interface {
	Instantiate(prefab string, pos scene.Position) (*scene.Entity, error)
	FindAllTagged(tag string) ([]*scene.Entity, error)
	Destroy(id string) error
}

// Collaborators are the services a Machine drives
type Collaborators struct {
	Dice     DieRoller
	Resolver ActionResolver
	Display  PathDisplay
	Factory  EntityFactory
}

// Status holds the per-turn values shown in the status bar
type Status struct {
	PlayerTurn  int    `json:"player_turn"`
	PlayerID    string `json:"player_id"`
	Gold        int    `json:"gold"`
	Weight      int    `json:"weight"`
	MaxWeight   int    `json:"max_weight"`
	Ore         int    `json:"ore"`
	Wool        int    `json:"wool"`
	Prompt      string `json:"prompt"`
	ActionLabel string `json:"action_label"`
	DiceBox     string `json:"dice_box"`
}

// Transition records one state change
type Transition struct {
	Tick   int    `json:"tick"`
	From   State  `json:"from"`
	To     State  `json:"to"`
	Player int    `json:"player"`
	Reason string `json:"reason"`
	Roll   int    `json:"roll,omitempty"`
}
