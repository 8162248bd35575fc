package service

import (
	"time"

	"github.com/wricardo/gsp-board/game/economy"
	"github.com/wricardo/gsp-board/game/engine"
	"github.com/wricardo/gsp-board/game/resolver"
	"github.com/wricardo/gsp-board/game/scene"
)

// Event names pushed through the Notifier
const (
	EventMatchCreated  = "match_created"
	EventMatchDeleted  = "match_deleted"
	EventTurnUpdate    = "turn_update"
	EventPathOptions   = "path_options"
	EventEconomyUpdate = "economy_update"
)

// MatchInfo provides information about a match
type MatchInfo struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	Turn           engine.Snapshot     `json:"turn"`
	Players        []EntityInfo        `json:"players"`
	Allies         []EntityInfo        `json:"allies"`
	RunningEvent   *resolver.Outcome   `json:"running_event,omitempty"`
	MatchConfig    *engine.MatchConfig `json:"match_config"`
}

// EntityInfo is a board entity with its economy
type EntityInfo struct {
	ID       string           `json:"id"`
	Tag      string           `json:"tag"`
	Prefab   string           `json:"prefab"`
	Position scene.Position   `json:"position"`
	Economy  economy.Snapshot `json:"economy"`
}

// TurnResult contains the outcome of a turn signal
type TurnResult struct {
	MatchID     string              `json:"match_id"`
	Signal      string              `json:"signal"`
	Transitions []engine.Transition `json:"transitions"`
	Turn        engine.Snapshot     `json:"turn"`
	Outcome     *resolver.Outcome   `json:"outcome,omitempty"`
	Message     string              `json:"message"`
	Timestamp   time.Time           `json:"timestamp"`
}

// PickupRequest describes a resource to pick up. Kind is optional.
type PickupRequest struct {
	Kind   string `json:"kind,omitempty"`
	Value  int    `json:"value"`
	Weight int    `json:"weight"`
}

// SaleResult contains the outcome of selling carried resources
type SaleResult struct {
	Credited   int        `json:"credited"`
	CreditedTo string     `json:"credited_to"`
	Seller     EntityInfo `json:"seller"`
	Recipient  EntityInfo `json:"recipient"`
}

// CurrencyResult contains the outcome of a currency adjustment
type CurrencyResult struct {
	Requested int        `json:"requested"`
	Applied   int        `json:"applied"`
	Entity    EntityInfo `json:"entity"`
}

// AllyRemoval contains the outcome of removing every ally of an owner
type AllyRemoval struct {
	Removed int        `json:"removed"`
	Owner   EntityInfo `json:"owner"`
}

// PathOptions is pushed when a player reaches SelectPath
type PathOptions struct {
	TravelDistance int `json:"travel_distance"`
}

// HistoryOptions configures transition history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated transition history
type HistoryResponse struct {
	Transitions      []engine.Transition `json:"transitions"`
	TotalTransitions int                 `json:"total_transitions"`
	Page             int                 `json:"page"`
	PageSize         int                 `json:"page_size"`
	TotalPages       int                 `json:"total_pages"`
	HasNext          bool                `json:"has_next"`
	HasPrevious      bool                `json:"has_previous"`
}

// ConfigInfo provides information about a match configuration
type ConfigInfo struct {
	Filename        string `json:"filename"`
	ConfigID        string `json:"config_id"` // The identifier to use for match creation
	Name            string `json:"name"`      // Display name
	Description     string `json:"description"`
	NumPlayers      int    `json:"num_players"`
	DistanceFormula string `json:"distance_formula"`
	Format          string `json:"format"`
}
