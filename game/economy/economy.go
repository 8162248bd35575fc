package economy

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// DefaultMaxWeight is the carry capacity a freshly spawned character starts with.
	DefaultMaxWeight = 300

	Ore  = "ORE"
	Wool = "WOOL"
)

var (
	ErrOverweight     = errors.New("resource would exceed max weight")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrNilAlly        = errors.New("ally cannot be nil")
	ErrSelfAlly       = errors.New("character cannot be its own ally")
	ErrAllyOwned      = errors.New("ally already has an owner")
	ErrNotAlly        = errors.New("not an ally of this character")
	ErrNoDestroyer    = errors.New("no destroyer to remove the ally's entity")
)

// Destroyer disposes of an entity once it is removed for good.
type Destroyer interface {
	Destroy(id string) error
}

// Economy holds the currency, carried resources and allies of one character.
type Economy struct {
	id        string
	currency  int
	value     int
	weight    int
	holdings  map[string]int
	maxWeight int
	owner     *Economy
	allies    map[string]*Economy
	destroyer Destroyer
}

// New creates an economy for the entity with the given ID.
// The destroyer may be nil when allies are never destroyed.
func New(id string, destroyer Destroyer) *Economy {
	return &Economy{
		id:        id,
		holdings:  make(map[string]int),
		maxWeight: DefaultMaxWeight,
		allies:    make(map[string]*Economy),
		destroyer: destroyer,
	}
}

// ID returns the entity ID this economy belongs to
func (e *Economy) ID() string {
	return e.id
}

// Currency returns the gold currently held
func (e *Economy) Currency() int {
	return e.currency
}

// ResourceValue returns the sale value of the held resource
func (e *Economy) ResourceValue() int {
	return e.value
}

// ResourceWeight returns the carried weight of the held resource
func (e *Economy) ResourceWeight() int {
	return e.weight
}

// Holding returns how many units of a named resource kind are carried
func (e *Economy) Holding(kind string) int {
	return e.holdings[kind]
}

// MaxWeight returns the carry capacity
func (e *Economy) MaxWeight() int {
	return e.maxWeight
}

// SetMaxWeight sets the carry capacity. Values of zero or less clamp to zero.
func (e *Economy) SetMaxWeight(v int) {
	if v <= 0 {
		e.maxWeight = 0
		return
	}
	e.maxWeight = v
}

// Owner returns the owning economy, or nil for an independent character
func (e *Economy) Owner() *Economy {
	return e.owner
}

// NumAllies returns the number of allies owned
func (e *Economy) NumAllies() int {
	return len(e.allies)
}

// Allies returns the IDs of owned allies in sorted order
func (e *Economy) Allies() []string {
	ids := make([]string, 0, len(e.allies))
	for id := range e.allies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PickupResource adds value and weight to the held resource.
// It returns ErrOverweight and changes nothing when the new weight would exceed MaxWeight.
func (e *Economy) PickupResource(value, weight int) error {
	if value < 0 || weight < 0 {
		return ErrNegativeAmount
	}
	if e.weight+weight > e.maxWeight {
		return fmt.Errorf("%w: carrying %d, picking up %d, max %d", ErrOverweight, e.weight, weight, e.maxWeight)
	}
	e.value += value
	e.weight += weight
	return nil
}

// PickupNamed picks up one unit of a named resource kind.
func (e *Economy) PickupNamed(kind string, value, weight int) error {
	if err := e.PickupResource(value, weight); err != nil {
		return err
	}
	e.holdings[kind]++
	return nil
}

// SellResources converts the held resource into currency. Allies credit their owner.
// The held resource is cleared in either case.
func (e *Economy) SellResources() (int, *Economy) {
	credited := e.value
	to := e
	if e.owner != nil {
		to = e.owner
	}
	to.currency += credited

	e.value = 0
	e.weight = 0
	e.holdings = make(map[string]int)
	return credited, to
}

// AddCurrency adds gold. Negative amounts are rejected.
func (e *Economy) AddCurrency(amount int) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	e.currency += amount
	return nil
}

// RemoveCurrency subtracts gold, stopping at zero, and reports how much was actually removed.
func (e *Economy) RemoveCurrency(amount int) (int, error) {
	if amount < 0 {
		return 0, ErrNegativeAmount
	}
	if e.currency-amount <= 0 {
		removed := e.currency
		e.currency = 0
		return removed, nil
	}
	e.currency -= amount
	return amount, nil
}

// AddAlly makes this economy the owner of ally.
func (e *Economy) AddAlly(ally *Economy) error {
	switch {
	case ally == nil:
		return ErrNilAlly
	case ally == e:
		return ErrSelfAlly
	case ally.owner != nil && ally.owner != e:
		return fmt.Errorf("%w: %s is owned by %s", ErrAllyOwned, ally.id, ally.owner.id)
	}
	ally.owner = e
	e.allies[ally.id] = ally
	return nil
}

// RemoveAlly drops one ally from this owner's set, optionally destroying its entity.
// Destroying without a Destroyer returns ErrNoDestroyer and leaves the ally in place.
func (e *Economy) RemoveAlly(id string, destroy bool) error {
	ally, ok := e.allies[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAlly, id)
	}
	if destroy && e.destroyer == nil {
		return fmt.Errorf("%w: %s", ErrNoDestroyer, id)
	}
	delete(e.allies, id)
	ally.owner = nil

	if destroy {
		if err := e.destroyer.Destroy(id); err != nil {
			return fmt.Errorf("destroy ally %s: %w", id, err)
		}
	}
	return nil
}

// RemoveAllAllies removes every ally this economy owns and returns how many were removed.
func (e *Economy) RemoveAllAllies(destroy bool) (int, error) {
	if destroy && e.destroyer == nil && len(e.allies) > 0 {
		return 0, ErrNoDestroyer
	}
	removed := 0
	for _, id := range e.Allies() {
		if err := e.RemoveAlly(id, destroy); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Snapshot is a read-only view of an economy for transport layers.
type Snapshot struct {
	ID             string         `json:"id"`
	Currency       int            `json:"currency"`
	ResourceValue  int            `json:"resource_value"`
	ResourceWeight int            `json:"resource_weight"`
	MaxWeight      int            `json:"max_weight"`
	Holdings       map[string]int `json:"holdings,omitempty"`
	OwnerID        string         `json:"owner_id,omitempty"`
	Allies         []string       `json:"allies"`
}

// Snapshot copies the current values
func (e *Economy) Snapshot() Snapshot {
	s := Snapshot{
		ID:             e.id,
		Currency:       e.currency,
		ResourceValue:  e.value,
		ResourceWeight: e.weight,
		MaxWeight:      e.maxWeight,
		Allies:         e.Allies(),
	}
	if len(e.holdings) > 0 {
		s.Holdings = make(map[string]int, len(e.holdings))
		for k, v := range e.holdings {
			s.Holdings[k] = v
		}
	}
	if e.owner != nil {
		s.OwnerID = e.owner.id
	}
	return s
}
