// Package scene keeps the entities placed on the board: player characters and their allies.
// It stands in for the engine services that spawn, find and destroy objects.
package scene

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/gsp-board/game/economy"
)

const (
	PrefabCharacter = "Character"
	PrefabAlly      = "Ally"

	TagPlayer = "Player"
	TagAlly   = "Ally"
)

var (
	ErrUnknownPrefab  = errors.New("unknown prefab")
	ErrUnknownTag     = errors.New("unknown tag")
	ErrEntityNotFound = errors.New("entity not found")
)

// Position is a point in board space
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Prefab describes what Instantiate builds for a prefab name
type Prefab struct {
	Name  string
	Tag   string
	Scale Position
}

// Entity is a spawned board object with its economy attached
type Entity struct {
	ID        string           `json:"id"`
	Tag       string           `json:"tag"`
	Prefab    string           `json:"prefab"`
	Position  Position         `json:"position"`
	Scale     Position         `json:"scale"`
	Economy   *economy.Economy `json:"-"`
	CreatedAt time.Time        `json:"created_at"`

	seq int
}

// DefaultPrefabs returns the prefabs a match needs
func DefaultPrefabs() []Prefab {
	return []Prefab{
		{Name: PrefabCharacter, Tag: TagPlayer, Scale: Position{X: 100, Y: 100, Z: 1}},
		{Name: PrefabAlly, Tag: TagAlly, Scale: Position{X: 60, Y: 60, Z: 1}},
	}
}

// Registry owns every entity of one match
type Registry struct {
	prefabs   map[string]Prefab
	tags      map[string]bool
	entities  map[string]*Entity
	maxWeight int
	nextSeq   int
	mu        sync.RWMutex
}

// NewRegistry creates a registry that spawns the given prefabs.
// Spawned economies start with startingMaxWeight as their carry capacity.
func NewRegistry(prefabs []Prefab, startingMaxWeight int) *Registry {
	r := &Registry{
		prefabs:   make(map[string]Prefab),
		tags:      make(map[string]bool),
		entities:  make(map[string]*Entity),
		maxWeight: startingMaxWeight,
	}
	for _, p := range prefabs {
		r.prefabs[p.Name] = p
		r.tags[p.Tag] = true
	}
	return r
}

// Instantiate spawns a prefab at pos and attaches a fresh economy to it
func (r *Registry) Instantiate(prefab string, pos Position) (*Entity, error) {
	p, ok := r.prefabs[prefab]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrefab, prefab)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	ent := &Entity{
		ID:        id,
		Tag:       p.Tag,
		Prefab:    p.Name,
		Position:  pos,
		Scale:     p.Scale,
		Economy:   economy.New(id, r),
		CreatedAt: time.Now(),
		seq:       r.nextSeq,
	}
	ent.Economy.SetMaxWeight(r.maxWeight)
	r.nextSeq++
	r.entities[id] = ent
	return ent, nil
}

// Get returns an entity by ID
func (r *Registry) Get(id string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ent, ok := r.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return ent, nil
}

// FindAllTagged returns the entities carrying tag in spawn order.
// A tag no prefab declares is a configuration error.
func (r *Registry) FindAllTagged(tag string) ([]*Entity, error) {
	if !r.tags[tag] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Entity
	for _, ent := range r.entities {
		if ent.Tag == tag {
			result = append(result, ent)
		}
	}
	sortBySpawn(result)
	return result, nil
}

// All returns every entity in spawn order
func (r *Registry) All() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Entity, 0, len(r.entities))
	for _, ent := range r.entities {
		result = append(result, ent)
	}
	sortBySpawn(result)
	return result
}

// Destroy removes an entity from the board
func (r *Registry) Destroy(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entities[id]; !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	delete(r.entities, id)
	return nil
}

// Count returns the number of live entities
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

func sortBySpawn(ents []*Entity) {
	sort.Slice(ents, func(i, j int) bool { return ents[i].seq < ents[j].seq })
}
