package engine

import (
	"errors"
	"testing"

	"github.com/wricardo/gsp-board/game/economy"
	"github.com/wricardo/gsp-board/game/scene"
)

type DieRollerFunc func(min, max int) int

func (f DieRollerFunc) Roll(min, max int) int { return f(min, max) }

type PathDisplayFunc func(travelDistance int)

func (f PathDisplayFunc) Present(travelDistance int) { f(travelDistance) }

// fakeResolver stays running until finish is called
type fakeResolver struct {
	running  bool
	calls    []string
	players  []string
	BeginErr error
}

func (r *fakeResolver) Begin(player *scene.Entity, eventType, resourceType string) error {
	if r.BeginErr != nil {
		return r.BeginErr
	}
	r.running = true
	r.calls = append(r.calls, eventType+"/"+resourceType)
	r.players = append(r.players, player.ID)
	return nil
}

func (r *fakeResolver) IsRunning() bool { return r.running }

func (r *fakeResolver) finish() { r.running = false }

type harness struct {
	m        *Machine
	registry *scene.Registry
	resolver *fakeResolver
	presents []int
}

func newHarness(t *testing.T, cfg *MatchConfig, roll int) *harness {
	t.Helper()
	h := &harness{
		registry: scene.NewRegistry(scene.DefaultPrefabs(), economy.DefaultMaxWeight),
		resolver: &fakeResolver{},
	}
	m, err := NewMachine(cfg, Collaborators{
		Dice:     DieRollerFunc(func(min, max int) int { return roll }),
		Resolver: h.resolver,
		Display:  PathDisplayFunc(func(d int) { h.presents = append(h.presents, d) }),
		Factory:  h.registry,
	})
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}
	h.m = m
	return h
}

func (h *harness) settle(t *testing.T) []Transition {
	t.Helper()
	trs, err := h.m.Settle(0)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	return trs
}

func (h *harness) confirm(t *testing.T) {
	t.Helper()
	if err := h.m.Confirm(); err != nil {
		t.Fatalf("Confirm in %s failed: %v", h.m.State(), err)
	}
}

func TestNewMachine(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.NumPlayers = 3
	cfg.StartingCurrency = 40
	h := newHarness(t, cfg, 4)

	if h.m.State() != BeginTurn {
		t.Errorf("Expected BeginTurn, got %s", h.m.State())
	}
	if h.m.PlayerIndex() != 1 {
		t.Errorf("Expected player 1, got %d", h.m.PlayerIndex())
	}

	players := h.m.Players()
	if len(players) != 3 {
		t.Fatalf("Expected 3 players, got %d", len(players))
	}
	for i, p := range players {
		want := SpawnPosition(i)
		if p.Position != want {
			t.Errorf("Player %d: expected position %+v, got %+v", i+1, want, p.Position)
		}
		if p.Position.X != 32 || p.Position.Y != 32+64*float64(i+1) || p.Position.Z != -1.6 {
			t.Errorf("Player %d: unexpected layout %+v", i+1, p.Position)
		}
		if p.Economy.Currency() != 40 {
			t.Errorf("Player %d: expected 40 gold, got %d", i+1, p.Economy.Currency())
		}
		if p.Economy.MaxWeight() != cfg.StartingMaxWeight {
			t.Errorf("Player %d: expected max weight %d, got %d", i+1, cfg.StartingMaxWeight, p.Economy.MaxWeight())
		}
	}

	status := h.m.Status()
	if status.MaxWeight != 100 || status.ActionLabel != "Action\nButton" || status.Gold != 0 {
		t.Errorf("Unexpected initial status %+v", status)
	}
	if snap := h.m.Snapshot(); snap.PendingAction != EventNothing {
		t.Errorf("Expected pending action NOTHING, got %s", snap.PendingAction)
	}
}

func TestNewMachine_MissingCollaborator(t *testing.T) {
	registry := scene.NewRegistry(scene.DefaultPrefabs(), 300)
	full := Collaborators{
		Dice:     DieRollerFunc(func(min, max int) int { return min }),
		Resolver: &fakeResolver{},
		Display:  PathDisplayFunc(func(int) {}),
		Factory:  registry,
	}

	tests := []struct {
		name   string
		modify func(*Collaborators)
	}{
		{"dice", func(c *Collaborators) { c.Dice = nil }},
		{"resolver", func(c *Collaborators) { c.Resolver = nil }},
		{"display", func(c *Collaborators) { c.Display = nil }},
		{"factory", func(c *Collaborators) { c.Factory = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full
			tt.modify(&deps)
			_, err := NewMachine(nil, deps)
			if !errors.Is(err, ErrMissingCollaborator) {
				t.Errorf("Expected ErrMissingCollaborator, got %v", err)
			}
		})
	}

	bad := DefaultMatchConfig()
	bad.NumPlayers = 0
	if _, err := NewMachine(bad, full); err == nil {
		t.Error("Expected invalid config to be rejected")
	}
}

func TestMachine_FullCycle(t *testing.T) {
	h := newHarness(t, DefaultMatchConfig(), 5)

	// BeginTurn runs without input and parks in RollDice
	trs := h.settle(t)
	if len(trs) != 1 || trs[0].From != BeginTurn || trs[0].To != RollDice {
		t.Fatalf("Expected BeginTurn->RollDice, got %+v", trs)
	}
	if st := h.m.Status(); st.Prompt != "Player 1 roll dice" || st.ActionLabel != "Action\nRoll Dice" {
		t.Errorf("Unexpected roll status %+v", st)
	}
	if st := h.m.Status(); st.DiceBox != "DICE ROLL\n[Press Action\nButton]" {
		t.Errorf("Unexpected dice box %q", st.DiceBox)
	}

	// Without confirmation the machine stays put
	if _, moved, _ := h.m.Tick(); moved {
		t.Error("Expected no transition without confirmation")
	}

	h.confirm(t)
	trs = h.settle(t)
	want := []State{CalcDistance, DisplayDistance, SelectPath}
	if len(trs) != len(want) {
		t.Fatalf("Expected %d transitions, got %+v", len(want), trs)
	}
	for i, s := range want {
		if trs[i].To != s {
			t.Errorf("Transition %d: expected %s, got %s", i, s, trs[i].To)
		}
	}
	if trs[0].Roll != 5 || h.m.LastRoll() != 5 {
		t.Errorf("Expected roll 5, got %d / %d", trs[0].Roll, h.m.LastRoll())
	}

	// Empty pack against status max 300 (snapshot) gives the literal distance 1
	if h.m.TravelDistance() != 1 {
		t.Errorf("Expected distance 1, got %d", h.m.TravelDistance())
	}
	if st := h.m.Status(); st.DiceBox != "Travel Dist.\n\n1" || st.ActionLabel != "End Turn" {
		t.Errorf("Unexpected select status %+v", st)
	}
	if len(h.presents) != 1 || h.presents[0] != 1 {
		t.Errorf("Expected one Present(1), got %v", h.presents)
	}

	// Further ticks in SelectPath do not present again
	h.m.Tick()
	if len(h.presents) != 1 {
		t.Errorf("Expected Present once per visit, got %v", h.presents)
	}

	h.confirm(t)
	trs = h.settle(t)
	if len(trs) != 3 || trs[0].To != EndTurn || trs[1].To != BeginTurn || trs[2].To != RollDice {
		t.Fatalf("Expected EndTurn->BeginTurn->RollDice, got %+v", trs)
	}
	if h.m.PlayerIndex() != 2 {
		t.Errorf("Expected player 2, got %d", h.m.PlayerIndex())
	}
	if h.m.LastRoll() != 0 || h.m.TravelDistance() != 0 {
		t.Error("Expected roll and distance reset at end of turn")
	}
	if st := h.m.Status(); st.Prompt != "Player 2 roll dice" {
		t.Errorf("Unexpected prompt %q", st.Prompt)
	}
}

func TestMachine_CycleClosure(t *testing.T) {
	h := newHarness(t, DefaultMatchConfig(), 3)

	for turn := 0; turn < 4; turn++ {
		h.settle(t)
		h.confirm(t)
		h.settle(t)
		h.confirm(t)
	}
	h.settle(t)

	order := []State{BeginTurn, RollDice, CalcDistance, DisplayDistance, SelectPath, EndTurn}
	history := h.m.History()
	begins := 0
	for i, tr := range history {
		if tr.From == BeginTurn {
			begins++
		}
		if tr.From != order[i%len(order)] {
			t.Fatalf("Transition %d: expected from %s, got %s", i, order[i%len(order)], tr.From)
		}
	}
	if begins != 5 {
		t.Errorf("Expected 5 BeginTurn visits, got %d", begins)
	}
}

func TestMachine_TurnWrap(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.NumPlayers = 3
	h := newHarness(t, cfg, 2)

	var seen []int
	for i := 0; i < 7; i++ {
		seen = append(seen, h.m.PlayerIndex())
		h.m.EndTurnNow()
		h.settle(t)
	}
	want := []int{1, 2, 3, 1, 2, 3, 1}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("Expected turn order %v, got %v", want, seen)
		}
	}
}

func TestMachine_ActionRequest(t *testing.T) {
	h := newHarness(t, DefaultMatchConfig(), 4)
	h.settle(t)
	h.confirm(t)
	h.settle(t)

	if err := h.m.RequestAction(); err != nil {
		t.Fatalf("RequestAction failed: %v", err)
	}
	if err := h.m.RequestAction(); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Errorf("Expected ErrAlreadyConfirmed on repeat, got %v", err)
	}

	trs := h.settle(t)
	if len(trs) != 1 || trs[0].To != DoAction {
		t.Fatalf("Expected SelectPath->DoAction, got %+v", trs)
	}
	if len(h.resolver.calls) != 1 || h.resolver.calls[0] != "ENEMY/" {
		t.Errorf("Expected resolver to begin ENEMY, got %v", h.resolver.calls)
	}
	player, _ := h.m.CurrentPlayer()
	if h.resolver.players[0] != player.ID {
		t.Error("Expected resolver to receive the current player")
	}

	// DoAction waits for the resolver
	if trs := h.settle(t); len(trs) != 0 {
		t.Errorf("Expected DoAction to wait, got %+v", trs)
	}
	h.resolver.finish()
	trs = h.settle(t)
	if len(trs) != 1 || trs[0].To != SelectPath {
		t.Fatalf("Expected DoAction->SelectPath, got %+v", trs)
	}
	if len(h.presents) != 2 {
		t.Errorf("Expected Present on each SelectPath entry, got %v", h.presents)
	}
}

func TestMachine_ConfirmBeatsActionRequest(t *testing.T) {
	h := newHarness(t, DefaultMatchConfig(), 4)
	h.settle(t)
	h.confirm(t)
	h.settle(t)

	h.m.RequestAction()
	h.confirm(t)
	tr, moved, err := h.m.Tick()
	if err != nil || !moved {
		t.Fatalf("Expected a transition, got moved=%v err=%v", moved, err)
	}
	if tr.To != EndTurn {
		t.Errorf("Expected confirmation to win, went to %s", tr.To)
	}
	if len(h.resolver.calls) != 0 {
		t.Error("Expected resolver untouched")
	}
}

func TestMachine_IllegalSignals(t *testing.T) {
	h := newHarness(t, DefaultMatchConfig(), 4)

	if err := h.m.Confirm(); !errors.Is(err, ErrNotAwaitingInput) {
		t.Errorf("Expected ErrNotAwaitingInput in BeginTurn, got %v", err)
	}
	if err := h.m.RequestAction(); !errors.Is(err, ErrNotAwaitingInput) {
		t.Errorf("Expected ErrNotAwaitingInput in BeginTurn, got %v", err)
	}

	h.settle(t)
	if err := h.m.RequestAction(); !errors.Is(err, ErrNotAwaitingInput) {
		t.Errorf("Expected action request rejected in RollDice, got %v", err)
	}
	h.confirm(t)
	if err := h.m.Confirm(); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Errorf("Expected ErrAlreadyConfirmed, got %v", err)
	}

	// The roll confirmation does not leak into SelectPath
	h.settle(t)
	if h.m.State() != SelectPath {
		t.Fatalf("Expected SelectPath, got %s", h.m.State())
	}
	if snap := h.m.Snapshot(); snap.Confirmed {
		t.Error("Expected confirmation cleared after CalcDistance")
	}
}

func TestMachine_TriggerAction(t *testing.T) {
	h := newHarness(t, DefaultMatchConfig(), 4)
	h.settle(t)

	if err := h.m.TriggerAction("DRAGON", ""); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}

	if err := h.m.TriggerAction(EventItem, economy.Ore); err != nil {
		t.Fatalf("TriggerAction failed: %v", err)
	}
	if h.m.State() != DoAction {
		t.Errorf("Expected DoAction, got %s", h.m.State())
	}
	snap := h.m.Snapshot()
	if snap.PendingAction != EventItem || snap.PendingResource != economy.Ore {
		t.Errorf("Unexpected pending %s/%s", snap.PendingAction, snap.PendingResource)
	}
	if len(h.resolver.calls) != 1 || h.resolver.calls[0] != "ITEM/ORE" {
		t.Errorf("Expected resolver begun with ITEM/ORE, got %v", h.resolver.calls)
	}

	h.resolver.BeginErr = errors.New("busy")
	if err := h.m.TriggerAction(EventEnemy, ""); err == nil {
		t.Error("Expected resolver error to surface")
	}
	if h.m.Snapshot().PendingAction != EventItem {
		t.Error("Expected failed trigger to leave pending action untouched")
	}
}

func TestMachine_AdvanceToNextState(t *testing.T) {
	h := newHarness(t, DefaultMatchConfig(), 4)

	want := []State{RollDice, CalcDistance, DisplayDistance, SelectPath, DoAction, EndTurn, BeginTurn}
	for _, s := range want {
		if got := h.m.AdvanceToNextState(); got != s {
			t.Fatalf("Expected %s, got %s", s, got)
		}
	}
	if h.m.PlayerIndex() != 1 {
		t.Error("Expected forced wrap to leave the player index alone")
	}
}

func TestMachine_CurrentPlayerOutOfRange(t *testing.T) {
	h := newHarness(t, DefaultMatchConfig(), 4)
	h.m.current = 9

	if _, err := h.m.CurrentPlayer(); !errors.Is(err, ErrPlayerIndex) {
		t.Errorf("Expected ErrPlayerIndex, got %v", err)
	}
	if _, _, err := h.m.Tick(); !errors.Is(err, ErrPlayerIndex) {
		t.Errorf("Expected BeginTurn to fail fast, got %v", err)
	}
}

func TestMachine_SnapshotOnBegin(t *testing.T) {
	t.Run("snapshot copies economy", func(t *testing.T) {
		h := newHarness(t, DefaultMatchConfig(), 4)
		p := h.m.Players()[0]
		p.Economy.AddCurrency(25)
		p.Economy.PickupNamed(economy.Ore, 30, 40)

		h.settle(t)
		st := h.m.Status()
		if st.Gold != 25 || st.Weight != 40 || st.MaxWeight != 300 || st.Ore != 1 {
			t.Errorf("Unexpected snapshot %+v", st)
		}

		h.confirm(t)
		h.settle(t)
		// (300-40)/300 truncates to zero
		if h.m.TravelDistance() != 0 {
			t.Errorf("Expected literal distance 0 with a load, got %d", h.m.TravelDistance())
		}
	})

	t.Run("no snapshot keeps status defaults", func(t *testing.T) {
		off := false
		cfg := DefaultMatchConfig()
		cfg.SnapshotOnBegin = &off
		h := newHarness(t, cfg, 4)
		h.m.Players()[0].Economy.PickupResource(10, 200)

		h.settle(t)
		h.confirm(t)
		h.settle(t)
		st := h.m.Status()
		if st.Weight != 0 || st.MaxWeight != 100 {
			t.Errorf("Expected status defaults, got %+v", st)
		}
		if h.m.TravelDistance() != 1 {
			t.Errorf("Expected distance 1, got %d", h.m.TravelDistance())
		}
	})

	t.Run("scaled formula uses the roll", func(t *testing.T) {
		cfg := DefaultMatchConfig()
		cfg.DistanceFormula = FormulaScaled
		h := newHarness(t, cfg, 6)
		h.m.Players()[0].Economy.PickupResource(10, 150)

		h.settle(t)
		h.confirm(t)
		h.settle(t)
		if h.m.TravelDistance() != 3 {
			t.Errorf("Expected 6*(300-150)/300 = 3, got %d", h.m.TravelDistance())
		}
	})
}

func TestMachine_HistoryCapped(t *testing.T) {
	h := newHarness(t, DefaultMatchConfig(), 4)
	for i := 0; i < MaxHistory+10; i++ {
		h.m.AdvanceToNextState()
	}
	if n := len(h.m.History()); n != MaxHistory {
		t.Errorf("Expected history capped at %d, got %d", MaxHistory, n)
	}
}

func TestMachine_TransitionsSince(t *testing.T) {
	h := newHarness(t, DefaultMatchConfig(), 4)
	for i := 0; i < MaxHistory+10; i++ {
		h.m.AdvanceToNextState()
	}
	if n := h.m.TransitionCount(); n != MaxHistory+10 {
		t.Fatalf("Expected %d transitions counted, got %d", MaxHistory+10, n)
	}

	mark := h.m.TransitionCount()
	if got := h.m.TransitionsSince(mark); len(got) != 0 {
		t.Errorf("Expected no transitions since mark, got %d", len(got))
	}

	// A full history still yields every transition made after the mark
	h.m.AdvanceToNextState()
	h.m.AdvanceToNextState()
	h.m.AdvanceToNextState()
	got := h.m.TransitionsSince(mark)
	if len(got) != 3 {
		t.Fatalf("Expected 3 transitions, got %d", len(got))
	}
	history := h.m.History()
	if got[2] != history[len(history)-1] || got[0] != history[len(history)-3] {
		t.Errorf("Expected the newest history entries, got %+v", got)
	}

	if got := h.m.TransitionsSince(0); len(got) != MaxHistory {
		t.Errorf("Expected at most %d retained transitions, got %d", MaxHistory, len(got))
	}
}
