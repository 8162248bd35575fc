package engine

import (
	"strings"
	"testing"
)

func TestDefaultMatchConfig(t *testing.T) {
	cfg := DefaultMatchConfig()
	if err := ValidateMatchConfig(cfg); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.NumPlayers != 2 {
		t.Errorf("Expected 2 players, got %d", cfg.NumPlayers)
	}
	if cfg.StartingMaxWeight != 300 || cfg.StatusMaxWeight != 100 {
		t.Errorf("Unexpected weights %d / %d", cfg.StartingMaxWeight, cfg.StatusMaxWeight)
	}
	if !cfg.Snapshots() {
		t.Error("Expected snapshot on begin by default")
	}
	if cfg.DefaultAction != EventEnemy {
		t.Errorf("Expected default action ENEMY, got %s", cfg.DefaultAction)
	}
	if cfg.Messages.ActionIdle != "Action\nButton" {
		t.Errorf("Unexpected idle label %q", cfg.Messages.ActionIdle)
	}
}

func TestApplyDefaultsKeepsSetValues(t *testing.T) {
	off := false
	cfg := &MatchConfig{
		Name:            "custom",
		Description:     "custom",
		NumPlayers:      4,
		SnapshotOnBegin: &off,
		DistanceFormula: FormulaScaled,
		Messages:        Messages{RollPrompt: "P%d go"},
	}
	ApplyDefaults(cfg)

	if cfg.NumPlayers != 4 || cfg.DistanceFormula != FormulaScaled {
		t.Errorf("Set values were overwritten: %+v", cfg)
	}
	if cfg.Snapshots() {
		t.Error("Expected snapshot disabled")
	}
	if cfg.Messages.RollPrompt != "P%d go" {
		t.Errorf("Expected custom prompt, got %q", cfg.Messages.RollPrompt)
	}
	if cfg.Messages.DiceIdle == "" {
		t.Error("Expected unset message to get a default")
	}
}

func TestFillDefaultsKeepsZeros(t *testing.T) {
	cfg := NewMatchConfig()
	cfg.Name = "stuck"
	cfg.Description = "nobody moves"
	cfg.StartingMaxWeight = 0
	cfg.StatusMaxWeight = 0
	cfg.MapEvents.EnemyToll = 0
	FillDefaults(&cfg)

	if cfg.StartingMaxWeight != 0 || cfg.StatusMaxWeight != 0 || cfg.MapEvents.EnemyToll != 0 {
		t.Errorf("Explicit zeros were overwritten: max %d, status %d, toll %d",
			cfg.StartingMaxWeight, cfg.StatusMaxWeight, cfg.MapEvents.EnemyToll)
	}
	if cfg.NumPlayers == 0 || cfg.DieMax == 0 || cfg.MapEvents.Items == nil {
		t.Errorf("Expected the remaining defaults to be filled: %+v", cfg)
	}
	if err := ValidateMatchConfig(&cfg); err != nil {
		t.Errorf("Expected zero capacities to validate, got %v", err)
	}

	fresh := NewMatchConfig()
	if fresh.StatusMaxWeight != DefaultStatusMaxWeight || fresh.MapEvents.EnemyToll != DefaultEnemyToll {
		t.Errorf("Unexpected defaults: %+v", fresh)
	}
}

func TestValidateMatchConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*MatchConfig)
		wantErr string
	}{
		{"valid", func(c *MatchConfig) {}, ""},
		{"missing name", func(c *MatchConfig) { c.Name = "" }, "name is required"},
		{"missing description", func(c *MatchConfig) { c.Description = "" }, "description is required"},
		{"zero players", func(c *MatchConfig) { c.NumPlayers = 0 }, "num_players"},
		{"too many players", func(c *MatchConfig) { c.NumPlayers = MaxPlayers + 1 }, "num_players"},
		{"negative currency", func(c *MatchConfig) { c.StartingCurrency = -1 }, "starting_currency"},
		{"negative max weight", func(c *MatchConfig) { c.StartingMaxWeight = -5 }, "starting_max_weight"},
		{"negative status max", func(c *MatchConfig) { c.StatusMaxWeight = -5 }, "status_max_weight"},
		{"bad die range", func(c *MatchConfig) { c.DieMin, c.DieMax = 4, 2 }, "die range"},
		{"zero die", func(c *MatchConfig) { c.DieMin = 0 }, "die range"},
		{"bad formula", func(c *MatchConfig) { c.DistanceFormula = "cubic" }, "distance_formula"},
		{"bad action", func(c *MatchConfig) { c.DefaultAction = "DRAGON" }, "default_action"},
		{"negative toll", func(c *MatchConfig) { c.MapEvents.EnemyToll = -1 }, "enemy_toll"},
		{"negative item", func(c *MatchConfig) { c.MapEvents.Items["ORE"] = ItemSpec{Value: -1} }, "items[ORE]"},
		{"empty item kind", func(c *MatchConfig) { c.MapEvents.Items[""] = ItemSpec{} }, "empty resource kind"},
		{"missing ally prefab", func(c *MatchConfig) { c.MapEvents.AllyPrefab = "" }, "ally_prefab"},
		{"prompt without verb", func(c *MatchConfig) { c.Messages.RollPrompt = "roll" }, "roll_prompt"},
		{"dice box without verb", func(c *MatchConfig) { c.Messages.DiceDistance = "dist" }, "dice_distance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMatchConfig()
			tt.modify(cfg)
			err := ValidateMatchConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if err := ValidateMatchConfig(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestTravelDistance(t *testing.T) {
	tests := []struct {
		name              string
		formula           string
		roll, weight, max int
		expected          int
	}{
		// The literal formula ignores the roll and truncates any load to zero
		{"literal empty pack", FormulaLiteral, 6, 0, 100, 1},
		{"literal light load", FormulaLiteral, 6, 1, 100, 0},
		{"literal heavy load", FormulaLiteral, 6, 99, 100, 0},
		{"literal full load", FormulaLiteral, 6, 100, 100, 0},
		{"literal zero max", FormulaLiteral, 6, 0, 0, 0},
		{"scaled empty pack", FormulaScaled, 6, 0, 300, 6},
		{"scaled half load", FormulaScaled, 6, 150, 300, 3},
		{"scaled overloaded", FormulaScaled, 6, 400, 300, 0},
		{"scaled zero max", FormulaScaled, 6, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TravelDistance(tt.formula, tt.roll, tt.weight, tt.max)
			if got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestRandomDie(t *testing.T) {
	die := NewRandomDie(7)
	seen := make(map[int]bool)
	for i := 0; i < 600; i++ {
		v := die.Roll(1, 6)
		if v < 1 || v > 6 {
			t.Fatalf("Roll out of range: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 6 {
		t.Errorf("Expected every face to come up, saw %v", seen)
	}
	if die.Roll(3, 3) != 3 {
		t.Error("Expected degenerate range to return min")
	}

	a, b := NewRandomDie(99), NewRandomDie(99)
	for i := 0; i < 20; i++ {
		if a.Roll(1, 6) != b.Roll(1, 6) {
			t.Fatal("Expected equal seeds to roll the same sequence")
		}
	}
}
