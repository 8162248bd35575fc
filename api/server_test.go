package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/gsp-board/game/config"
	"github.com/wricardo/gsp-board/game/economy"
	"github.com/wricardo/gsp-board/game/engine"
	"github.com/wricardo/gsp-board/game/resolver"
	"github.com/wricardo/gsp-board/game/service"
	"github.com/wricardo/gsp-board/game/session"
)

// MockGameService implements service.GameService for testing. Methods without
// a Func field fall through to the embedded interface and panic if called.
type MockGameService struct {
	service.GameService

	CreateMatchFunc func(ctx context.Context, configName string) (*service.MatchInfo, error)
	GetMatchFunc    func(ctx context.Context, matchID string) (*service.MatchInfo, error)
	ListMatchesFunc func(ctx context.Context) ([]*service.MatchInfo, error)
	ConfirmFunc     func(ctx context.Context, matchID string) (*service.TurnResult, error)
}

func (m *MockGameService) CreateMatch(ctx context.Context, configName string) (*service.MatchInfo, error) {
	if m.CreateMatchFunc != nil {
		return m.CreateMatchFunc(ctx, configName)
	}
	return &service.MatchInfo{ID: "test", ConfigName: configName, CreatedAt: time.Now()}, nil
}

func (m *MockGameService) GetMatch(ctx context.Context, matchID string) (*service.MatchInfo, error) {
	if m.GetMatchFunc != nil {
		return m.GetMatchFunc(ctx, matchID)
	}
	return &service.MatchInfo{ID: matchID, CreatedAt: time.Now()}, nil
}

func (m *MockGameService) ListMatches(ctx context.Context) ([]*service.MatchInfo, error) {
	if m.ListMatchesFunc != nil {
		return m.ListMatchesFunc(ctx)
	}
	return []*service.MatchInfo{}, nil
}

func (m *MockGameService) Confirm(ctx context.Context, matchID string) (*service.TurnResult, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, matchID)
	}
	return &service.TurnResult{MatchID: matchID, Signal: "confirm"}, nil
}

type DieRollerFunc func(min, max int) int

func (f DieRollerFunc) Roll(min, max int) int { return f(min, max) }

// newTestServer wires the real service stack over a temporary config directory
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	classic := engine.DefaultMatchConfig()
	classic.Name = "Classic"
	classic.StartingCurrency = 50
	data, err := json.MarshalIndent(classic, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "classic.json"), data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	configs, err := config.NewManager(dir, nil)
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	sessions := session.NewManager(session.WithDice(func() engine.DieRoller {
		return DieRollerFunc(func(min, max int) int { return 3 })
	}))
	svc := service.NewGameService(sessions, configs, nil, nil)
	return NewServer(svc, nil, nil), dir
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v (%s)", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func createMatch(t *testing.T, s *Server) service.MatchInfo {
	t.Helper()
	w := do(t, s, "POST", "/api/matches", map[string]string{"config_id": "classic"})
	expectStatus(t, w, http.StatusCreated)
	var match service.MatchInfo
	decode(t, w, &match)
	return match
}

func TestServer_MatchLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	match := createMatch(t, s)
	if match.ConfigName != "classic" || len(match.Players) != 2 {
		t.Fatalf("Unexpected match %+v", match)
	}
	if match.Turn.State != engine.RollDice {
		t.Errorf("Expected ROLL_DICE, got %s", match.Turn.State)
	}

	t.Run("get", func(t *testing.T) {
		w := do(t, s, "GET", "/api/matches/"+match.ID, nil)
		expectStatus(t, w, http.StatusOK)
	})

	t.Run("list", func(t *testing.T) {
		createMatch(t, s)
		w := do(t, s, "GET", "/api/matches?sort=created&order=asc&limit=1", nil)
		expectStatus(t, w, http.StatusOK)
		var resp struct {
			Count   int                 `json:"count"`
			Total   int                 `json:"total"`
			Matches []service.MatchInfo `json:"matches"`
		}
		decode(t, w, &resp)
		if resp.Count != 1 || resp.Total != 2 || resp.Matches[0].ID != match.ID {
			t.Errorf("Unexpected list %+v", resp)
		}
	})

	t.Run("list by config", func(t *testing.T) {
		w := do(t, s, "GET", "/api/matches?config=nothing", nil)
		var resp struct {
			Total int `json:"total"`
		}
		decode(t, w, &resp)
		if resp.Total != 0 {
			t.Errorf("Expected no matches for unknown config, got %d", resp.Total)
		}
	})

	t.Run("unknown config", func(t *testing.T) {
		w := do(t, s, "POST", "/api/matches", map[string]string{"config_id": "dragon"})
		expectStatus(t, w, http.StatusNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		w := do(t, s, "DELETE", "/api/matches/"+match.ID, nil)
		expectStatus(t, w, http.StatusOK)
		w = do(t, s, "GET", "/api/matches/"+match.ID, nil)
		expectStatus(t, w, http.StatusNotFound)
	})
}

func TestServer_TurnSignals(t *testing.T) {
	s, _ := newTestServer(t)
	match := createMatch(t, s)
	base := "/api/matches/" + match.ID

	w := do(t, s, "POST", base+"/action", nil)
	expectStatus(t, w, http.StatusConflict)

	w = do(t, s, "POST", base+"/confirm", nil)
	expectStatus(t, w, http.StatusOK)
	var turn service.TurnResult
	decode(t, w, &turn)
	if turn.Turn.State != engine.SelectPath || turn.Turn.LastRoll != 3 {
		t.Fatalf("Expected SELECT_PATH after roll 3, got %+v", turn.Turn)
	}

	w = do(t, s, "POST", base+"/action", nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &turn)
	if turn.Turn.State != engine.DoAction {
		t.Fatalf("Expected DO_ACTION, got %s", turn.Turn.State)
	}

	w = do(t, s, "POST", base+"/acknowledge", nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &turn)
	if turn.Outcome == nil || turn.Outcome.GoldLost != 15 {
		t.Errorf("Expected enemy toll 3*5, got %+v", turn.Outcome)
	}

	w = do(t, s, "POST", base+"/acknowledge", nil)
	expectStatus(t, w, http.StatusConflict)

	w = do(t, s, "POST", base+"/trigger", map[string]string{"action": "item", "resource": "wool"})
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &turn)
	if turn.Outcome == nil || turn.Outcome.Resource != economy.Wool {
		t.Errorf("Expected WOOL outcome, got %+v", turn.Outcome)
	}
	do(t, s, "POST", base+"/acknowledge", nil)

	w = do(t, s, "POST", base+"/trigger", map[string]string{"action": "dragon"})
	expectStatus(t, w, http.StatusBadRequest)
	w = do(t, s, "POST", base+"/trigger", nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = do(t, s, "POST", base+"/end-turn", nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &turn)
	if turn.Turn.PlayerIndex != 2 || turn.Message != "Player 2 roll dice" {
		t.Errorf("Expected player 2 to roll, got %+v", turn)
	}

	w = do(t, s, "POST", base+"/advance", nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &turn)
	if turn.Turn.State != engine.CalcDistance {
		t.Errorf("Expected CALC_DISTANCE, got %s", turn.Turn.State)
	}

	w = do(t, s, "POST", base+"/tick", nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &turn)
	if turn.Turn.State != engine.DisplayDistance {
		t.Errorf("Expected DISPLAY_DISTANCE, got %s", turn.Turn.State)
	}

	t.Run("history", func(t *testing.T) {
		w := do(t, s, "GET", base+"/history?order=asc&limit=2", nil)
		expectStatus(t, w, http.StatusOK)
		var h service.HistoryResponse
		decode(t, w, &h)
		if len(h.Transitions) != 2 || h.Transitions[0].From != engine.BeginTurn || !h.HasNext {
			t.Errorf("Unexpected history %+v", h)
		}

		w = do(t, s, "GET", base+"/history?order=sideways", nil)
		expectStatus(t, w, http.StatusBadRequest)
	})

	t.Run("events", func(t *testing.T) {
		w := do(t, s, "GET", base+"/events", nil)
		expectStatus(t, w, http.StatusOK)
		var resp struct {
			Count  int                `json:"count"`
			Events []resolver.Outcome `json:"events"`
		}
		decode(t, w, &resp)
		if resp.Count != 2 || resp.Events[0].Event != engine.EventEnemy {
			t.Errorf("Unexpected events %+v", resp)
		}
	})

	w = do(t, s, "POST", "/api/matches/zzzz/confirm", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestServer_Economy(t *testing.T) {
	s, _ := newTestServer(t)
	match := createMatch(t, s)
	player := match.Players[0].ID
	base := fmt.Sprintf("/api/matches/%s/entities/%s", match.ID, player)

	w := do(t, s, "POST", base+"/pickup", service.PickupRequest{Kind: "ore", Value: 30, Weight: 40})
	expectStatus(t, w, http.StatusOK)
	var ent service.EntityInfo
	decode(t, w, &ent)
	if ent.Economy.Holdings[economy.Ore] != 1 || ent.Economy.ResourceWeight != 40 {
		t.Errorf("Unexpected economy %+v", ent.Economy)
	}

	w = do(t, s, "POST", base+"/pickup", service.PickupRequest{Value: 1, Weight: 1000})
	expectStatus(t, w, http.StatusConflict)
	w = do(t, s, "POST", base+"/pickup", service.PickupRequest{Value: -1})
	expectStatus(t, w, http.StatusBadRequest)

	w = do(t, s, "POST", base+"/sell", nil)
	expectStatus(t, w, http.StatusOK)
	var sale service.SaleResult
	decode(t, w, &sale)
	if sale.Credited != 30 || sale.Seller.Economy.Currency != 80 {
		t.Errorf("Unexpected sale %+v", sale)
	}

	w = do(t, s, "POST", base+"/currency", map[string]int{"delta": -100})
	expectStatus(t, w, http.StatusOK)
	var cur service.CurrencyResult
	decode(t, w, &cur)
	if cur.Applied != -80 || cur.Entity.Economy.Currency != 0 {
		t.Errorf("Unexpected currency result %+v", cur)
	}
	w = do(t, s, "POST", base+"/currency", map[string]int{})
	expectStatus(t, w, http.StatusBadRequest)

	w = do(t, s, "PUT", base+"/max-weight", map[string]int{"max_weight": 120})
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &ent)
	if ent.Economy.MaxWeight != 120 {
		t.Errorf("Expected max weight 120, got %d", ent.Economy.MaxWeight)
	}

	w = do(t, s, "GET", fmt.Sprintf("/api/matches/%s/entities/nobody", match.ID), nil)
	expectStatus(t, w, http.StatusNotFound)

	t.Run("allies", func(t *testing.T) {
		w := do(t, s, "POST", base+"/allies", nil)
		expectStatus(t, w, http.StatusCreated)
		var ally service.EntityInfo
		decode(t, w, &ally)
		if ally.Economy.OwnerID != player {
			t.Fatalf("Expected ally owned by %s, got %+v", player, ally.Economy)
		}
		do(t, s, "POST", base+"/allies", nil)

		w = do(t, s, "DELETE", base+"/allies/"+ally.ID+"?destroy=false", nil)
		expectStatus(t, w, http.StatusOK)
		decode(t, w, &ent)
		if len(ent.Economy.Allies) != 1 {
			t.Errorf("Expected 1 ally left, got %v", ent.Economy.Allies)
		}
		// kept on the board
		w = do(t, s, "GET", fmt.Sprintf("/api/matches/%s/entities/%s", match.ID, ally.ID), nil)
		expectStatus(t, w, http.StatusOK)

		w = do(t, s, "DELETE", base+"/allies/"+ally.ID, nil)
		expectStatus(t, w, http.StatusBadRequest)

		w = do(t, s, "DELETE", base+"/allies", nil)
		expectStatus(t, w, http.StatusOK)
		var removal service.AllyRemoval
		decode(t, w, &removal)
		if removal.Removed != 1 || len(removal.Owner.Economy.Allies) != 0 {
			t.Errorf("Unexpected removal %+v", removal)
		}
	})
}

func TestServer_Configs(t *testing.T) {
	s, dir := newTestServer(t)

	w := do(t, s, "GET", "/api/configs", nil)
	expectStatus(t, w, http.StatusOK)
	var list []service.ConfigInfo
	decode(t, w, &list)
	if len(list) != 1 || list[0].ConfigID != "classic" {
		t.Errorf("Unexpected configs %+v", list)
	}

	w = do(t, s, "GET", "/api/configs/classic", nil)
	expectStatus(t, w, http.StatusOK)
	w = do(t, s, "GET", "/api/configs/missing", nil)
	expectStatus(t, w, http.StatusNotFound)

	body := map[string]interface{}{
		"config": map[string]interface{}{
			"name":             "Big Table",
			"description":      "Four players",
			"num_players":      4,
			"distance_formula": "scaled",
		},
	}
	w = do(t, s, "POST", "/api/configs", body)
	expectStatus(t, w, http.StatusCreated)
	var created struct {
		ConfigID string `json:"config_id"`
	}
	decode(t, w, &created)
	if created.ConfigID != "big-table" {
		t.Errorf("Expected config_id big-table, got %s", created.ConfigID)
	}
	if _, err := os.Stat(filepath.Join(dir, "big-table.json")); err != nil {
		t.Errorf("Expected config file written: %v", err)
	}

	bad := map[string]interface{}{
		"config_id": "bad",
		"config":    map[string]interface{}{"name": "Bad", "description": "x", "num_players": 99},
	}
	w = do(t, s, "POST", "/api/configs", bad)
	expectStatus(t, w, http.StatusBadRequest)

	w = do(t, s, "POST", "/api/configs", map[string]interface{}{"config": map[string]interface{}{}})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestServer_MockedService(t *testing.T) {
	mock := &MockGameService{
		ConfirmFunc: func(ctx context.Context, matchID string) (*service.TurnResult, error) {
			return nil, errors.New("disk on fire")
		},
		CreateMatchFunc: func(ctx context.Context, configName string) (*service.MatchInfo, error) {
			if configName != "classic" {
				t.Errorf("Expected classic, got %q", configName)
			}
			return &service.MatchInfo{ID: "ab12", ConfigName: configName}, nil
		},
	}
	s := NewServer(mock, nil, nil)

	w := do(t, s, "POST", "/api/matches/ab12/confirm", nil)
	expectStatus(t, w, http.StatusInternalServerError)
	var resp map[string]interface{}
	decode(t, w, &resp)
	if resp["error"] != "disk on fire" || resp["code"] != float64(500) {
		t.Errorf("Unexpected error body %v", resp)
	}

	w = do(t, s, "POST", "/api/matches", map[string]string{"config_id": "classic"})
	expectStatus(t, w, http.StatusCreated)

	req := httptest.NewRequest("POST", "/api/matches", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)

	w = do(t, s, "GET", "/health", nil)
	expectStatus(t, w, http.StatusOK)

	w = do(t, s, "GET", "/ws", nil)
	expectStatus(t, w, http.StatusServiceUnavailable)

	w = do(t, s, "DELETE", "/api/configs", nil)
	expectStatus(t, w, http.StatusMethodNotAllowed)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", service.ErrMatchNotFound), http.StatusNotFound},
		{service.ErrConfigNotFound, http.StatusNotFound},
		{fmt.Errorf("confirm: %w", engine.ErrAlreadyConfirmed), http.StatusConflict},
		{resolver.ErrBusy, http.StatusConflict},
		{economy.ErrOverweight, http.StatusConflict},
		{session.ErrSessionAlreadyExists, http.StatusConflict},
		{economy.ErrNegativeAmount, http.StatusBadRequest},
		{config.ErrInvalidConfig, http.StatusBadRequest},
		{engine.ErrUnknownEvent, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Big Table":     "big-table",
		"  classic  ":   "classic",
		"../etc/passwd": "etcpasswd",
		"Quick_Game 2":  "quick_game-2",
		"":              "",
	}
	for in, want := range tests {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}
