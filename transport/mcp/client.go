package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wricardo/gsp-board/game/engine"
	"github.com/wricardo/gsp-board/game/resolver"
	"github.com/wricardo/gsp-board/game/service"
)

// printer formats numbers with thousands separators
var printer = message.NewPrinter(language.English)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"GSP Board",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`GSP Board - MCP Interface

This is a thin client that proxies all requests to the REST API server.

A match is a hot-seat board game. Players take turns: roll the die, see the
travel distance, then either end the turn or trigger a map event (enemy, item
or ally). Map events change a player's gold, carried resources and allies.

AVAILABLE TOOLS:
- create_match, get_match, list_matches: manage matches
- confirm: press the action button (roll the die, or end the turn while selecting a path)
- request_action: trigger the match's default map event while selecting a path
- trigger_action: force a specific map event (ENEMY, ITEM, ALLY, NOTHING)
- acknowledge: finish the running map event
- end_turn: end the current turn immediately
- match_history, match_events: what happened so far
- get_entity, pickup, sell, adjust_currency, spawn_ally, remove_ally: economy tools
- list_configs: available match configurations
- game_instructions: rules of the turn cycle`),
	)

	c.registerTools()
}

func matchTool(name, description string, extra map[string]interface{}, required ...string) mcp.Tool {
	props := map[string]interface{}{
		"match_id": map[string]interface{}{
			"type":        "string",
			"description": "Match ID",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   append([]string{"match_id"}, required...),
		},
	}
}

func stringProp(description string, enum ...string) map[string]interface{} {
	p := map[string]interface{}{"type": "string", "description": description}
	if len(enum) > 0 {
		p["enum"] = enum
	}
	return p
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Match management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_match",
		Description: "Create a new match with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": stringProp("ID of the config to use (optional)"),
			},
		},
	}, c.handleCreateMatch)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_matches",
		Description: "List all active matches",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListMatches)

	c.mcpServer.AddTool(matchTool("get_match", "Get the turn state, players and allies of a match", nil), c.handleGetMatch)

	// Turn signals
	c.mcpServer.AddTool(matchTool("confirm", "Press the action button: roll the die in ROLL_DICE, end the turn in SELECT_PATH", nil), c.signalHandler("confirm"))
	c.mcpServer.AddTool(matchTool("request_action", "Trigger the default map event while selecting a path", nil), c.signalHandler("action"))
	c.mcpServer.AddTool(matchTool("acknowledge", "Finish the running map event", nil), c.signalHandler("acknowledge"))
	c.mcpServer.AddTool(matchTool("end_turn", "End the current turn immediately", nil), c.signalHandler("end-turn"))
	c.mcpServer.AddTool(matchTool("trigger_action", "Force a specific map event for the current player", map[string]interface{}{
		"action":   stringProp("Map event", engine.EventNothing, engine.EventEnemy, engine.EventItem, engine.EventAlly),
		"resource": stringProp("Resource kind for ITEM events, e.g. ORE or WOOL (optional)"),
	}, "action"), c.handleTriggerAction)

	// History
	c.mcpServer.AddTool(matchTool("match_history", "View state transitions of a match", map[string]interface{}{
		"page":  intProp("Page number (default 1)"),
		"limit": intProp("Transitions per page (default 20)"),
		"order": stringProp("Sort order", "asc", "desc"),
	}), c.handleHistory)
	c.mcpServer.AddTool(matchTool("match_events", "List finished map events of a match", nil), c.handleEvents)

	// Economy
	entity := map[string]interface{}{"entity_id": stringProp("Entity ID of a player or ally")}
	c.mcpServer.AddTool(matchTool("get_entity", "Show an entity's gold, resources and allies", entity, "entity_id"), c.handleGetEntity)
	c.mcpServer.AddTool(matchTool("sell", "Sell an entity's carried resources; allies credit their owner", entity, "entity_id"), c.handleSell)
	c.mcpServer.AddTool(matchTool("spawn_ally", "Spawn an ally owned by the entity", entity, "entity_id"), c.handleSpawnAlly)
	c.mcpServer.AddTool(matchTool("pickup", "Pick up a resource", map[string]interface{}{
		"entity_id": stringProp("Entity ID"),
		"kind":      stringProp("Resource kind (optional)"),
		"value":     intProp("Sale value"),
		"weight":    intProp("Weight"),
	}, "entity_id", "value", "weight"), c.handlePickup)
	c.mcpServer.AddTool(matchTool("adjust_currency", "Add gold (positive delta) or remove it (negative delta)", map[string]interface{}{
		"entity_id": stringProp("Entity ID"),
		"delta":     intProp("Gold to add or remove"),
	}, "entity_id", "delta"), c.handleAdjustCurrency)
	c.mcpServer.AddTool(matchTool("remove_ally", "Remove an ally from its owner", map[string]interface{}{
		"entity_id": stringProp("Owner entity ID"),
		"ally_id":   stringProp("Ally entity ID"),
		"destroy": map[string]interface{}{
			"type":        "boolean",
			"description": "Also remove the ally from the board (default true)",
		},
	}, "entity_id", "ally_id"), c.handleRemoveAlly)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available match configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the rules of the turn cycle",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func matchPath(args map[string]interface{}, suffix string) (string, error) {
	matchID, _ := args["match_id"].(string)
	if matchID == "" {
		return "", fmt.Errorf("match_id is required")
	}
	return "/api/matches/" + url.PathEscape(matchID) + suffix, nil
}

func entityPath(args map[string]interface{}, suffix string) (string, error) {
	entityID, _ := args["entity_id"].(string)
	if entityID == "" {
		return "", fmt.Errorf("entity_id is required")
	}
	return matchPath(args, "/entities/"+url.PathEscape(entityID)+suffix)
}

// Tool handlers

func (c *Client) handleCreateMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body := map[string]string{}
	if configID, _ := args["config_id"].(string); configID != "" {
		body["config_id"] = configID
	}

	var match service.MatchInfo
	if err := c.apiCall(ctx, "POST", "/api/matches", body, &match); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Created match: " + match.ID + "\n\n" + formatMatch(&match)), nil
}

func (c *Client) handleListMatches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Matches []service.MatchInfo `json:"matches"`
	}
	if err := c.apiCall(ctx, "GET", "/api/matches", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(resp.Matches) == 0 {
		return mcp.NewToolResultText("No active matches"), nil
	}
	var b strings.Builder
	b.WriteString(printer.Sprintf("Active matches: %d\n\n", len(resp.Matches)))
	for _, m := range resp.Matches {
		b.WriteString(printer.Sprintf("• %s (%s) player %d of %d, %s\n",
			m.ID, m.ConfigName, m.Turn.PlayerIndex, m.Turn.NumPlayers, m.Turn.State))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := matchPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var match service.MatchInfo
	if err := c.apiCall(ctx, "GET", path, nil, &match); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatMatch(&match)), nil
}

// signalHandler posts to a bodiless turn signal endpoint
func (c *Client) signalHandler(endpoint string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := matchPath(arguments(request), "/"+endpoint)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var result service.TurnResult
		if err := c.apiCall(ctx, "POST", path, nil, &result); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatTurnResult(&result)), nil
	}
}

func (c *Client) handleTriggerAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := matchPath(args, "/trigger")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, _ := args["action"].(string)
	resource, _ := args["resource"].(string)

	var result service.TurnResult
	body := map[string]string{"action": action, "resource": resource}
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatTurnResult(&result)), nil
}

func (c *Client) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := matchPath(args, "/history")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params := url.Values{}
	if page, ok := args["page"].(float64); ok {
		params.Set("page", fmt.Sprintf("%d", int(page)))
	}
	if limit, ok := args["limit"].(float64); ok {
		params.Set("limit", fmt.Sprintf("%d", int(limit)))
	}
	if order, ok := args["order"].(string); ok && order != "" {
		params.Set("order", order)
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := matchPath(arguments(request), "/events")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp struct {
		Events []resolver.Outcome `json:"events"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(resp.Events) == 0 {
		return mcp.NewToolResultText("No map events yet"), nil
	}

	var b strings.Builder
	for i, out := range resp.Events {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, formatOutcome(&out)))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) entityCall(ctx context.Context, request mcp.CallToolRequest, method, suffix string, body interface{}) (*mcp.CallToolResult, error) {
	path, err := entityPath(arguments(request), suffix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var entity service.EntityInfo
	if err := c.apiCall(ctx, method, path, body, &entity); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatEntity(&entity)), nil
}

func (c *Client) handleGetEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.entityCall(ctx, request, "GET", "", nil)
}

func (c *Client) handleSpawnAlly(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.entityCall(ctx, request, "POST", "/allies", nil)
}

func (c *Client) handlePickup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	req := service.PickupRequest{}
	req.Kind, _ = args["kind"].(string)
	if v, ok := args["value"].(float64); ok {
		req.Value = int(v)
	}
	if w, ok := args["weight"].(float64); ok {
		req.Weight = int(w)
	}
	return c.entityCall(ctx, request, "POST", "/pickup", req)
}

func (c *Client) handleRemoveAlly(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	allyID, _ := args["ally_id"].(string)
	if allyID == "" {
		return mcp.NewToolResultError("ally_id is required"), nil
	}
	suffix := "/allies/" + url.PathEscape(allyID)
	if destroy, ok := args["destroy"].(bool); ok && !destroy {
		suffix += "?destroy=false"
	}
	return c.entityCall(ctx, request, "DELETE", suffix, nil)
}

func (c *Client) handleSell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := entityPath(arguments(request), "/sell")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sale service.SaleResult
	if err := c.apiCall(ctx, "POST", path, nil, &sale); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := printer.Sprintf("Sold for %d gold, credited to %s\n\n", sale.Credited, sale.CreditedTo)
	result += formatEntity(&sale.Recipient)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleAdjustCurrency(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := entityPath(args, "/currency")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	delta, ok := args["delta"].(float64)
	if !ok {
		return mcp.NewToolResultError("delta is required"), nil
	}

	var res service.CurrencyResult
	if err := c.apiCall(ctx, "POST", path, map[string]int{"delta": int(delta)}, &res); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := printer.Sprintf("Requested %+d gold, applied %+d\n\n", res.Requested, res.Applied)
	result += formatEntity(&res.Entity)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Configurations:\n\n"
	for _, cfg := range configs {
		result += fmt.Sprintf("• %s (%s)\n  %s\n  Players: %d, Distance: %s\n\n",
			cfg.ConfigID, cfg.Name, cfg.Description, cfg.NumPlayers, cfg.DistanceFormula)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `GSP Board - Turn Cycle

Every turn walks through these states:

  BEGIN_TURN        the status bar shows the current player's gold and pack
  ROLL_DICE         waits for confirm, then rolls the die
  CALC_DISTANCE     travel distance from the roll and the pack weight
  DISPLAY_DISTANCE  shows the distance
  SELECT_PATH       waits: confirm ends the turn, request_action starts a map event
  DO_ACTION         waits until the map event is acknowledged, then back to SELECT_PATH
  END_TURN          passes the turn to the next player

MAP EVENTS:
  ENEMY    lose die roll x toll gold (never below zero)
  ITEM     pick up a resource; rejected when it would exceed max weight
  ALLY     spawn an ally; its sales credit its owner
  NOTHING  no effect

ECONOMY:
  Gold never goes negative. Carried weight never exceeds max weight.
  Selling converts the pack's value into gold and empties it.

Use get_match after each signal to see whose turn it is.`

// Formatting

func formatMatch(m *service.MatchInfo) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Match %s (%s)\n", m.ID, m.ConfigName))
	b.WriteString(formatTurn(&m.Turn))
	b.WriteString("\nPlayers:\n")
	for i := range m.Players {
		b.WriteString("  " + formatEntityLine(&m.Players[i]) + "\n")
	}
	if len(m.Allies) > 0 {
		b.WriteString("Allies:\n")
		for i := range m.Allies {
			b.WriteString("  " + formatEntityLine(&m.Allies[i]) + "\n")
		}
	}
	if m.RunningEvent != nil {
		b.WriteString("Running event: " + formatOutcome(m.RunningEvent) + "\n")
	}
	return b.String()
}

func formatTurn(t *engine.Snapshot) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Player %d of %d, state %s\n", t.PlayerIndex, t.NumPlayers, t.State))
	if t.LastRoll > 0 {
		b.WriteString(fmt.Sprintf("Roll: %d, travel distance: %d\n", t.LastRoll, t.TravelDistance))
	}
	s := t.Status
	b.WriteString(printer.Sprintf("Status: gold %d, weight %d/%d, ore %d, wool %d\n", s.Gold, s.Weight, s.MaxWeight, s.Ore, s.Wool))
	if s.Prompt != "" {
		b.WriteString("Prompt: " + strings.ReplaceAll(s.Prompt, "\n", " ") + "\n")
	}
	if t.AwaitingInput {
		b.WriteString("Waiting for player input\n")
	}
	return b.String()
}

func formatTurnResult(r *service.TurnResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Signal %s on match %s\n", r.Signal, r.MatchID))
	for _, tr := range r.Transitions {
		line := fmt.Sprintf("  %s -> %s (%s)", tr.From, tr.To, tr.Reason)
		if tr.Roll > 0 {
			line += fmt.Sprintf(" rolled %d", tr.Roll)
		}
		b.WriteString(line + "\n")
	}
	if r.Outcome != nil {
		b.WriteString("Event: " + formatOutcome(r.Outcome) + "\n")
	}
	b.WriteString(formatTurn(&r.Turn))
	return b.String()
}

func formatOutcome(o *resolver.Outcome) string {
	switch {
	case o.Rejected != "":
		return fmt.Sprintf("%s %s rejected: %s", o.Event, o.Resource, o.Rejected)
	case o.Event == engine.EventEnemy:
		return printer.Sprintf("ENEMY rolled %d, %s lost %d gold", o.Roll, o.PlayerID, o.GoldLost)
	case o.Event == engine.EventItem:
		return printer.Sprintf("ITEM %s picked up by %s (value %d, weight %d)", o.Resource, o.PlayerID, o.Value, o.Weight)
	case o.Event == engine.EventAlly:
		return fmt.Sprintf("ALLY %s joined %s", o.AllyID, o.PlayerID)
	}
	if o.Message != "" {
		return o.Event + ": " + o.Message
	}
	return o.Event
}

func formatEntityLine(e *service.EntityInfo) string {
	econ := e.Economy
	line := printer.Sprintf("%s [%s] gold %d, pack %d value / %d of %d weight", e.ID, e.Tag, econ.Currency, econ.ResourceValue, econ.ResourceWeight, econ.MaxWeight)
	if econ.OwnerID != "" {
		line += " owner " + econ.OwnerID
	}
	if len(econ.Allies) > 0 {
		line += " allies " + strings.Join(econ.Allies, ",")
	}
	return line
}

func formatEntity(e *service.EntityInfo) string {
	result := formatEntityLine(e) + "\n"
	kinds := make([]string, 0, len(e.Economy.Holdings))
	for kind := range e.Economy.Holdings {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		result += fmt.Sprintf("  %s x%d\n", kind, e.Economy.Holdings[kind])
	}
	return result
}

func formatHistory(history *service.HistoryResponse) string {
	result := printer.Sprintf("Transition History (Page %d/%d), Total: %d\n\n",
		history.Page, history.TotalPages, history.TotalTransitions)

	for _, tr := range history.Transitions {
		line := fmt.Sprintf("tick %d: player %d %s -> %s (%s)", tr.Tick, tr.Player, tr.From, tr.To, tr.Reason)
		if tr.Roll > 0 {
			line += fmt.Sprintf(" rolled %d", tr.Roll)
		}
		result += line + "\n"
	}
	return result
}
