// Package mcp exposes matches to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a request to the REST API
// (package api) and the JSON response is rendered as plain text for the agent.
// Numbers are printed with English grouping via golang.org/x/text/message.
//
// Tools:
//   - create_match, list_matches, get_match
//   - confirm, request_action, trigger_action, acknowledge, end_turn
//   - match_history, match_events
//   - get_entity, pickup, sell, adjust_currency, spawn_ally, remove_ally
//   - list_configs, game_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
