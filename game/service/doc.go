// Package service provides the business logic layer for hot-seat board matches.
//
// The service package implements:
//   - Multi-match management on top of a SessionManager
//   - Turn signals (confirm, action request, forced events, acknowledge)
//   - Economy operations on any entity of a match
//   - Transition history paging and finished map events
//   - Configuration lookup through a ConfigManager
//
// Core Interfaces:
//
// GameService is the main service interface used by the HTTP, WebSocket and MCP layers.
// SessionManager stores matches. ConfigManager loads and saves match configurations.
// Notifier receives every change so it can be pushed to connected clients.
//
// Every turn signal is applied under one lock and the match is then settled, so a
// response always describes a machine that is waiting for the next player input or
// for a running map event.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	sessions := session.NewManager(session.WithDisplay(service.DisplayFor(hub)))
//	configs := config.NewManager("configs", logger)
//	svc := service.NewGameService(sessions, configs, hub, logger)
//
//	match, err := svc.CreateMatch(ctx, "classic")
//	if err != nil {
//		return err
//	}
//	turn, err := svc.Confirm(ctx, match.ID) // roll and move to SELECT_PATH
package service
