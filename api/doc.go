// Package api exposes the game service over HTTP.
//
// Endpoints:
//
// Matches:
//   - POST   /api/matches                      {"config_id": "classic"}
//   - GET    /api/matches                      ?sort=created|accessed&order=asc|desc&limit=N&config=ID
//   - GET    /api/matches/{id}
//   - DELETE /api/matches/{id}
//
// Turn signals (each returns a TurnResult once the match waits again):
//   - POST /api/matches/{id}/confirm          press the action button
//   - POST /api/matches/{id}/action           request the default map event
//   - POST /api/matches/{id}/trigger          {"action": "ITEM", "resource": "ORE"}
//   - POST /api/matches/{id}/acknowledge      finish the running map event
//   - POST /api/matches/{id}/end-turn
//   - POST /api/matches/{id}/advance          step one state without its work
//   - POST /api/matches/{id}/tick             run one tick
//   - GET  /api/matches/{id}/history          ?page=&limit=&order=
//   - GET  /api/matches/{id}/events
//
// Economy:
//   - GET    /api/matches/{id}/entities/{eid}
//   - POST   /api/matches/{id}/entities/{eid}/pickup       {"kind": "ORE", "value": 30, "weight": 40}
//   - POST   /api/matches/{id}/entities/{eid}/sell
//   - POST   /api/matches/{id}/entities/{eid}/currency     {"delta": -10}
//   - PUT    /api/matches/{id}/entities/{eid}/max-weight   {"max_weight": 200}
//   - POST   /api/matches/{id}/entities/{eid}/allies
//   - DELETE /api/matches/{id}/entities/{eid}/allies       ?destroy=false
//   - DELETE /api/matches/{id}/entities/{eid}/allies/{aid} ?destroy=false
//
// Configuration:
//   - GET  /api/configs
//   - GET  /api/configs/{name}
//   - POST /api/configs                       {"config_id": "...", "config": {...}}
//
// GET /ws?match={id} upgrades to a WebSocket; see package websocket.
//
// Errors are JSON with the HTTP status repeated in the body:
//
//	{"error": "match not found: ...", "code": 404}
//
// Unknown matches, entities and configs are 404. Signals that do not fit the
// current state, a busy or idle resolver, overweight pickups and owned allies
// are 409. Malformed input is 400.
package api
