// Package websocket pushes match events to browsers and tools.
//
// A central Hub owns every subscription. Clients connect with a match ID
// (?match=ab12) and receive each event the service broadcasts for that match;
// connecting without one subscribes to all matches. Incoming frames are read
// only to keep the connection alive.
//
// Outgoing frames are JSON:
//
//	{"match_id":"ab12","event":"turn_update","data":{...},"sent_at":"..."}
//
// Hub implements service.Notifier. BroadcastEvent never blocks: events go
// through a buffered queue drained by Run, and a client whose send buffer is
// full is dropped.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("match"))
//	})
package websocket
