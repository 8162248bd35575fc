// Package session keeps the matches a server is running.
//
// The session package implements:
//   - Thread-safe match storage and retrieval
//   - 4-character match IDs, looked up case-insensitively
//   - Per-match wiring of the board, die, resolver and turn machine
//   - Cleanup of idle matches
//
// Matches live in memory only; a restart starts from an empty table.
//
// Usage:
//
//	manager := session.NewManager(
//		session.WithDisplay(service.DisplayFor(hub)),
//		session.WithLogger(logger),
//	)
//
//	match, err := manager.Create("", "classic", cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Lookups ignore case
//	same, _ := manager.Get(strings.ToUpper(match.ID))
package session
