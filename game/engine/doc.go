// Package engine runs the turn cycle of a hot-seat board match.
//
// A Machine walks the current player through seven states:
//
//	BeginTurn -> RollDice -> CalcDistance -> DisplayDistance -> SelectPath -> EndTurn
//	                                                  SelectPath <-> DoAction
//
// RollDice and SelectPath wait for the player: Confirm presses the action button and
// RequestAction asks for a map event. DoAction waits for the ActionResolver to finish.
// Every other state moves on the next Tick. The die, the resolver, the path display and
// the entity factory are injected through Collaborators.
//
// Usage:
//
//	cfg := engine.DefaultMatchConfig()
//	dice := engine.NewRandomDie(0)
//	registry := scene.NewRegistry(scene.DefaultPrefabs(), economy.DefaultMaxWeight)
//	m, err := engine.NewMachine(cfg, engine.Collaborators{
//		Dice:     dice,
//		Resolver: resolver.New(registry, cfg, dice, logger),
//		Display:  display,
//		Factory:  registry,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	m.Settle(0)  // BeginTurn -> RollDice
//	m.Confirm()  // roll
//	m.Settle(0)  // -> SelectPath
//	m.Confirm()  // end the turn
//	m.Settle(0)  // -> RollDice for player 2
//
// MatchConfig carries the rules: player count, starting economy, the distance formula
// and the status bar messages. TravelDistance exposes the formula on its own.
package engine
