// Package economy models the per-player purse of the Gold Silk Path board game.
//
// Each character entity carries an Economy that tracks:
//   - Currency (gold), never allowed to go below zero
//   - A held resource made of a sale value and a carried weight
//   - Per-kind tallies of named resources (ORE, WOOL, ...)
//   - A maximum carry weight that clamps at zero
//   - An optional owner, set when the character is an ally of another player
//   - The owner's own set of allies
//
// Usage:
//
//	player := economy.New("p1", nil)
//	if err := player.PickupNamed(economy.Ore, 40, 25); errors.Is(err, economy.ErrOverweight) {
//		// too heavy, nothing was picked up
//	}
//	credited, to := player.SellResources()
//
// Allies:
//
// An owner keeps the authoritative list of its allies. Sales made by an ally credit the
// owner, and removing allies only ever walks the owner's own set.
package economy
