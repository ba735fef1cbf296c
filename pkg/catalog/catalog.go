package catalog

// Game is a purchasable companion pack. Prices are minor currency units.
type Game struct {
	ID    string
	Name  string
	Price int64
}

var games = map[string]Game{
	"elden_ring":    {ID: "elden_ring", Name: "Elden Ring Companion", Price: 1999},
	"baldurs_gate3": {ID: "baldurs_gate3", Name: "Baldur's Gate 3 Companion", Price: 1999},
	"witcher3":      {ID: "witcher3", Name: "The Witcher 3 Companion", Price: 1499},
	"skyrim":        {ID: "skyrim", Name: "Skyrim Companion", Price: 999},
}

// Lookup returns the catalog entry for a game id. Unknown ids must be
// rejected before any provider call is made.
func Lookup(gameID string) (Game, bool) {
	game, ok := games[gameID]
	return game, ok
}

func All() []Game {
	list := make([]Game, 0, len(games))
	for _, g := range games {
		list = append(list, g)
	}
	return list
}
