package controller

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"questlog_backend/internal/gamedata"
	"questlog_backend/pkg/catalog"
)

type GameController struct {
	data *gamedata.Store
}

func NewGameController(data *gamedata.Store) *GameController {
	return &GameController{data: data}
}

func (g *GameController) ListGames(c *fiber.Ctx) error {
	return respondOK(c, fiber.Map{
		"games": catalog.All(),
	})
}

// Search serves /games/:game_id/:category?q=...
func (g *GameController) Search(c *fiber.Ctx) error {
	gameID := c.Params("game_id")
	if _, ok := catalog.Lookup(gameID); !ok {
		return respondError(c, fiber.StatusNotFound, "Unknown game")
	}

	limit, err := strconv.Atoi(c.Query("limit", "25"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 25
	}

	entries, err := g.data.Search(gameID, c.Params("category"), c.Query("q"), limit)
	if errors.Is(err, gamedata.ErrUnknownCategory) {
		return respondError(c, fiber.StatusBadRequest, "Unknown content category")
	}
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not search game content")
	}

	return respondOK(c, fiber.Map{
		"results": entries,
	})
}

// Get serves /games/:game_id/:category/:id
func (g *GameController) Get(c *fiber.Ctx) error {
	gameID := c.Params("game_id")
	if _, ok := catalog.Lookup(gameID); !ok {
		return respondError(c, fiber.StatusNotFound, "Unknown game")
	}

	entry, err := g.data.Get(gameID, c.Params("category"), c.Params("id"))
	if errors.Is(err, gamedata.ErrUnknownCategory) {
		return respondError(c, fiber.StatusBadRequest, "Unknown content category")
	}
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not load game content")
	}
	if entry == nil {
		return respondError(c, fiber.StatusNotFound, "Not found")
	}

	return respondOK(c, entry)
}
