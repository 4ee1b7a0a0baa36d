package handlers

import (
	"darts-match-service/middleware"
	"darts-match-service/models"
	"darts-match-service/services"

	"github.com/gofiber/fiber/v2"
)

// SetupMatchRoutes wires the remote-match lifecycle under gateway identity.
// Every route is secured: identity issuance is the gateway's problem, absence
// of X-User-ID is NotAuthenticated here.
func SetupMatchRoutes(app *fiber.App, matches *services.MatchService, feed *services.FeedService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Feed first: fiber would otherwise route it into /matches/:id.
	secured.Get("/matches/feed", feed.StreamMatchFeed)

	secured.Post("/matches", createMatch(matches))
	secured.Get("/matches", listMatches(matches))
	secured.Get("/matches/:id", getMatch(matches))
	secured.Post("/matches/:id/accept", lifecycleOp(matches.Accept))
	secured.Post("/matches/:id/decline", lifecycleOp(matches.Decline))
	secured.Post("/matches/:id/cancel", lifecycleOp(matches.Cancel))
	secured.Post("/matches/:id/abort", lifecycleOp(matches.Abort))
	secured.Post("/matches/:id/join", lifecycleOp(matches.Join))
	secured.Post("/matches/:id/visits", submitVisit(matches))
	secured.Get("/matches/:id/membership", membership(matches))
}

type createMatchRequest struct {
	ReceiverID  string `json:"receiver_id"`
	GameType    string `json:"game_type"`
	MatchFormat int    `json:"match_format"`
}

func createMatch(svc *services.MatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createMatchRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
		m, err := svc.CreateChallenge(userID(c), req.ReceiverID, req.GameType, req.MatchFormat)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	}
}

func listMatches(svc *services.MatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		matches, err := svc.ListMatches(userID(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"matches": matches})
	}
}

func getMatch(svc *services.MatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := svc.GetMatch(userID(c), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(m)
	}
}

// lifecycleOp adapts the accept/decline/cancel/abort/join service calls,
// which all share the {user, match} → match shape.
func lifecycleOp(op func(userID, matchID string) (*models.Match, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := op(userID(c), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(m)
	}
}

type visitRequest struct {
	Darts []int `json:"darts"`
}

func submitVisit(svc *services.MatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req visitRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
		if err := svc.SubmitVisit(userID(c), c.Params("id"), req.Darts); err != nil {
			return serviceError(c, err)
		}
		// Acknowledgment only: the authoritative result is observed via the
		// next fetched record, never via this response.
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
	}
}

func membership(svc *services.MatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		joined, err := svc.HasJoined(userID(c), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"joined": joined})
	}
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func serviceError(c *fiber.Ctx, err error) error {
	code, status := services.CodeForError(err)
	return c.Status(status).JSON(fiber.Map{"code": code, "error": err.Error()})
}
