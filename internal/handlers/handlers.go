// Package handlers is the HTTP glue over matchmaking and sessions. The
// URL shape mirrors the public API: /v1/game/new, invite, active, and
// per-ticket operations.
package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"chessmatch/internal/game"
	"chessmatch/internal/logging"
	"chessmatch/internal/matchmaking"
	"chessmatch/internal/rules"
	"chessmatch/internal/session"
	"chessmatch/internal/ticket"
)

// Handler bundles the handler dependencies.
type Handler struct {
	Queue    *matchmaking.Queue
	Sessions *session.Manager
	Tickets  ticket.Store
}

// NewHandler creates a handler instance.
func NewHandler(queue *matchmaking.Queue, sessions *session.Manager, tickets ticket.Store) *Handler {
	return &Handler{Queue: queue, Sessions: sessions, Tickets: tickets}
}

// Register mounts all routes on the app.
func (h *Handler) Register(app *fiber.App) {
	v1 := app.Group("/v1/game", h.ResolveIdentity)
	v1.Get("/types", h.HandleTypes)
	v1.Post("/new", h.HandleNew)
	v1.Post("/invite", h.HandleInvite)
	v1.Get("/invite/:token", h.HandleAcceptInvite)
	v1.Get("/active", h.HandleActive)
	v1.Get("/:token/info", h.HandleInfo)
	v1.Post("/:token/move", h.HandleMove)
	v1.Get("/:token/draw/accept", h.HandleDrawAccept)
	v1.Get("/:token/draw/refuse", h.HandleDrawRefuse)
	v1.Get("/:token/resign", h.HandleResign)
	v1.Get("/:token/moves", h.HandleMoves)
}

type newGameRequest struct {
	Type  string `json:"type" form:"type"`
	Limit string `json:"limit" form:"limit"`
}

type moveRequest struct {
	Move string `json:"move" form:"move"`
}

// HandleTypes lists the game types and their time-control classes.
func (h *Handler) HandleTypes(c *fiber.Ctx) error {
	limits := fiber.Map{}
	for _, t := range game.Types {
		if game.Timed(t) {
			limits[t] = game.LimitNames(t)
		}
	}
	return c.JSON(fiber.Map{"rc": true, "types": game.Types, "limits": limits})
}

// HandleNew enters the matchmaking queue; when an opponent is already
// waiting the response carries the full game state.
func (h *Handler) HandleNew(c *fiber.Ctx) error {
	var req newGameRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fail(c, game.ErrInvalidRequest)
	}
	if req.Type == "" {
		req.Type = game.TypeNoLimit
	}

	res, err := h.Queue.Request(c.Context(), req.Type, req.Limit, identity(c))
	if err != nil {
		return fail(c, err)
	}
	if !res.Paired {
		return c.JSON(fiber.Map{"rc": true, "game": res.Token})
	}
	info, err := h.Sessions.Info(c.Context(), res.Token)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(infoPayload(res.Token, info))
}

// HandleInvite creates a one-shot invitation.
func (h *Handler) HandleInvite(c *fiber.Ctx) error {
	var req newGameRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fail(c, game.ErrInvalidRequest)
	}
	if req.Type == "" {
		req.Type = game.TypeNoLimit
	}

	gameToken, inviteToken, err := h.Queue.Invite(c.Context(), req.Type, req.Limit, identity(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"rc": true, "game": gameToken, "invite": inviteToken})
}

// HandleAcceptInvite consumes an invite token and starts the game.
func (h *Handler) HandleAcceptInvite(c *fiber.Ctx) error {
	res, err := h.Queue.AcceptInvite(c.Context(), c.Params("token"), identity(c))
	if err != nil {
		return fail(c, err)
	}
	info, err := h.Sessions.Info(c.Context(), res.Token)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(infoPayload(res.Token, info))
}

// HandleActive lists the caller's unfinished games.
func (h *Handler) HandleActive(c *fiber.Ctx) error {
	id := identity(c)
	if id == "" {
		return c.Status(fiber.StatusUnauthorized).
			JSON(fiber.Map{"rc": false, "error": "authorization required"})
	}
	tokens, err := h.Sessions.Active(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	if tokens == nil {
		tokens = []string{}
	}
	return c.JSON(fiber.Map{"rc": true, "games": tokens})
}

// HandleInfo reports the game state for the caller's side.
func (h *Handler) HandleInfo(c *fiber.Ctx) error {
	info, err := h.Sessions.Info(c.Context(), c.Params("token"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(infoPayload(c.Params("token"), info))
}

// HandleMove validates a move against the board and applies it.
func (h *Handler) HandleMove(c *fiber.Ctx) error {
	token := c.Params("token")
	var req moveRequest
	if err := c.BodyParser(&req); err != nil || req.Move == "" {
		return fail(c, game.ErrInvalidRequest)
	}

	info, err := h.Sessions.Info(c.Context(), token)
	if err != nil {
		return fail(c, err)
	}
	if info.EndedAt != nil {
		return fail(c, game.ErrGameEnded)
	}
	if info.NextColor != info.Color {
		return fail(c, game.ErrNotYourTurn)
	}

	verdict, err := rules.Apply(info.Board, req.Move)
	if err != nil {
		return fail(c, err)
	}
	info, err = h.Sessions.Move(c.Context(), token, verdict.Piece, req.Move, verdict.Board)
	if err != nil {
		return fail(c, err)
	}
	if verdict.Decisive {
		if err := h.Sessions.FinishByRules(c.Context(), token, verdict.Winner); err != nil {
			return fail(c, err)
		}
		info, err = h.Sessions.Info(c.Context(), token)
		if err != nil {
			return fail(c, err)
		}
	}
	return c.JSON(infoPayload(token, info))
}

// HandleDrawAccept offers a draw, or accepts the opponent's offer.
func (h *Handler) HandleDrawAccept(c *fiber.Ctx) error {
	ended, err := h.Sessions.OfferDraw(c.Context(), c.Params("token"))
	if err != nil {
		return fail(c, err)
	}
	if ended {
		return c.JSON(fiber.Map{"rc": true, "message": "game ended in a draw"})
	}
	return c.JSON(fiber.Map{"rc": true})
}

// HandleDrawRefuse clears a pending draw offer.
func (h *Handler) HandleDrawRefuse(c *fiber.Ctx) error {
	if err := h.Sessions.RefuseDraw(c.Context(), c.Params("token")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"rc": true})
}

// HandleResign resigns the game.
func (h *Handler) HandleResign(c *fiber.Ctx) error {
	if err := h.Sessions.Resign(c.Context(), c.Params("token")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"rc": true})
}

// HandleMoves returns the move history, oldest first.
func (h *Handler) HandleMoves(c *fiber.Ctx) error {
	moves, err := h.Sessions.Moves(c.Context(), c.Params("token"))
	if err != nil {
		return fail(c, err)
	}
	out := make([]fiber.Map, 0, len(moves))
	for _, m := range moves {
		out = append(out, fiber.Map{
			"number":     m.Number,
			"piece":      m.Piece,
			"move":       m.Notation,
			"created_at": m.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{"rc": true, "moves": out})
}

func infoPayload(token string, info *session.Info) fiber.Map {
	payload := fiber.Map{
		"rc":         true,
		"game":       token,
		"board":      info.Board,
		"next_turn":  string(info.NextColor),
		"started_at": info.StartedAt.Format(time.RFC3339),
		"ended_at":   nil,
	}
	if info.Timed {
		payload["time_left"] = info.TimeLeft.Seconds()
		payload["enemy_time_left"] = info.OpponentTimeLeft.Seconds()
	} else {
		payload["time_left"] = nil
		payload["enemy_time_left"] = nil
	}
	if info.EndedAt != nil {
		payload["ended_at"] = info.EndedAt.Format(time.RFC3339)
		payload["reason"] = info.EndReason
		if info.Winner != nil {
			payload["winner"] = string(*info.Winner)
		}
	}
	return payload
}

func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusOK
	switch {
	case errors.Is(err, game.ErrInvalidRequest), errors.Is(err, rules.ErrIllegalMove):
		status = fiber.StatusBadRequest
	case errors.Is(err, game.ErrUnknownToken):
		status = fiber.StatusNotFound
	case errors.Is(err, game.ErrInfrastructure):
		status = fiber.StatusServiceUnavailable
		logging.Errorf("handlers: %v", err)
	}
	return c.Status(status).JSON(fiber.Map{"rc": false, "error": err.Error()})
}
