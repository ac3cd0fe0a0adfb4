package game

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Color identifies a side of the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// EndReason records why a game reached its terminal state.
type EndReason string

const (
	// EndedByRules covers checkmate, stalemate and every other outcome
	// decided by the external legality checker.
	EndedByRules       EndReason = "rules"
	EndedByResignation EndReason = "resignation"
	EndedByDraw        EndReason = "draw"
	EndedByTimeout     EndReason = "timeout"
)

// StartingBoard is the serialized state of a fresh game.
const StartingBoard = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Game is the durable record of one paired game. Board contents are
// opaque here; the external legality checker owns their evolution.
type Game struct {
	ID          uuid.UUID
	PlayerWhite *string
	PlayerBlack *string
	WhiteToken  string
	BlackToken  string
	CreatedAt   time.Time
	EndedAt     *time.Time
	EndReason   *EndReason
	Winner      *Color
	TimeLimit   time.Duration // 0 = untimed
	NextColor   Color
	Board       string
	DrawOffer   *Color
	LastStateAt time.Time
}

// Ended reports whether the game reached a terminal state.
func (g *Game) Ended() bool {
	return g.EndedAt != nil
}

// Move is one entry of a game's append-only history.
type Move struct {
	GameID    uuid.UUID
	Number    int
	Piece     string
	Notation  string
	CreatedAt time.Time
}

// Directory is the durable store for games and their moves. A game is
// created once at pairing time, mutated only through the session
// manager, and never deleted.
type Directory interface {
	CreateGame(ctx context.Context, g *Game) error
	Game(ctx context.Context, id uuid.UUID) (*Game, error)
	AppendMove(ctx context.Context, id uuid.UUID, piece, notation string, at time.Time) (int, error)
	SaveState(ctx context.Context, id uuid.UUID, board string, next Color, at time.Time) error
	SetDrawOffer(ctx context.Context, id uuid.UUID, offer *Color) error
	// EndGame marks the game terminal exactly once; a second call is a
	// no-op that reports false. A pending draw offer clears with it.
	EndGame(ctx context.Context, id uuid.UUID, reason EndReason, winner *Color, at time.Time) (bool, error)
	Moves(ctx context.Context, id uuid.UUID) ([]Move, error)
	// ActiveTokens returns the ticket tokens of the identity's
	// unfinished games, oldest first.
	ActiveTokens(ctx context.Context, identity string) ([]string, error)
}
