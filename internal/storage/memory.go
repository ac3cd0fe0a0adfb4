package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chessmatch/internal/game"
)

// ErrGameNotFound is returned when a game id does not resolve.
var ErrGameNotFound = errors.New("storage: game not found")

// MemoryDirectory is an in-process game.Directory for tests and runs
// without a DATABASE_URL configured.
type MemoryDirectory struct {
	mu    sync.Mutex
	games map[uuid.UUID]*game.Game
	moves map[uuid.UUID][]game.Move
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		games: make(map[uuid.UUID]*game.Game),
		moves: make(map[uuid.UUID][]game.Move),
	}
}

func (d *MemoryDirectory) CreateGame(ctx context.Context, g *game.Game) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *g
	d.games[g.ID] = &cp
	return nil
}

func (d *MemoryDirectory) Game(ctx context.Context, id uuid.UUID) (*game.Game, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	cp := *g
	return &cp, nil
}

func (d *MemoryDirectory) AppendMove(ctx context.Context, id uuid.UUID, piece, notation string, at time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.games[id]; !ok {
		return 0, ErrGameNotFound
	}
	number := len(d.moves[id]) + 1
	d.moves[id] = append(d.moves[id], game.Move{
		GameID:    id,
		Number:    number,
		Piece:     piece,
		Notation:  notation,
		CreatedAt: at,
	})
	return number, nil
}

func (d *MemoryDirectory) SaveState(ctx context.Context, id uuid.UUID, board string, next game.Color, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.games[id]
	if !ok {
		return ErrGameNotFound
	}
	g.Board = board
	g.NextColor = next
	g.DrawOffer = nil
	g.LastStateAt = at
	return nil
}

func (d *MemoryDirectory) SetDrawOffer(ctx context.Context, id uuid.UUID, offer *game.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.games[id]
	if !ok {
		return ErrGameNotFound
	}
	g.DrawOffer = offer
	return nil
}

func (d *MemoryDirectory) EndGame(ctx context.Context, id uuid.UUID, reason game.EndReason, winner *game.Color, at time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.games[id]
	if !ok {
		return false, ErrGameNotFound
	}
	if g.EndedAt != nil {
		return false, nil
	}
	end := at
	g.EndedAt = &end
	g.EndReason = &reason
	g.Winner = winner
	g.DrawOffer = nil
	return true, nil
}

func (d *MemoryDirectory) Moves(ctx context.Context, id uuid.UUID) ([]game.Move, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	moves := make([]game.Move, len(d.moves[id]))
	copy(moves, d.moves[id])
	return moves, nil
}

func (d *MemoryDirectory) ActiveTokens(ctx context.Context, identity string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var active []*game.Game
	for _, g := range d.games {
		if g.EndedAt != nil {
			continue
		}
		if (g.PlayerWhite != nil && *g.PlayerWhite == identity) ||
			(g.PlayerBlack != nil && *g.PlayerBlack == identity) {
			active = append(active, g)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	tokens := make([]string, 0, len(active))
	for _, g := range active {
		if g.PlayerWhite != nil && *g.PlayerWhite == identity {
			tokens = append(tokens, g.WhiteToken)
		} else {
			tokens = append(tokens, g.BlackToken)
		}
	}
	return tokens, nil
}
