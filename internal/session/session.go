// Package session is the authoritative state machine for paired games:
// move application, draw negotiation, resignation and lazy timeout
// detection. All mutations for one game are serialized behind a
// per-game lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chessmatch/internal/clock"
	"chessmatch/internal/game"
	"chessmatch/internal/logging"
	"chessmatch/internal/ticket"
)

// Manager runs game sessions on top of the ticket store (token
// resolution) and the game directory (durable state).
type Manager struct {
	tickets ticket.Store
	dir     game.Directory
	now     func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewManager creates a session manager.
func NewManager(tickets ticket.Store, dir game.Directory) *Manager {
	return &Manager{
		tickets: tickets,
		dir:     dir,
		now:     time.Now,
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetNow overrides the manager's clock, for timeout tests.
func (m *Manager) SetNow(now func() time.Time) { m.now = now }

// Info is the view of a game from one player's side.
type Info struct {
	GameID           uuid.UUID
	Color            game.Color
	Board            string
	NextColor        game.Color
	Timed            bool
	TimeLeft         time.Duration
	OpponentTimeLeft time.Duration
	StartedAt        time.Time
	EndedAt          *time.Time
	EndReason        *game.EndReason
	Winner           *game.Color
}

// Info reports the game state for the token's side. It is read-only
// apart from the timeout transition it may trigger.
func (m *Manager) Info(ctx context.Context, token string) (*Info, error) {
	sess, g, unlock, err := m.enter(ctx, token)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return m.view(sess, g), nil
}

// Move applies a move for the token's side. Legality of the move itself
// is the caller's concern; board is the serialized state after the move
// (kept unchanged when empty). The turn flips and any pending draw
// offer clears.
func (m *Manager) Move(ctx context.Context, token, piece, notation, board string) (*Info, error) {
	sess, g, unlock, err := m.enter(ctx, token)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if g.Ended() {
		return nil, game.ErrGameEnded
	}
	if sess.Color != g.NextColor {
		return nil, game.ErrNotYourTurn
	}

	now := m.now()
	number, err := m.dir.AppendMove(ctx, g.ID, piece, notation, now)
	if err != nil {
		return nil, infraErr(err)
	}
	if board == "" {
		board = g.Board
	}
	next := g.NextColor.Other()
	if err := m.dir.SaveState(ctx, g.ID, board, next, now); err != nil {
		return nil, infraErr(err)
	}
	g.Board = board
	g.NextColor = next
	g.DrawOffer = nil
	g.LastStateAt = now
	logging.Debugf("session: game %s move %d %s", g.ID, number, notation)
	return m.view(sess, g), nil
}

// OfferDraw records a draw offer, or finishes the game when the other
// color already has one pending. A color re-offering on its own offer
// is a no-op; only the opponent's confirmation ends the game.
func (m *Manager) OfferDraw(ctx context.Context, token string) (bool, error) {
	sess, g, unlock, err := m.enter(ctx, token)
	if err != nil {
		return false, err
	}
	defer unlock()

	if g.Ended() {
		return false, game.ErrGameEnded
	}
	if g.DrawOffer != nil {
		if *g.DrawOffer == sess.Color {
			return false, nil
		}
		if err := m.end(ctx, g, game.EndedByDraw, nil); err != nil {
			return false, err
		}
		return true, nil
	}
	offer := sess.Color
	if err := m.dir.SetDrawOffer(ctx, g.ID, &offer); err != nil {
		return false, infraErr(err)
	}
	return false, nil
}

// RefuseDraw clears any pending draw offer; with none pending it is a
// documented no-op.
func (m *Manager) RefuseDraw(ctx context.Context, token string) error {
	_, g, unlock, err := m.enter(ctx, token)
	if err != nil {
		return err
	}
	defer unlock()

	if g.Ended() {
		return game.ErrGameEnded
	}
	if g.DrawOffer == nil {
		return nil
	}
	if err := m.dir.SetDrawOffer(ctx, g.ID, nil); err != nil {
		return infraErr(err)
	}
	return nil
}

// Resign ends the game immediately, opponent recorded as winner.
func (m *Manager) Resign(ctx context.Context, token string) error {
	sess, g, unlock, err := m.enter(ctx, token)
	if err != nil {
		return err
	}
	defer unlock()

	if g.Ended() {
		return game.ErrGameEnded
	}
	winner := sess.Color.Other()
	return m.end(ctx, g, game.EndedByResignation, &winner)
}

// FinishByRules ends the game on the external legality checker's
// verdict (checkmate, stalemate, ...). A nil winner is a drawn result.
func (m *Manager) FinishByRules(ctx context.Context, token string, winner *game.Color) error {
	_, g, unlock, err := m.enter(ctx, token)
	if err != nil {
		return err
	}
	defer unlock()

	if g.Ended() {
		return game.ErrGameEnded
	}
	return m.end(ctx, g, game.EndedByRules, winner)
}

// Moves returns the game's move history, oldest first. Works on ended
// games too.
func (m *Manager) Moves(ctx context.Context, token string) ([]game.Move, error) {
	_, g, unlock, err := m.enter(ctx, token)
	if err != nil {
		return nil, err
	}
	defer unlock()

	moves, err := m.dir.Moves(ctx, g.ID)
	if err != nil {
		return nil, infraErr(err)
	}
	return moves, nil
}

// Active lists the identity's ticket tokens for unfinished games.
func (m *Manager) Active(ctx context.Context, identity string) ([]string, error) {
	tokens, err := m.dir.ActiveTokens(ctx, identity)
	if err != nil {
		return nil, infraErr(err)
	}
	return tokens, nil
}

// enter resolves the token, takes the per-game lock, loads the game and
// runs the lazy timeout check. The caller must invoke the returned
// unlock.
func (m *Manager) enter(ctx context.Context, token string) (ticket.Session, *game.Game, func(), error) {
	var sess ticket.Session
	if err := m.tickets.Get(ctx, "sess:"+token, &sess); err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			return sess, nil, nil, game.ErrUnknownToken
		}
		return sess, nil, nil, infraErr(err)
	}

	unlock := m.lock(sess.GameID)
	g, err := m.dir.Game(ctx, sess.GameID)
	if err != nil {
		unlock()
		return sess, nil, nil, infraErr(err)
	}

	// Timeout is detected lazily, on whatever operation touches the
	// game first after the clock ran out.
	if !g.Ended() && clock.Expired(g.TimeLimit, m.now().Sub(g.LastStateAt)) {
		winner := g.NextColor.Other()
		if err := m.end(ctx, g, game.EndedByTimeout, &winner); err != nil {
			unlock()
			return sess, nil, nil, err
		}
		logging.Debugf("session: game %s flagged on time, %s wins", g.ID, winner)
	}
	return sess, g, unlock, nil
}

// end makes the terminal transition and mirrors it into the local copy.
func (m *Manager) end(ctx context.Context, g *game.Game, reason game.EndReason, winner *game.Color) error {
	now := m.now()
	ok, err := m.dir.EndGame(ctx, g.ID, reason, winner, now)
	if err != nil {
		return infraErr(err)
	}
	if !ok {
		// Another replica got there first; pick up its verdict.
		fresh, err := m.dir.Game(ctx, g.ID)
		if err != nil {
			return infraErr(err)
		}
		*g = *fresh
		return nil
	}
	g.EndedAt = &now
	g.EndReason = &reason
	g.Winner = winner
	g.DrawOffer = nil
	return nil
}

func (m *Manager) view(sess ticket.Session, g *game.Game) *Info {
	elapsed := m.now().Sub(g.LastStateAt)
	if g.EndedAt != nil {
		elapsed = g.EndedAt.Sub(g.LastStateAt)
	}
	self, timed := clock.TimeLeft(g.TimeLimit, elapsed, g.NextColor, sess.Color)
	opp, _ := clock.TimeLeft(g.TimeLimit, elapsed, g.NextColor, sess.Color.Other())
	return &Info{
		GameID:           g.ID,
		Color:            sess.Color,
		Board:            g.Board,
		NextColor:        g.NextColor,
		Timed:            timed,
		TimeLeft:         self,
		OpponentTimeLeft: opp,
		StartedAt:        g.CreatedAt,
		EndedAt:          g.EndedAt,
		EndReason:        g.EndReason,
		Winner:           g.Winner,
	}
}

func (m *Manager) lock(id uuid.UUID) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func infraErr(err error) error {
	return fmt.Errorf("%w: %s", game.ErrInfrastructure, err)
}
