package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"chessmatch/internal/game"
)

// Store persists games through gorm. It implements game.Directory.
type Store struct {
	db *gorm.DB
}

// NewStore creates the directory from a gorm DB.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateGame(ctx context.Context, g *game.Game) error {
	row := toRow(g)
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *Store) Game(ctx context.Context, id uuid.UUID) (*game.Game, error) {
	var row Game
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return fromRow(&row), nil
}

// AppendMove inserts the next move in sequence. The session manager
// holds the per-game lock, so count+1 cannot race for one game; the
// unique (game_id, number) index backs that up.
func (s *Store) AppendMove(ctx context.Context, id uuid.UUID, piece, notation string, at time.Time) (int, error) {
	var number int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Move{}).Where("game_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		number = int(count) + 1
		return tx.Create(&Move{
			GameID:    id,
			Number:    number,
			Piece:     piece,
			Notation:  notation,
			CreatedAt: at,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return number, nil
}

func (s *Store) SaveState(ctx context.Context, id uuid.UUID, board string, next game.Color, at time.Time) error {
	return s.db.WithContext(ctx).Model(&Game{}).Where("id = ?", id).Updates(map[string]any{
		"board":         board,
		"next_color":    string(next),
		"draw_offer":    nil,
		"last_state_at": at,
	}).Error
}

func (s *Store) SetDrawOffer(ctx context.Context, id uuid.UUID, offer *game.Color) error {
	var val *string
	if offer != nil {
		v := string(*offer)
		val = &v
	}
	return s.db.WithContext(ctx).Model(&Game{}).Where("id = ?", id).
		Update("draw_offer", val).Error
}

// EndGame marks the game terminal. The ended_at IS NULL guard makes the
// transition one-shot even across replicas; the draw offer clears with
// it by invariant.
func (s *Store) EndGame(ctx context.Context, id uuid.UUID, reason game.EndReason, winner *game.Color, at time.Time) (bool, error) {
	var winVal *string
	if winner != nil {
		v := string(*winner)
		winVal = &v
	}
	r := string(reason)
	res := s.db.WithContext(ctx).Model(&Game{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(map[string]any{
			"ended_at":   at,
			"end_reason": r,
			"winner":     winVal,
			"draw_offer": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) Moves(ctx context.Context, id uuid.UUID) ([]game.Move, error) {
	var rows []Move
	if err := s.db.WithContext(ctx).
		Where("game_id = ?", id).Order("number asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	moves := make([]game.Move, 0, len(rows))
	for _, r := range rows {
		moves = append(moves, game.Move{
			GameID:    r.GameID,
			Number:    r.Number,
			Piece:     r.Piece,
			Notation:  r.Notation,
			CreatedAt: r.CreatedAt,
		})
	}
	return moves, nil
}

func (s *Store) ActiveTokens(ctx context.Context, identity string) ([]string, error) {
	var rows []Game
	if err := s.db.WithContext(ctx).
		Where("ended_at IS NULL AND (player_white = ? OR player_black = ?)", identity, identity).
		Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.PlayerWhite != nil && *r.PlayerWhite == identity {
			tokens = append(tokens, r.WhiteToken)
		} else {
			tokens = append(tokens, r.BlackToken)
		}
	}
	return tokens, nil
}

func toRow(g *game.Game) *Game {
	row := &Game{
		ID:          g.ID,
		PlayerWhite: g.PlayerWhite,
		PlayerBlack: g.PlayerBlack,
		WhiteToken:  g.WhiteToken,
		BlackToken:  g.BlackToken,
		TimeLimit:   int64(g.TimeLimit),
		NextColor:   string(g.NextColor),
		Board:       g.Board,
		LastStateAt: g.LastStateAt,
		EndedAt:     g.EndedAt,
		CreatedAt:   g.CreatedAt,
	}
	if g.DrawOffer != nil {
		v := string(*g.DrawOffer)
		row.DrawOffer = &v
	}
	return row
}

func fromRow(row *Game) *game.Game {
	g := &game.Game{
		ID:          row.ID,
		PlayerWhite: row.PlayerWhite,
		PlayerBlack: row.PlayerBlack,
		WhiteToken:  row.WhiteToken,
		BlackToken:  row.BlackToken,
		CreatedAt:   row.CreatedAt,
		EndedAt:     row.EndedAt,
		TimeLimit:   time.Duration(row.TimeLimit),
		NextColor:   game.Color(row.NextColor),
		Board:       row.Board,
		LastStateAt: row.LastStateAt,
	}
	if row.DrawOffer != nil {
		c := game.Color(*row.DrawOffer)
		g.DrawOffer = &c
	}
	if row.EndReason != nil {
		r := game.EndReason(*row.EndReason)
		g.EndReason = &r
	}
	if row.Winner != nil {
		c := game.Color(*row.Winner)
		g.Winner = &c
	}
	return g
}
