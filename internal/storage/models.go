package storage

import (
	"time"

	"github.com/google/uuid"
)

// Game is the durable row for a paired game.
type Game struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlayerWhite *string   `gorm:"index"`
	PlayerBlack *string   `gorm:"index"`
	WhiteToken  string    `gorm:"index"`
	BlackToken  string    `gorm:"index"`
	TimeLimit   int64     // nanoseconds, 0 = untimed
	NextColor   string
	Board       string
	DrawOffer   *string
	EndReason   *string
	Winner      *string
	LastStateAt time.Time
	EndedAt     *time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Moves       []Move
}

// Move stores a single move of a game, append-only.
type Move struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	GameID    uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_game_move_number"`
	Number    int       `gorm:"uniqueIndex:idx_game_move_number"`
	Piece     string
	Notation  string
	CreatedAt time.Time
}
