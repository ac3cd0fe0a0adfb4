// Package ticket is the shared low-latency store backing matchmaking
// queues and live session-token lookup.
package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"chessmatch/internal/game"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("ticket: not found")

// Entry is one waiting matchmaking request inside a bucket.
type Entry struct {
	Token     string        `json:"token"`
	Owner     string        `json:"owner,omitempty"`
	LimitName string        `json:"limit_name,omitempty"`
	Limit     time.Duration `json:"limit,omitempty"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Session is the value a paired ticket token resolves to. It is written
// exactly once at pairing time and never changes afterwards.
type Session struct {
	GameID   uuid.UUID  `json:"game_id"`
	Color    game.Color `json:"color"`
	Opponent string     `json:"opponent"`
}

// Invite is a one-shot token another player may accept to start a game
// against its creator.
type Invite struct {
	OwnerToken string        `json:"owner_token"`
	Owner      string        `json:"owner,omitempty"`
	GameType   string        `json:"game_type"`
	LimitName  string        `json:"limit_name,omitempty"`
	Limit      time.Duration `json:"limit,omitempty"`
}

// Store is the ticket-store contract. Values are JSON-encoded. Pop is
// atomic: concurrent callers never observe the same entry twice, and
// entries past their deadline are discarded rather than returned.
type Store interface {
	Put(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, out any) error
	Delete(ctx context.Context, key string) error

	// Push appends an entry to a bucket, FIFO by arrival. A non-zero
	// ttl sets the entry's deadline.
	Push(ctx context.Context, bucket string, e Entry, ttl time.Duration) error
	// Pop removes and returns the oldest live entry of the bucket, or
	// nil when none is waiting. Entries owned by skipOwner are dropped
	// instead of returned (skipOwner may be empty).
	Pop(ctx context.Context, bucket, skipOwner string) (*Entry, error)
	// RemoveOwner removes the owner's pending entry from the bucket, a
	// no-op when there is none.
	RemoveOwner(ctx context.Context, bucket, owner string) error
}
