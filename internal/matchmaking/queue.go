// Package matchmaking pairs waiting players into games, bucketed by
// game type and time-control class.
package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chessmatch/internal/game"
	"chessmatch/internal/logging"
	"chessmatch/internal/ticket"
)

// Config tunes pairing policy and queue-entry lifetimes.
type Config struct {
	// PairClasses lets two different explicit limit classes of the same
	// game type pair with each other (the first-waiting limit wins).
	// Off by default: distinct classes wait separately.
	PairClasses bool

	// Queue entries expire if nobody pairs with them. Timed buckets use
	// the bucket's limit clamped to [QueueTTLMin, QueueTTLMax]; open
	// and untimed entries use QueueTTLDefault.
	QueueTTLMin     time.Duration
	QueueTTLMax     time.Duration
	QueueTTLDefault time.Duration

	// InviteTTL bounds how long an unaccepted invite stays valid.
	InviteTTL time.Duration
}

// DefaultConfig mirrors the production settings.
func DefaultConfig() Config {
	return Config{
		QueueTTLMin:     5 * time.Minute,
		QueueTTLMax:     7 * 24 * time.Hour,
		QueueTTLDefault: 24 * time.Hour,
		InviteTTL:       24 * time.Hour,
	}
}

// Queue is the matchmaking front. It keeps no waiting state of its own;
// the ticket store holds the buckets, so replicas can share one queue.
type Queue struct {
	tickets ticket.Store
	dir     game.Directory
	cfg     Config
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Result of one matchmaking request. Paired is false while the caller
// waits in the bucket; the token works either way.
type Result struct {
	Token  string
	Paired bool
	GameID uuid.UUID
}

// NewQueue creates a matchmaking queue over the given stores.
func NewQueue(tickets ticket.Store, dir game.Directory, cfg Config) *Queue {
	return &Queue{
		tickets: tickets,
		dir:     dir,
		cfg:     cfg,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// SetNow overrides the queue's clock, for tests.
func (q *Queue) SetNow(now func() time.Time) { q.now = now }

// Request enqueues a matchmaking request and pairs it immediately when
// a compatible opponent is waiting. The waiting side plays white.
func (q *Queue) Request(ctx context.Context, gameType, limitName, owner string) (Result, error) {
	limit, err := game.ParseLimit(gameType, limitName)
	if err != nil {
		return Result{}, err
	}

	token := ticket.NewToken()

	// Supersede + pop + push must not interleave for one game type, or
	// two first requests could both enqueue without seeing each other.
	unlock := q.lock(gameType)
	defer unlock()

	// A signed-in player keeps at most one pending request per type;
	// re-requesting cancels the stale one.
	if owner != "" {
		for _, bucket := range q.bucketsOf(gameType) {
			if err := q.tickets.RemoveOwner(ctx, bucket, owner); err != nil {
				return Result{}, infraErr(err)
			}
		}
	}

	waiting, pairedLimit, err := q.popCompatible(ctx, gameType, limitName, limit, owner)
	if err != nil {
		return Result{}, err
	}
	if waiting == nil {
		entry := ticket.Entry{Token: token, Owner: owner, LimitName: limitName, Limit: limit}
		bucket := q.bucketFor(gameType, limitName)
		if err := q.tickets.Push(ctx, bucket, entry, q.entryTTL(limit)); err != nil {
			return Result{}, infraErr(err)
		}
		logging.Debugf("matchmaking: %s waiting in %s", token, bucket)
		return Result{Token: token}, nil
	}

	id, err := q.pair(ctx, waiting.Token, waiting.Owner, token, owner, pairedLimit)
	if err != nil {
		return Result{}, err
	}
	logging.Debugf("matchmaking: paired %s (white) with %s (black), game %s", waiting.Token, token, id)
	return Result{Token: token, Paired: true, GameID: id}, nil
}

// popCompatible finds the oldest waiting request the caller may pair
// with, along with the time limit their game will use.
func (q *Queue) popCompatible(ctx context.Context, gameType, limitName string, limit time.Duration, owner string) (*ticket.Entry, time.Duration, error) {
	if !game.Timed(gameType) {
		e, err := q.tickets.Pop(ctx, q.bucketFor(gameType, ""), owner)
		if err != nil {
			return nil, 0, infraErr(err)
		}
		return e, 0, nil
	}

	if limitName != "" {
		// Own class first.
		e, err := q.tickets.Pop(ctx, q.bucketFor(gameType, limitName), owner)
		if err != nil {
			return nil, 0, infraErr(err)
		}
		if e != nil {
			return e, e.Limit, nil
		}
		if q.cfg.PairClasses {
			for _, name := range game.LimitNames(gameType) {
				if name == limitName {
					continue
				}
				e, err := q.tickets.Pop(ctx, q.bucketFor(gameType, name), owner)
				if err != nil {
					return nil, 0, infraErr(err)
				}
				if e != nil {
					return e, e.Limit, nil
				}
			}
		}
		// An open request takes our limit: the waiting side named none.
		e, err = q.tickets.Pop(ctx, q.openBucket(gameType), owner)
		if err != nil {
			return nil, 0, infraErr(err)
		}
		if e != nil {
			return e, limit, nil
		}
		return nil, 0, nil
	}

	// No limit named: join the oldest class that has someone waiting.
	// Two open requests never pair; a timed game needs a limit from
	// at least one side.
	for _, name := range game.LimitNames(gameType) {
		e, err := q.tickets.Pop(ctx, q.bucketFor(gameType, name), owner)
		if err != nil {
			return nil, 0, infraErr(err)
		}
		if e != nil {
			return e, e.Limit, nil
		}
	}
	return nil, 0, nil
}

// pair creates the game and publishes both session tickets. The white
// side is whoever was already waiting.
func (q *Queue) pair(ctx context.Context, whiteToken, whiteOwner, blackToken, blackOwner string, limit time.Duration) (uuid.UUID, error) {
	now := q.now()
	g := &game.Game{
		ID:          uuid.New(),
		PlayerWhite: identPtr(whiteOwner),
		PlayerBlack: identPtr(blackOwner),
		WhiteToken:  whiteToken,
		BlackToken:  blackToken,
		CreatedAt:   now,
		TimeLimit:   limit,
		NextColor:   game.White,
		Board:       game.StartingBoard,
		LastStateAt: now,
	}
	if err := q.dir.CreateGame(ctx, g); err != nil {
		return uuid.Nil, infraErr(err)
	}

	white := ticket.Session{GameID: g.ID, Color: game.White, Opponent: blackToken}
	black := ticket.Session{GameID: g.ID, Color: game.Black, Opponent: whiteToken}
	if err := q.tickets.Put(ctx, sessionKey(whiteToken), white, 0); err != nil {
		return uuid.Nil, infraErr(err)
	}
	if err := q.tickets.Put(ctx, sessionKey(blackToken), black, 0); err != nil {
		// Roll the first ticket back so the pairing is all or nothing;
		// the game row stays as a dead record nobody can reach.
		_ = q.tickets.Delete(ctx, sessionKey(whiteToken))
		return uuid.Nil, infraErr(err)
	}
	return g.ID, nil
}

func (q *Queue) bucketsOf(gameType string) []string {
	if !game.Timed(gameType) {
		return []string{q.bucketFor(gameType, "")}
	}
	buckets := make([]string, 0, 6)
	for _, name := range game.LimitNames(gameType) {
		buckets = append(buckets, q.bucketFor(gameType, name))
	}
	return append(buckets, q.openBucket(gameType))
}

func (q *Queue) bucketFor(gameType, limitName string) string {
	if !game.Timed(gameType) {
		return gameType
	}
	if limitName == "" {
		return q.openBucket(gameType)
	}
	return gameType + ":" + limitName
}

func (q *Queue) openBucket(gameType string) string {
	return gameType + ":open"
}

func (q *Queue) entryTTL(limit time.Duration) time.Duration {
	if limit <= 0 {
		return q.cfg.QueueTTLDefault
	}
	if limit < q.cfg.QueueTTLMin {
		return q.cfg.QueueTTLMin
	}
	if limit > q.cfg.QueueTTLMax {
		return q.cfg.QueueTTLMax
	}
	return limit
}

func (q *Queue) lock(name string) func() {
	q.mu.Lock()
	l, ok := q.locks[name]
	if !ok {
		l = &sync.Mutex{}
		q.locks[name] = l
	}
	q.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func sessionKey(token string) string {
	return "sess:" + token
}

func identPtr(owner string) *string {
	if owner == "" {
		return nil
	}
	return &owner
}

func infraErr(err error) error {
	return fmt.Errorf("%w: %s", game.ErrInfrastructure, err)
}
