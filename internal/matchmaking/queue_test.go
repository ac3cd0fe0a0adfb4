package matchmaking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chessmatch/internal/game"
	"chessmatch/internal/storage"
	"chessmatch/internal/ticket"
)

func newTestQueue() (*Queue, *ticket.MemoryStore, *storage.MemoryDirectory) {
	store := ticket.NewMemoryStore()
	dir := storage.NewMemoryDirectory()
	return NewQueue(store, dir, DefaultConfig()), store, dir
}

func TestFirstRequestWaits(t *testing.T) {
	q, _, _ := newTestQueue()
	res, err := q.Request(context.Background(), game.TypeSlow, "1d", "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if res.Paired {
		t.Fatalf("first request must wait, got paired")
	}
	if res.Token == "" {
		t.Fatalf("expected a ticket token")
	}
}

func TestPairingAssignsColorsAndTickets(t *testing.T) {
	q, store, dir := newTestQueue()
	ctx := context.Background()

	r1, err := q.Request(ctx, game.TypeSlow, "1d", "")
	if err != nil {
		t.Fatalf("request 1: %v", err)
	}
	r2, err := q.Request(ctx, game.TypeSlow, "1d", "")
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	if !r2.Paired {
		t.Fatalf("second request should pair")
	}

	g, err := dir.Game(ctx, r2.GameID)
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	if g.NextColor != game.White {
		t.Fatalf("fresh game must be white to move, got %s", g.NextColor)
	}
	if g.PlayerWhite != nil || g.PlayerBlack != nil {
		t.Fatalf("anonymous pairing must leave players unset")
	}
	if g.TimeLimit != 24*time.Hour {
		t.Fatalf("expected 1d limit, got %v", g.TimeLimit)
	}

	var s1, s2 ticket.Session
	if err := store.Get(ctx, sessionKey(r1.Token), &s1); err != nil {
		t.Fatalf("ticket 1: %v", err)
	}
	if err := store.Get(ctx, sessionKey(r2.Token), &s2); err != nil {
		t.Fatalf("ticket 2: %v", err)
	}
	if s1.Color != game.White || s1.Opponent != r2.Token || s1.GameID != r2.GameID {
		t.Fatalf("waiting side should be white vs %s, got %+v", r2.Token, s1)
	}
	if s2.Color != game.Black || s2.Opponent != r1.Token {
		t.Fatalf("requester should be black vs %s, got %+v", r1.Token, s2)
	}
}

func TestPairingRecordsIdentities(t *testing.T) {
	q, _, dir := newTestQueue()
	ctx := context.Background()

	if _, err := q.Request(ctx, game.TypeNoLimit, "", "user1"); err != nil {
		t.Fatalf("request 1: %v", err)
	}
	r2, err := q.Request(ctx, game.TypeNoLimit, "", "user2")
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	if !r2.Paired {
		t.Fatalf("expected pairing")
	}
	g, _ := dir.Game(ctx, r2.GameID)
	if g.PlayerWhite == nil || *g.PlayerWhite != "user1" {
		t.Fatalf("white should be user1, got %v", g.PlayerWhite)
	}
	if g.PlayerBlack == nil || *g.PlayerBlack != "user2" {
		t.Fatalf("black should be user2, got %v", g.PlayerBlack)
	}

	tokens, err := dir.ActiveTokens(ctx, "user1")
	if err != nil || len(tokens) != 1 {
		t.Fatalf("expected one active game for user1, got %v %v", tokens, err)
	}
}

func TestWaitingLimitWins(t *testing.T) {
	q, _, dir := newTestQueue()
	ctx := context.Background()

	// First names 1d, second names nothing: they pair on 1d.
	if _, err := q.Request(ctx, game.TypeSlow, "1d", ""); err != nil {
		t.Fatalf("request 1: %v", err)
	}
	r2, err := q.Request(ctx, game.TypeSlow, "", "")
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	if !r2.Paired {
		t.Fatalf("open request should join the limited one")
	}
	g, _ := dir.Game(ctx, r2.GameID)
	if g.TimeLimit != 24*time.Hour {
		t.Fatalf("the waiting side's limit should win, got %v", g.TimeLimit)
	}
}

func TestRequesterLimitAppliesToOpenWaiter(t *testing.T) {
	q, _, dir := newTestQueue()
	ctx := context.Background()

	if _, err := q.Request(ctx, game.TypeSlow, "", ""); err != nil {
		t.Fatalf("request 1: %v", err)
	}
	r2, err := q.Request(ctx, game.TypeSlow, "1d", "")
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	if !r2.Paired {
		t.Fatalf("limited request should join the open one")
	}
	g, _ := dir.Game(ctx, r2.GameID)
	if g.TimeLimit != 24*time.Hour {
		t.Fatalf("requester's limit should apply, got %v", g.TimeLimit)
	}
}

func TestTwoOpenTimedRequestsNeverPair(t *testing.T) {
	q, _, _ := newTestQueue()
	ctx := context.Background()

	r1, _ := q.Request(ctx, game.TypeSlow, "", "")
	r2, _ := q.Request(ctx, game.TypeSlow, "", "")
	if r1.Paired || r2.Paired {
		t.Fatalf("two limitless requests in a timed type must both wait")
	}
}

func TestUntimedTypePairsWithoutLimits(t *testing.T) {
	q, _, dir := newTestQueue()
	ctx := context.Background()

	q.Request(ctx, game.TypeNoLimit, "", "")
	r2, _ := q.Request(ctx, game.TypeNoLimit, "", "")
	if !r2.Paired {
		t.Fatalf("untimed requests should pair freely")
	}
	g, _ := dir.Game(ctx, r2.GameID)
	if g.TimeLimit != 0 {
		t.Fatalf("untimed game got a limit: %v", g.TimeLimit)
	}
}

func TestDistinctClassesRespectConfig(t *testing.T) {
	// Default: 1h and 1d wait in separate classes.
	q, _, _ := newTestQueue()
	ctx := context.Background()
	q.Request(ctx, game.TypeSlow, "1h", "")
	r2, _ := q.Request(ctx, game.TypeSlow, "1d", "")
	if r2.Paired {
		t.Fatalf("distinct classes paired with PairClasses off")
	}

	// With PairClasses on they pair, first-waiting limit wins.
	cfg := DefaultConfig()
	cfg.PairClasses = true
	store := ticket.NewMemoryStore()
	dir := storage.NewMemoryDirectory()
	q2 := NewQueue(store, dir, cfg)
	q2.Request(ctx, game.TypeSlow, "1h", "")
	r2, _ = q2.Request(ctx, game.TypeSlow, "1d", "")
	if !r2.Paired {
		t.Fatalf("distinct classes should pair with PairClasses on")
	}
	g, _ := dir.Game(ctx, r2.GameID)
	if g.TimeLimit != time.Hour {
		t.Fatalf("first-waiting limit should win, got %v", g.TimeLimit)
	}
}

func TestRepeatRequestSupersedes(t *testing.T) {
	q, store, _ := newTestQueue()
	ctx := context.Background()

	r1, _ := q.Request(ctx, game.TypeSlow, "1d", "user1")
	r2, _ := q.Request(ctx, game.TypeSlow, "1d", "user1")
	if r1.Paired || r2.Paired {
		t.Fatalf("user must never pair with itself")
	}

	// Exactly one pending entry remains, and it is the second token.
	e, err := store.Pop(ctx, "slow:1d", "")
	if err != nil || e == nil {
		t.Fatalf("expected one pending entry, got %v %v", e, err)
	}
	if e.Token != r2.Token {
		t.Fatalf("the stale entry should be gone, found %s", e.Token)
	}
	if e2, _ := store.Pop(ctx, "slow:1d", ""); e2 != nil {
		t.Fatalf("expected exactly one pending entry, found %+v", e2)
	}
}

func TestSupersededEntryPairsNobody(t *testing.T) {
	q, store, _ := newTestQueue()
	ctx := context.Background()

	r1, _ := q.Request(ctx, game.TypeSlow, "1d", "user1")
	r2, _ := q.Request(ctx, game.TypeSlow, "1d", "user1")
	r3, _ := q.Request(ctx, game.TypeSlow, "1d", "user2")
	if !r3.Paired {
		t.Fatalf("user2 should pair with user1's live entry")
	}
	var s ticket.Session
	if err := store.Get(ctx, sessionKey(r2.Token), &s); err != nil {
		t.Fatalf("second token should be live: %v", err)
	}
	if err := store.Get(ctx, sessionKey(r1.Token), &s); !errors.Is(err, ticket.ErrNotFound) {
		t.Fatalf("superseded token must stay unpaired, got %v", err)
	}
}

func TestConcurrentRequestsPairCleanly(t *testing.T) {
	q, _, _ := newTestQueue()
	ctx := context.Background()

	const n = 8
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := q.Request(ctx, game.TypeFast, "5m", "")
			if err != nil {
				t.Errorf("request: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	paired := 0
	for _, r := range results {
		if r.Paired {
			paired++
		}
	}
	if paired != n/2 {
		t.Fatalf("expected %d pairings from %d requests, got %d", n/2, n, paired)
	}
}

func TestQueueEntriesExpire(t *testing.T) {
	q, store, _ := newTestQueue()
	ctx := context.Background()
	now := time.Now()
	store.SetNow(func() time.Time { return now })

	if _, err := q.Request(ctx, game.TypeSlow, "1h", ""); err != nil {
		t.Fatalf("request: %v", err)
	}
	now = now.Add(2 * time.Hour)
	r2, err := q.Request(ctx, game.TypeSlow, "1h", "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if r2.Paired {
		t.Fatalf("abandoned entry should have expired")
	}
}

func TestInvalidTypeAndLimit(t *testing.T) {
	q, _, _ := newTestQueue()
	ctx := context.Background()

	if _, err := q.Request(ctx, "err_type", "", ""); !errors.Is(err, game.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad type, got %v", err)
	}
	if _, err := q.Request(ctx, game.TypeSlow, "err_limit", ""); !errors.Is(err, game.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad limit, got %v", err)
	}
}

func TestInviteFlow(t *testing.T) {
	q, _, dir := newTestQueue()
	ctx := context.Background()

	gameToken, inviteToken, err := q.Invite(ctx, game.TypeNoLimit, "", "user1")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	res, err := q.AcceptInvite(ctx, inviteToken, "user2")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !res.Paired {
		t.Fatalf("accepting an invite should pair")
	}
	g, _ := dir.Game(ctx, res.GameID)
	if g.PlayerWhite == nil || *g.PlayerWhite != "user1" {
		t.Fatalf("inviter should be white, got %v", g.PlayerWhite)
	}
	if g.WhiteToken != gameToken {
		t.Fatalf("inviter should keep its game token")
	}

	// One-shot: the invite is spent.
	if _, err := q.AcceptInvite(ctx, inviteToken, "user3"); !errors.Is(err, game.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken for a used invite, got %v", err)
	}
}

func TestInviteForTimedTypeNeedsLimit(t *testing.T) {
	q, _, _ := newTestQueue()
	if _, _, err := q.Invite(context.Background(), game.TypeSlow, "", ""); !errors.Is(err, game.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestAcceptUnknownInvite(t *testing.T) {
	q, _, _ := newTestQueue()
	if _, err := q.AcceptInvite(context.Background(), "nope", ""); !errors.Is(err, game.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}
