package matchmaking

import (
	"context"
	"errors"
	"fmt"

	"chessmatch/internal/game"
	"chessmatch/internal/logging"
	"chessmatch/internal/ticket"
)

// Invite creates a one-shot invitation instead of entering the open
// queue. Timed types must name a limit here: there is no waiting side
// whose limit could win later.
func (q *Queue) Invite(ctx context.Context, gameType, limitName, owner string) (gameToken, inviteToken string, err error) {
	limit, err := game.ParseLimit(gameType, limitName)
	if err != nil {
		return "", "", err
	}
	if game.Timed(gameType) && limitName == "" {
		return "", "", fmt.Errorf("%w: type %q requires a limit for invites", game.ErrInvalidRequest, gameType)
	}

	gameToken = ticket.NewToken()
	inviteToken = ticket.NewToken()
	inv := ticket.Invite{
		OwnerToken: gameToken,
		Owner:      owner,
		GameType:   gameType,
		LimitName:  limitName,
		Limit:      limit,
	}
	if err := q.tickets.Put(ctx, inviteKey(inviteToken), inv, q.cfg.InviteTTL); err != nil {
		return "", "", infraErr(err)
	}
	logging.Debugf("matchmaking: invite %s created for %s", inviteToken, gameToken)
	return gameToken, inviteToken, nil
}

// AcceptInvite consumes an invite and starts the game, inviter as
// white. An unknown, expired or already-used token is ErrUnknownToken.
func (q *Queue) AcceptInvite(ctx context.Context, inviteToken, owner string) (Result, error) {
	unlock := q.lock(inviteKey(inviteToken))
	defer unlock()

	var inv ticket.Invite
	if err := q.tickets.Get(ctx, inviteKey(inviteToken), &inv); err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			return Result{}, game.ErrUnknownToken
		}
		return Result{}, infraErr(err)
	}
	if err := q.tickets.Delete(ctx, inviteKey(inviteToken)); err != nil {
		return Result{}, infraErr(err)
	}

	token := ticket.NewToken()
	id, err := q.pair(ctx, inv.OwnerToken, inv.Owner, token, owner, inv.Limit)
	if err != nil {
		return Result{}, err
	}
	logging.Debugf("matchmaking: invite %s accepted, game %s", inviteToken, id)
	return Result{Token: token, Paired: true, GameID: id}, nil
}

func inviteKey(token string) string {
	return "inv:" + token
}
