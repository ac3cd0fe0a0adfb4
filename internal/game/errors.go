package game

import "errors"

// Failure taxonomy surfaced to the request layer. Infrastructure
// failures wrap ErrInfrastructure with the underlying cause.
var (
	ErrUnknownToken   = errors.New("unknown token")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrGameEnded      = errors.New("game ended")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInfrastructure = errors.New("infrastructure unavailable")
)
