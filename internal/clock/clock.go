// Package clock computes remaining think time. It is pure: callers pass
// the game's time limit and the wall-clock time elapsed since the last
// state change, and get back how much time a color has left.
//
// The time control is per move: an accepted move resets the clock, so
// the side to move is charged elapsed time against the full limit while
// the idle side's clock stays frozen at the value it held when it last
// moved, which is the full limit again.
package clock

import (
	"time"

	"chessmatch/internal/game"
)

// TimeLeft returns the remaining time for the requested color. The
// second return is false when the game is untimed (limit == 0), in
// which case the duration is meaningless and no timeout ever fires.
func TimeLeft(limit, elapsed time.Duration, toMove, requested game.Color) (time.Duration, bool) {
	if limit <= 0 {
		return 0, false
	}
	if requested != toMove {
		return limit, true
	}
	left := limit - elapsed
	if left < 0 {
		left = 0
	}
	return left, true
}

// Expired reports whether the side to move has run out of time.
func Expired(limit, elapsed time.Duration) bool {
	return limit > 0 && elapsed >= limit
}
